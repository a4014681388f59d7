package window

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("window closed")

// AnyOrigin разрешает доставку независимо от origin получателя.
const AnyOrigin = "*"

type Target interface {
	ID() string
	Origin() string
	PostMessage(source Target, data []byte, targetOrigin string) error
}

type Window interface {
	Target
	AddListener(l Listener) (remove func())
}

type Listener func(ev *Event)

type Event struct {
	Source  Target
	Origin  string
	Data    []byte
	stopped bool
}

func (e *Event) StopImmediatePropagation() {
	e.stopped = true
}

func (e *Event) Stopped() bool {
	return e.stopped
}

type Config struct {
	ID      string
	Origin  string
	Backlog int // сообщения, пришедшие до первого слушателя
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type Frame struct {
	id     string
	origin string

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	backlog   []*Event
	maxQueue  int
	closed    bool
}

func New(cfg Config) *Frame {
	return &Frame{
		id:       cfg.ID,
		origin:   cfg.Origin,
		maxQueue: cfg.Backlog,
	}
}

func (f *Frame) ID() string {
	return f.id
}

func (f *Frame) Origin() string {
	return f.origin
}

func (f *Frame) PostMessage(source Target, data []byte, targetOrigin string) error {
	if targetOrigin != AnyOrigin && targetOrigin != f.origin {
		return nil
	}

	origin := ""
	if source != nil {
		origin = source.Origin()
	}

	return f.Deliver(source, origin, data)
}

// Deliver ставит событие в очередь доставки с явно указанным origin отправителя.
func (f *Frame) Deliver(source Target, origin string, data []byte) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return ErrClosed
	}

	ev := &Event{
		Source: source,
		Origin: origin,
		Data:   append([]byte(nil), data...),
	}

	go f.dispatch(ev)

	return nil
}

func (f *Frame) AddListener(l Listener) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, listenerEntry{id: id, fn: l})
	queued := f.backlog
	f.backlog = nil
	f.mu.Unlock()

	if len(queued) > 0 {
		go func() {
			for _, ev := range queued {
				f.dispatch(ev)
			}
		}()
	}

	return func() { f.removeListener(id) }
}

func (f *Frame) removeListener(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, entry := range f.listeners {
		if entry.id == id {
			f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *Frame) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Frame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	f.closed = true
	f.listeners = nil
	f.backlog = nil

	return nil
}

func (f *Frame) dispatch(ev *Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	if len(f.listeners) == 0 {
		if len(f.backlog) < f.maxQueue {
			f.backlog = append(f.backlog, ev)
		}
		f.mu.Unlock()
		return
	}

	listeners := make([]listenerEntry, len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, entry := range listeners {
		entry.fn(ev)
		if ev.stopped {
			return
		}
	}
}
