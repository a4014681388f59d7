package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

type SocketConfig struct {
	Logger  *zap.Logger
	OnError func(err error)
	Metrics *Metrics
	// RejectPendingOnTerminate завершает ожидающие SendAndWait ошибкой
	// ErrTerminated. По умолчанию они остаются неразрешёнными.
	RejectPendingOnTerminate bool
	// Presets регистрируются до подписки на входящие сообщения.
	Presets []Preset
}

type Preset struct {
	Name    string
	Handler Handler
	Once    bool
}

func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		Logger: zap.L(),
	}
}

type registration struct {
	handler Handler
	once    bool
}

type pendingRequest struct {
	replyCh chan json.RawMessage
	errCh   chan error
}

type Socket struct {
	self         window.Window
	remote       window.Target
	remoteID     string
	remoteOrigin string

	logger        *zap.Logger
	onError       func(err error)
	metrics       *Metrics
	rejectPending bool
	ids           *idGenerator

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	channels    map[string]*registration
	pending     map[string]*pendingRequest
	abandoned   map[string]struct{}
	terminated  bool
	unsubscribe func()
}

func NewSocket(self window.Window, remote window.Target, cfg SocketConfig) *Socket {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Socket{
		self:          self,
		remote:        remote,
		remoteID:      remote.ID(),
		remoteOrigin:  remote.Origin(),
		logger:        cfg.Logger.With(zap.String("self", self.ID()), zap.String("remote", remote.ID())),
		onError:       cfg.OnError,
		metrics:       cfg.Metrics,
		rejectPending: cfg.RejectPendingOnTerminate,
		ids:           newIDGenerator(),
		ctx:           ctx,
		cancel:        cancel,
		channels:      make(map[string]*registration),
		pending:       make(map[string]*pendingRequest),
		abandoned:     make(map[string]struct{}),
	}

	if s.onError == nil {
		s.onError = s.logError
	}

	for _, p := range cfg.Presets {
		if p.Handler != nil {
			s.channels[p.Name] = &registration{handler: p.Handler, once: p.Once}
		}
	}

	s.mu.Lock()
	s.unsubscribe = self.AddListener(s.onMessage)
	s.mu.Unlock()

	return s
}

func (s *Socket) CreateChannel(name string, handler Handler, opts ...ChannelOption) (*Channel, error) {
	reg := &registration{handler: handler}
	for _, opt := range opts {
		opt(reg)
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()

		err := fmt.Errorf("%w: cannot create channel %q", ErrTerminated, name)
		s.report(err)

		return nil, err
	}

	if handler != nil {
		s.channels[name] = reg
	}
	s.mu.Unlock()

	return &Channel{socket: s, name: name}, nil
}

func (s *Socket) HasChannel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.channels[name]
	return ok
}

// RemoveListener удаляет только регистрацию канала, ожидающие ответы не трогает.
func (s *Socket) RemoveListener(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, name)
}

func (s *Socket) Terminate() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}

	s.terminated = true
	unsubscribe := s.unsubscribe
	pending := s.pending
	s.channels = make(map[string]*registration)
	s.pending = make(map[string]*pendingRequest)
	s.abandoned = make(map[string]struct{})
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.metrics.pendingAdd(-float64(len(pending)))

	if s.rejectPending {
		for _, pr := range pending {
			pr.errCh <- ErrTerminated
		}
	}

	s.cancel()
	s.logger.Debug("socket terminated", zap.Int("dropped_pending", len(pending)))
}

func (s *Socket) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Done закрывается после Terminate.
func (s *Socket) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Socket) onMessage(ev *window.Event) {
	if s.IsTerminated() {
		s.metrics.rejected(reasonTerminated)
		s.report(fmt.Errorf("%w: inbound message dropped", ErrTerminated))
		return
	}

	// Чужой трафик на общем транспорте не является ошибкой.
	if ev.Source == nil || ev.Source.ID() != s.remoteID {
		s.logger.Debug("ignoring message from foreign sender")
		return
	}

	ev.StopImmediatePropagation()

	if ev.Origin != s.remoteOrigin {
		s.metrics.rejected(reasonOrigin)
		s.report(fmt.Errorf("%w: got %q, want %q", ErrUnauthorizedOrigin, ev.Origin, s.remoteOrigin))
		return
	}

	env, err := ParseEnvelope(ev.Data)
	if err != nil {
		s.metrics.rejected(reasonMalformed)
		s.report(err)
		return
	}

	s.mu.Lock()
	if pr, ok := s.pending[env.ID]; ok {
		delete(s.pending, env.ID)
		s.mu.Unlock()

		s.metrics.pendingAdd(-1)
		s.metrics.received(kindReply)
		pr.replyCh <- env.Payload

		return
	}

	// Поздний ответ на брошенный запрос не должен попасть в обработчик канала.
	if _, ok := s.abandoned[env.ID]; ok {
		delete(s.abandoned, env.ID)
		s.mu.Unlock()

		s.metrics.rejected(reasonAbandoned)
		s.logger.Debug("dropping late reply to abandoned request",
			zap.String("id", env.ID),
			zap.String("channel", env.Name),
		)

		return
	}

	reg, ok := s.channels[env.Name]
	if !ok {
		s.mu.Unlock()

		s.metrics.rejected(reasonNoChannel)
		s.report(fmt.Errorf("%w: %q", ErrNoChannel, env.Name))

		return
	}

	if reg.once {
		delete(s.channels, env.Name)
	}
	s.mu.Unlock()

	if env.WaitForResponse {
		s.metrics.received(kindRequest)
	} else {
		s.metrics.received(kindNotify)
	}

	go s.handle(env, reg.handler)
}

func (s *Socket) handle(env *Envelope, handler Handler) {
	result, err := s.invoke(env, handler)
	if err == nil && env.WaitForResponse {
		var reply *Envelope
		if reply, err = NewEnvelope(env.ID, env.Name, result, false); err == nil {
			s.reply(reply)
			return
		}
	}

	if err == nil {
		return
	}

	s.metrics.handlerFailed(env.Name)
	s.report(&HandlerError{Channel: env.Name, Err: err})

	if env.WaitForResponse {
		s.reply(NewErrorEnvelope(env.ID, env.Name, err))
	}
}

func (s *Socket) invoke(env *Envelope, handler Handler) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(s.ctx, env.Payload)
}

// reply отправляется даже после Terminate: обработчик мог закрыть сокет сам.
func (s *Socket) reply(env *Envelope) {
	if err := s.transmit(env, kindReply); err != nil {
		s.report(fmt.Errorf("failed to reply on channel %q: %w", env.Name, err))
	}
}

func (s *Socket) transmit(env *Envelope, kind string) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := s.remote.PostMessage(s.self, data, s.remoteOrigin); err != nil {
		return err
	}

	s.metrics.sent(kind)

	return nil
}

func (s *Socket) addPending(id string) (*pendingRequest, error) {
	pr := &pendingRequest{
		replyCh: make(chan json.RawMessage, 1),
		errCh:   make(chan error, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return nil, ErrTerminated
	}

	s.pending[id] = pr
	s.metrics.pendingAdd(1)

	return pr, nil
}

func (s *Socket) dropPending(id string) {
	s.mu.Lock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if ok {
		s.metrics.pendingAdd(-1)
	}
}

// abandonPending запоминает id, чтобы поздний ответ был поглощён, а не диспетчеризован.
func (s *Socket) abandonPending(id string) {
	s.mu.Lock()
	_, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		s.abandoned[id] = struct{}{}
	}
	s.mu.Unlock()

	if ok {
		s.metrics.pendingAdd(-1)
	}
}

func (s *Socket) report(err error) {
	s.onError(err)
}

func (s *Socket) logError(err error) {
	fields := []zap.Field{zap.Error(err)}

	var herr *HandlerError
	if errors.As(err, &herr) {
		fields = append(fields, zap.String("channel", herr.Channel))
	}

	s.logger.Error("bridge socket error", fields...)
}
