package wsbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

// Peer - соединение с удалённым контекстом. Local принимает входящие
// кадры, Remote отправляет исходящие.
type Peer struct {
	conn   *websocket.Conn
	local  *window.Frame
	remote *remoteTarget
	logger *zap.Logger

	writeMu  sync.Mutex
	done     chan struct{}
	closed   bool
	closedMu sync.RWMutex
}

func newPeer(conn *websocket.Conn, local window.Config, info peerInfo, logger *zap.Logger) *Peer {
	p := &Peer{
		conn:   conn,
		local:  window.New(local),
		logger: logger.With(zap.String("peer_id", info.id), zap.String("peer_origin", info.origin)),
		done:   make(chan struct{}),
	}

	p.remote = &remoteTarget{peer: p, id: info.id, origin: info.origin}

	return p
}

func (p *Peer) Local() *window.Frame {
	return p.local
}

func (p *Peer) Remote() window.Target {
	return p.remote
}

func (p *Peer) readLoop() {
	defer func() {
		p.closedMu.Lock()
		p.closed = true
		p.closedMu.Unlock()

		_ = p.local.Close()
		_ = p.conn.Close()
		close(p.done)
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				p.logger.Error("read error", zap.Error(err))
			}

			return
		}

		f, err := decodeFrame(data)
		if err != nil {
			p.logger.Error("failed to decode frame", zap.Error(err))
			continue
		}

		if err := p.local.Deliver(p.remote, f.Origin, f.Data); err != nil {
			if errors.Is(err, window.ErrClosed) {
				return
			}

			p.logger.Error("failed to deliver frame", zap.Error(err))
		}
	}
}

func (p *Peer) write(origin string, data []byte) error {
	if p.IsClosed() {
		return ErrConnectionClosed
	}

	buf, err := encodeFrame(origin, data)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

func (p *Peer) Close() error {
	p.closedMu.Lock()
	if p.closed {
		p.closedMu.Unlock()
		return nil
	}
	p.closed = true
	p.closedMu.Unlock()

	_ = p.local.Close()

	p.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "peer closing")
	_ = p.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	p.writeMu.Unlock()

	return p.conn.Close()
}

func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) IsClosed() bool {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	return p.closed
}

type remoteTarget struct {
	peer   *Peer
	id     string
	origin string
}

func (t *remoteTarget) ID() string {
	return t.id
}

func (t *remoteTarget) Origin() string {
	return t.origin
}

// PostMessage молча отбрасывает кадр, если targetOrigin не совпадает с origin партнёра.
func (t *remoteTarget) PostMessage(source window.Target, data []byte, targetOrigin string) error {
	if targetOrigin != window.AnyOrigin && targetOrigin != t.origin {
		return nil
	}

	origin := ""
	if source != nil {
		origin = source.Origin()
	}

	return t.peer.write(origin, data)
}
