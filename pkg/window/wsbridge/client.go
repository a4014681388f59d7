package wsbridge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

type ClientConfig struct {
	URL              string
	ID               string
	Origin           string
	HandshakeTimeout time.Duration
	Backlog          int
	Identity         *IdentityConfig
	Logger           *zap.Logger
}

func DefaultClientConfig(wsURL string) ClientConfig {
	return ClientConfig{
		URL:              wsURL,
		HandshakeTimeout: 10 * time.Second,
		Backlog:          64,
		Logger:           zap.L(),
	}
}

// noProxyDialer - WebSocket диалер без использования HTTP_PROXY
var noProxyDialer = websocket.Dialer{
	Proxy:            nil,
	HandshakeTimeout: 45 * time.Second,
}

// Dial подключается к серверу, выполняет hello и запускает чтение кадров.
func Dial(ctx context.Context, cfg ClientConfig) (*Peer, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	hs, err := newHandshaker(cfg.ID, cfg.Origin, cfg.Identity, cfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("connecting to server", zap.String("url", u.String()))

	conn, _, err := noProxyDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	info, err := hs.client(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	peer := newPeer(conn, window.Config{ID: hs.localID, Origin: cfg.Origin, Backlog: cfg.Backlog}, info, cfg.Logger)
	peer.logger.Info("connected to server", zap.String("url", u.String()))

	go peer.readLoop()

	return peer, nil
}
