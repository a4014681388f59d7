package wsbridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

type ServerConfig struct {
	ID               string
	Origin           string
	ReadBufferSize   int
	WriteBufferSize  int
	CheckOrigin      func(r *http.Request) bool
	HandshakeTimeout time.Duration
	// Backlog - сколько кадров хранить до подписки первого слушателя.
	Backlog  int
	Identity *IdentityConfig
	Logger   *zap.Logger
	// OnPeer вызывается в отдельной горутине. ctx отменяется при разрыве соединения.
	OnPeer func(ctx context.Context, peer *Peer)
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      func(r *http.Request) bool { return true },
		HandshakeTimeout: 10 * time.Second,
		Backlog:          64,
		Logger:           zap.L(),
	}
}

type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()

	hs, err := newHandshaker(s.cfg.ID, s.cfg.Origin, s.cfg.Identity, s.cfg.HandshakeTimeout)
	if err != nil {
		s.logger.Error("invalid identity", zap.Error(err))
		return
	}

	info, err := hs.server(conn)
	if err != nil {
		s.logger.Error("handshake failed", zap.Error(err), zap.String("remote_addr", remoteAddr))
		return
	}

	peer := newPeer(conn, s.localConfig(hs.localID), info, s.logger)

	peer.logger.Info("peer connected", zap.String("remote_addr", remoteAddr))
	defer peer.logger.Info("peer disconnected", zap.String("remote_addr", remoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.cfg.OnPeer != nil {
		go s.cfg.OnPeer(ctx, peer)
	}

	peer.readLoop()
}

func (s *Server) localConfig(id string) window.Config {
	return window.Config{ID: id, Origin: s.cfg.Origin, Backlog: s.cfg.Backlog}
}
