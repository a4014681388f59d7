package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/internal/config"
	"github.com/LLIEPJIOK/framebridge/internal/logging"
	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
	"github.com/LLIEPJIOK/framebridge/pkg/bridge/plugin"
	"github.com/LLIEPJIOK/framebridge/pkg/window/wsbridge"
)

const callTimeout = 5 * time.Second

type host struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *bridge.Metrics
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Logger())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	restore := logging.Install(logger)
	defer restore()

	identity, err := cfg.Identity.Build()
	if err != nil {
		logger.Fatal("Invalid identity", zap.Error(err))
	}

	h := &host{
		cfg:     cfg,
		logger:  logger,
		metrics: bridge.NewMetrics(prometheus.DefaultRegisterer),
	}

	wsCfg := wsbridge.DefaultServerConfig()
	wsCfg.ID = cfg.Bridge.HostID
	wsCfg.Origin = cfg.Bridge.HostOrigin
	wsCfg.HandshakeTimeout = cfg.Bridge.HandshakeTimeout
	wsCfg.Backlog = cfg.Bridge.Backlog
	wsCfg.Identity = identity
	wsCfg.Logger = logger
	wsCfg.OnPeer = h.servePeer

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(cfg.Server.FramePath, gin.WrapH(wsbridge.NewServer(wsCfg)))
	router.GET(cfg.Server.MetricsPath, gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Plugin host listening",
			zap.String("addr", srv.Addr),
			zap.String("frame_path", cfg.Server.FramePath),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("Server error", zap.Error(err))
	}
}

func (h *host) servePeer(ctx context.Context, peer *wsbridge.Peer) {
	logger := h.logger.With(zap.String("plugin", peer.Remote().ID()))

	sockCfg := bridge.DefaultSocketConfig()
	sockCfg.Logger = logger
	sockCfg.Metrics = h.metrics
	sockCfg.RejectPendingOnTerminate = h.cfg.Bridge.RejectPendingOnTerminate

	conn, err := plugin.Initiate(ctx, plugin.InitRequest{
		Data: map[string]any{
			"peer":        peer.Remote().ID(),
			"connectedAt": time.Now().UTC().Format(time.RFC3339),
		},
		Settings: map[string]any{"theme": "dark"},
		Hooks: map[string]bridge.Handler{
			"error":  onPluginError(logger),
			"notify": onNotify(logger),
		},
	}, plugin.HostConfig{
		Self:      peer.Local(),
		Target:    peer.Remote(),
		Timeout:   h.cfg.Bridge.HandshakeTimeout,
		OnCleanup: func() { _ = peer.Close() },
		Socket:    sockCfg,
	})
	if err != nil {
		return
	}
	defer conn.Terminate()

	for _, name := range slices.Sorted(maps.Keys(conn.Methods)) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		reply, err := conn.Call(callCtx, name, map[string]string{"from": h.cfg.Bridge.HostID})
		cancel()

		if err != nil {
			logger.Warn("Plugin method failed", zap.String("method", name), zap.Error(err))
			continue
		}

		logger.Info("Plugin method replied", zap.String("method", name), zap.ByteString("reply", reply))
	}

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}
}

func onPluginError(logger *zap.Logger) bridge.Handler {
	return func(_ context.Context, payload json.RawMessage) (any, error) {
		logger.Error("Plugin reported error", zap.ByteString("payload", payload))
		return nil, nil
	}
}

func onNotify(logger *zap.Logger) bridge.Handler {
	return func(_ context.Context, payload json.RawMessage) (any, error) {
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, err
		}

		logger.Info("Plugin notification", zap.String("message", msg))

		return true, nil
	}
}
