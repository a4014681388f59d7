package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/internal/config"
	"github.com/LLIEPJIOK/framebridge/internal/logging"
	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
	"github.com/LLIEPJIOK/framebridge/pkg/bridge/plugin"
	"github.com/LLIEPJIOK/framebridge/pkg/window/wsbridge"
)

var errDataNotObject = errors.New("init data must be a JSON object")

// initData хранит data из init: её отдаёт метод getData.
type initData struct {
	mu   sync.RWMutex
	data json.RawMessage
}

func (d *initData) validate(data, _ json.RawMessage) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return errDataNotObject
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()

	return nil
}

func (d *initData) get(context.Context, json.RawMessage) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data, nil
}

func echo(_ context.Context, payload json.RawMessage) (any, error) {
	return payload, nil
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsCfg := wsbridge.DefaultClientConfig(cfg.Bridge.URL)
	wsCfg.ID = cfg.Bridge.PluginID
	wsCfg.Origin = cfg.Bridge.PluginOrigin
	wsCfg.HandshakeTimeout = cfg.Bridge.HandshakeTimeout
	wsCfg.Backlog = cfg.Bridge.Backlog
	wsCfg.Identity = identity
	wsCfg.Logger = logger

	peer, err := wsbridge.Dial(ctx, wsCfg)
	if err != nil {
		logger.Fatal("Failed to connect to host", zap.Error(err))
	}
	defer peer.Close()

	sockCfg := bridge.DefaultSocketConfig()
	sockCfg.Logger = logger
	sockCfg.RejectPendingOnTerminate = cfg.Bridge.RejectPendingOnTerminate

	store := &initData{}

	regCtx, cancel := context.WithTimeout(ctx, cfg.Bridge.HandshakeTimeout)
	defer cancel()

	session, err := plugin.Register(regCtx, plugin.RegisterRequest{
		Hooks: []string{"notify"},
		Methods: map[string]bridge.Handler{
			"echo":    echo,
			"getData": store.get,
		},
		Validator: store.validate,
	}, plugin.PluginConfig{
		Self:   peer.Local(),
		Parent: peer.Remote(),
		Socket: sockCfg,
	})
	if err != nil {
		logger.Fatal("Registration failed", zap.Error(err))
	}
	defer session.Terminate()

	if _, err := session.Call(ctx, "notify", "echo plugin ready"); err != nil {
		logger.Warn("Notify hook failed", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case <-session.Done():
	case <-peer.Done():
		logger.Info("Host disconnected")
	}
}
