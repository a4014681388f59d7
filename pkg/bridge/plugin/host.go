package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

const (
	readyChannel = "ready"
	initChannel  = "init"
	errorHook    = "error"
)

type InitRequest struct {
	Data     any
	Settings any
	// Hooks регистрируются до отправки init, плагин может вызвать их сразу.
	Hooks map[string]bridge.Handler
}

type HostConfig struct {
	Self   window.Window
	Target window.Target
	// Timeout ограничивает весь handshake. Ноль отключает таймаут.
	Timeout time.Duration
	// OnCleanup освобождает ресурс плагина, вызывается не более одного раза.
	OnCleanup func()
	Socket    bridge.SocketConfig
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		Timeout: 10 * time.Second,
		Socket:  bridge.DefaultSocketConfig(),
	}
}

type initPayload struct {
	Data     any      `json:"data"`
	Settings any      `json:"settings"`
	Hooks    []string `json:"hooks"`
}

type Connection struct {
	Methods map[string]Method

	socket *bridge.Socket
}

func (c *Connection) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	return callMethod(ctx, c.Methods, name, payload)
}

// Terminate закрывает сокет. Ресурс плагина после успешного handshake
// принадлежит вызывающему.
func (c *Connection) Terminate() {
	c.socket.Terminate()
}

func (c *Connection) Done() <-chan struct{} {
	return c.socket.Done()
}

// Initiate выполняет handshake со стороны хоста: ждёт ready, отправляет init
// и строит прокси для методов, которые вернул плагин.
func Initiate(ctx context.Context, req InitRequest, cfg HostConfig) (*Connection, error) {
	logger := cfg.Socket.Logger
	if logger == nil {
		logger = zap.L()
	}

	ready := make(chan struct{}, 1)

	sockCfg := cfg.Socket
	sockCfg.Presets = append(slices.Clone(sockCfg.Presets), bridge.Preset{
		Name: readyChannel,
		Once: true,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			ready <- struct{}{}
			return nil, nil
		},
	})

	socket := bridge.NewSocket(cfg.Self, cfg.Target, sockCfg)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			socket.Terminate()
			if cfg.OnCleanup != nil {
				cfg.OnCleanup()
			}
		})
	}

	var (
		handshakeCtx context.Context
		cancel       context.CancelFunc
	)
	if cfg.Timeout > 0 {
		handshakeCtx, cancel = context.WithTimeoutCause(ctx, cfg.Timeout,
			fmt.Errorf("%w after %s", ErrHandshakeTimeout, cfg.Timeout))
	} else {
		handshakeCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	methods, err := awaitMethods(handshakeCtx, socket, ready, req)
	if err != nil {
		cleanup()

		if cause := context.Cause(handshakeCtx); cause != nil {
			err = cause
		}

		logger.Warn("plugin handshake failed",
			zap.String("target", cfg.Target.ID()),
			zap.Error(err),
		)

		return nil, err
	}

	logger.Info("plugin connected",
		zap.String("target", cfg.Target.ID()),
		zap.Strings("methods", sortedNames(methods)),
	)

	return &Connection{Methods: methods, socket: socket}, nil
}

func awaitMethods(
	ctx context.Context,
	socket *bridge.Socket,
	ready <-chan struct{},
	req InitRequest,
) (map[string]Method, error) {
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for name, hook := range req.Hooks {
		if _, err := socket.CreateChannel(name, hook); err != nil {
			return nil, err
		}
	}

	initCh, err := socket.CreateChannel(initChannel, nil)
	if err != nil {
		return nil, err
	}

	reply, err := initCh.SendAndWait(ctx, initPayload{
		Data:     req.Data,
		Settings: req.Settings,
		Hooks:    sortedNames(req.Hooks),
	})
	if err != nil {
		var rerr *bridge.RemoteError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %w", ErrNoMethodList, rerr)
		}

		return nil, fmt.Errorf("init exchange failed: %w", err)
	}

	names, err := parseMethodList(reply)
	if err != nil {
		return nil, err
	}

	return newMethods(socket, names), nil
}

func parseMethodList(reply json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(reply)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: got %s", ErrNoMethodList, trimmed)
	}

	var names []string
	if err := json.Unmarshal(trimmed, &names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMethodList, err)
	}

	return names, nil
}
