package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

type RegisterRequest struct {
	// Hooks - имена колбэков хоста, которые нужны плагину. "error" добавляется всегда.
	Hooks   []string
	Methods map[string]bridge.Handler
	// Validator отклоняет init. Его ошибка возвращается из Register как есть.
	Validator func(data, settings json.RawMessage) error
}

type PluginConfig struct {
	Self   window.Window
	Parent window.Target
	Socket bridge.SocketConfig
}

func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		Socket: bridge.DefaultSocketConfig(),
	}
}

type initMessage struct {
	Data     json.RawMessage `json:"data"`
	Settings json.RawMessage `json:"settings"`
	Hooks    []string        `json:"hooks"`
}

type Session struct {
	Data     json.RawMessage
	Settings json.RawMessage
	// HostHooks - имена, которые хост объявил в init.
	HostHooks []string
	Hooks     map[string]Method

	socket *bridge.Socket
}

func (s *Session) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	return callMethod(ctx, s.Hooks, name, payload)
}

func (s *Session) Terminate() {
	s.socket.Terminate()
}

func (s *Session) Done() <-chan struct{} {
	return s.socket.Done()
}

type registerResult struct {
	session *Session
	err     error
}

// Register выполняет handshake со стороны плагина и возвращается после
// получения init от хоста.
func Register(ctx context.Context, req RegisterRequest, cfg PluginConfig) (*Session, error) {
	logger := cfg.Socket.Logger
	if logger == nil {
		logger = zap.L()
	}

	socket := bridge.NewSocket(cfg.Self, cfg.Parent, cfg.Socket)

	for name, handler := range req.Methods {
		if _, err := socket.CreateChannel(name, handler); err != nil {
			socket.Terminate()
			return nil, err
		}
	}

	hooks := withErrorHook(req.Hooks)
	methods := sortedNames(req.Methods)
	resultCh := make(chan registerResult, 1)

	fail := func(err error) (any, error) {
		resultCh <- registerResult{err: err}
		socket.Terminate()

		return nil, err
	}

	_, err := socket.CreateChannel(initChannel, func(_ context.Context, payload json.RawMessage) (any, error) {
		var msg initMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fail(fmt.Errorf("failed to decode init payload: %w", err))
		}

		if req.Validator != nil {
			if err := req.Validator(msg.Data, msg.Settings); err != nil {
				return fail(err)
			}
		}

		resultCh <- registerResult{session: &Session{
			Data:      msg.Data,
			Settings:  msg.Settings,
			HostHooks: msg.Hooks,
			Hooks:     newMethods(socket, hooks),
			socket:    socket,
		}}

		return methods, nil
	}, bridge.Once())
	if err != nil {
		socket.Terminate()
		return nil, err
	}

	readyCh, err := socket.CreateChannel(readyChannel, nil)
	if err != nil {
		socket.Terminate()
		return nil, err
	}

	if err := readyCh.Send(true); err != nil {
		socket.Terminate()
		return nil, fmt.Errorf("failed to send ready signal: %w", err)
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			logger.Warn("plugin registration rejected", zap.Error(res.err))
			return nil, res.err
		}

		logger.Info("plugin registered",
			zap.String("parent", cfg.Parent.ID()),
			zap.Strings("methods", methods),
			zap.Strings("hooks", hooks),
		)

		return res.session, nil

	case <-ctx.Done():
		socket.Terminate()
		return nil, ctx.Err()
	}
}

func withErrorHook(hooks []string) []string {
	if slices.Contains(hooks, errorHook) {
		return slices.Clone(hooks)
	}

	return append(slices.Clone(hooks), errorHook)
}
