package plugin_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
	"github.com/LLIEPJIOK/framebridge/pkg/bridge/plugin"
	"github.com/LLIEPJIOK/framebridge/pkg/window"
)

const (
	hostOrigin   = "https://host.example"
	pluginOrigin = "https://plugin.example"
)

func newFrames() (*window.Frame, *window.Frame) {
	host := window.New(window.Config{ID: "host", Origin: hostOrigin, Backlog: 16})
	frame := window.New(window.Config{ID: "plugin", Origin: pluginOrigin, Backlog: 16})
	return host, frame
}

type handshakeResult struct {
	conn *plugin.Connection
	err  error
}

func initiateAsync(ctx context.Context, req plugin.InitRequest, cfg plugin.HostConfig) <-chan handshakeResult {
	out := make(chan handshakeResult, 1)
	go func() {
		conn, err := plugin.Initiate(ctx, req, cfg)
		out <- handshakeResult{conn: conn, err: err}
	}()

	return out
}

func hostConfig(host, frame *window.Frame, timeout time.Duration) plugin.HostConfig {
	cfg := plugin.DefaultHostConfig()
	cfg.Self = host
	cfg.Target = frame
	cfg.Timeout = timeout
	return cfg
}

func pluginConfig(host, frame *window.Frame) plugin.PluginConfig {
	cfg := plugin.DefaultPluginConfig()
	cfg.Self = frame
	cfg.Parent = host
	return cfg
}

func awaitHost(t *testing.T, ch <-chan handshakeResult) handshakeResult {
	t.Helper()

	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("host handshake did not finish")
		return handshakeResult{}
	}
}

func TestInitiate_Timeout(t *testing.T) {
	host, frame := newFrames()

	var cleanups atomic.Int32
	cfg := hostConfig(host, frame, 100*time.Millisecond)
	cfg.OnCleanup = func() { cleanups.Add(1) }

	start := time.Now()
	conn, err := plugin.Initiate(context.Background(), plugin.InitRequest{}, cfg)

	assert.Nil(t, conn)
	require.ErrorIs(t, err, plugin.ErrHandshakeTimeout)
	assert.Contains(t, err.Error(), "100")
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), cleanups.Load())
	assert.Equal(t, 0, host.ListenerCount())
}

func TestInitiate_ContextCancelled(t *testing.T) {
	host, frame := newFrames()

	var cleanups atomic.Int32
	cfg := hostConfig(host, frame, 0)
	cfg.OnCleanup = func() { cleanups.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := plugin.Initiate(ctx, plugin.InitRequest{}, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), cleanups.Load())
}

func TestHandshake_HappyPath(t *testing.T) {
	host, frame := newFrames()
	ctx := context.Background()

	hostCh := initiateAsync(ctx, plugin.InitRequest{
		Data:     map[string]string{"user": "alice"},
		Settings: map[string]bool{"dark": true},
	}, hostConfig(host, frame, time.Second))

	session, err := plugin.Register(ctx, plugin.RegisterRequest{
		Methods: map[string]bridge.Handler{
			"getData": func(_ context.Context, payload json.RawMessage) (any, error) {
				var req struct {
					Key string `json:"key"`
				}
				if err := json.Unmarshal(payload, &req); err != nil {
					return nil, err
				}

				return map[string]string{"key": req.Key, "value": "42"}, nil
			},
		},
	}, pluginConfig(host, frame))
	require.NoError(t, err)
	t.Cleanup(session.Terminate)

	assert.JSONEq(t, `{"user":"alice"}`, string(session.Data))
	assert.JSONEq(t, `{"dark":true}`, string(session.Settings))

	res := awaitHost(t, hostCh)
	require.NoError(t, res.err)
	t.Cleanup(res.conn.Terminate)

	require.Contains(t, res.conn.Methods, "getData")

	reply, err := res.conn.Methods["getData"](ctx, map[string]string{"key": "answer"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"answer","value":"42"}`, string(reply))

	_, err = res.conn.Call(ctx, "missing", nil)
	assert.ErrorIs(t, err, plugin.ErrUnknownMethod)
}

func TestHandshake_HooksCallableFromPlugin(t *testing.T) {
	host, frame := newFrames()
	ctx := context.Background()

	notified := make(chan string, 1)
	reported := make(chan string, 1)

	hostCh := initiateAsync(ctx, plugin.InitRequest{
		Hooks: map[string]bridge.Handler{
			"notify": func(_ context.Context, payload json.RawMessage) (any, error) {
				var msg string
				if err := json.Unmarshal(payload, &msg); err != nil {
					return nil, err
				}
				notified <- msg
				return "ack", nil
			},
			"error": func(_ context.Context, payload json.RawMessage) (any, error) {
				reported <- string(payload)
				return nil, nil
			},
		},
	}, hostConfig(host, frame, time.Second))

	session, err := plugin.Register(ctx, plugin.RegisterRequest{
		Hooks: []string{"notify"},
	}, pluginConfig(host, frame))
	require.NoError(t, err)
	t.Cleanup(session.Terminate)

	assert.Equal(t, []string{"error", "notify"}, session.HostHooks)
	require.Contains(t, session.Hooks, "notify")
	require.Contains(t, session.Hooks, "error")

	reply, err := session.Call(ctx, "notify", "hello")
	require.NoError(t, err)
	assert.JSONEq(t, `"ack"`, string(reply))
	assert.Equal(t, "hello", <-notified)

	_, err = session.Call(ctx, "error", "boom")
	require.NoError(t, err)
	assert.JSONEq(t, `"boom"`, <-reported)

	res := awaitHost(t, hostCh)
	require.NoError(t, res.err)
	t.Cleanup(res.conn.Terminate)
	assert.Empty(t, res.conn.Methods)
}

func TestRegister_ErrorHookInjected(t *testing.T) {
	host, frame := newFrames()
	ctx := context.Background()

	hostCh := initiateAsync(ctx, plugin.InitRequest{}, hostConfig(host, frame, time.Second))

	session, err := plugin.Register(ctx, plugin.RegisterRequest{}, pluginConfig(host, frame))
	require.NoError(t, err)
	t.Cleanup(session.Terminate)

	assert.Len(t, session.Hooks, 1)
	assert.Contains(t, session.Hooks, "error")

	res := awaitHost(t, hostCh)
	require.NoError(t, res.err)
	res.conn.Terminate()
}

func TestHandshake_ValidatorRejection(t *testing.T) {
	host, frame := newFrames()
	ctx := context.Background()

	var cleanups atomic.Int32
	cfg := hostConfig(host, frame, time.Second)
	cfg.OnCleanup = func() { cleanups.Add(1) }

	hostCh := initiateAsync(ctx, plugin.InitRequest{Data: "not an object"}, cfg)

	session, err := plugin.Register(ctx, plugin.RegisterRequest{
		Methods: map[string]bridge.Handler{
			"getData": func(context.Context, json.RawMessage) (any, error) { return nil, nil },
		},
		Validator: func(json.RawMessage, json.RawMessage) error {
			return errors.New("bad data")
		},
	}, pluginConfig(host, frame))

	assert.Nil(t, session)
	assert.EqualError(t, err, "bad data")

	res := awaitHost(t, hostCh)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, plugin.ErrNoMethodList)

	var rerr *bridge.RemoteError
	require.ErrorAs(t, res.err, &rerr)
	assert.Equal(t, "init", rerr.Channel)
	assert.Contains(t, res.err.Error(), "bad data")

	assert.Nil(t, res.conn)
	assert.Equal(t, int32(1), cleanups.Load())
}

func TestInitiate_NonListReply(t *testing.T) {
	tests := []struct {
		name  string
		reply any
	}{
		{name: "true", reply: true},
		{name: "null", reply: nil},
		{name: "object", reply: map[string]int{"methods": 1}},
		{name: "string", reply: "getData"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, frame := newFrames()
			ctx := context.Background()

			var cleanups atomic.Int32
			cfg := hostConfig(host, frame, time.Second)
			cfg.OnCleanup = func() { cleanups.Add(1) }

			hostCh := initiateAsync(ctx, plugin.InitRequest{}, cfg)

			fake := bridge.NewSocket(frame, host, bridge.DefaultSocketConfig())
			t.Cleanup(fake.Terminate)

			_, err := fake.CreateChannel("init", func(context.Context, json.RawMessage) (any, error) {
				return tt.reply, nil
			}, bridge.Once())
			require.NoError(t, err)

			ready, err := fake.CreateChannel("ready", nil)
			require.NoError(t, err)
			require.NoError(t, ready.Send(true))

			res := awaitHost(t, hostCh)
			assert.ErrorIs(t, res.err, plugin.ErrNoMethodList)
			assert.Equal(t, int32(1), cleanups.Load())
		})
	}
}

func TestRegister_ContextCancelled(t *testing.T) {
	host, frame := newFrames()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	session, err := plugin.Register(ctx, plugin.RegisterRequest{}, pluginConfig(host, frame))
	assert.Nil(t, session)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
