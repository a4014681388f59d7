package config_test

import (
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/framebridge/internal/config"
)

// clearEnv убирает переменные, которые могут прийти из окружения CI.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "HOST", "PORT", "SERVER_HOST", "SERVER_PORT", "LOG_LEVEL", "LOG_DEV")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t, "HOST", "SERVER_HOST", "SERVER_PORT")
	t.Setenv("PORT", "9090")
	t.Setenv("BRIDGE_HOST_ORIGIN", "https://host.example")
	t.Setenv("BRIDGE_HANDSHAKE_TIMEOUT", "250ms")
	t.Setenv("BRIDGE_REJECT_PENDING", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "https://host.example", cfg.Bridge.HostOrigin)
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.HandshakeTimeout)
	assert.True(t, cfg.Bridge.RejectPendingOnTerminate)
	assert.Equal(t, "debug", cfg.Logging.Logger().Level)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("BRIDGE_BACKLOG", "many")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestIdentity_Empty(t *testing.T) {
	identity, err := config.IdentityConfig{}.Build()
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestIdentity_Build(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	identity, err := config.IdentityConfig{
		Cert:           encode("cert-pem"),
		Key:            encode("key-pem"),
		ExpectedPeerID: "host",
	}.Build()
	require.NoError(t, err)

	assert.Equal(t, []byte("cert-pem"), identity.CertificatePEM)
	assert.Equal(t, []byte("key-pem"), identity.PrivateKeyPEM)
	assert.Equal(t, "host", identity.ExpectedPeerID)
	assert.Nil(t, identity.RootCAs)
}

func TestIdentity_Errors(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		cfg  config.IdentityConfig
	}{
		{name: "key without cert", cfg: config.IdentityConfig{Key: encode("key")}},
		{name: "bad base64", cfg: config.IdentityConfig{Cert: "%%%", Key: encode("key")}},
		{name: "bad CA", cfg: config.IdentityConfig{Cert: encode("c"), Key: encode("k"), CA: encode("not pem")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Build()
			assert.Error(t, err)
		})
	}
}
