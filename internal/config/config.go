package config

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/LLIEPJIOK/framebridge/internal/logging"
	"github.com/LLIEPJIOK/framebridge/pkg/window/wsbridge"
)

type Config struct {
	Server   ServerConfig
	Bridge   BridgeConfig
	Logging  LogConfig
	Identity IdentityConfig
}

type ServerConfig struct {
	Host        string `envconfig:"HOST" default:"0.0.0.0"`
	Port        string `envconfig:"PORT" default:"8080"`
	FramePath   string `envconfig:"BRIDGE_FRAME_PATH" default:"/frame"`
	MetricsPath string `envconfig:"BRIDGE_METRICS_PATH" default:"/metrics"`
}

func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type BridgeConfig struct {
	HostID                   string        `envconfig:"BRIDGE_HOST_ID" default:"host"`
	HostOrigin               string        `envconfig:"BRIDGE_HOST_ORIGIN" default:"http://localhost:8080"`
	PluginID                 string        `envconfig:"BRIDGE_PLUGIN_ID" default:"echo"`
	PluginOrigin             string        `envconfig:"BRIDGE_PLUGIN_ORIGIN" default:"http://localhost:8081"`
	URL                      string        `envconfig:"BRIDGE_URL" default:"ws://localhost:8080/frame"`
	HandshakeTimeout         time.Duration `envconfig:"BRIDGE_HANDSHAKE_TIMEOUT" default:"10s"`
	Backlog                  int           `envconfig:"BRIDGE_BACKLOG" default:"64"`
	RejectPendingOnTerminate bool          `envconfig:"BRIDGE_REJECT_PENDING" default:"false"`
}

type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

func (c LogConfig) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Development {
		cfg = logging.DevelopmentConfig()
	}

	if c.Level != "" {
		cfg.Level = c.Level
	}

	return cfg
}

// IdentityConfig хранит PEM в base64, как их удобно передавать через окружение.
type IdentityConfig struct {
	Cert           string `envconfig:"BRIDGE_TLS_CERT"`
	Key            string `envconfig:"BRIDGE_TLS_KEY"`
	CA             string `envconfig:"BRIDGE_TLS_CA"`
	ExpectedPeerID string `envconfig:"BRIDGE_EXPECTED_PEER_ID"`
}

// Build возвращает nil, если сертификат не задан: узел представляется заявленным ID.
func (c IdentityConfig) Build() (*wsbridge.IdentityConfig, error) {
	if c.Cert == "" && c.Key == "" {
		return nil, nil
	}

	if c.Cert == "" || c.Key == "" {
		return nil, errors.New("BRIDGE_TLS_CERT and BRIDGE_TLS_KEY must be set together")
	}

	certPEM, err := base64.StdEncoding.DecodeString(c.Cert)
	if err != nil {
		return nil, fmt.Errorf("failed to decode BRIDGE_TLS_CERT: %w", err)
	}

	keyPEM, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode BRIDGE_TLS_KEY: %w", err)
	}

	cfg := &wsbridge.IdentityConfig{
		CertificatePEM: certPEM,
		PrivateKeyPEM:  keyPEM,
		ExpectedPeerID: c.ExpectedPeerID,
	}

	// CA необязателен, но без него сертификат партнёра не проверяется
	if c.CA != "" {
		caPEM, err := base64.StdEncoding.DecodeString(c.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to decode BRIDGE_TLS_CA: %w", err)
		}

		rootCAs := x509.NewCertPool()
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("failed to parse CA certificate")
		}

		cfg.RootCAs = rootCAs
	}

	return cfg, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			FramePath:   "/frame",
			MetricsPath: "/metrics",
		},
		Bridge: BridgeConfig{
			HostID:           "host",
			HostOrigin:       "http://localhost:8080",
			PluginID:         "echo",
			PluginOrigin:     "http://localhost:8081",
			URL:              "ws://localhost:8080/frame",
			HandshakeTimeout: 10 * time.Second,
			Backlog:          64,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
