package server

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"

	"github.com/super-flat/nodewatcher/internal/raft"
	"github.com/super-flat/nodewatcher/kube"
)

const (
	// ModeSolo runs a single instance with a process local store
	ModeSolo = "solo"
	// ModeHA runs with peers, raft leadership and a replicated store
	ModeHA = "ha"
)

// ConfigurationError is fatal at startup
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config is read from the environment
type Config struct {
	SourceUsername     string        `env:"SOURCE_USERNAME"`
	SourcePassword     string        `env:"SOURCE_PASSWORD"`
	SourceHostname     string        `env:"SOURCE_HOSTNAME" envDefault:"kubernetes.default"`
	SourceTokenFile    string        `env:"SOURCE_TOKEN_FILE" envDefault:"/var/run/secrets/kubernetes.io/serviceaccount/token"`
	SourceCAFile       string        `env:"SOURCE_CA_FILE"`
	SourceInsecure     bool          `env:"SOURCE_INSECURE" envDefault:"false"`
	SourceFetchTimeout time.Duration `env:"SOURCE_FETCH_TIMEOUT" envDefault:"30s"`

	SinkWebhookURL string        `env:"SINK_WEBHOOK_URL,required"`
	SinkTimeout    time.Duration `env:"SINK_TIMEOUT" envDefault:"5s"`

	Mode            string        `env:"MODE" envDefault:"solo"`
	BackoffMin      time.Duration `env:"BACKOFF_MIN" envDefault:"1s"`
	BackoffMax      time.Duration `env:"BACKOFF_MAX" envDefault:"30s"`
	ResyncPerMinute int           `env:"RESYNC_PER_MINUTE" envDefault:"30"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"INFO"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPort    int    `env:"METRICS_PORT" envDefault:"9102"`
	TraceURL       string `env:"TRACE_URL"`

	RaftNodeID        string `env:"RAFT_NODE_ID"`
	RaftBindAddr      string `env:"RAFT_BIND_ADDR" envDefault:"0.0.0.0:50100"`
	RaftAdvertiseAddr string `env:"RAFT_ADVERTISE_ADDR"`
	RaftPeers         string `env:"RAFT_PEERS"`
}

// NewConfigFromEnv instantiates the server config from environment variables.
// The result is not validated.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Field: "environment", Err: err}
	}
	if cfg.RaftNodeID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, &ConfigurationError{Field: "RAFT_NODE_ID", Err: err}
		}
		cfg.RaftNodeID = hostname
	}
	return cfg, nil
}

// Validate checks everything that can be checked before starting
func (c *Config) Validate() error {
	if err := validateWebhook(c.SinkWebhookURL); err != nil {
		return &ConfigurationError{Field: "SINK_WEBHOOK_URL", Err: err}
	}
	if c.SourceHostname == "" {
		return &ConfigurationError{Field: "SOURCE_HOSTNAME", Err: errors.New("must not be empty")}
	}
	if _, err := c.Credentials(); err != nil {
		return &ConfigurationError{Field: "SOURCE_USERNAME/SOURCE_PASSWORD/SOURCE_TOKEN_FILE", Err: err}
	}
	if c.BackoffMin <= 0 || c.BackoffMin > c.BackoffMax {
		return &ConfigurationError{
			Field: "BACKOFF_MIN/BACKOFF_MAX",
			Err:   errors.Errorf("need 0 < min <= max, got %s and %s", c.BackoffMin, c.BackoffMax),
		}
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		return &ConfigurationError{Field: "METRICS_PORT", Err: errors.Errorf("%d is not a port", c.MetricsPort)}
	}
	switch c.Mode {
	case ModeSolo:
	case ModeHA:
		if c.RaftNodeID == "" {
			return &ConfigurationError{Field: "RAFT_NODE_ID", Err: errors.New("must not be empty")}
		}
		if _, err := c.Peers(); err != nil {
			return &ConfigurationError{Field: "RAFT_PEERS", Err: err}
		}
	default:
		return &ConfigurationError{Field: "MODE", Err: errors.Errorf("unknown mode %q, want %s or %s", c.Mode, ModeSolo, ModeHA)}
	}
	return nil
}

// Credentials resolves the membership source authentication
func (c *Config) Credentials() (kube.Credentials, error) {
	return kube.ResolveAuth(c.SourceUsername, c.SourcePassword, c.SourceTokenFile)
}

// Peers parses RAFT_PEERS
func (c *Config) Peers() ([]*raft.Peer, error) {
	return raft.ParsePeers(c.RaftPeers)
}

func validateWebhook(raw string) error {
	if raw == "" {
		return errors.New("must be set")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("%q is not an absolute http(s) url", raw)
	}
	return nil
}
