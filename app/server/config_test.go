package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToken(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0o600))
	return path
}

func TestNewConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("SINK_WEBHOOK_URL", "https://hooks.example.com/T000/B000")
	t.Setenv("RAFT_NODE_ID", "")

	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "kubernetes.default", cfg.SourceHostname)
	assert.Equal(t, "/var/run/secrets/kubernetes.io/serviceaccount/token", cfg.SourceTokenFile)
	assert.Equal(t, 30*time.Second, cfg.SourceFetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.SinkTimeout)
	assert.Equal(t, ModeSolo, cfg.Mode)
	assert.Equal(t, time.Second, cfg.BackoffMin)
	assert.Equal(t, 30*time.Second, cfg.BackoffMax)
	assert.Equal(t, 30, cfg.ResyncPerMinute)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 9102, cfg.MetricsPort)
	assert.Equal(t, "0.0.0.0:50100", cfg.RaftBindAddr)
	assert.NotEmpty(t, cfg.RaftNodeID)
}

func TestNewConfigFromEnv_MissingWebhook(t *testing.T) {
	t.Setenv("SINK_WEBHOOK_URL", "")
	require.NoError(t, os.Unsetenv("SINK_WEBHOOK_URL"))

	_, err := NewConfigFromEnv()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func validConfig(t *testing.T) *Config {
	return &Config{
		SourceHostname:  "kubernetes.default",
		SourceTokenFile: writeToken(t),
		SinkWebhookURL:  "https://hooks.example.com/T000/B000",
		Mode:            ModeSolo,
		BackoffMin:      time.Second,
		BackoffMax:      30 * time.Second,
		MetricsEnabled:  true,
		MetricsPort:     9102,
		RaftNodeID:      "watcher-a",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())

	basic := validConfig(t)
	basic.SourceTokenFile = filepath.Join(t.TempDir(), "missing")
	basic.SourceUsername = "admin"
	basic.SourcePassword = "secret"
	require.NoError(t, basic.Validate())
	creds, err := basic.Credentials()
	require.NoError(t, err)
	assert.True(t, creds.IsBasic())

	ha := validConfig(t)
	ha.Mode = ModeHA
	ha.RaftPeers = "watcher-a=10.0.0.1:50100,watcher-b=10.0.0.2:50100"
	require.NoError(t, ha.Validate())
	peers, err := ha.Peers()
	require.NoError(t, err)
	assert.Len(t, peers, 2)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"missing webhook":       func(c *Config) { c.SinkWebhookURL = "" },
		"relative webhook":      func(c *Config) { c.SinkWebhookURL = "/services/T000" },
		"non http webhook":      func(c *Config) { c.SinkWebhookURL = "ftp://hooks.example.com/x" },
		"no credentials":        func(c *Config) { c.SourceTokenFile = filepath.Join(t.TempDir(), "missing") },
		"username only":         func(c *Config) { c.SourceUsername = "admin"; c.SourceTokenFile = "" },
		"backoff inverted":      func(c *Config) { c.BackoffMin = time.Minute },
		"unknown mode":          func(c *Config) { c.Mode = "cluster" },
		"bad peers":             func(c *Config) { c.Mode = ModeHA; c.RaftPeers = "watcher-a" },
		"bad metrics port":      func(c *Config) { c.MetricsPort = 0 },
		"empty source hostname": func(c *Config) { c.SourceHostname = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(t)
			mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.NotEmpty(t, cfgErr.Field)
		})
	}
}
