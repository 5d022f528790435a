package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, ProbeHTTP, c.ProbeKind)
	require.NoError(t, c.Validate())
}

func TestLoad_NoFileNoFlags(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeTemp(t, "gw.json", `{
		"server_url": "https://api.example.org",
		"online_check_interval": "10s",
		"periodic_sync_interval": 120000000000,
		"shell_routes": ["/", "/app.js"],
		"max_retries": 5
	}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 2*time.Minute, cfg.PeriodicSyncInterval)
	assert.Equal(t, []string{"/", "/app.js"}, cfg.ShellRoutes)
	assert.Equal(t, 5, cfg.MaxRetries)
	// untouched keys keep defaults
	assert.Equal(t, "groundwatch.db", cfg.DatabasePath)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeTemp(t, "gw.yaml", `
server_url: http://10.0.0.5:8080
probe_kind: grpc
grpc_health_addr: 10.0.0.5:50051
retention: 168h
log_format: json
mqtt_broker: tcp://broker.local:1883
mqtt_topic_prefix: field/unit-7
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ProbeGRPC, cfg.ProbeKind)
	assert.Equal(t, "10.0.0.5:50051", cfg.GRPCHealthAddr)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTTBroker)
	assert.Equal(t, "field/unit-7", cfg.MQTTTopicPrefix)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown json key", "gw.json", `{"server": "http://x"}`},
		{"unknown yaml key", "gw.yml", "servr_url: http://x\n"},
		{"bad duration", "gw.json", `{"online_check_interval": "soon"}`},
		{"unsupported extension", "gw.toml", `server_url = "http://x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.file, tt.content), nil)
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeTemp(t, "gw.json", `{"server_url": "http://from-file:8080", "database_path": "file.db", "log_level": "warn"}`)
	fs := newFlags(t, "-a", "http://from-flag:9090", "-i", "10", "--log-format", "json")

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag:9090", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, "json", cfg.LogFormat)
	// flags left at their default do not override the file
	assert.Equal(t, "file.db", cfg.DatabasePath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestApplyFlags_DB(t *testing.T) {
	var c Config
	c.LoadDefaults()
	require.NoError(t, c.ApplyFlags(newFlags(t, "-d", "/tmp/gw/field.db")))
	assert.Equal(t, "/tmp/gw/field.db", c.DatabasePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative server url", func(c *Config) { c.ServerURL = "localhost:8080" }},
		{"unknown probe kind", func(c *Config) { c.ProbeKind = "icmp" }},
		{"grpc probe without address", func(c *Config) { c.ProbeKind = ProbeGRPC }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"tiny check interval", func(c *Config) { c.OnlineCheckInterval = time.Nanosecond }},
		{"negative retention", func(c *Config) { c.Retention = -time.Hour }},
		{"relative shell route", func(c *Config) { c.ShellRoutes = []string{"index.html"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"empty generation", func(c *Config) { c.CacheGeneration = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_AcceptsVariants(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.ProbeKind = ProbeGRPC
	c.GRPCHealthAddr = "127.0.0.1:50051"
	c.LogLevel = "DEBUG"
	c.ShellRoutes = nil
	c.PeriodicSyncInterval = 0
	require.NoError(t, c.Validate())
}

func TestLoad_FlagsOnlyPassValidation(t *testing.T) {
	cfg, err := Load("", newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.PeriodicSyncInterval)

	cfg, err = Load("", newFlags(t, "-a", "https://field.example.org/gw", "-i", "1"))
	require.NoError(t, err)
	assert.Equal(t, "https://field.example.org/gw", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.OnlineCheckInterval)
}

func TestLoad_ZeroDurationsKeepDefaults(t *testing.T) {
	path := writeTemp(t, "gw.yaml", `
periodic_sync_interval: 0s
retention: 0s
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want.PeriodicSyncInterval, cfg.PeriodicSyncInterval)
	assert.Equal(t, want.Retention, cfg.Retention)
}
