package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Config holds runtime settings for the groundwatch agent and CLI.
//
// Units: intervals and Retention are time.Duration.
type Config struct {
	ServerURL      string
	HealthPath     string
	ProbeKind      string
	GRPCHealthAddr string

	OnlineCheckInterval  time.Duration
	PeriodicSyncInterval time.Duration

	DatabasePath    string
	ListenAddr      string
	CacheGeneration string
	ShellRoutes     []string

	MaxRetries int
	Retention  time.Duration

	LogLevel  string
	LogFormat string

	MQTTBroker      string
	MQTTTopicPrefix string
}

const (
	ProbeHTTP = "http"
	ProbeGRPC = "grpc"
)

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthPath = "/api/health"
	c.ProbeKind = ProbeHTTP
	c.GRPCHealthAddr = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.PeriodicSyncInterval = 60 * time.Second
	c.DatabasePath = "groundwatch.db"
	c.ListenAddr = "127.0.0.1:8787"
	c.CacheGeneration = "groundwatch-v1"
	c.ShellRoutes = []string{"/", "/index.html", "/manifest.json"}
	c.MaxRetries = 3
	c.Retention = 30 * 24 * time.Hour
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MQTTBroker = ""
	c.MQTTTopicPrefix = "groundwatch"
}

// Load builds a Config by applying defaults, the optional file at path,
// then the flags in fs that were set explicitly. The result is validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if fs != nil {
		if err := cfg.ApplyFlags(fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("server=%s probe=%s db=%s listen=%s generation=%s max_retries=%d",
		c.ServerURL, c.ProbeKind, c.DatabasePath, c.ListenAddr, c.CacheGeneration, c.MaxRetries)
}
