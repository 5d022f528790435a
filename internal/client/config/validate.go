package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

var ErrInvalidConfig = errors.New("invalid config")

//go:embed schema.cue
var schemaSource string

// view is the shape checked against #Config. Durations are nanoseconds.
type view struct {
	ServerURL            string   `json:"server_url"`
	HealthPath           string   `json:"health_path"`
	ProbeKind            string   `json:"probe_kind"`
	GRPCHealthAddr       string   `json:"grpc_health_addr"`
	OnlineCheckInterval  int64    `json:"online_check_interval"`
	PeriodicSyncInterval int64    `json:"periodic_sync_interval"`
	DatabasePath         string   `json:"database_path"`
	ListenAddr           string   `json:"listen_addr"`
	CacheGeneration      string   `json:"cache_generation"`
	ShellRoutes          []string `json:"shell_routes"`
	MaxRetries           int      `json:"max_retries"`
	Retention            int64    `json:"retention"`
	LogLevel             string   `json:"log_level"`
	LogFormat            string   `json:"log_format"`
	MQTTBroker           string   `json:"mqtt_broker"`
	MQTTTopicPrefix      string   `json:"mqtt_topic_prefix"`
}

func (c *Config) view() view {
	routes := c.ShellRoutes
	if routes == nil {
		routes = []string{}
	}
	return view{
		ServerURL:            c.ServerURL,
		HealthPath:           c.HealthPath,
		ProbeKind:            c.ProbeKind,
		GRPCHealthAddr:       c.GRPCHealthAddr,
		OnlineCheckInterval:  int64(c.OnlineCheckInterval),
		PeriodicSyncInterval: int64(c.PeriodicSyncInterval),
		DatabasePath:         c.DatabasePath,
		ListenAddr:           c.ListenAddr,
		CacheGeneration:      c.CacheGeneration,
		ShellRoutes:          routes,
		MaxRetries:           c.MaxRetries,
		Retention:            int64(c.Retention),
		LogLevel:             strings.ToLower(c.LogLevel),
		LogFormat:            strings.ToLower(c.LogFormat),
		MQTTBroker:           c.MQTTBroker,
		MQTTTopicPrefix:      c.MQTTTopicPrefix,
	}
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	root := ctx.CompileString(schemaSource)
	if err := root.Err(); err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}
	schema := root.LookupPath(cue.ParsePath("#Config"))
	if !schema.Exists() {
		return errors.New("config schema has no #Config definition")
	}

	v := ctx.Encode(c.view())
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
