package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/groundwatch/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for file decoding. Zero values mean
// "not set" and leave the current value in place.
type FileConfig struct {
	ServerURL            string         `json:"server_url" yaml:"server_url"`
	HealthPath           string         `json:"health_path" yaml:"health_path"`
	ProbeKind            string         `json:"probe_kind" yaml:"probe_kind"`
	GRPCHealthAddr       string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	PeriodicSyncInterval timex.Duration `json:"periodic_sync_interval" yaml:"periodic_sync_interval"`
	DatabasePath         string         `json:"database_path" yaml:"database_path"`
	ListenAddr           string         `json:"listen_addr" yaml:"listen_addr"`
	CacheGeneration      string         `json:"cache_generation" yaml:"cache_generation"`
	ShellRoutes          []string       `json:"shell_routes" yaml:"shell_routes"`
	MaxRetries           int            `json:"max_retries" yaml:"max_retries"`
	Retention            timex.Duration `json:"retention" yaml:"retention"`
	LogLevel             string         `json:"log_level" yaml:"log_level"`
	LogFormat            string         `json:"log_format" yaml:"log_format"`
	MQTTBroker           string         `json:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopicPrefix      string         `json:"mqtt_topic_prefix" yaml:"mqtt_topic_prefix"`
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return fmt.Errorf("failed to parse JSON config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}

	c.merge(&fc)
	return nil
}

func (c *Config) merge(fc *FileConfig) {
	setString(&c.ServerURL, fc.ServerURL)
	setString(&c.HealthPath, fc.HealthPath)
	setString(&c.ProbeKind, fc.ProbeKind)
	setString(&c.GRPCHealthAddr, fc.GRPCHealthAddr)
	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.CacheGeneration, fc.CacheGeneration)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.MQTTBroker, fc.MQTTBroker)
	setString(&c.MQTTTopicPrefix, fc.MQTTTopicPrefix)

	if fc.OnlineCheckInterval.Duration != 0 {
		c.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.PeriodicSyncInterval.Duration != 0 {
		c.PeriodicSyncInterval = fc.PeriodicSyncInterval.Duration
	}
	if fc.Retention.Duration != 0 {
		c.Retention = fc.Retention.Duration
	}
	if fc.MaxRetries != 0 {
		c.MaxRetries = fc.MaxRetries
	}
	if len(fc.ShellRoutes) > 0 {
		c.ShellRoutes = append([]string(nil), fc.ShellRoutes...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
