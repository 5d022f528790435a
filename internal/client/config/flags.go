package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flag names shared by every command.
const (
	FlagConfig    = "config"
	FlagDB        = "db"
	FlagServer    = "server"
	FlagInterval  = "interval"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// RegisterFlags defines the configuration flags on fs. Defaults shown in
// help come from LoadDefaults; only flags set explicitly override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to a JSON or YAML config file")
	fs.StringP(FlagDB, "d", d.DatabasePath, "path to the local database")
	fs.StringP(FlagServer, "a", d.ServerURL, "base URL of the server")
	fs.IntP(FlagInterval, "i", int(d.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: text or json")
}

// ApplyFlags overlays the flags of fs that were set explicitly.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	if fs.Changed(FlagDB) {
		v, err := fs.GetString(FlagDB)
		if err != nil {
			return err
		}
		c.DatabasePath = v
	}
	if fs.Changed(FlagServer) {
		v, err := fs.GetString(FlagServer)
		if err != nil {
			return err
		}
		c.ServerURL = v
	}
	if fs.Changed(FlagInterval) {
		v, err := fs.GetInt(FlagInterval)
		if err != nil {
			return err
		}
		c.OnlineCheckInterval = time.Duration(v) * time.Second
	}
	if fs.Changed(FlagLogLevel) {
		v, err := fs.GetString(FlagLogLevel)
		if err != nil {
			return err
		}
		c.LogLevel = v
	}
	if fs.Changed(FlagLogFormat) {
		v, err := fs.GetString(FlagLogFormat)
		if err != nil {
			return err
		}
		c.LogFormat = v
	}
	return nil
}
