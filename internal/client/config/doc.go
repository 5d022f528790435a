// Package config loads runtime configuration for groundwatch.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c/--config: .json, .yaml or .yml.
//  3. Command-line flags that were set explicitly.
//
// The result is checked against an embedded CUE schema (see Validate).
//
// # File format
//
// Intervals use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds:
//
//	server_url: http://10.0.0.5:8080
//	online_check_interval: 5s
//	periodic_sync_interval: 1m
//	database_path: /var/lib/groundwatch/groundwatch.db
//	shell_routes: ["/", "/index.html", "/static/app.js"]
//	max_retries: 3
//	mqtt_broker: tcp://broker.local:1883
//
// Unknown keys are rejected.
package config
