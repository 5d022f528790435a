// Package cli implements the groundwatch command line.
//
// The root command loads the configuration (defaults, optional file, flags)
// and builds an App that wires the local store, the connectivity watcher, the
// sync manager and the capture service. Subcommands:
//
//   - serve: run the offline cache proxy with background sync until signalled
//   - sync: drain the pending request queue once
//   - capture: record a field sample (and optionally a GPS fix)
//   - status: show storage usage and sync state
//   - prune: delete synced samples past the retention window
//   - version: print build metadata
package cli
