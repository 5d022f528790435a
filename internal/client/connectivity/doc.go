// Package connectivity decides when the sync manager runs.
//
// A Watcher probes the server periodically and reports online/offline
// transitions to subscribers; going online triggers a sync, going offline is
// informational. RunPeriodicSync adds a fixed timer that only fires while
// online. BackgroundSync maps tags to sync entry points so an external
// scheduler (the local proxy's sync endpoint, the CLI) can trigger the same
// pass by name.
package connectivity
