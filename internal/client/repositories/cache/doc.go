// Package cache persists responses kept by the offline cache layer.
//
// Entries are grouped by generation. Activating a new generation removes
// every other one; PutAll stores a batch atomically so a generation is
// either fully seeded or not at all.
package cache
