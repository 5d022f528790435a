// Package samples stores field records captured on the device.
//
// A sample is stored once per capture and updated in place by id (Put is an
// upsert). The synced flag flips when the matching sample request has been
// delivered; synced samples older than the retention window are pruned by
// the storage cleanup pass.
//
// Get and MarkSynced return common.ErrNotFound for unknown ids.
package samples
