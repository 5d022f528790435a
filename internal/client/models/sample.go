package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OfflineIDPrefix marks sample ids generated on the device.
const OfflineIDPrefix = "offline_"

// NewOfflineSampleID returns a fresh device-generated sample id.
func NewOfflineSampleID() string {
	return OfflineIDPrefix + uuid.NewString()
}

// StoredSample is the local copy of a field record, independent of its
// delivery status. Synced flips to true when the matching sample request has
// been delivered.
type StoredSample struct {
	ID         string
	SampleData json.RawMessage
	Timestamp  time.Time
	Synced     bool
	// Photos lists photo names in capture order.
	Photos []string
}

// Photo is an attachment tied to a sample by value; the reference is not
// enforced by the store.
type Photo struct {
	ID        int64
	SampleID  string
	Data      []byte
	Name      string
	Timestamp time.Time
}

// Setting is a small persisted key/value pair. Last writer wins.
type Setting struct {
	Key   string
	Value []byte
}

// Well-known setting keys.
const (
	SettingLastSyncAt     = "last_sync_at"
	SettingLastSyncResult = "last_sync_result"
)

// Usage is a coarse storage estimate per collection.
type Usage struct {
	PendingRequests int   `json:"pendingRequests"`
	Samples         int   `json:"samples"`
	Photos          int   `json:"photos"`
	Settings        int   `json:"settings"`
	ApproxBytes     int64 `json:"approxBytes"`
}

// Records returns the total number of records across collections.
func (u Usage) Records() int {
	return u.PendingRequests + u.Samples + u.Photos + u.Settings
}
