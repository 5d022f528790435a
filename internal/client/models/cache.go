package models

import (
	"net/http"
	"time"
)

// CacheEntry is a stored response in one cache generation. Key is the exact
// request key (method, path and query).
type CacheEntry struct {
	Generation string
	Key        string
	Status     int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}
