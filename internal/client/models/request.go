// Package models defines the client-side records persisted by groundwatch:
// pending requests, stored samples, photos and settings.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/common"
)

// RequestType tags a pending request with the shape of its body.
type RequestType string

const (
	RequestTypeSample   RequestType = "sample"
	RequestTypePhoto    RequestType = "photo"
	RequestTypeLocation RequestType = "location"
)

// Valid reports whether t is one of the known tags.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeSample, RequestTypePhoto, RequestTypeLocation:
		return true
	}
	return false
}

// PendingRequest is a durable descriptor of an HTTP call that could not be
// completed immediately and must be replayed by the sync manager.
type PendingRequest struct {
	// ID is assigned by the store on insert and grows monotonically.
	ID int64

	URL    string
	Method string

	// Headers holds the JSON-encoded header map exactly as stored, so that a
	// corrupted value surfaces per entry instead of failing the whole listing.
	Headers json.RawMessage

	// Body is the serialized payload, replayed verbatim.
	Body []byte

	Timestamp time.Time

	// RetryCount only increases; the entry is dropped at the retry ceiling.
	RetryCount int

	Type RequestType
}

// NewPendingRequest builds a descriptor for payload. The type tag is taken
// from the payload so that the body always matches its tag.
func NewPendingRequest(url, method string, headers map[string]string, payload Payload, now time.Time) (*PendingRequest, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	h, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", payload.RequestType(), err)
	}

	return &PendingRequest{
		URL:       url,
		Method:    method,
		Headers:   h,
		Body:      body,
		Timestamp: now,
		Type:      payload.RequestType(),
	}, nil
}

// HeaderMap decodes the stored headers.
func (r *PendingRequest) HeaderMap() (map[string]string, error) {
	if len(r.Headers) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(r.Headers, &m); err != nil {
		return nil, fmt.Errorf("%w: headers of request %d: %v", common.ErrMalformedRequest, r.ID, err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// Payload decodes Body according to Type.
func (r *PendingRequest) Payload() (Payload, error) {
	var p Payload
	switch r.Type {
	case RequestTypeSample:
		p = &SamplePayload{}
	case RequestTypePhoto:
		p = &PhotoPayload{}
	case RequestTypeLocation:
		p = &LocationPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q on request %d", common.ErrMalformedRequest, r.Type, r.ID)
	}

	if err := json.Unmarshal(r.Body, p); err != nil {
		return nil, fmt.Errorf("%w: %s body of request %d: %v", common.ErrMalformedRequest, r.Type, r.ID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s body of request %d: %v", common.ErrMalformedRequest, r.Type, r.ID, err)
	}
	return p, nil
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
