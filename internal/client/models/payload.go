package models

import (
	"encoding/json"
	"errors"
)

// Payload is the typed body of a pending request.
type Payload interface {
	RequestType() RequestType
	Validate() error
}

// SamplePayload is the body posted to the samples endpoint. SampleData is
// the opaque field record (metal concentrations, pollution indices, site
// metadata) and is never interpreted here.
type SamplePayload struct {
	SampleID   string          `json:"sampleId"`
	SampleData json.RawMessage `json:"sampleData"`
	Timestamp  int64           `json:"timestamp"`
}

func (p SamplePayload) RequestType() RequestType { return RequestTypeSample }

func (p SamplePayload) Validate() error {
	if p.SampleID == "" {
		return errors.New("sampleId is required")
	}
	if len(p.SampleData) == 0 || string(p.SampleData) == "null" {
		return errors.New("sampleData is required")
	}
	return nil
}

// PhotoPayload carries a base64 attachment for a sample.
type PhotoPayload struct {
	SampleID string `json:"sampleId"`
	Name     string `json:"name"`
	Data     []byte `json:"data"`
}

func (p PhotoPayload) RequestType() RequestType { return RequestTypePhoto }

func (p PhotoPayload) Validate() error {
	if p.SampleID == "" {
		return errors.New("sampleId is required")
	}
	if len(p.Data) == 0 {
		return errors.New("data is required")
	}
	return nil
}

// LocationPayload is a GPS fix, optionally tied to a sample.
type LocationPayload struct {
	SampleID  string  `json:"sampleId,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func (p LocationPayload) RequestType() RequestType { return RequestTypeLocation }

func (p LocationPayload) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}
