// Package common defines sentinel errors shared by the storage, sync and
// transport layers of groundwatch. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is fatal for the session: the local database could
	// not be opened or migrated (quota, permissions, read-only media).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMalformedRequest marks a stored request descriptor whose headers or
	// body cannot be decoded for its type tag.
	ErrMalformedRequest = errors.New("malformed request descriptor")

	// Network errors.
	ErrUnavailable      = errors.New("server unavailable")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
