// Package storage opens the local SQLite database and exposes the
// collections the engine works with.
//
// Open creates the data directory, applies the embedded migrations and wires
// one repository per collection. Any failure while opening is reported as
// common.ErrStorageUnavailable; callers treat it as fatal for the session.
//
// Operations on different collections are not transactional with each other.
// A capture that stores a sample, its photos and their requests may be
// interrupted part way; the sync and cleanup passes tolerate the leftovers.
package storage
