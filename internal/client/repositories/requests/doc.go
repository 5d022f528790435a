// Package requests provides the durable pending-request queue.
//
// # Overview
//
// The package defines a Repository interface over PendingRequest records (see
// internal/client/models) and a SQLite implementation (SQLiteRepository) that
// persists data via a dbx.DBTX (*sql.DB or *sql.Tx).
//
// Ordering
//
// List returns entries in insertion order (ascending store-assigned id).
// Callers needing creation-time order must sort by Timestamp themselves.
//
// Races
//
// Delete and UpdateRetryCount are no-ops for ids that are already gone, so a
// sync pass that races another writer never fails on a missing row.
//
// Typical Usage
//
//	repo := requests.NewSQLiteRepository(db)
//	id, _ := repo.Put(ctx, req)
//	queue, _ := repo.List(ctx)
//	_ = repo.UpdateRetryCount(ctx, id, 1)
//	_ = repo.Delete(ctx, id)
package requests
