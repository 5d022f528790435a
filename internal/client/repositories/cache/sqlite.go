package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, generation, key string) (*models.CacheEntry, error) {
	var (
		e      = &models.CacheEntry{Generation: generation, Key: key}
		header string
		ts     int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT status, header, body, stored_at FROM cache_entries
		WHERE generation = ? AND key = ?`, generation, key).Scan(&e.Status, &header, &e.Body, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache entry %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return nil, fmt.Errorf("failed to decode header of cache entry %s: %w", key, err)
	}
	if e.Header == nil {
		e.Header = http.Header{}
	}
	e.StoredAt = time.UnixMilli(ts)
	return e, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, e *models.CacheEntry) error {
	return put(ctx, r.db, e)
}

func (r *SQLiteRepository) PutAll(ctx context.Context, entries []*models.CacheEntry) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, e := range entries {
			if err := put(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteOtherGenerations(ctx context.Context, keep string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE generation <> ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale cache generations: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) Generations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT generation FROM cache_entries ORDER BY generation`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache generations: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan cache generation: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache generations: %w", err)
	}
	return result, nil
}

func put(ctx context.Context, db dbx.DBTX, e *models.CacheEntry) error {
	header := e.Header
	if header == nil {
		header = http.Header{}
	}
	h, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header of cache entry %s: %w", e.Key, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO cache_entries (generation, key, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation, key) DO UPDATE SET
			status    = excluded.status,
			header    = excluded.header,
			body      = excluded.body,
			stored_at = excluded.stored_at
	`, e.Generation, e.Key, e.Status, string(h), e.Body, e.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put cache entry %s: %w", e.Key, err)
	}
	return nil
}
