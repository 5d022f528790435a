package samples

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, s *models.StoredSample) error {
	photos := s.Photos
	if photos == nil {
		photos = []string{}
	}
	names, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("failed to encode photo names of sample %s: %w", s.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO samples (id, sample_data, timestamp, synced, photos)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sample_data = excluded.sample_data,
			timestamp   = excluded.timestamp,
			synced      = excluded.synced,
			photos      = excluded.photos
	`, s.ID, string(s.SampleData), s.Timestamp.UnixMilli(), s.Synced, string(names))
	if err != nil {
		return fmt.Errorf("failed to put sample %s: %w", s.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.StoredSample, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sample_data, timestamp, synced, photos FROM samples WHERE id = ?`, id)

	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE samples SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark sample %s synced: %w", id, err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sample %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.StoredSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sample_data, timestamp, synced, photos
		FROM samples WHERE synced = 0 ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced samples: %w", err)
	}
	defer rows.Close()

	var result []*models.StoredSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) PruneSyncedOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM samples WHERE synced = 1 AND timestamp < ? RETURNING id`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to prune samples: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pruned sample id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pruned samples: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	return dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM samples`)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(sc scanner) (*models.StoredSample, error) {
	var (
		s      models.StoredSample
		data   string
		ts     int64
		photos string
	)
	if err := sc.Scan(&s.ID, &data, &ts, &s.Synced, &photos); err != nil {
		return nil, err
	}
	s.SampleData = json.RawMessage(data)
	s.Timestamp = time.UnixMilli(ts)
	if photos != "" {
		if err := json.Unmarshal([]byte(photos), &s.Photos); err != nil {
			return nil, fmt.Errorf("decode photo names of sample %s: %w", s.ID, err)
		}
	}
	return &s, nil
}
