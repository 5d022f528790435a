package photos

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, p *models.Photo) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (sample_id, data, name, timestamp) VALUES (?, ?, ?, ?)`,
		p.SampleID, p.Data, p.Name, p.Timestamp.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert photo %q: %w", p.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get photo id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *SQLiteRepository) ListBySample(ctx context.Context, sampleID string) ([]*models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sample_id, data, name, timestamp
		FROM photos WHERE sample_id = ? ORDER BY id`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos of sample %s: %w", sampleID, err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		var (
			p  models.Photo
			ts int64
		)
		if err := rows.Scan(&p.ID, &p.SampleID, &p.Data, &p.Name, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteBySample(ctx context.Context, sampleID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE sample_id = ?`, sampleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photos of sample %s: %w", sampleID, err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	return dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM photos`)
}
