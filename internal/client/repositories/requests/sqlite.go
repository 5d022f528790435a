package requests

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

func (r *SQLiteRepository) Put(ctx context.Context, req *models.PendingRequest) (int64, error) {
	headers := string(req.Headers)
	if headers == "" {
		headers = "{}"
	}

	query := `INSERT INTO pending_requests (url, method, headers, body, timestamp, retry_count, type)
		VALUES (?, ?, ?, ?, ?, 0, ?)`
	res, err := r.db.ExecContext(ctx, query, req.URL, req.Method, headers, req.Body, req.Timestamp.UnixMilli(), string(req.Type))
	if err != nil {
		return 0, fmt.Errorf("failed to insert pending request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending request id: %w", err)
	}

	req.ID = id
	req.RetryCount = 0
	return id, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.PendingRequest, error) {
	query := `SELECT id, url, method, headers, body, timestamp, retry_count, type
		FROM pending_requests ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingRequest
	for rows.Next() {
		var (
			item    = &models.PendingRequest{}
			headers string
			ts      int64
			typ     string
		)
		if err := rows.Scan(&item.ID, &item.URL, &item.Method, &headers, &item.Body, &ts, &item.RetryCount, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		item.Headers = []byte(headers)
		item.Timestamp = time.UnixMilli(ts)
		item.Type = models.RequestType(typ)
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending requests: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending request %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateRetryCount(ctx context.Context, id int64, retryCount int) error {
	query := `UPDATE pending_requests SET retry_count = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, retryCount, id); err != nil {
		return fmt.Errorf("failed to update retry count of request %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	return dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM pending_requests`)
}
