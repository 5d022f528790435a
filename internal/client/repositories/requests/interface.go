package requests

import (
	"context"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
)

// Repository describes the pending-request queue.
type Repository interface {
	// Put always inserts, resets RetryCount to zero and returns the new id.
	Put(ctx context.Context, req *models.PendingRequest) (int64, error)

	// List returns every queued request in insertion order.
	List(ctx context.Context) ([]*models.PendingRequest, error)

	// Delete removes the request; absent ids are not an error.
	Delete(ctx context.Context, id int64) error

	// UpdateRetryCount persists a new retry count; absent ids are not an error.
	UpdateRetryCount(ctx context.Context, id int64, retryCount int) error

	// Count returns the queue length.
	Count(ctx context.Context) (int, error)
}
