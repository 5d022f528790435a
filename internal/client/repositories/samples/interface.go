package samples

import (
	"context"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
)

type Repository interface {
	Put(ctx context.Context, s *models.StoredSample) error
	Get(ctx context.Context, id string) (*models.StoredSample, error)
	MarkSynced(ctx context.Context, id string) error
	ListUnsynced(ctx context.Context) ([]*models.StoredSample, error)
	PruneSyncedOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	Count(ctx context.Context) (int, error)
}
