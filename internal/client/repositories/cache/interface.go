package cache

import (
	"context"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
)

type Repository interface {
	// Get returns common.ErrNotFound on a miss.
	Get(ctx context.Context, generation, key string) (*models.CacheEntry, error)
	Put(ctx context.Context, e *models.CacheEntry) error
	PutAll(ctx context.Context, entries []*models.CacheEntry) error
	DeleteOtherGenerations(ctx context.Context, keep string) (int64, error)
	Generations(ctx context.Context) ([]string, error)
}
