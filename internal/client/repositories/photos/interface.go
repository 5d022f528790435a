package photos

import (
	"context"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
)

type Repository interface {
	Put(ctx context.Context, p *models.Photo) (int64, error)
	ListBySample(ctx context.Context, sampleID string) ([]*models.Photo, error)
	DeleteBySample(ctx context.Context, sampleID string) (int64, error)
	Count(ctx context.Context) (int, error)
}
