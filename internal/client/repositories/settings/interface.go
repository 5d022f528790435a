package settings

import (
	"context"
)

// Repository is a small persisted key/value collection. Set is last-writer-wins.
type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Count(ctx context.Context) (int, error)
}
