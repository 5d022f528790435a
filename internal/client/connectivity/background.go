package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

// TagSyncPendingData is the tag under which the queue drain is registered.
const TagSyncPendingData = "sync-pending-data"

var ErrUnknownTag = errors.New("unknown sync tag")

// BackgroundSync is a registry of sync entry points keyed by tag.
type BackgroundSync struct {
	mu       sync.RWMutex
	handlers map[string]func(ctx context.Context) error
	log      logging.Logger
}

func NewBackgroundSync(log logging.Logger) *BackgroundSync {
	if log == nil {
		log = logging.Nop()
	}
	return &BackgroundSync{
		handlers: make(map[string]func(ctx context.Context) error),
		log:      log.With("module", "background-sync"),
	}
}

// Register binds fn to tag, replacing any previous binding.
func (b *BackgroundSync) Register(tag string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[tag] = fn
}

// Dispatch runs the entry point bound to tag.
func (b *BackgroundSync) Dispatch(ctx context.Context, tag string) error {
	b.mu.RLock()
	fn, ok := b.handlers[tag]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	b.log.Debug(ctx, "background sync dispatched", "tag", tag)
	if err := fn(ctx); err != nil {
		b.log.Warn(ctx, "background sync failed", "tag", tag, "error", err)
		return err
	}
	return nil
}

func (b *BackgroundSync) Tags() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tags := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
