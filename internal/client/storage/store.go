package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/cache"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/photos"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/requests"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/samples"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/settings"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/filex"

	_ "modernc.org/sqlite"
)

// ApproxRecordSize is the per-record weight used by EstimateUsage.
const ApproxRecordSize = 1024

type Store struct {
	db *sql.DB

	Requests requests.Repository
	Samples  samples.Repository
	Photos   photos.Repository
	Settings settings.Repository
	Cache    cache.Repository
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	abs, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", dsn(abs))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrStorageUnavailable, abs, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", common.ErrStorageUnavailable, abs, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return New(db), nil
}

// New wires repositories over an already migrated db.
func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Requests: requests.NewSQLiteRepository(db),
		Samples:  samples.NewSQLiteRepository(db),
		Photos:   photos.NewSQLiteRepository(db),
		Settings: settings.NewSQLiteRepository(db),
		Cache:    cache.NewSQLiteRepository(db),
	}
}

func dsn(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PruneResult reports what a cleanup pass removed.
type PruneResult struct {
	Samples int
	Photos  int64
}

// PruneSyncedOlderThan removes synced samples captured before cutoff, then
// the photos that belonged to them. Unsynced samples are never touched.
func (s *Store) PruneSyncedOlderThan(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	var res PruneResult

	ids, err := s.Samples.PruneSyncedOlderThan(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Samples = len(ids)

	for _, id := range ids {
		n, err := s.Photos.DeleteBySample(ctx, id)
		if err != nil {
			return res, err
		}
		res.Photos += n
	}
	return res, nil
}

// EstimateUsage counts records per collection. The byte figure is a coarse
// estimate, not a measurement.
func (s *Store) EstimateUsage(ctx context.Context) (models.Usage, error) {
	var (
		u   models.Usage
		err error
	)
	if u.PendingRequests, err = s.Requests.Count(ctx); err != nil {
		return u, err
	}
	if u.Samples, err = s.Samples.Count(ctx); err != nil {
		return u, err
	}
	if u.Photos, err = s.Photos.Count(ctx); err != nil {
		return u, err
	}
	if u.Settings, err = s.Settings.Count(ctx); err != nil {
		return u, err
	}
	u.ApproxBytes = int64(u.Records()) * ApproxRecordSize
	return u, nil
}
