package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/groundwatch/internal/client/config"
	"github.com/dmitrijs2005/groundwatch/internal/client/connectivity"
	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/notify"
	"github.com/dmitrijs2005/groundwatch/internal/client/offlinecache"
	"github.com/dmitrijs2005/groundwatch/internal/client/services"
	"github.com/dmitrijs2005/groundwatch/internal/client/storage"
	"github.com/dmitrijs2005/groundwatch/internal/client/syncer"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// App holds the components shared by every command.
type App struct {
	cfg *config.Config
	log logging.Logger

	store      *storage.Store
	client     *http.Client
	watcher    *connectivity.Watcher
	manager    *syncer.Manager
	background *connectivity.BackgroundSync
	capture    services.CaptureService

	closers []func() error
}

// NewApp opens the local store and wires the sync engine around it.
// A failing MQTT broker is logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error opening local store", "path", cfg.DatabasePath, "error", err)
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		store:  store,
		client: &http.Client{Timeout: requestTimeout},
	}
	a.closers = append(a.closers, store.Close)

	prober, err := a.newProber()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.watcher = connectivity.NewWatcher(prober, cfg.OnlineCheckInterval, connectivity.WithWatcherLogger(log))

	a.manager = syncer.New(store.Requests, store.Samples, store.Settings, a.client,
		syncer.WithBaseURL(cfg.ServerURL),
		syncer.WithMaxRetries(cfg.MaxRetries),
		syncer.WithLogger(log),
	)
	a.manager.OnPermanentFailure(func(pf syncer.PermanentFailure) {
		log.Warn(context.Background(), "pending request dropped",
			"id", pf.Request.ID, "url", pf.Request.URL, "retries", pf.Request.RetryCount, "error", pf.Err)
	})

	a.background = connectivity.NewBackgroundSync(log)
	a.background.Register(connectivity.TagSyncPendingData, func(ctx context.Context) error {
		_, err := a.manager.SyncPendingData(ctx)
		return err
	})

	a.capture = services.NewCaptureService(store, a.watcher, a.client, cfg.ServerURL, log)

	if cfg.MQTTBroker != "" {
		pub, err := notify.Connect(ctx, cfg.MQTTBroker, cfg.MQTTTopicPrefix, log)
		if err != nil {
			log.Warn(ctx, "mqtt notifications disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			pub.Attach(a.manager)
			a.closers = append(a.closers, func() error { pub.Close(); return nil })
		}
	}

	return a, nil
}

func (a *App) newProber() (connectivity.Prober, error) {
	switch a.cfg.ProbeKind {
	case config.ProbeGRPC:
		p, err := connectivity.NewGRPCHealthProber(a.cfg.GRPCHealthAddr, "")
		if err != nil {
			return nil, fmt.Errorf("grpc health prober: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	default:
		p, err := connectivity.NewHTTPProber(a.cfg.ServerURL, a.cfg.HealthPath, a.client)
		if err != nil {
			return nil, fmt.Errorf("http prober: %w", err)
		}
		return p, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Sync drains the pending request queue once.
func (a *App) Sync(ctx context.Context) (models.SyncResult, error) {
	return a.manager.SyncPendingData(ctx)
}

func (a *App) dispatchSync(ctx context.Context) {
	if err := a.background.Dispatch(ctx, connectivity.TagSyncPendingData); err != nil {
		a.log.Warn(ctx, "background sync failed", "error", err)
	}
}

// Serve runs the offline cache proxy on ln together with the connectivity
// watcher and periodic sync until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	worker, err := offlinecache.New(a.cfg.ServerURL, a.cfg.CacheGeneration, a.cfg.ShellRoutes, a.store.Cache,
		offlinecache.WithDispatcher(a.background),
		offlinecache.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	if err := worker.Install(ctx); err != nil {
		a.log.Warn(ctx, "shell install failed, keeping previous cache", "error", err)
	} else if err := worker.Activate(ctx); err != nil {
		a.log.Warn(ctx, "cache activation failed", "error", err)
	}

	if a.cfg.Retention > 0 {
		res, err := a.store.PruneSyncedOlderThan(ctx, time.Now().Add(-a.cfg.Retention))
		if err != nil {
			a.log.Warn(ctx, "prune failed", "error", err)
		} else if res.Samples > 0 {
			a.log.Info(ctx, "pruned synced samples", "samples", res.Samples, "photos", res.Photos)
		}
	}

	a.watcher.OnOnline(a.dispatchSync)

	srv := &http.Server{
		Handler:           worker,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info(gctx, "proxy listening", "addr", ln.Addr().String(), "origin", a.cfg.ServerURL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	g.Go(func() error {
		return a.watcher.Run(gctx)
	})

	if a.cfg.PeriodicSyncInterval > 0 {
		g.Go(func() error {
			return a.watcher.RunPeriodicSync(gctx, a.cfg.PeriodicSyncInterval, a.dispatchSync)
		})
	} else {
		a.log.Info(ctx, "periodic sync disabled")
	}

	err = g.Wait()
	a.log.Info(ctx, "proxy stopped")
	return err
}
