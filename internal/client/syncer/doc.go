// Package syncer drains the pending-request queue against the server.
//
// A Manager runs at most one pass at a time. A pass takes a snapshot of the
// queue and replays each entry in snapshot order, one request in flight at a
// time. Delivered entries are removed; failed entries have their retry count
// raised and are dropped once it reaches the ceiling, at which point a
// permanent-failure event is emitted.
//
// Typical usage:
//
//	m := syncer.New(store.Requests, store.Samples, store.Settings, http.DefaultClient,
//		syncer.WithBaseURL(cfg.ServerURL),
//		syncer.WithMaxRetries(cfg.MaxRetries),
//		syncer.WithLogger(log),
//	)
//	m.OnSyncComplete(func(success, failed int) { ... })
//	res, err := m.SyncPendingData(ctx)
package syncer
