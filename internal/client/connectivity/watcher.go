package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

type State int32

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	}
	return "unknown"
}

const (
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 3 * time.Second
	// DefaultCheckInterval replaces a non-positive watcher interval.
	DefaultCheckInterval = 3 * time.Second
)

type Watcher struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	state atomic.Int32

	mu        sync.Mutex
	onOnline  []func(ctx context.Context)
	onOffline []func(ctx context.Context)
}

type WatcherOption func(*Watcher)

func WithProbeTimeout(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithWatcherLogger(l logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

func NewWatcher(p Prober, interval time.Duration, opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	w := &Watcher{
		prober:   p,
		interval: interval,
		timeout:  DefaultProbeTimeout,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("module", "connectivity")
	return w
}

// OnOnline registers h for transitions into StateOnline.
func (w *Watcher) OnOnline(h func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOnline = append(w.onOnline, h)
}

// OnOffline registers h for transitions into StateOffline.
func (w *Watcher) OnOffline(h func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOffline = append(w.onOffline, h)
}

func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) IsOnline() bool {
	return w.State() == StateOnline
}

// Check probes once, updates the state and runs the subscribers of a
// transition. Repeated results in the same state notify nobody.
func (w *Watcher) Check(ctx context.Context) State {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.prober.Probe(pctx)
	cancel()

	next := StateOnline
	if err != nil {
		next = StateOffline
	}

	prev := State(w.state.Swap(int32(next)))
	if prev == next {
		return next
	}

	w.mu.Lock()
	var handlers []func(context.Context)
	if next == StateOnline {
		handlers = append(handlers, w.onOnline...)
	} else {
		handlers = append(handlers, w.onOffline...)
	}
	w.mu.Unlock()

	if next == StateOnline {
		w.log.Info(ctx, "switched to online mode", "previous", prev.String())
	} else {
		w.log.Info(ctx, "switched to offline mode", "previous", prev.String(), "error", err)
	}

	for _, h := range handlers {
		h(ctx)
	}
	return next
}

// Run checks immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// RunPeriodicSync calls fn on every interval while the watcher reports
// online, until ctx is done. A non-positive interval disables the timer and
// returns immediately.
func (w *Watcher) RunPeriodicSync(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		w.log.Debug(ctx, "periodic sync disabled")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.IsOnline() {
				fn(ctx)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
