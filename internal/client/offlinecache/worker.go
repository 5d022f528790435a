package offlinecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/connectivity"
	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/cache"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
	"github.com/dmitrijs2005/groundwatch/internal/netx"
)

// OfflineBody is returned for API requests that cannot reach the server.
const OfflineBody = `{"error":"Offline mode - data not available","offline":true}`

// SyncPath accepts POST ?tag=<tag> to trigger a background sync.
const SyncPath = "/__sync"

const rootKey = http.MethodGet + " /"

// keyCtx carries the cache key of the inbound request to ModifyResponse.
type keyCtx struct{}

// Dispatcher triggers a background sync by tag.
type Dispatcher interface {
	Dispatch(ctx context.Context, tag string) error
}

type Worker struct {
	generation string
	shell      []string
	origin     *url.URL
	client     *http.Client
	cache      cache.Repository
	sync       Dispatcher
	log        logging.Logger
	now        func() time.Time

	proxy *httputil.ReverseProxy
}

type Option func(*Worker)

// WithTransport sets the transport used to reach the origin.
func WithTransport(rt http.RoundTripper) Option {
	return func(w *Worker) {
		if rt != nil {
			w.client.Transport = rt
		}
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(w *Worker) {
		w.sync = d
	}
}

func WithLogger(l logging.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func New(origin, generation string, shell []string, repo cache.Repository, opts ...Option) (*Worker, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", origin, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}
	if generation == "" {
		return nil, errors.New("cache generation is required")
	}

	w := &Worker{
		generation: generation,
		shell:      append([]string(nil), shell...),
		origin:     u,
		client:     &http.Client{Transport: http.DefaultTransport},
		cache:      repo,
		log:        logging.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("module", "offlinecache", "generation", generation)

	w.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(w.origin)
			pr.SetXForwarded()
			pr.Out = pr.Out.WithContext(context.WithValue(pr.Out.Context(), keyCtx{}, netx.RequestKey(pr.In)))
		},
		Transport:      w.client.Transport,
		ModifyResponse: w.store,
		ErrorHandler:   w.fallback,
	}
	return w, nil
}

func (w *Worker) Generation() string {
	return w.generation
}

// Install fetches every shell route and stores them under the current
// generation. Either all routes are stored or none is.
func (w *Worker) Install(ctx context.Context) error {
	entries := make([]*models.CacheEntry, 0, len(w.shell))
	for _, route := range w.shell {
		e, err := w.fetchShell(ctx, route)
		if err != nil {
			return fmt.Errorf("install %s: %w", w.generation, err)
		}
		entries = append(entries, e)
	}

	if err := w.cache.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("install %s: %w", w.generation, err)
	}
	w.log.Info(ctx, "cache generation installed", "routes", len(entries))
	return nil
}

func (w *Worker) fetchShell(ctx context.Context, route string) (*models.CacheEntry, error) {
	ref, err := url.Parse(route)
	if err != nil {
		return nil, fmt.Errorf("parse route %q: %w", route, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, netx.JoinOrigin(w.origin, ref).String(), nil)
	if err != nil {
		return nil, err
	}
	// same key ServeHTTP computes for a GET of the route
	key := http.MethodGet + " " + ref.RequestURI()

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", common.ErrUnexpectedStatus, route, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", route, err)
	}

	return &models.CacheEntry{
		Generation: w.generation,
		Key:        key,
		Status:     resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   w.now(),
	}, nil
}

// Activate removes every generation except the current one.
func (w *Worker) Activate(ctx context.Context) error {
	n, err := w.cache.DeleteOtherGenerations(ctx, w.generation)
	if err != nil {
		return fmt.Errorf("activate %s: %w", w.generation, err)
	}
	w.log.Info(ctx, "cache generation activated", "evicted", n)
	return nil
}

func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path == SyncPath {
		w.serveSync(rw, r)
		return
	}

	if r.Method == http.MethodGet {
		e, err := w.cache.Get(r.Context(), w.generation, netx.RequestKey(r))
		switch {
		case err == nil:
			w.log.Debug(r.Context(), "cache hit", "key", e.Key)
			writeEntry(rw, e)
			return
		case !errors.Is(err, common.ErrNotFound):
			w.log.Warn(r.Context(), "cache lookup failed", "error", err)
		}
	}

	w.proxy.ServeHTTP(rw, r)
}

// store keeps 200 responses to GET requests under the current generation.
func (w *Worker) store(resp *http.Response) error {
	req := resp.Request
	if req.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	key, ok := req.Context().Value(keyCtx{}).(string)
	if !ok {
		key = netx.RequestKey(req)
	}
	e := &models.CacheEntry{
		Generation: w.generation,
		Key:        key,
		Status:     resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   w.now(),
	}
	if err := w.cache.Put(req.Context(), e); err != nil {
		w.log.Warn(req.Context(), "failed to cache response", "key", e.Key, "error", err)
	}
	return nil
}

func (w *Worker) fallback(rw http.ResponseWriter, r *http.Request, err error) {
	w.log.Debug(r.Context(), "origin unreachable", "path", r.URL.Path, "error", err)

	if netx.IsAPIPath(r.URL.Path) {
		WriteOffline(rw)
		return
	}

	e, cerr := w.cache.Get(r.Context(), w.generation, rootKey)
	if cerr == nil {
		writeEntry(rw, e)
		return
	}
	http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}

func (w *Worker) serveSync(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		http.Error(rw, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if w.sync == nil {
		http.NotFound(rw, r)
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = connectivity.TagSyncPendingData
	}

	err := w.sync.Dispatch(r.Context(), tag)
	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, connectivity.ErrUnknownTag):
		http.Error(rw, err.Error(), http.StatusNotFound)
	default:
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}

// WriteOffline writes the synthesized offline API response.
func WriteOffline(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(rw, OfflineBody)
}

func writeEntry(rw http.ResponseWriter, e *models.CacheEntry) {
	h := rw.Header()
	for k, vv := range e.Header {
		h[k] = append([]string(nil), vv...)
	}
	rw.WriteHeader(e.Status)
	_, _ = rw.Write(e.Body)
}
