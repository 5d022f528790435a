package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/requests"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/samples"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/settings"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
	"github.com/dmitrijs2005/groundwatch/internal/netx"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PermanentFailure describes an entry dropped after reaching the retry ceiling.
type PermanentFailure struct {
	Request *models.PendingRequest
	Err     error
}

type Manager struct {
	requests requests.Repository
	samples  samples.Repository
	settings settings.Repository
	doer     Doer

	baseURL    string
	maxRetries int
	log        logging.Logger
	now        func() time.Time

	syncing atomic.Bool

	mu          sync.Mutex
	onComplete  []func(success, failed int)
	onPermanent []func(PermanentFailure)
}

func New(rq requests.Repository, sm samples.Repository, st settings.Repository, doer Doer, opts ...Option) *Manager {
	m := &Manager{
		requests:   rq,
		samples:    sm,
		settings:   st,
		doer:       doer,
		maxRetries: DefaultMaxRetries,
		log:        logging.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("module", "syncer")
	return m
}

// OnSyncComplete registers h to be called after every pass that did run.
// Handlers are called in registration order.
func (m *Manager) OnSyncComplete(h func(success, failed int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = append(m.onComplete, h)
}

// OnPermanentFailure registers h to be called for every entry dropped at
// the retry ceiling.
func (m *Manager) OnPermanentFailure(h func(PermanentFailure)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPermanent = append(m.onPermanent, h)
}

// IsSyncing reports whether a pass is in progress.
func (m *Manager) IsSyncing() bool {
	return m.syncing.Load()
}

// MaxRetries returns the configured retry ceiling.
func (m *Manager) MaxRetries() int {
	return m.maxRetries
}

// SyncPendingData runs one pass over the queue. If a pass is already
// running it returns a zero result immediately and does nothing.
//
// The pass ignores cancellation of ctx once started. The only error returned
// is a failure to read the queue snapshot; per-entry failures are counted.
func (m *Manager) SyncPendingData(ctx context.Context) (models.SyncResult, error) {
	var res models.SyncResult

	if !m.syncing.CompareAndSwap(false, true) {
		m.log.Debug(ctx, "sync already in progress, skipping")
		return res, nil
	}
	defer m.syncing.Store(false)

	ctx = context.WithoutCancel(ctx)

	queue, err := m.requests.List(ctx)
	if err != nil {
		m.log.Error(ctx, "failed to read pending queue", "error", err)
		return res, err
	}

	for _, req := range queue {
		payload, err := m.replay(ctx, req)
		if err != nil {
			res.Failed++
			m.handleFailure(ctx, req, err)
			continue
		}
		res.Success++
		m.handleSuccess(ctx, req, payload)
	}

	m.recordResult(ctx, res)
	m.log.Info(ctx, "sync pass finished", "queued", len(queue), "success", res.Success, "failed", res.Failed)

	for _, h := range m.completeHandlers() {
		h(res.Success, res.Failed)
	}
	return res, nil
}

func (m *Manager) replay(ctx context.Context, req *models.PendingRequest) (models.Payload, error) {
	return Deliver(ctx, m.doer, m.baseURL, req)
}

// Deliver rebuilds req and sends it once, resolving relative URLs against
// baseURL. Malformed descriptors fail the same way a network error does.
// A nil error means the server answered 2xx.
func Deliver(ctx context.Context, doer Doer, baseURL string, req *models.PendingRequest) (models.Payload, error) {
	headers, err := req.HeaderMap()
	if err != nil {
		return nil, err
	}
	payload, err := req.Payload()
	if err != nil {
		return nil, err
	}

	target, err := netx.ResolveURL(baseURL, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request %d: %v", common.ErrMalformedRequest, req.ID, err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := doer.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !netx.IsSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %s", common.ErrUnexpectedStatus, resp.Status)
	}
	return payload, nil
}

func (m *Manager) handleSuccess(ctx context.Context, req *models.PendingRequest, payload models.Payload) {
	m.log.Debug(ctx, "request delivered", "id", req.ID, "type", req.Type, "url", req.URL)

	if err := m.requests.Delete(ctx, req.ID); err != nil {
		// left in place, it is sent again on the next pass
		m.log.Error(ctx, "failed to delete delivered request", "id", req.ID, "error", err)
	}

	sp, ok := payload.(*models.SamplePayload)
	if !ok || m.samples == nil {
		return
	}
	if err := m.samples.MarkSynced(ctx, sp.SampleID); err != nil && !errors.Is(err, common.ErrNotFound) {
		m.log.Error(ctx, "failed to mark sample synced", "sample", sp.SampleID, "error", err)
	}
}

func (m *Manager) handleFailure(ctx context.Context, req *models.PendingRequest, cause error) {
	req.RetryCount++

	if req.RetryCount < m.maxRetries {
		m.log.Warn(ctx, "request failed, will retry", "id", req.ID, "attempt", req.RetryCount, "error", cause)
		if err := m.requests.UpdateRetryCount(ctx, req.ID, req.RetryCount); err != nil {
			m.log.Error(ctx, "failed to update retry count", "id", req.ID, "error", err)
		}
		return
	}

	m.log.Error(ctx, "request dropped after retry ceiling", "id", req.ID, "type", req.Type, "url", req.URL, "attempts", req.RetryCount, "error", cause)
	if err := m.requests.Delete(ctx, req.ID); err != nil {
		m.log.Error(ctx, "failed to delete expired request", "id", req.ID, "error", err)
	}

	ev := PermanentFailure{Request: req, Err: cause}
	for _, h := range m.permanentHandlers() {
		h(ev)
	}
}

func (m *Manager) recordResult(ctx context.Context, res models.SyncResult) {
	if m.settings == nil {
		return
	}
	at := m.now().UTC().Format(time.RFC3339Nano)
	if err := m.settings.Set(ctx, models.SettingLastSyncAt, []byte(at)); err != nil {
		m.log.Warn(ctx, "failed to record last sync time", "error", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := m.settings.Set(ctx, models.SettingLastSyncResult, b); err != nil {
		m.log.Warn(ctx, "failed to record last sync result", "error", err)
	}
}

func (m *Manager) completeHandlers() []func(int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.onComplete)
}

func (m *Manager) permanentHandlers() []func(PermanentFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.onPermanent)
}
