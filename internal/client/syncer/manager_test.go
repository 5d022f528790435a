package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/repositories/requests"
	"github.com/dmitrijs2005/groundwatch/internal/client/storage"
	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "gw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func enqueueSample(t *testing.T, s *storage.Store, url, sampleID string) int64 {
	t.Helper()
	req, err := models.NewPendingRequest(url, http.MethodPost,
		map[string]string{"Content-Type": "application/json", "X-Device": "field-7"},
		models.SamplePayload{SampleID: sampleID, SampleData: json.RawMessage(`{"Pb":0.02}`), Timestamp: 1700000000000},
		time.Now())
	require.NoError(t, err)
	id, err := s.Requests.Put(context.Background(), req)
	require.NoError(t, err)
	return id
}

func queueLen(t *testing.T, s *storage.Store) int {
	t.Helper()
	n, err := s.Requests.Count(context.Background())
	require.NoError(t, err)
	return n
}

func newManager(s *storage.Store, srv *httptest.Server, opts ...Option) *Manager {
	opts = append([]Option{WithBaseURL(srv.URL)}, opts...)
	return New(s.Requests, s.Samples, s.Settings, srv.Client(), opts...)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestSync_DeliversOnFirstAttempt(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")

	res, err := newManager(s, srv).SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: 1, Failed: 0}, res)
	assert.Zero(t, queueLen(t, s))
}

func TestSync_ReplaysRequestVerbatim(t *testing.T) {
	s := openStore(t)

	var (
		gotMethod, gotPath, gotCT, gotDevice string
		gotBody                              []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.RequestURI()
		gotCT = r.Header.Get("Content-Type")
		gotDevice = r.Header.Get("X-Device")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples?source=offline", "S1")
	queued, err := s.Requests.List(context.Background())
	require.NoError(t, err)
	require.Len(t, queued, 1)

	res, err := newManager(s, srv).SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/samples?source=offline", gotPath)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "field-7", gotDevice)
	assert.Equal(t, queued[0].Body, gotBody)
}

func TestSync_EmptyQueueMakesNoNetworkCalls(t *testing.T) {
	s := openStore(t)
	var calls atomic.Int32
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("unexpected call")
	})

	res, err := New(s.Requests, s.Samples, s.Settings, doer).SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{}, res)
	assert.Zero(t, calls.Load())
}

func TestSync_DropsEntryAfterThirdFailure(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	id := enqueueSample(t, s, "/api/samples", "S1")
	m := newManager(s, srv)

	var dropped []PermanentFailure
	m.OnPermanentFailure(func(pf PermanentFailure) { dropped = append(dropped, pf) })

	ctx := context.Background()
	totalFailed := 0
	for pass := 1; pass <= 2; pass++ {
		res, err := m.SyncPendingData(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.SyncResult{Success: 0, Failed: 1}, res)
		totalFailed += res.Failed

		list, err := s.Requests.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1, "entry must survive pass %d", pass)
		assert.Equal(t, pass, list[0].RetryCount)
		assert.Empty(t, dropped)
	}

	res, err := m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	totalFailed += res.Failed

	assert.Equal(t, 3, totalFailed)
	assert.Zero(t, queueLen(t, s))

	require.Len(t, dropped, 1)
	assert.Equal(t, id, dropped[0].Request.ID)
	assert.Equal(t, 3, dropped[0].Request.RetryCount)
	assert.ErrorIs(t, dropped[0].Err, common.ErrUnexpectedStatus)
}

func TestSync_EventuallyResolvesWhenServerRecovers(t *testing.T) {
	s := openStore(t)
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")
	m := newManager(s, srv)
	ctx := context.Background()

	res, err := m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	fail.Store(false)
	res, err = m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: 1}, res)
	assert.Zero(t, queueLen(t, s))
}

func TestSync_FailingEntryDoesNotStopOthers(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/samples/bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	const n = 5
	for i := 0; i < n; i++ {
		url := "/api/samples"
		if i == 2 {
			url = "/api/samples/bad"
		}
		enqueueSample(t, s, url, "S")
	}

	res, err := newManager(s, srv).SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: n - 1, Failed: 1}, res)

	left, err := s.Requests.List(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "/api/samples/bad", left[0].URL)
}

func TestSync_ProcessesEntriesInInsertionOrder(t *testing.T) {
	s := openStore(t)
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get("n"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for _, n := range []string{"1", "2", "3"} {
		enqueueSample(t, s, "/api/samples?n="+n, "S"+n)
	}

	_, err := newManager(s, srv).SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, seen)
}

func TestSync_ConcurrentCallIsRejected(t *testing.T) {
	s := openStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")
	m := newManager(s, srv)

	type outcome struct {
		res models.SyncResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := m.SyncPendingData(context.Background())
		first <- outcome{res, err}
	}()

	<-entered
	assert.True(t, m.IsSyncing())

	res, err := m.SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{}, res)
	assert.Equal(t, 1, queueLen(t, s))

	close(release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, models.SyncResult{Success: 1}, got.res)
	assert.False(t, m.IsSyncing())
}

func TestSync_MalformedDescriptorIsPerEntryFailure(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	_, err := s.DB().ExecContext(ctx, `INSERT INTO pending_requests (url, method, headers, body, timestamp, type)
		VALUES ('/api/samples', 'POST', 'not-json', x'7b7d', 1, 'sample')`)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `INSERT INTO pending_requests (url, method, headers, body, timestamp, type)
		VALUES ('/api/samples', 'POST', '{}', 'garbage', 2, 'sample')`)
	require.NoError(t, err)
	enqueueSample(t, s, "/api/samples", "S1")

	var dropped []error
	m := newManager(s, srv, WithMaxRetries(1))
	m.OnPermanentFailure(func(pf PermanentFailure) { dropped = append(dropped, pf.Err) })

	res, err := m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: 1, Failed: 2}, res)
	assert.Zero(t, queueLen(t, s))

	require.Len(t, dropped, 2)
	for _, e := range dropped {
		assert.ErrorIs(t, e, common.ErrMalformedRequest)
	}
}

func TestSync_TransportErrorCountsAsFailure(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")

	var cause error
	m := newManager(s, srv, WithMaxRetries(1))
	m.OnPermanentFailure(func(pf PermanentFailure) { cause = pf.Err })

	res, err := m.SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Failed: 1}, res)
	assert.ErrorIs(t, cause, common.ErrUnavailable)
}

func TestSync_MarksDeliveredSampleSynced(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, s.Samples.Put(ctx, &models.StoredSample{
		ID: "offline_1", SampleData: json.RawMessage(`{}`), Timestamp: time.Now(),
	}))
	enqueueSample(t, s, "/api/samples", "offline_1")
	// sample already pruned: must not count as a failure
	enqueueSample(t, s, "/api/samples", "pruned")

	res, err := newManager(s, srv).SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: 2}, res)

	got, err := s.Samples.Get(ctx, "offline_1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestSync_IgnoresCallerCancellation(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newManager(s, srv).SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: 1}, res)
}

func TestSync_NotifiesHandlersAndRecordsResult(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enqueueSample(t, s, "/api/samples", "S1")
	enqueueSample(t, s, "/api/samples/fail", "S2")

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(s, srv, WithClock(func() time.Time { return fixed }))

	var order []string
	m.OnSyncComplete(func(success, failed int) {
		order = append(order, "first")
		assert.Equal(t, 1, success)
		assert.Equal(t, 1, failed)
	})
	m.OnSyncComplete(func(success, failed int) { order = append(order, "second") })

	ctx := context.Background()
	_, err := m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)

	at, err := s.Settings.Get(ctx, models.SettingLastSyncAt)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", string(at))

	raw, err := s.Settings.Get(ctx, models.SettingLastSyncResult)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":1,"failed":1}`, string(raw))
}

func TestSync_HandlersRegisteredDuringPassRunNextTime(t *testing.T) {
	s := openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newManager(s, srv)
	var late int
	m.OnSyncComplete(func(int, int) {
		m.OnSyncComplete(func(int, int) { late++ })
	})

	ctx := context.Background()
	_, err := m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Zero(t, late)

	_, err = m.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, late)
}

type failingRequests struct {
	requests.Repository
}

func (failingRequests) List(context.Context) ([]*models.PendingRequest, error) {
	return nil, errors.New("database is locked")
}

func TestSync_SnapshotErrorIsReturned(t *testing.T) {
	called := false
	m := New(failingRequests{}, nil, nil, doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unexpected call")
	}))
	m.OnSyncComplete(func(int, int) { called = true })

	_, err := m.SyncPendingData(context.Background())
	require.Error(t, err)
	assert.False(t, called)
	assert.False(t, m.IsSyncing())
}

func TestOptions(t *testing.T) {
	m := New(nil, nil, nil, http.DefaultClient, WithMaxRetries(0), WithLogger(nil), WithClock(nil))
	assert.Equal(t, DefaultMaxRetries, m.MaxRetries())

	m = New(nil, nil, nil, http.DefaultClient, WithMaxRetries(5))
	assert.Equal(t, 5, m.MaxRetries())
}
