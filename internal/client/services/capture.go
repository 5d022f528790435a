package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/storage"
	"github.com/dmitrijs2005/groundwatch/internal/client/syncer"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

// Server endpoints the capture flow posts to.
const (
	SamplesURL   = "/api/samples"
	PhotosURL    = "/api/photos"
	LocationsURL = "/api/locations"
)

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

// OnlineChecker reports the last known connectivity state.
type OnlineChecker interface {
	IsOnline() bool
}

type PhotoUpload struct {
	Name string
	Data []byte
}

// SampleSubmission is one field record as entered by the operator.
// An empty SampleID gets a generated offline id.
type SampleSubmission struct {
	SampleID   string
	SampleData json.RawMessage
	Photos     []PhotoUpload
	Timestamp  time.Time
}

type SubmitResult struct {
	SampleID string
	// Queued is true when at least part of the submission waits for sync.
	Queued bool
}

// Summary is what the UI needs to show pending and synced state.
type Summary struct {
	PendingRequests int
	UnsyncedSamples int
	LastSyncAt      string
	LastSync        *models.SyncResult
	Online          bool
}

type CaptureService interface {
	SubmitSample(ctx context.Context, sub SampleSubmission) (SubmitResult, error)
	SubmitLocation(ctx context.Context, loc models.LocationPayload) (SubmitResult, error)
	PendingSummary(ctx context.Context) (Summary, error)
}

type captureService struct {
	store   *storage.Store
	online  OnlineChecker
	doer    syncer.Doer
	baseURL string
	log     logging.Logger
	now     func() time.Time
}

func NewCaptureService(store *storage.Store, online OnlineChecker, doer syncer.Doer, baseURL string, log logging.Logger) CaptureService {
	if log == nil {
		log = logging.Nop()
	}
	return &captureService{
		store:   store,
		online:  online,
		doer:    doer,
		baseURL: baseURL,
		log:     log.With("module", "capture"),
		now:     time.Now,
	}
}

func (s *captureService) isOnline() bool {
	return s.online != nil && s.online.IsOnline()
}

// SubmitSample posts the sample and its photos when online. Anything that
// could not be delivered is stored locally and queued for the sync manager.
func (s *captureService) SubmitSample(ctx context.Context, sub SampleSubmission) (SubmitResult, error) {
	ts := sub.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	id := sub.SampleID
	if id == "" {
		id = models.NewOfflineSampleID()
	}
	res := SubmitResult{SampleID: id}

	payload := models.SamplePayload{SampleID: id, SampleData: sub.SampleData, Timestamp: ts.UnixMilli()}
	if err := payload.Validate(); err != nil {
		return res, fmt.Errorf("invalid sample: %w", err)
	}

	sampleReq, err := models.NewPendingRequest(SamplesURL, http.MethodPost, jsonHeaders, payload, ts)
	if err != nil {
		return res, err
	}
	photoReqs := make([]*models.PendingRequest, 0, len(sub.Photos))
	for _, p := range sub.Photos {
		pp := models.PhotoPayload{SampleID: id, Name: p.Name, Data: p.Data}
		if err := pp.Validate(); err != nil {
			return res, fmt.Errorf("invalid photo %q: %w", p.Name, err)
		}
		r, err := models.NewPendingRequest(PhotosURL, http.MethodPost, jsonHeaders, pp, ts)
		if err != nil {
			return res, err
		}
		photoReqs = append(photoReqs, r)
	}

	sampleSent := s.tryDeliver(ctx, sampleReq)
	pending := make([]*models.PendingRequest, 0, len(photoReqs)+1)
	if !sampleSent {
		pending = append(pending, sampleReq)
	}
	for _, r := range photoReqs {
		// photos of an undelivered sample wait behind it in the queue
		if !sampleSent || !s.tryDeliver(ctx, r) {
			pending = append(pending, r)
		}
	}

	if len(pending) == 0 {
		s.log.Info(ctx, "sample submitted online", "sample", id, "photos", len(photoReqs))
		return res, nil
	}

	stored := &models.StoredSample{
		ID:         id,
		SampleData: sub.SampleData,
		Timestamp:  ts,
		Synced:     sampleSent,
	}
	for _, p := range sub.Photos {
		stored.Photos = append(stored.Photos, p.Name)
	}
	if err := s.store.Samples.Put(ctx, stored); err != nil {
		return res, err
	}
	for _, p := range sub.Photos {
		if _, err := s.store.Photos.Put(ctx, &models.Photo{SampleID: id, Data: p.Data, Name: p.Name, Timestamp: ts}); err != nil {
			return res, err
		}
	}
	for _, r := range pending {
		if _, err := s.store.Requests.Put(ctx, r); err != nil {
			return res, err
		}
	}

	res.Queued = true
	s.log.Info(ctx, "sample stored for sync", "sample", id, "queued", len(pending))
	return res, nil
}

func (s *captureService) SubmitLocation(ctx context.Context, loc models.LocationPayload) (SubmitResult, error) {
	res := SubmitResult{SampleID: loc.SampleID}
	if loc.Timestamp == 0 {
		loc.Timestamp = s.now().UnixMilli()
	}
	if err := loc.Validate(); err != nil {
		return res, fmt.Errorf("invalid location: %w", err)
	}

	req, err := models.NewPendingRequest(LocationsURL, http.MethodPost, jsonHeaders, loc, time.UnixMilli(loc.Timestamp))
	if err != nil {
		return res, err
	}
	if s.tryDeliver(ctx, req) {
		return res, nil
	}

	if _, err := s.store.Requests.Put(ctx, req); err != nil {
		return res, err
	}
	res.Queued = true
	return res, nil
}

func (s *captureService) tryDeliver(ctx context.Context, req *models.PendingRequest) bool {
	if !s.isOnline() || s.doer == nil {
		return false
	}
	if _, err := syncer.Deliver(ctx, s.doer, s.baseURL, req); err != nil {
		s.log.Warn(ctx, "direct submission failed, queueing", "url", req.URL, "type", req.Type, "error", err)
		return false
	}
	return true
}

func (s *captureService) PendingSummary(ctx context.Context) (Summary, error) {
	var (
		sum Summary
		err error
	)
	sum.Online = s.isOnline()

	if sum.PendingRequests, err = s.store.Requests.Count(ctx); err != nil {
		return sum, err
	}
	unsynced, err := s.store.Samples.ListUnsynced(ctx)
	if err != nil {
		return sum, err
	}
	sum.UnsyncedSamples = len(unsynced)

	at, err := s.store.Settings.Get(ctx, models.SettingLastSyncAt)
	if err != nil {
		return sum, err
	}
	sum.LastSyncAt = string(at)

	raw, err := s.store.Settings.Get(ctx, models.SettingLastSyncResult)
	if err != nil {
		return sum, err
	}
	if raw != nil {
		var r models.SyncResult
		if err := json.Unmarshal(raw, &r); err != nil {
			s.log.Warn(ctx, "ignoring unreadable last sync result", "error", err)
		} else {
			sum.LastSync = &r
		}
	}
	return sum, nil
}

// String renders the "sync failed N of M" style line shown to operators.
func (s Summary) String() string {
	line := fmt.Sprintf("pending %d, unsynced samples %d", s.PendingRequests, s.UnsyncedSamples)
	if s.LastSync == nil {
		return line + ", never synced"
	}
	total := s.LastSync.Success + s.LastSync.Failed
	if s.LastSync.Failed > 0 {
		return fmt.Sprintf("%s, last sync failed %d of %d at %s", line, s.LastSync.Failed, total, s.LastSyncAt)
	}
	return fmt.Sprintf("%s, last sync delivered %d at %s", line, s.LastSync.Success, s.LastSyncAt)
}
