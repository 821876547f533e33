package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/core/domain"
	db "github.com/nicheradar/nicheradar/internal/storage"
)

type fakeStore struct {
	records     []db.OpportunityRecord
	lastFilter  db.OpportunityFilter
	signals     *db.SignalRow
	snapshot    *domain.CompetitionSnapshot
	scanRunning bool
	lastScan    *db.ScanRow
	watches     []db.WatchRow
	removedID   string
}

func (s *fakeStore) ListOpportunities(_ context.Context, filter db.OpportunityFilter) ([]db.OpportunityRecord, error) {
	s.lastFilter = filter

	return s.records, nil
}

func (s *fakeStore) GetOpportunity(_ context.Context, id string) (*db.OpportunityRecord, error) {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i], nil
		}
	}

	return nil, db.ErrOpportunityNotFound
}

func (s *fakeStore) LatestSignals(_ context.Context, _ string) (*db.SignalRow, error) {
	if s.signals == nil {
		return nil, db.ErrSignalsNotFound
	}

	return s.signals, nil
}

func (s *fakeStore) LatestCompetitionSnapshot(_ context.Context, _ string) (*domain.CompetitionSnapshot, error) {
	if s.snapshot == nil {
		return nil, db.ErrSnapshotNotFound
	}

	return s.snapshot, nil
}

func (s *fakeStore) CountActiveTopics(_ context.Context) (int, error) {
	return 42, nil
}

func (s *fakeStore) PhaseCounts(_ context.Context) (map[string]int, error) {
	return map[string]int{"emergence": 3, "growth": 5}, nil
}

func (s *fakeStore) LastScan(_ context.Context) (*db.ScanRow, error) {
	if s.lastScan == nil {
		return nil, db.ErrScanNotFound
	}

	return s.lastScan, nil
}

func (s *fakeStore) HasRunningScan(_ context.Context) (bool, error) {
	return s.scanRunning, nil
}

func (s *fakeStore) AddWatch(_ context.Context, topicID, _ string) (string, error) {
	return "watch-" + topicID, nil
}

func (s *fakeStore) ListWatchlist(_ context.Context) ([]db.WatchRow, error) {
	return s.watches, nil
}

func (s *fakeStore) RemoveWatch(_ context.Context, topicID string) error {
	if topicID == "missing" {
		return db.ErrWatchNotFound
	}

	s.removedID = topicID

	return nil
}

func testRecord(id string) db.OpportunityRecord {
	return db.OpportunityRecord{
		ID:      id,
		TopicID: "topic-1",
		Opportunity: domain.Opportunity{
			TopicKey:     "duckdb",
			Keyword:      "duckdb",
			Category:     "tech",
			Momentum:     80,
			Supply:       20,
			Gap:          64,
			Phase:        domain.PhaseEmergence,
			Confidence:   domain.ConfidenceHigh,
			Sources:      []domain.Source{domain.SourceReddit, domain.SourceHackerNews},
			CalculatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func newTestHandler(store *fakeStore, trigger ScanTrigger) *Handler {
	logger := zerolog.Nop()

	if trigger == nil {
		trigger = func() {}
	}

	return NewHandler(store, trigger, &logger)
}

func doRequest(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestHandler_ListOpportunities(t *testing.T) {
	store := &fakeStore{records: []db.OpportunityRecord{testRecord("opp-1")}}
	h := newTestHandler(store, nil)

	rec := doRequest(h, http.MethodGet, "/api/opportunities?phase=emergence&category=tech&min_gap=40&limit=5", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	if store.lastFilter.Phase != "emergence" || store.lastFilter.Category != "tech" {
		t.Errorf("filter passthrough: %+v", store.lastFilter)
	}

	if store.lastFilter.MinGap != 40 || store.lastFilter.Limit != 5 {
		t.Errorf("numeric filters: %+v", store.lastFilter)
	}

	var body struct {
		Opportunities []opportunityResponse `json:"opportunities"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(body.Opportunities) != 1 || body.Opportunities[0].Keyword != "duckdb" {
		t.Errorf("unexpected body: %+v", body)
	}

	if body.Opportunities[0].Phase != "emergence" {
		t.Errorf("phase: got %q", body.Opportunities[0].Phase)
	}
}

func TestHandler_ListOpportunities_BadMinGap(t *testing.T) {
	h := newTestHandler(&fakeStore{}, nil)

	rec := doRequest(h, http.MethodGet, "/api/opportunities?min_gap=abc", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestHandler_GetOpportunity(t *testing.T) {
	store := &fakeStore{
		records: []db.OpportunityRecord{testRecord("opp-1")},
		signals: &db.SignalRow{RedditScore: 150, Momentum: 80},
		snapshot: &domain.CompetitionSnapshot{
			Keyword:      "duckdb",
			TotalResults: 12000,
		},
	}
	h := newTestHandler(store, nil)

	rec := doRequest(h, http.MethodGet, "/api/opportunities/opp-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	for _, key := range []string{"opportunity", "signals", "competition"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in detail response", key)
		}
	}
}

func TestHandler_GetOpportunity_NotFound(t *testing.T) {
	h := newTestHandler(&fakeStore{}, nil)

	rec := doRequest(h, http.MethodGet, "/api/opportunities/nope", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestHandler_GetStats(t *testing.T) {
	store := &fakeStore{
		lastScan: &db.ScanRow{
			Status:         db.ScanStatusCompleted,
			StartedAt:      time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC),
			CompletedAt:    time.Date(2026, 2, 1, 6, 2, 0, 0, time.UTC),
			TopicsDetected: 17,
		},
	}
	h := newTestHandler(store, nil)

	rec := doRequest(h, http.MethodGet, "/api/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var body statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.ActiveTopics != 42 {
		t.Errorf("active topics: got %d", body.ActiveTopics)
	}

	if body.OpportunitiesByPhase["growth"] != 5 {
		t.Errorf("phase counts: %+v", body.OpportunitiesByPhase)
	}

	if body.LastScan == nil || body.LastScan.TopicsDetected != 17 {
		t.Errorf("last scan: %+v", body.LastScan)
	}
}

func TestHandler_TriggerScan(t *testing.T) {
	triggered := false
	h := newTestHandler(&fakeStore{}, func() { triggered = true })

	rec := doRequest(h, http.MethodPost, "/api/scan", "")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d", rec.Code)
	}

	if !triggered {
		t.Error("expected scan trigger to fire")
	}
}

func TestHandler_TriggerScan_Conflict(t *testing.T) {
	triggered := false
	h := newTestHandler(&fakeStore{scanRunning: true}, func() { triggered = true })

	rec := doRequest(h, http.MethodPost, "/api/scan", "")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d", rec.Code)
	}

	if triggered {
		t.Error("running scan must not trigger another")
	}
}

func TestHandler_Watchlist(t *testing.T) {
	store := &fakeStore{
		watches: []db.WatchRow{{ID: "w1", TopicID: "topic-1", Keyword: "duckdb"}},
	}
	h := newTestHandler(store, nil)

	rec := doRequest(h, http.MethodGet, "/api/watchlist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodPost, "/api/watchlist", `{"topic_id": "topic-1", "note": "check weekly"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status: got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodPost, "/api/watchlist", `{"note": "no topic"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("add without topic_id: got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodDelete, "/api/watchlist/topic-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status: got %d", rec.Code)
	}

	if store.removedID != "topic-1" {
		t.Errorf("removed topic: got %q", store.removedID)
	}

	rec = doRequest(h, http.MethodDelete, "/api/watchlist/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: got %d", rec.Code)
	}
}
