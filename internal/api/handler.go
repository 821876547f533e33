// Package api exposes the radar's read and control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/core/domain"
	db "github.com/nicheradar/nicheradar/internal/storage"
)

const requestTimeout = 30 * time.Second

// Store is the persistence surface the API reads from.
type Store interface {
	ListOpportunities(ctx context.Context, filter db.OpportunityFilter) ([]db.OpportunityRecord, error)
	GetOpportunity(ctx context.Context, id string) (*db.OpportunityRecord, error)
	LatestSignals(ctx context.Context, topicID string) (*db.SignalRow, error)
	LatestCompetitionSnapshot(ctx context.Context, topicID string) (*domain.CompetitionSnapshot, error)
	CountActiveTopics(ctx context.Context) (int, error)
	PhaseCounts(ctx context.Context) (map[string]int, error)
	LastScan(ctx context.Context) (*db.ScanRow, error)
	HasRunningScan(ctx context.Context) (bool, error)
	AddWatch(ctx context.Context, topicID, note string) (string, error)
	ListWatchlist(ctx context.Context) ([]db.WatchRow, error)
	RemoveWatch(ctx context.Context, topicID string) error
}

// ScanTrigger starts a scan in the background.
type ScanTrigger func()

// Handler serves the radar API.
type Handler struct {
	store   Store
	trigger ScanTrigger
	logger  *zerolog.Logger
	router  chi.Router
}

func NewHandler(store Store, trigger ScanTrigger, logger *zerolog.Logger) *Handler {
	h := &Handler{
		store:   store,
		trigger: trigger,
		logger:  logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(h.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Route("/api", func(r chi.Router) {
		r.Route("/opportunities", func(r chi.Router) {
			r.Get("/", h.listOpportunities)
			r.Get("/{id}", h.getOpportunity)
		})

		r.Get("/stats", h.getStats)
		r.Post("/scan", h.triggerScan)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", h.listWatchlist)
			r.Post("/", h.addWatch)
			r.Delete("/{topicID}", h.removeWatch)
		})
	})

	h.router = router

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("api request")
	})
}

type opportunityResponse struct {
	ID           string    `json:"id"`
	TopicID      string    `json:"topic_id"`
	TopicKey     string    `json:"topic_key"`
	Keyword      string    `json:"keyword"`
	Category     string    `json:"category,omitempty"`
	Momentum     float64   `json:"momentum"`
	Supply       float64   `json:"supply"`
	Gap          float64   `json:"gap"`
	Phase        string    `json:"phase"`
	Confidence   string    `json:"confidence"`
	Sources      []string  `json:"sources"`
	CalculatedAt time.Time `json:"calculated_at"`
}

func toOpportunityResponse(rec db.OpportunityRecord) opportunityResponse {
	sources := make([]string, 0, len(rec.Sources))
	for _, s := range rec.Sources {
		sources = append(sources, string(s))
	}

	return opportunityResponse{
		ID:           rec.ID,
		TopicID:      rec.TopicID,
		TopicKey:     rec.TopicKey,
		Keyword:      rec.Keyword,
		Category:     rec.Category,
		Momentum:     rec.Momentum,
		Supply:       rec.Supply,
		Gap:          rec.Gap,
		Phase:        string(rec.Phase),
		Confidence:   string(rec.Confidence),
		Sources:      sources,
		CalculatedAt: rec.CalculatedAt,
	}
}

func (h *Handler) listOpportunities(w http.ResponseWriter, r *http.Request) {
	filter := db.OpportunityFilter{
		Phase:    r.URL.Query().Get("phase"),
		Category: r.URL.Query().Get("category"),
	}

	if v := r.URL.Query().Get("min_gap"); v != "" {
		minGap, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid min_gap", err)

			return
		}

		filter.MinGap = minGap
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid limit", err)

			return
		}

		filter.Limit = limit
	}

	records, err := h.store.ListOpportunities(r.Context(), filter)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list opportunities", err)

		return
	}

	out := make([]opportunityResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toOpportunityResponse(rec))
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"opportunities": out})
}

type signalsResponse struct {
	RedditScore    int       `json:"reddit_total_score"`
	RedditMentions int       `json:"reddit_mentions"`
	HNScore        int       `json:"hn_total_score"`
	HNMentions     int       `json:"hn_mentions"`
	TrendValue     float64   `json:"trends_value"`
	TrendBreakout  bool      `json:"trends_breakout"`
	Momentum       float64   `json:"momentum_score"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func (h *Handler) getOpportunity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetOpportunity(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrOpportunityNotFound) {
			h.respondError(w, http.StatusNotFound, "opportunity not found", nil)

			return
		}

		h.respondError(w, http.StatusInternalServerError, "failed to load opportunity", err)

		return
	}

	resp := map[string]any{"opportunity": toOpportunityResponse(*rec)}

	signals, err := h.store.LatestSignals(r.Context(), rec.TopicID)
	if err != nil && !errors.Is(err, db.ErrSignalsNotFound) {
		h.respondError(w, http.StatusInternalServerError, "failed to load signals", err)

		return
	}

	if signals != nil {
		resp["signals"] = signalsResponse{
			RedditScore:    signals.RedditScore,
			RedditMentions: signals.RedditMentions,
			HNScore:        signals.HNScore,
			HNMentions:     signals.HNMentions,
			TrendValue:     signals.TrendValue,
			TrendBreakout:  signals.TrendBreakout,
			Momentum:       signals.Momentum,
			RecordedAt:     signals.RecordedAt,
		}
	}

	snap, err := h.store.LatestCompetitionSnapshot(r.Context(), rec.TopicID)
	if err != nil && !errors.Is(err, db.ErrSnapshotNotFound) {
		h.respondError(w, http.StatusInternalServerError, "failed to load competition snapshot", err)

		return
	}

	if snap != nil {
		resp["competition"] = snap
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	ActiveTopics         int            `json:"active_topics"`
	OpportunitiesByPhase map[string]int `json:"opportunities_by_phase"`
	LastScan             *scanResponse  `json:"last_scan,omitempty"`
}

type scanResponse struct {
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	RedditPosts          int        `json:"reddit_posts"`
	HNStories            int        `json:"hn_stories"`
	TrendQueries         int        `json:"trend_queries"`
	TopicsDetected       int        `json:"topics_detected"`
	TopicsUpdated        int        `json:"topics_updated"`
	CompetitionChecks    int        `json:"competition_checks"`
	OpportunitiesCreated int        `json:"opportunities_created"`
	DurationSeconds      float64    `json:"duration_seconds"`
	Error                string     `json:"error,omitempty"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.CountActiveTopics(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to count topics", err)

		return
	}

	phases, err := h.store.PhaseCounts(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to count phases", err)

		return
	}

	resp := statsResponse{
		ActiveTopics:         active,
		OpportunitiesByPhase: phases,
	}

	last, err := h.store.LastScan(r.Context())
	if err != nil && !errors.Is(err, db.ErrScanNotFound) {
		h.respondError(w, http.StatusInternalServerError, "failed to load last scan", err)

		return
	}

	if last != nil {
		sr := &scanResponse{
			Status:               last.Status,
			StartedAt:            last.StartedAt,
			RedditPosts:          last.RedditPosts,
			HNStories:            last.HNStories,
			TrendQueries:         last.TrendQueries,
			TopicsDetected:       last.TopicsDetected,
			TopicsUpdated:        last.TopicsUpdated,
			CompetitionChecks:    last.CompetitionChecks,
			OpportunitiesCreated: last.OpportunitiesCreated,
			DurationSeconds:      last.DurationSeconds,
			Error:                last.Error,
		}

		if !last.CompletedAt.IsZero() {
			completed := last.CompletedAt
			sr.CompletedAt = &completed
		}

		resp.LastScan = sr
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) {
	running, err := h.store.HasRunningScan(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to check scan state", err)

		return
	}

	if running {
		h.respondError(w, http.StatusConflict, "a scan is already running", nil)

		return
	}

	h.trigger()

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

type watchRequest struct {
	TopicID string `json:"topic_id"`
	Note    string `json:"note"`
}

type watchResponse struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	Keyword   string    `json:"keyword"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listWatchlist(w http.ResponseWriter, r *http.Request) {
	watches, err := h.store.ListWatchlist(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list watchlist", err)

		return
	}

	out := make([]watchResponse, 0, len(watches))
	for _, wr := range watches {
		out = append(out, watchResponse{
			ID:        wr.ID,
			TopicID:   wr.TopicID,
			Keyword:   wr.Keyword,
			Note:      wr.Note,
			CreatedAt: wr.CreatedAt,
		})
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"watchlist": out})
}

func (h *Handler) addWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)

		return
	}

	if req.TopicID == "" {
		h.respondError(w, http.StatusBadRequest, "topic_id is required", nil)

		return
	}

	id, err := h.store.AddWatch(r.Context(), req.TopicID, req.Note)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to add watch", err)

		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) removeWatch(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "topicID")

	if err := h.store.RemoveWatch(r.Context(), topicID); err != nil {
		if errors.Is(err, db.ErrWatchNotFound) {
			h.respondError(w, http.StatusNotFound, "watchlist entry not found", nil)

			return
		}

		h.respondError(w, http.StatusInternalServerError, "failed to remove watch", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.logger.Error().Err(err).Int("status", status).Msg(message)
	}

	h.respondJSON(w, status, map[string]string{"error": message})
}
