package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/collect"
	"github.com/nicheradar/nicheradar/internal/core/domain"
	"github.com/nicheradar/nicheradar/internal/engine"
	db "github.com/nicheradar/nicheradar/internal/storage"
)

type fakeStore struct {
	subreddits []db.SubredditRow
	geos       []string

	scansStarted   int
	completed      bool
	failed         bool
	failedWith     error
	finalStats     domain.ScanStats
	reconciled     map[string]string
	mentions       map[string][]domain.SourceMention
	signals        map[string]domain.SignalSummary
	snapshots      map[string]*domain.CompetitionSnapshot
	opportunities  map[string]*domain.Opportunity
	reconcileErrOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subreddits:    []db.SubredditRow{{Subreddit: "programming", Category: "tech", MinScore: 10}},
		geos:          []string{"US"},
		reconciled:    map[string]string{},
		mentions:      map[string][]domain.SourceMention{},
		signals:       map[string]domain.SignalSummary{},
		snapshots:     map[string]*domain.CompetitionSnapshot{},
		opportunities: map[string]*domain.Opportunity{},
	}
}

func (s *fakeStore) ListSubreddits(_ context.Context) ([]db.SubredditRow, error) {
	return s.subreddits, nil
}

func (s *fakeStore) ListSeedGeos(_ context.Context) ([]string, error) {
	return s.geos, nil
}

func (s *fakeStore) StartScan(_ context.Context, _ time.Time) (string, error) {
	s.scansStarted++

	return "scan-1", nil
}

func (s *fakeStore) CompleteScan(_ context.Context, _ string, stats domain.ScanStats, _ time.Time) error {
	s.completed = true
	s.finalStats = stats

	return nil
}

func (s *fakeStore) FailScan(_ context.Context, _ string, scanErr error, _ time.Time) error {
	s.failed = true
	s.failedWith = scanErr

	return nil
}

func (s *fakeStore) ReconcileTopic(_ context.Context, topic *domain.Topic, _ time.Time) (db.ReconciledTopic, error) {
	if topic.Key == s.reconcileErrOn {
		return db.ReconciledTopic{}, errors.New("reconcile boom")
	}

	id := "id-" + topic.Key
	s.reconciled[topic.Key] = id

	return db.ReconciledTopic{ID: id, Created: true}, nil
}

func (s *fakeStore) SaveMentions(_ context.Context, topicID string, mentions []domain.SourceMention) error {
	s.mentions[topicID] = mentions

	return nil
}

func (s *fakeStore) SaveSignals(_ context.Context, topicID string, sum domain.SignalSummary, _ float64, _ time.Time) error {
	s.signals[topicID] = sum

	return nil
}

func (s *fakeStore) SaveCompetitionSnapshot(_ context.Context, topicID string, snap *domain.CompetitionSnapshot) error {
	s.snapshots[topicID] = snap

	return nil
}

func (s *fakeStore) UpsertOpportunity(_ context.Context, topicID string, opp *domain.Opportunity) error {
	s.opportunities[topicID] = opp

	return nil
}

func (s *fakeStore) PhaseCounts(_ context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *fakeStore) DeactivateStaleTopics(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeReddit struct {
	items []domain.RawItem
	err   error
	subs  []collect.SubredditConfig
}

func (f *fakeReddit) Collect(_ context.Context, subs []collect.SubredditConfig) ([]domain.RawItem, error) {
	f.subs = subs

	return f.items, f.err
}

type fakeHN struct {
	items []domain.RawItem
	err   error
}

func (f *fakeHN) Collect(_ context.Context) ([]domain.RawItem, error) {
	return f.items, f.err
}

type fakeTrends struct {
	items []domain.RawItem
	err   error
	geos  []string
}

func (f *fakeTrends) Collect(_ context.Context, geos []string) ([]domain.RawItem, error) {
	f.geos = geos

	return f.items, f.err
}

type fakeChecker struct {
	enabled  bool
	snap     *domain.CompetitionSnapshot
	err      error
	keywords []string
}

func (f *fakeChecker) Enabled() bool { return f.enabled }

func (f *fakeChecker) CheckSupply(_ context.Context, keyword string) (*domain.CompetitionSnapshot, error) {
	f.keywords = append(f.keywords, keyword)

	if f.err != nil {
		return nil, f.err
	}

	snap := *f.snap
	snap.Keyword = keyword

	return &snap, nil
}

type fakeCache struct {
	entries map[string]*domain.CompetitionSnapshot
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.CompetitionSnapshot{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (*domain.CompetitionSnapshot, bool) {
	snap, ok := f.entries[key]

	return snap, ok
}

func (f *fakeCache) Set(_ context.Context, key string, snap *domain.CompetitionSnapshot) error {
	f.entries[key] = snap
	f.sets++

	return nil
}

func testItems() (reddit, hn, trends []domain.RawItem) {
	reddit = []domain.RawItem{{
		Source:   domain.SourceReddit,
		Title:    "Rust is great",
		Category: "tech",
		URL:      "https://reddit.com/r/programming/1",
		Score:    250,
		Comments: 40,
	}}

	hn = []domain.RawItem{{
		Source:   domain.SourceHackerNews,
		Title:    "Rust is great",
		Category: "tech",
		URL:      "https://news.ycombinator.com/item?id=1",
		Score:    150,
		Comments: 80,
	}}

	trends = []domain.RawItem{{
		Source:     domain.SourceGoogleTrend,
		Query:      "rust",
		TrendValue: 100,
	}}

	return reddit, hn, trends
}

func newTestRunner(store Store, reddit RedditSource, hn HNSource, trends TrendsSource,
	checker CompetitionChecker, cache SnapshotCache, cfg Config,
) *Runner {
	logger := zerolog.Nop()

	return NewRunner(store, reddit, hn, trends, checker, cache, engine.New(&logger), cfg, &logger)
}

func TestRunner_Run(t *testing.T) {
	redditItems, hnItems, trendItems := testItems()

	store := newFakeStore()
	cache := newFakeCache()
	checker := &fakeChecker{
		enabled: true,
		snap:    &domain.CompetitionSnapshot{LargeChannelCount: 7, CheckedAt: time.Now()},
	}

	r := newTestRunner(store,
		&fakeReddit{items: redditItems},
		&fakeHN{items: hnItems},
		&fakeTrends{items: trendItems},
		checker, cache, Config{CompetitionTopK: 1})

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.completed || store.failed {
		t.Fatalf("expected completed scan, got completed=%v failed=%v", store.completed, store.failed)
	}

	if stats.RedditPosts != 1 || stats.HNStories != 1 || stats.TrendQueries != 1 {
		t.Errorf("collection counters: %+v", stats)
	}

	// "Rust is great" extracts "rust" and the whole title, the trend query
	// merges into "rust".
	if stats.TopicsDetected != 2 {
		t.Errorf("topics detected: got %d", stats.TopicsDetected)
	}

	if stats.OpportunitiesCreated != 2 {
		t.Errorf("opportunities created: got %d", stats.OpportunitiesCreated)
	}

	// Only the top topic by momentum gets a competition check.
	if len(checker.keywords) != 1 || checker.keywords[0] != "rust" {
		t.Fatalf("checker keywords: got %v", checker.keywords)
	}

	if stats.CompetitionChecks != 1 {
		t.Errorf("competition checks: got %d", stats.CompetitionChecks)
	}

	if cache.sets != 1 {
		t.Errorf("expected snapshot cached once, got %d", cache.sets)
	}

	if _, ok := store.snapshots["id-rust"]; !ok {
		t.Error("expected snapshot persisted for topic rust")
	}

	opp, ok := store.opportunities["id-rust"]
	if !ok {
		t.Fatal("expected opportunity for topic rust")
	}

	// reddit 250/500*40 + hn 150/300*30 + trend 100/100*30 = 65.
	if opp.Momentum != 65 {
		t.Errorf("momentum: got %f", opp.Momentum)
	}

	// 7 large channels: base 10 + capped 30.
	if opp.Supply != 40 {
		t.Errorf("supply: got %f", opp.Supply)
	}

	if opp.Gap != 39 {
		t.Errorf("gap: got %f", opp.Gap)
	}

	if opp.Phase != domain.PhaseMaturity {
		t.Errorf("phase: got %q", opp.Phase)
	}

	if opp.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence: got %q", opp.Confidence)
	}

	// The secondary topic is scored without a snapshot.
	other, ok := store.opportunities["id-rust is great"]
	if !ok {
		t.Fatal("expected opportunity for the whole-title topic")
	}

	if other.Supply != 10 {
		t.Errorf("absent snapshot supply: got %f", other.Supply)
	}
}

func TestRunner_Run_CacheHitSkipsChecker(t *testing.T) {
	redditItems, hnItems, trendItems := testItems()

	store := newFakeStore()
	cache := newFakeCache()
	cache.entries["rust"] = &domain.CompetitionSnapshot{Keyword: "rust", TotalResults: 500}
	checker := &fakeChecker{enabled: true, snap: &domain.CompetitionSnapshot{}}

	r := newTestRunner(store,
		&fakeReddit{items: redditItems},
		&fakeHN{items: hnItems},
		&fakeTrends{items: trendItems},
		checker, cache, Config{CompetitionTopK: 1})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(checker.keywords) != 0 {
		t.Errorf("expected no YouTube calls on cache hit, got %v", checker.keywords)
	}
}

func TestRunner_Run_PartialCollectorFailure(t *testing.T) {
	redditItems, _, trendItems := testItems()

	store := newFakeStore()

	r := newTestRunner(store,
		&fakeReddit{items: redditItems},
		&fakeHN{err: errors.New("hn down")},
		&fakeTrends{items: trendItems},
		&fakeChecker{}, newFakeCache(), Config{})

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("one failed source should not fail the scan: %v", err)
	}

	if !store.completed {
		t.Error("expected scan marked completed")
	}

	if stats.HNStories != 0 || stats.RedditPosts != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
}

func TestRunner_Run_AllCollectorsFail(t *testing.T) {
	store := newFakeStore()

	r := newTestRunner(store,
		&fakeReddit{err: errors.New("reddit down")},
		&fakeHN{err: errors.New("hn down")},
		&fakeTrends{err: errors.New("trends down")},
		&fakeChecker{}, newFakeCache(), Config{})

	if _, err := r.Run(context.Background()); !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}

	if !store.failed || store.completed {
		t.Errorf("expected failed scan log, got completed=%v failed=%v", store.completed, store.failed)
	}

	if !errors.Is(store.failedWith, ErrAllSourcesFailed) {
		t.Errorf("recorded failure: got %v", store.failedWith)
	}
}

func TestRunner_Run_TopicErrorIsolated(t *testing.T) {
	redditItems, hnItems, trendItems := testItems()

	store := newFakeStore()
	store.reconcileErrOn = "rust"

	r := newTestRunner(store,
		&fakeReddit{items: redditItems},
		&fakeHN{items: hnItems},
		&fakeTrends{items: trendItems},
		&fakeChecker{}, newFakeCache(), Config{})

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("a single broken topic should not fail the scan: %v", err)
	}

	if stats.OpportunitiesCreated != 1 {
		t.Errorf("expected the surviving topic scored, got %d", stats.OpportunitiesCreated)
	}

	if _, ok := store.opportunities["id-rust is great"]; !ok {
		t.Error("expected opportunity for the surviving topic")
	}
}
