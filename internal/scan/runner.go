// Package scan orchestrates one full radar pass: collect raw items from
// every source, fuse them into topics, measure competition for the hottest
// ones, and persist scored opportunities.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/collect"
	"github.com/nicheradar/nicheradar/internal/core/domain"
	"github.com/nicheradar/nicheradar/internal/engine"
	"github.com/nicheradar/nicheradar/internal/platform/observability"
	db "github.com/nicheradar/nicheradar/internal/storage"
)

const (
	defaultCompetitionTopK = 20
	staleTopicAge          = 14 * 24 * time.Hour

	resultChecked = "checked"
	resultCached  = "cached"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

// ErrAllSourcesFailed marks a scan where no collector produced any items.
var ErrAllSourcesFailed = errors.New("all collectors failed")

// Store is the persistence surface the runner needs.
type Store interface {
	ListSubreddits(ctx context.Context) ([]db.SubredditRow, error)
	ListSeedGeos(ctx context.Context) ([]string, error)
	StartScan(ctx context.Context, startedAt time.Time) (string, error)
	CompleteScan(ctx context.Context, id string, stats domain.ScanStats, completedAt time.Time) error
	FailScan(ctx context.Context, id string, scanErr error, completedAt time.Time) error
	ReconcileTopic(ctx context.Context, topic *domain.Topic, seenAt time.Time) (db.ReconciledTopic, error)
	SaveMentions(ctx context.Context, topicID string, mentions []domain.SourceMention) error
	SaveSignals(ctx context.Context, topicID string, sum domain.SignalSummary, momentum float64, recordedAt time.Time) error
	SaveCompetitionSnapshot(ctx context.Context, topicID string, snap *domain.CompetitionSnapshot) error
	UpsertOpportunity(ctx context.Context, topicID string, opp *domain.Opportunity) error
	PhaseCounts(ctx context.Context) (map[string]int, error)
	DeactivateStaleTopics(ctx context.Context, cutoff time.Time) (int64, error)
}

// RedditSource collects rising posts for the configured subreddits.
type RedditSource interface {
	Collect(ctx context.Context, subs []collect.SubredditConfig) ([]domain.RawItem, error)
}

// HNSource collects top Hacker News stories.
type HNSource interface {
	Collect(ctx context.Context) ([]domain.RawItem, error)
}

// TrendsSource collects trending searches for the configured geos.
type TrendsSource interface {
	Collect(ctx context.Context, geos []string) ([]domain.RawItem, error)
}

// CompetitionChecker measures YouTube supply for a keyword.
type CompetitionChecker interface {
	Enabled() bool
	CheckSupply(ctx context.Context, keyword string) (*domain.CompetitionSnapshot, error)
}

// SnapshotCache is the optional Redis-backed competition cache.
type SnapshotCache interface {
	Get(ctx context.Context, topicKey string) (*domain.CompetitionSnapshot, bool)
	Set(ctx context.Context, topicKey string, snap *domain.CompetitionSnapshot) error
}

// Config tunes one runner.
type Config struct {
	// CompetitionTopK is how many topics, ranked by momentum, get a
	// competition check each scan.
	CompetitionTopK int
}

// Runner executes scans.
type Runner struct {
	store   Store
	reddit  RedditSource
	hn      HNSource
	trends  TrendsSource
	checker CompetitionChecker
	cache   SnapshotCache
	engine  *engine.Engine
	topK    int
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewRunner(store Store, reddit RedditSource, hn HNSource, trends TrendsSource,
	checker CompetitionChecker, cache SnapshotCache, eng *engine.Engine,
	cfg Config, logger *zerolog.Logger,
) *Runner {
	topK := cfg.CompetitionTopK
	if topK <= 0 {
		topK = defaultCompetitionTopK
	}

	return &Runner{
		store:   store,
		reddit:  reddit,
		hn:      hn,
		trends:  trends,
		checker: checker,
		cache:   cache,
		engine:  eng,
		topK:    topK,
		logger:  logger,
		now:     time.Now,
	}
}

type reconciledTopic struct {
	topic    *domain.Topic
	id       string
	momentum float64
}

// Run executes one scan. The scan_log row is opened before collection and
// always closed, completed or failed, before Run returns.
func (r *Runner) Run(ctx context.Context) (domain.ScanStats, error) {
	startedAt := r.now().UTC()

	scanID, err := r.store.StartScan(ctx, startedAt)
	if err != nil {
		return domain.ScanStats{}, fmt.Errorf("open scan log: %w", err)
	}

	stats, err := r.run(ctx, &scanStatsCollector{})
	stats.Duration = r.now().UTC().Sub(startedAt)

	if err != nil {
		observability.ScansTotal.WithLabelValues(db.ScanStatusFailed).Inc()

		if failErr := r.store.FailScan(ctx, scanID, err, r.now().UTC()); failErr != nil {
			r.logger.Error().Err(failErr).Str("scan_id", scanID).Msg("failed to mark scan failed")
		}

		return stats, err
	}

	observability.ScansTotal.WithLabelValues(db.ScanStatusCompleted).Inc()
	observability.ScanDurationSeconds.Observe(stats.Duration.Seconds())

	if err := r.store.CompleteScan(ctx, scanID, stats, r.now().UTC()); err != nil {
		return stats, fmt.Errorf("close scan log: %w", err)
	}

	r.logger.Info().
		Int("topics_detected", stats.TopicsDetected).
		Int("topics_updated", stats.TopicsUpdated).
		Int("opportunities", stats.OpportunitiesCreated).
		Dur("duration", stats.Duration).
		Msg("scan completed")

	return stats, nil
}

// scanStatsCollector accumulates counters while stages run.
type scanStatsCollector struct {
	stats domain.ScanStats
}

func (r *Runner) run(ctx context.Context, sc *scanStatsCollector) (domain.ScanStats, error) {
	items, err := r.collectAll(ctx, sc)
	if err != nil {
		return sc.stats, err
	}

	topics := r.engine.BuildTopics(items)
	sc.stats.TopicsDetected = topics.Len()
	observability.TopicsDetected.Set(float64(topics.Len()))

	reconciled := r.persistTopics(ctx, topics, sc)

	snapshots := r.checkCompetition(ctx, reconciled, sc)

	now := r.now().UTC()

	for _, rt := range reconciled {
		snap := snapshots[rt.topic.Key]

		opp := r.engine.ScoreTopic(rt.topic, snap, now)

		if err := r.store.UpsertOpportunity(ctx, rt.id, &opp); err != nil {
			r.logger.Warn().Err(err).Str("topic", rt.topic.Key).Msg("opportunity upsert failed, skipping topic")
			observability.TopicErrorsTotal.Inc()

			continue
		}

		sc.stats.OpportunitiesCreated++
	}

	if _, err := r.store.DeactivateStaleTopics(ctx, now.Add(-staleTopicAge)); err != nil {
		r.logger.Warn().Err(err).Msg("stale topic sweep failed")
	}

	r.publishPhaseGauges(ctx)

	return sc.stats, nil
}

func (r *Runner) collectAll(ctx context.Context, sc *scanStatsCollector) ([]domain.RawItem, error) {
	var (
		items     []domain.RawItem
		successes int
	)

	redditItems, err := r.collectReddit(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reddit collection failed")
		observability.CollectorErrors.WithLabelValues(string(domain.SourceReddit)).Inc()
	} else {
		successes++
		sc.stats.RedditPosts = len(redditItems)
		items = append(items, redditItems...)
	}

	hnItems, err := r.collectTimed(ctx, domain.SourceHackerNews, func(ctx context.Context) ([]domain.RawItem, error) {
		return r.hn.Collect(ctx)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("hackernews collection failed")
		observability.CollectorErrors.WithLabelValues(string(domain.SourceHackerNews)).Inc()
	} else {
		successes++
		sc.stats.HNStories = len(hnItems)
		items = append(items, hnItems...)
	}

	trendItems, err := r.collectTrends(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("trends collection failed")
		observability.CollectorErrors.WithLabelValues(string(domain.SourceGoogleTrend)).Inc()
	} else {
		successes++
		sc.stats.TrendQueries = len(trendItems)
		items = append(items, trendItems...)
	}

	if successes == 0 {
		return nil, ErrAllSourcesFailed
	}

	return items, nil
}

func (r *Runner) collectReddit(ctx context.Context) ([]domain.RawItem, error) {
	rows, err := r.store.ListSubreddits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subreddit config: %w", err)
	}

	subs := make([]collect.SubredditConfig, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, collect.SubredditConfig{
			Subreddit: row.Subreddit,
			Category:  row.Category,
			MinScore:  row.MinScore,
		})
	}

	return r.collectTimed(ctx, domain.SourceReddit, func(ctx context.Context) ([]domain.RawItem, error) {
		return r.reddit.Collect(ctx, subs)
	})
}

func (r *Runner) collectTrends(ctx context.Context) ([]domain.RawItem, error) {
	geos, err := r.store.ListSeedGeos(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seed geos: %w", err)
	}

	return r.collectTimed(ctx, domain.SourceGoogleTrend, func(ctx context.Context) ([]domain.RawItem, error) {
		return r.trends.Collect(ctx, geos)
	})
}

func (r *Runner) collectTimed(ctx context.Context, source domain.Source, fn func(ctx context.Context) ([]domain.RawItem, error)) ([]domain.RawItem, error) {
	start := r.now()

	items, err := fn(ctx)

	observability.CollectorDuration.WithLabelValues(string(source)).Observe(r.now().Sub(start).Seconds())

	if err != nil {
		return nil, err
	}

	observability.ItemsCollected.WithLabelValues(string(source)).Add(float64(len(items)))

	return items, nil
}

// persistTopics reconciles every topic, stores its mentions and signals,
// and returns the survivors ranked as-is. A failing topic is logged and
// dropped from the rest of the scan.
func (r *Runner) persistTopics(ctx context.Context, topics *engine.TopicMap, sc *scanStatsCollector) []reconciledTopic {
	now := r.now().UTC()

	var reconciled []reconciledTopic

	for _, topic := range topics.Topics() {
		rec, err := r.store.ReconcileTopic(ctx, topic, now)
		if err != nil {
			r.logger.Warn().Err(err).Str("topic", topic.Key).Msg("topic reconcile failed, skipping topic")
			observability.TopicErrorsTotal.Inc()

			continue
		}

		if !rec.Created {
			sc.stats.TopicsUpdated++
		}

		if err := r.store.SaveMentions(ctx, rec.ID, topic.Mentions); err != nil {
			r.logger.Warn().Err(err).Str("topic", topic.Key).Msg("mention save failed, skipping topic")
			observability.TopicErrorsTotal.Inc()

			continue
		}

		sum := engine.Aggregate(topic)
		momentum := engine.Momentum(sum)

		if err := r.store.SaveSignals(ctx, rec.ID, sum, momentum, now); err != nil {
			r.logger.Warn().Err(err).Str("topic", topic.Key).Msg("signal save failed, skipping topic")
			observability.TopicErrorsTotal.Inc()

			continue
		}

		reconciled = append(reconciled, reconciledTopic{topic: topic, id: rec.ID, momentum: momentum})
	}

	return reconciled
}

// checkCompetition resolves snapshots for the top-K topics by momentum.
// Cache hits cost nothing; misses hit YouTube and are written back to both
// the cache and the store. A missing snapshot is not an error, scoring
// treats it as favorable supply.
func (r *Runner) checkCompetition(ctx context.Context, reconciled []reconciledTopic, sc *scanStatsCollector) map[string]*domain.CompetitionSnapshot {
	ranked := make([]reconciledTopic, len(reconciled))
	copy(ranked, reconciled)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].momentum > ranked[j].momentum })

	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}

	snapshots := make(map[string]*domain.CompetitionSnapshot, len(ranked))

	for _, rt := range ranked {
		if snap, ok := r.cache.Get(ctx, rt.topic.Key); ok {
			observability.CompetitionCacheHits.Inc()
			observability.CompetitionChecks.WithLabelValues(resultCached).Inc()

			snapshots[rt.topic.Key] = snap

			continue
		}

		observability.CompetitionCacheMisses.Inc()

		if !r.checker.Enabled() {
			observability.CompetitionChecks.WithLabelValues(resultSkipped).Inc()

			continue
		}

		snap, err := r.checker.CheckSupply(ctx, rt.topic.Keyword)
		if err != nil {
			r.logger.Warn().Err(err).Str("topic", rt.topic.Key).Msg("competition check failed")
			observability.CompetitionChecks.WithLabelValues(resultFailed).Inc()

			continue
		}

		observability.CompetitionChecks.WithLabelValues(resultChecked).Inc()
		sc.stats.CompetitionChecks++
		snapshots[rt.topic.Key] = snap

		if err := r.cache.Set(ctx, rt.topic.Key, snap); err != nil {
			r.logger.Warn().Err(err).Str("topic", rt.topic.Key).Msg("competition cache write failed")
		}

		if err := r.store.SaveCompetitionSnapshot(ctx, rt.id, snap); err != nil {
			r.logger.Warn().Err(err).Str("topic", rt.topic.Key).Msg("competition snapshot save failed")
		}
	}

	return snapshots
}

func (r *Runner) publishPhaseGauges(ctx context.Context) {
	counts, err := r.store.PhaseCounts(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("phase count refresh failed")

		return
	}

	for _, phase := range []domain.Phase{
		domain.PhaseInnovation, domain.PhaseEmergence, domain.PhaseGrowth,
		domain.PhaseMaturity, domain.PhaseSaturated,
	} {
		observability.OpportunitiesByPhase.WithLabelValues(string(phase)).Set(float64(counts[string(phase)]))
	}
}
