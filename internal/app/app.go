// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Scan mode: run one scan and exit
//   - Worker mode: scan on a configured interval
//   - Serve mode: HTTP API plus health and metrics only
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/api"
	"github.com/nicheradar/nicheradar/internal/cache"
	"github.com/nicheradar/nicheradar/internal/collect"
	"github.com/nicheradar/nicheradar/internal/engine"
	"github.com/nicheradar/nicheradar/internal/platform/config"
	"github.com/nicheradar/nicheradar/internal/platform/observability"
	"github.com/nicheradar/nicheradar/internal/platform/worker"
	"github.com/nicheradar/nicheradar/internal/scan"
	db "github.com/nicheradar/nicheradar/internal/storage"
)

const (
	componentField = "component"
	scanWorkerName = "scan"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
	runner   *scan.Runner
	snapshot *cache.CompetitionCache
}

// New creates a new App instance with the given dependencies.
func New(ctx context.Context, cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	redditLogger := logger.With().Str(componentField, "reddit").Logger()
	hnLogger := logger.With().Str(componentField, "hackernews").Logger()
	trendsLogger := logger.With().Str(componentField, "trends").Logger()
	youtubeLogger := logger.With().Str(componentField, "youtube").Logger()
	cacheLogger := logger.With().Str(componentField, "cache").Logger()
	engineLogger := logger.With().Str(componentField, "engine").Logger()
	runnerLogger := logger.With().Str(componentField, "scan").Logger()

	reddit := collect.NewRedditCollector(collect.RedditConfig{
		UserAgent: cfg.RedditUserAgent,
		Timeout:   cfg.RedditTimeout,
		RPS:       cfg.RedditRPS,
	}, &redditLogger)

	hn := collect.NewHNCollector(collect.HNConfig{
		MinScore: cfg.HNMinScore,
		Limit:    cfg.HNLimit,
		Timeout:  cfg.HNTimeout,
		RPS:      cfg.HNRPS,
	}, &hnLogger)

	trends := collect.NewTrendsCollector(collect.TrendsConfig{
		Timeout: cfg.TrendsTimeout,
		RPS:     cfg.TrendsRPS,
	}, &trendsLogger)

	checker := collect.NewYouTubeChecker(collect.YouTubeConfig{
		APIKey:  cfg.YouTubeAPIKey,
		Timeout: cfg.YouTubeTimeout,
		RPS:     cfg.YouTubeRPS,
	}, &youtubeLogger)

	snapshot := cache.NewCompetitionCache(ctx, cfg.RedisAddr, cfg.CompetitionCacheTTL, &cacheLogger)

	runner := scan.NewRunner(database, reddit, hn, trends, checker, snapshot,
		engine.New(&engineLogger),
		scan.Config{CompetitionTopK: cfg.CompetitionTopK},
		&runnerLogger)

	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
		runner:   runner,
		snapshot: snapshot,
	}
}

// Close releases resources held outside the database pool.
func (a *App) Close() {
	if err := a.snapshot.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("competition cache close failed")
	}
}

// StartHealthServer starts the health, metrics, and API server.
func (a *App) StartHealthServer(ctx context.Context) error {
	apiLogger := a.logger.With().Str(componentField, "api").Logger()

	handler := api.NewHandler(a.database, a.triggerScan, &apiLogger)

	srv := observability.NewServerWithAPI(a.database, a.cfg.HealthPort, handler, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// triggerScan launches a scan in the background on behalf of the API. The
// scan is detached from the request context so a closed connection does not
// abort it.
func (a *App) triggerScan() {
	go func() {
		if _, err := a.runner.Run(context.Background()); err != nil {
			a.logger.Error().Err(err).Msg("triggered scan failed")
		}
	}()
}

// RunScan runs a single scan and returns.
func (a *App) RunScan(ctx context.Context) error {
	a.logger.Info().Msg("Starting scan mode")

	if _, err := a.runner.Run(ctx); err != nil {
		return fmt.Errorf("scan run: %w", err)
	}

	return nil
}

// RunWorker scans on the configured interval until the context is canceled.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Dur("interval", a.cfg.ScanInterval).Msg("Starting worker mode")

	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:       scanWorkerName,
		Interval:   a.cfg.ScanInterval,
		RunOnStart: true,
		OnTick: func(ctx context.Context) {
			if _, err := a.runner.Run(ctx); err != nil {
				a.logger.Error().Err(err).Msg("scheduled scan failed")
			}
		},
		Logger: a.logger,
	})
}

// RunServe serves the API without scanning. Scans can still be triggered
// through the API.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Msg("Starting serve mode")

	<-ctx.Done()

	return ctx.Err()
}
