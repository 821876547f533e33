package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// ErrScanNotFound is returned when no scan run has been recorded.
var ErrScanNotFound = errors.New("scan not found")

// ScanRow is one scan_log row.
type ScanRow struct {
	ID                   string
	Status               string
	StartedAt            time.Time
	CompletedAt          time.Time
	RedditPosts          int
	HNStories            int
	TrendQueries         int
	TopicsDetected       int
	TopicsUpdated        int
	CompetitionChecks    int
	OpportunitiesCreated int
	DurationSeconds      float64
	Error                string
}

// StartScan opens a scan_log row in the running state and returns its id.
func (db *DB) StartScan(ctx context.Context, startedAt time.Time) (string, error) {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO scan_log (status, started_at)
		VALUES ($1, $2)
		RETURNING id
	`, ScanStatusRunning, toTimestamptz(startedAt)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("start scan: %w", err)
	}

	return fromUUID(id), nil
}

// CompleteScan closes a scan_log row with its final counters.
func (db *DB) CompleteScan(ctx context.Context, id string, stats domain.ScanStats, completedAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_log
		SET status = $2,
		    completed_at = $3,
		    reddit_posts = $4,
		    hn_stories = $5,
		    trend_queries = $6,
		    topics_detected = $7,
		    topics_updated = $8,
		    competition_checks = $9,
		    opportunities_created = $10,
		    duration_seconds = $11
		WHERE id = $1
	`, toUUID(id), ScanStatusCompleted, toTimestamptz(completedAt),
		safeIntToInt32(stats.RedditPosts), safeIntToInt32(stats.HNStories), safeIntToInt32(stats.TrendQueries),
		safeIntToInt32(stats.TopicsDetected), safeIntToInt32(stats.TopicsUpdated),
		safeIntToInt32(stats.CompetitionChecks), safeIntToInt32(stats.OpportunitiesCreated),
		stats.Duration.Seconds())
	if err != nil {
		return fmt.Errorf("complete scan %s: %w", id, err)
	}

	return nil
}

// FailScan marks a scan_log row failed with the captured error.
func (db *DB) FailScan(ctx context.Context, id string, scanErr error, completedAt time.Time) error {
	msg := ""
	if scanErr != nil {
		msg = scanErr.Error()
	}

	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_log
		SET status = $2,
		    completed_at = $3,
		    error = $4
		WHERE id = $1
	`, toUUID(id), ScanStatusFailed, toTimestamptz(completedAt), toText(msg))
	if err != nil {
		return fmt.Errorf("fail scan %s: %w", id, err)
	}

	return nil
}

// HasRunningScan reports whether a scan is currently in progress.
func (db *DB) HasRunningScan(ctx context.Context) (bool, error) {
	var running bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM scan_log WHERE status = $1)
	`, ScanStatusRunning).Scan(&running)
	if err != nil {
		return false, fmt.Errorf("check running scan: %w", err)
	}

	return running, nil
}

// LastScan returns the most recently started scan run.
func (db *DB) LastScan(ctx context.Context) (*ScanRow, error) {
	var (
		row                    ScanRow
		id                     pgtype.UUID
		startedAt, completedAt pgtype.Timestamptz
		errText                pgtype.Text
		counters               [7]int32
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, status, started_at, completed_at,
		       reddit_posts, hn_stories, trend_queries,
		       topics_detected, topics_updated, competition_checks, opportunities_created,
		       duration_seconds, error
		FROM scan_log
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&id, &row.Status, &startedAt, &completedAt,
		&counters[0], &counters[1], &counters[2],
		&counters[3], &counters[4], &counters[5], &counters[6],
		&row.DurationSeconds, &errText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScanNotFound
		}

		return nil, fmt.Errorf("last scan: %w", err)
	}

	row.ID = fromUUID(id)
	row.StartedAt = fromTimestamptz(startedAt)
	row.CompletedAt = fromTimestamptz(completedAt)
	row.RedditPosts = int(counters[0])
	row.HNStories = int(counters[1])
	row.TrendQueries = int(counters[2])
	row.TopicsDetected = int(counters[3])
	row.TopicsUpdated = int(counters[4])
	row.CompetitionChecks = int(counters[5])
	row.OpportunitiesCreated = int(counters[6])
	row.Error = fromText(errText)

	return &row, nil
}
