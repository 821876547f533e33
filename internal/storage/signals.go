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

// ErrSignalsNotFound is returned when a topic has no recorded signals yet.
var ErrSignalsNotFound = errors.New("signals not found")

// SignalRow is one per-scan signal snapshot for a topic.
type SignalRow struct {
	TopicID        string
	RedditScore    int
	RedditMentions int
	HNScore        int
	HNMentions     int
	TrendValue     float64
	TrendBreakout  bool
	Momentum       float64
	RecordedAt     time.Time
}

// SaveSignals appends the aggregated per-source counters for one scan.
func (db *DB) SaveSignals(ctx context.Context, topicID string, sum domain.SignalSummary, momentum float64, recordedAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO topic_signals (
			topic_id, reddit_total_score, reddit_mentions,
			hn_total_score, hn_mentions,
			trends_value, trends_breakout,
			momentum_score, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, toUUID(topicID),
		safeIntToInt32(sum.RedditScore), safeIntToInt32(sum.RedditMentions),
		safeIntToInt32(sum.HNScore), safeIntToInt32(sum.HNMentions),
		sum.TrendValue, sum.Breakout,
		momentum, toTimestamptz(recordedAt))
	if err != nil {
		return fmt.Errorf("save signals for topic %s: %w", topicID, err)
	}

	return nil
}

// LatestSignals returns the most recent signal row for a topic.
func (db *DB) LatestSignals(ctx context.Context, topicID string) (*SignalRow, error) {
	var (
		row        SignalRow
		recordedAt pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT reddit_total_score, reddit_mentions,
		       hn_total_score, hn_mentions,
		       trends_value, trends_breakout,
		       momentum_score, recorded_at
		FROM topic_signals
		WHERE topic_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, toUUID(topicID)).Scan(
		&row.RedditScore, &row.RedditMentions,
		&row.HNScore, &row.HNMentions,
		&row.TrendValue, &row.TrendBreakout,
		&row.Momentum, &recordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignalsNotFound
		}

		return nil, fmt.Errorf("latest signals for topic %s: %w", topicID, err)
	}

	row.TopicID = topicID
	row.RecordedAt = fromTimestamptz(recordedAt)

	return &row, nil
}
