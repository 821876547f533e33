package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// ReconciledTopic is the outcome of a topic upsert.
type ReconciledTopic struct {
	ID      string
	Created bool
}

// SubredditRow is one row of the subreddit_config table.
type SubredditRow struct {
	Subreddit string
	Category  string
	MinScore  int
}

// ReconcileTopic inserts a topic by its canonical key or refreshes the
// existing row's last_seen_at. The same key always resolves to the same
// topic id regardless of which scan first observed it.
func (db *DB) ReconcileTopic(ctx context.Context, topic *domain.Topic, seenAt time.Time) (ReconciledTopic, error) {
	var (
		id      pgtype.UUID
		created bool
	)

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO topics (keyword, keyword_normalised, category, first_seen_at, last_seen_at, is_active)
		VALUES ($1, $2, $3, $4, $4, TRUE)
		ON CONFLICT (keyword_normalised) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at,
		    is_active = TRUE
		RETURNING id, (xmax = 0) AS created
	`, SanitizeUTF8(topic.Keyword), topic.Key, toText(topic.Category), toTimestamptz(seenAt)).Scan(&id, &created)
	if err != nil {
		return ReconciledTopic{}, fmt.Errorf("reconcile topic %q: %w", topic.Key, err)
	}

	return ReconciledTopic{ID: fromUUID(id), Created: created}, nil
}

// SaveMentions records the per-source evidence behind a topic. Re-observed
// mentions (same topic, source, and URL) are swallowed by the unique
// constraint so repeated scans stay idempotent.
func (db *DB) SaveMentions(ctx context.Context, topicID string, mentions []domain.SourceMention) error {
	for _, m := range mentions {
		metadata, err := json.Marshal(mentionMetadata(m))
		if err != nil {
			return fmt.Errorf("marshal mention metadata: %w", err)
		}

		_, err = db.Pool.Exec(ctx, `
			INSERT INTO topic_sources (topic_id, source, source_url, source_title, source_metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (topic_id, source, source_url) DO NOTHING
		`, toUUID(topicID), string(m.Source), SanitizeUTF8(m.URL), toText(m.Title), metadata)
		if err != nil {
			return fmt.Errorf("save mention for topic %s: %w", topicID, err)
		}
	}

	return nil
}

func mentionMetadata(m domain.SourceMention) map[string]any {
	meta := map[string]any{}

	switch m.Source {
	case domain.SourceReddit:
		meta["score"] = m.Score
		meta["comments"] = m.Comments
		meta["subreddit"] = m.Subreddit
	case domain.SourceHackerNews:
		meta["score"] = m.Score
		meta["comments"] = m.Comments
	case domain.SourceGoogleTrend:
		meta["trend_value"] = m.TrendValue
		meta["breakout"] = m.Breakout
	}

	return meta
}

// ListSubreddits returns the enabled subreddit watch list.
func (db *DB) ListSubreddits(ctx context.Context) ([]SubredditRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT subreddit, category, min_score
		FROM subreddit_config
		WHERE enabled
		ORDER BY subreddit
	`)
	if err != nil {
		return nil, fmt.Errorf("list subreddits: %w", err)
	}
	defer rows.Close()

	var subs []SubredditRow

	for rows.Next() {
		var (
			row      SubredditRow
			category pgtype.Text
			minScore int32
		)

		if err := rows.Scan(&row.Subreddit, &category, &minScore); err != nil {
			return nil, fmt.Errorf("scan subreddit row: %w", err)
		}

		row.Category = fromText(category)
		row.MinScore = int(minScore)
		subs = append(subs, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subreddit rows: %w", err)
	}

	return subs, nil
}

// ListSeedGeos returns the enabled Google Trends geo codes.
func (db *DB) ListSeedGeos(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT value
		FROM seed_keywords
		WHERE kind = 'geo' AND enabled
		ORDER BY value
	`)
	if err != nil {
		return nil, fmt.Errorf("list seed geos: %w", err)
	}
	defer rows.Close()

	var geos []string

	for rows.Next() {
		var geo string
		if err := rows.Scan(&geo); err != nil {
			return nil, fmt.Errorf("scan seed geo: %w", err)
		}

		geos = append(geos, geo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed geos: %w", err)
	}

	return geos, nil
}

// DeactivateStaleTopics marks topics not seen since the cutoff as inactive
// and returns how many rows changed.
func (db *DB) DeactivateStaleTopics(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE topics
		SET is_active = FALSE
		WHERE is_active AND last_seen_at < $1
	`, toTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deactivate stale topics: %w", err)
	}

	return tag.RowsAffected(), nil
}
