package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ErrWatchNotFound is returned when a watchlist entry does not exist.
var ErrWatchNotFound = errors.New("watchlist entry not found")

// WatchRow is one watched topic.
type WatchRow struct {
	ID        string
	TopicID   string
	Keyword   string
	Note      string
	CreatedAt time.Time
}

// AddWatch puts a topic on the watchlist. Watching an already-watched topic
// refreshes its note.
func (db *DB) AddWatch(ctx context.Context, topicID, note string) (string, error) {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO watchlist (topic_id, note)
		VALUES ($1, $2)
		ON CONFLICT (topic_id) DO UPDATE
		SET note = EXCLUDED.note
		RETURNING id
	`, toUUID(topicID), toText(note)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("add watch for topic %s: %w", topicID, err)
	}

	return fromUUID(id), nil
}

// ListWatchlist returns watched topics, newest first.
func (db *DB) ListWatchlist(ctx context.Context) ([]WatchRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT w.id, w.topic_id, t.keyword, w.note, w.created_at
		FROM watchlist w
		JOIN topics t ON t.id = w.topic_id
		ORDER BY w.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var watches []WatchRow

	for rows.Next() {
		var (
			row         WatchRow
			id, topicID pgtype.UUID
			note        pgtype.Text
			createdAt   pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &topicID, &row.Keyword, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}

		row.ID = fromUUID(id)
		row.TopicID = fromUUID(topicID)
		row.Note = fromText(note)
		row.CreatedAt = fromTimestamptz(createdAt)
		watches = append(watches, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist rows: %w", err)
	}

	return watches, nil
}

// RemoveWatch takes a topic off the watchlist.
func (db *DB) RemoveWatch(ctx context.Context, topicID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM watchlist WHERE topic_id = $1
	`, toUUID(topicID))
	if err != nil {
		return fmt.Errorf("remove watch for topic %s: %w", topicID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrWatchNotFound
	}

	return nil
}
