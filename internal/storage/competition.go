package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// ErrSnapshotNotFound is returned when a topic has no competition snapshot.
var ErrSnapshotNotFound = errors.New("competition snapshot not found")

// SaveCompetitionSnapshot stores the full snapshot document for a topic,
// replacing any previous one.
func (db *DB) SaveCompetitionSnapshot(ctx context.Context, topicID string, snap *domain.CompetitionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal competition snapshot: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO competition_snapshots (topic_id, snapshot, checked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (topic_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot,
		    checked_at = EXCLUDED.checked_at
	`, toUUID(topicID), payload, toTimestamptz(snap.CheckedAt))
	if err != nil {
		return fmt.Errorf("save competition snapshot for topic %s: %w", topicID, err)
	}

	return nil
}

// LatestCompetitionSnapshot returns the stored snapshot for a topic.
func (db *DB) LatestCompetitionSnapshot(ctx context.Context, topicID string) (*domain.CompetitionSnapshot, error) {
	var payload []byte

	err := db.Pool.QueryRow(ctx, `
		SELECT snapshot
		FROM competition_snapshots
		WHERE topic_id = $1
	`, toUUID(topicID)).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("load competition snapshot for topic %s: %w", topicID, err)
	}

	var snap domain.CompetitionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode competition snapshot for topic %s: %w", topicID, err)
	}

	return &snap, nil
}
