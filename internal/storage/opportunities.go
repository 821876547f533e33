package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// ErrOpportunityNotFound is returned when no opportunity matches the id.
var ErrOpportunityNotFound = errors.New("opportunity not found")

// OpportunityRecord is a stored opportunity with its row identity.
type OpportunityRecord struct {
	ID      string
	TopicID string
	domain.Opportunity
}

// OpportunityFilter narrows ListOpportunities. Zero values mean "no filter".
type OpportunityFilter struct {
	Phase    string
	Category string
	MinGap   float64
	Limit    int
}

const defaultOpportunityLimit = 50

// UpsertOpportunity replaces the stored opportunity for a topic with a
// freshly scored one. One topic holds exactly one current opportunity.
func (db *DB) UpsertOpportunity(ctx context.Context, topicID string, opp *domain.Opportunity) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO opportunities (
			topic_id, keyword, category,
			momentum, supply, gap, phase, confidence, sources, calculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (topic_id) DO UPDATE
		SET keyword = EXCLUDED.keyword,
		    category = EXCLUDED.category,
		    momentum = EXCLUDED.momentum,
		    supply = EXCLUDED.supply,
		    gap = EXCLUDED.gap,
		    phase = EXCLUDED.phase,
		    confidence = EXCLUDED.confidence,
		    sources = EXCLUDED.sources,
		    calculated_at = EXCLUDED.calculated_at
	`, toUUID(topicID), SanitizeUTF8(opp.Keyword), toText(opp.Category),
		opp.Momentum, opp.Supply, opp.Gap, string(opp.Phase), string(opp.Confidence),
		sourceStrings(opp.Sources), toTimestamptz(opp.CalculatedAt))
	if err != nil {
		return fmt.Errorf("upsert opportunity for topic %s: %w", topicID, err)
	}

	return nil
}

// ListOpportunities returns opportunities ranked by gap, best first.
func (db *DB) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]OpportunityRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOpportunityLimit
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT o.id, o.topic_id, t.keyword_normalised,
		       o.keyword, o.category,
		       o.momentum, o.supply, o.gap, o.phase, o.confidence, o.sources, o.calculated_at
		FROM opportunities o
		JOIN topics t ON t.id = o.topic_id
		WHERE ($1 = '' OR o.phase = $1)
		  AND ($2 = '' OR o.category = $2)
		  AND o.gap >= $3
		ORDER BY o.gap DESC, o.calculated_at DESC
		LIMIT $4
	`, filter.Phase, filter.Category, filter.MinGap, limit)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var records []OpportunityRecord

	for rows.Next() {
		rec, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}

	return records, nil
}

// GetOpportunity returns one opportunity by its row id.
func (db *DB) GetOpportunity(ctx context.Context, id string) (*OpportunityRecord, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT o.id, o.topic_id, t.keyword_normalised,
		       o.keyword, o.category,
		       o.momentum, o.supply, o.gap, o.phase, o.confidence, o.sources, o.calculated_at
		FROM opportunities o
		JOIN topics t ON t.id = o.topic_id
		WHERE o.id = $1
	`, toUUID(id))

	rec, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOpportunityNotFound
		}

		return nil, fmt.Errorf("get opportunity %s: %w", id, err)
	}

	return &rec, nil
}

// PhaseCounts returns how many opportunities sit in each phase.
func (db *DB) PhaseCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT phase, COUNT(*)
		FROM opportunities
		GROUP BY phase
	`)
	if err != nil {
		return nil, fmt.Errorf("count opportunities by phase: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			phase string
			n     int64
		)

		if err := rows.Scan(&phase, &n); err != nil {
			return nil, fmt.Errorf("scan phase count: %w", err)
		}

		counts[phase] = int(n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase counts: %w", err)
	}

	return counts, nil
}

// CountActiveTopics returns the number of currently active topics.
func (db *DB) CountActiveTopics(ctx context.Context) (int, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM topics WHERE is_active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active topics: %w", err)
	}

	return int(n), nil
}

func scanOpportunity(row pgx.Row) (OpportunityRecord, error) {
	var (
		rec          OpportunityRecord
		id, topicID  pgtype.UUID
		category     pgtype.Text
		phase        string
		confidence   string
		sources      []string
		calculatedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &topicID, &rec.TopicKey,
		&rec.Keyword, &category,
		&rec.Momentum, &rec.Supply, &rec.Gap, &phase, &confidence, &sources, &calculatedAt)
	if err != nil {
		return OpportunityRecord{}, err
	}

	rec.ID = fromUUID(id)
	rec.TopicID = fromUUID(topicID)
	rec.Category = fromText(category)
	rec.Phase = domain.Phase(phase)
	rec.Confidence = domain.Confidence(confidence)
	rec.CalculatedAt = fromTimestamptz(calculatedAt)

	rec.Sources = make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		rec.Sources = append(rec.Sources, domain.Source(s))
	}

	return rec, nil
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, string(s))
	}

	return out
}
