// Package engine turns raw items from all sources into deduplicated,
// deterministically scored opportunity records. It is a pure batch
// transform over fully materialized inputs: no I/O, no shared state, safe
// to re-run idempotently within a scan.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// Engine wires extraction, merging, aggregation, and scoring for one scan.
type Engine struct {
	logger *zerolog.Logger
}

// New creates an engine. The logger is only used to report isolated
// per-topic scoring failures and trend parse anomalies.
func New(logger *zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// BuildTopics folds all raw items into a fresh canonical topic map.
func (e *Engine) BuildTopics(items []domain.RawItem) *TopicMap {
	topics := NewTopicMap()
	topics.AddAll(items)

	return topics
}

// ScoreTopic computes the opportunity record for one topic given its
// optional competition snapshot. A failure while scoring a single topic is
// isolated: the topic falls back to zero momentum and low confidence so the
// scan can continue over the remaining topics.
func (e *Engine) ScoreTopic(topic *domain.Topic, snap *domain.CompetitionSnapshot, now time.Time) (opp domain.Opportunity) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("topic", topic.Keyword).
				Msg("topic scoring failed, defaulting to zero momentum")

			opp = fallbackOpportunity(topic, now)
		}
	}()

	sig := Aggregate(topic)
	momentum := Momentum(sig)
	supply := Supply(snap)
	gap := Gap(momentum, supply)
	sources := sig.Sources()

	return domain.Opportunity{
		TopicKey:     topic.Key,
		Keyword:      topic.Keyword,
		Category:     topic.Category,
		Momentum:     momentum,
		Supply:       supply,
		Gap:          gap,
		Phase:        ClassifyPhase(gap, supply),
		Confidence:   ClassifyConfidence(len(sources), momentum),
		Sources:      sources,
		CalculatedAt: now,
	}
}

func fallbackOpportunity(topic *domain.Topic, now time.Time) domain.Opportunity {
	supply := Supply(nil)

	return domain.Opportunity{
		TopicKey:     topic.Key,
		Keyword:      topic.Keyword,
		Category:     topic.Category,
		Momentum:     0,
		Supply:       supply,
		Gap:          0,
		Phase:        ClassifyPhase(0, supply),
		Confidence:   domain.ConfidenceLow,
		Sources:      nil,
		CalculatedAt: now,
	}
}
