package engine

import (
	"math"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// Momentum weights and caps. These are part of the output contract:
// changing them breaks comparability of scores across scans.
const (
	redditScoreCap  = 500.0
	redditWeight    = 40.0
	hnScoreCap      = 300.0
	hnWeight        = 30.0
	trendsWeight    = 30.0
	maxScore        = 100.0
	absentSupply    = 10.0
	largeChannelPts = 10.0
	largeChannelCap = 30.0
)

// Momentum converts aggregated counters into a 0-100 external-momentum
// score. Each channel is capped before summing; a channel with zero signal
// contributes zero, it is neither penalized nor imputed.
func Momentum(sig domain.SignalSummary) float64 {
	var score float64

	if sig.RedditScore > 0 {
		score += math.Min(float64(sig.RedditScore)/redditScoreCap, 1) * redditWeight
	}

	if sig.HNScore > 0 {
		score += math.Min(float64(sig.HNScore)/hnScoreCap, 1) * hnWeight
	}

	if sig.TrendValue > 0 {
		score += sig.TrendValue / maxTrendValue * trendsWeight
	}

	return clampScore(score)
}

// Supply converts a competition snapshot into a 0-100 supply score. A nil
// snapshot scores a fixed 10: absence of data is treated as low, favorable
// supply and must never penalize a topic. Tier boundaries are strictly
// greater-than.
func Supply(snap *domain.CompetitionSnapshot) float64 {
	if snap == nil {
		return absentSupply
	}

	score := totalResultsTier(snap.TotalResults)
	score += recentVelocityTier(snap.ResultsLast7Days)
	score += math.Min(float64(snap.LargeChannelCount)*largeChannelPts, largeChannelCap)

	return clampScore(score)
}

func totalResultsTier(total int64) float64 {
	switch {
	case total > 100000:
		return 40
	case total > 10000:
		return 30
	case total > 1000:
		return 20
	default:
		return 10
	}
}

func recentVelocityTier(recent int) float64 {
	switch {
	case recent > 50:
		return 30
	case recent > 20:
		return 20
	case recent > 5:
		return 10
	default:
		return 0
	}
}

// Gap discounts momentum by supply: gap = momentum * (1 - supply/100),
// rounded to two decimals. With both inputs in [0,100] the result is too.
func Gap(momentum, supply float64) float64 {
	gap := momentum * (1 - supply/maxScore)

	return math.Round(gap*100) / 100
}

// ClassifyPhase maps (gap, supply) onto one of five lifecycle phases. Rules
// are evaluated in strict priority order; the first match wins.
func ClassifyPhase(gap, supply float64) domain.Phase {
	switch {
	case gap >= 80 && supply < 20:
		return domain.PhaseInnovation
	case gap >= 60 && supply < 40:
		return domain.PhaseEmergence
	case gap >= 40:
		return domain.PhaseGrowth
	case gap >= 20:
		return domain.PhaseMaturity
	default:
		return domain.PhaseSaturated
	}
}

// ClassifyConfidence rates reliability from source diversity and momentum.
func ClassifyConfidence(sourceCount int, momentum float64) domain.Confidence {
	switch {
	case sourceCount >= 3 && momentum >= 70:
		return domain.ConfidenceHigh
	case sourceCount >= 2 && momentum >= 50:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}

	if s > maxScore {
		return maxScore
	}

	return s
}
