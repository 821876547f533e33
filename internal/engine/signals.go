package engine

import (
	"github.com/nicheradar/nicheradar/internal/core/domain"
)

const maxTrendValue = 100

// Aggregate reduces a topic's mention list into per-source counters. For
// search-trend mentions it keeps the maximum observed trend value and ORs
// breakout flags; a single breakout mention forces the trend contribution to
// its maximum regardless of the numeric value.
func Aggregate(topic *domain.Topic) domain.SignalSummary {
	var sum domain.SignalSummary

	for _, m := range topic.Mentions {
		switch m.Source {
		case domain.SourceReddit:
			sum.RedditScore += m.Score
			sum.RedditComments += m.Comments
			sum.RedditMentions++
		case domain.SourceHackerNews:
			sum.HNScore += m.Score
			sum.HNComments += m.Comments
			sum.HNMentions++
		case domain.SourceGoogleTrend:
			sum.TrendMentions++

			if m.TrendValue > sum.TrendValue {
				sum.TrendValue = m.TrendValue
			}

			if m.Breakout {
				sum.Breakout = true
			}
		}
	}

	if sum.Breakout || sum.TrendValue > maxTrendValue {
		sum.TrendValue = maxTrendValue
	}

	if sum.TrendValue < 0 {
		sum.TrendValue = 0
	}

	return sum
}
