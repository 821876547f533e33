// Package domain holds the core types shared between collectors, the
// scoring engine, and the storage layer.
package domain

import "time"

// Source identifies an external attention signal.
type Source string

const (
	SourceReddit      Source = "reddit"
	SourceHackerNews  Source = "hackernews"
	SourceGoogleTrend Source = "google_trends"
)

// RawItem is one externally observed mention, as produced by a collector.
// Trend items carry Query instead of Title and skip keyword extraction.
type RawItem struct {
	Source    Source
	Title     string
	Query     string
	Category  string
	URL       string
	CreatedAt time.Time

	// Discussion metrics (reddit, hackernews).
	Score     int
	Comments  int
	Subreddit string

	// Search-trend metrics (google_trends). TrendValue is clamped to
	// [0,100] by the collector; Breakout marks a qualitative surge.
	TrendValue float64
	Breakout   bool
}

// Text returns the string keyword extraction should run on.
func (it RawItem) Text() string {
	if it.Source == SourceGoogleTrend {
		return it.Query
	}

	return it.Title
}

// SourceMention is one source's observation of a topic.
type SourceMention struct {
	Source     Source
	URL        string
	Title      string
	Subreddit  string
	Score      int
	Comments   int
	TrendValue float64
	Breakout   bool
}

// Topic aggregates all mentions that share a canonical key within one scan.
// Keyword keeps the first-seen surface form; Category is first-seen and
// never reconciled against later mentions.
type Topic struct {
	Key      string
	Keyword  string
	Category string
	Mentions []SourceMention
}

// SignalSummary reduces a topic's mention list into per-source counters.
// Absent sources contribute zero, not null; zero means "no signal".
type SignalSummary struct {
	RedditScore    int
	RedditComments int
	RedditMentions int
	HNScore        int
	HNComments     int
	HNMentions     int
	TrendValue     float64
	TrendMentions  int
	Breakout       bool
}

// Sources returns the distinct source types that contributed to the summary.
func (s SignalSummary) Sources() []Source {
	out := make([]Source, 0, 3)

	if s.RedditMentions > 0 {
		out = append(out, SourceReddit)
	}

	if s.HNMentions > 0 {
		out = append(out, SourceHackerNews)
	}

	if s.TrendMentions > 0 {
		out = append(out, SourceGoogleTrend)
	}

	return out
}

// TopVideo is one competing video from a supply check, passed through to
// storage unmodified.
type TopVideo struct {
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title"`
	ChannelID   string  `json:"channel_id"`
	Views       int64   `json:"views"`
	Subscribers int64   `json:"subs"`
	AgeDays     int     `json:"age_days"`
	VPSRatio    float64 `json:"vps_ratio"`
}

// CompetitionSnapshot is the result of a competition check for one keyword.
// A nil snapshot means the check was skipped or failed; scoring treats that
// as low, favorable supply.
type CompetitionSnapshot struct {
	Keyword           string     `json:"keyword"`
	TotalResults      int64      `json:"total_results"`
	ResultsLast7Days  int        `json:"results_last_7_days"`
	ResultsLast30Days int        `json:"results_last_30_days"`
	ResultsLast90Days int        `json:"results_last_90_days"`
	AvgVideoAgeDays   float64    `json:"avg_video_age_days"`
	MedianVideoAge    int        `json:"median_video_age_days"`
	TitleMatchRatio   float64    `json:"title_match_ratio"`
	AvgChannelSubs    float64    `json:"avg_channel_subscribers"`
	MedianChannelSubs int64      `json:"median_channel_subscribers"`
	LargeChannelCount int        `json:"large_channel_count"`
	SmallChannelCount int        `json:"small_channel_count"`
	TopResults        []TopVideo `json:"top_results"`
	Outliers          []TopVideo `json:"outlier_videos"`
	CheckedAt         time.Time  `json:"checked_at"`
}

// Phase is the lifecycle label derived from gap and supply. It is
// re-evaluated fresh each scan and can move backward.
type Phase string

const (
	PhaseInnovation Phase = "innovation"
	PhaseEmergence  Phase = "emergence"
	PhaseGrowth     Phase = "growth"
	PhaseMaturity   Phase = "maturity"
	PhaseSaturated  Phase = "saturated"
)

// Confidence rates result reliability from source diversity and momentum.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Opportunity is the scored output record for one topic. It logically
// replaces the prior opportunity for the same topic on every scan.
type Opportunity struct {
	TopicKey     string
	Keyword      string
	Category     string
	Momentum     float64
	Supply       float64
	Gap          float64
	Phase        Phase
	Confidence   Confidence
	Sources      []Source
	CalculatedAt time.Time
}

// ScanStats are the aggregate counters reported by one scan run.
type ScanStats struct {
	RedditPosts          int
	HNStories            int
	TrendQueries         int
	TopicsDetected       int
	TopicsUpdated        int
	CompetitionChecks    int
	OpportunitiesCreated int
	Duration             time.Duration
}
