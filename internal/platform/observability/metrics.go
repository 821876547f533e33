package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_items_collected_total",
		Help: "The total number of raw items collected per source",
	}, []string{"source"})

	CollectorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_collector_errors_total",
		Help: "The total number of collector failures per source",
	}, []string{"source"})

	CollectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_collector_duration_seconds",
		Help:    "Duration of collector runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_scans_total",
		Help: "The total number of scan runs by outcome",
	}, []string{"status"})

	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_scan_duration_seconds",
		Help:    "Duration in seconds of a full scan run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	TopicsDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radar_topics_detected",
		Help: "Number of topics detected in the most recent scan",
	})

	OpportunitiesByPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radar_opportunities_by_phase",
		Help: "Current number of opportunities per lifecycle phase",
	}, []string{"phase"})

	CompetitionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_competition_checks_total",
		Help: "Total number of competition checks by result",
	}, []string{"result"})

	CompetitionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_competition_cache_hits_total",
		Help: "Total number of competition cache hits",
	})

	CompetitionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_competition_cache_misses_total",
		Help: "Total number of competition cache misses",
	})

	TopicErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_topic_errors_total",
		Help: "Total number of topics skipped because of store or scoring errors",
	})
)
