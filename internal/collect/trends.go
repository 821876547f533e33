package collect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

const (
	trendsBaseURL        = "https://trends.google.com/trending/rss"
	trendsDefaultTimeout = 30 * time.Second
	trendsDefaultRPS     = 0.5
	trendsExtNamespace   = "ht"
	trendsExtTraffic     = "approx_traffic"
	breakoutLiteral      = "Breakout"
)

// TrendsCollector fetches daily trending searches per configured geo from
// the Google Trends RSS feed.
type TrendsCollector struct {
	baseURL     string
	parser      *gofeed.Parser
	rateLimiter *rate.Limiter
	timeout     time.Duration
	logger      *zerolog.Logger
}

// TrendsConfig configures the trends collector.
type TrendsConfig struct {
	Timeout time.Duration
	RPS     float64
}

func NewTrendsCollector(cfg TrendsConfig, logger *zerolog.Logger) *TrendsCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = trendsDefaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = trendsDefaultRPS
	}

	parser := gofeed.NewParser()
	parser.UserAgent = defaultUserAgent

	return &TrendsCollector{
		baseURL:     trendsBaseURL,
		parser:      parser,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout:     timeout,
		logger:      logger,
	}
}

// Collect fetches trending queries for every configured geo. A failing geo
// is logged and skipped; the collector only errors when every geo fails.
func (c *TrendsCollector) Collect(ctx context.Context, geos []string) ([]domain.RawItem, error) {
	var (
		items   []domain.RawItem
		failed  int
		lastErr error
	)

	for _, geo := range geos {
		queries, err := c.collectGeo(ctx, geo)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return items, err
			}

			c.logger.Warn().Err(err).Str("geo", geo).Msg("trends collection failed")

			failed++
			lastErr = err

			continue
		}

		items = append(items, queries...)
	}

	if len(geos) > 0 && failed == len(geos) {
		return nil, fmt.Errorf("all trend geos failed: %w", lastErr)
	}

	return items, nil
}

func (c *TrendsCollector) collectGeo(ctx context.Context, geo string) ([]domain.RawItem, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("trends rate limit: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	feed, err := c.parser.ParseURLWithContext(fmt.Sprintf("%s?geo=%s", c.baseURL, geo), fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parse trends feed for %s: %w", geo, err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))

	for _, entry := range feed.Items {
		if entry.Title == "" {
			continue
		}

		value, breakout := c.parseTrendValue(entry.Title, trafficExtension(entry))

		items = append(items, domain.RawItem{
			Source:     domain.SourceGoogleTrend,
			Query:      entry.Title,
			URL:        entry.Link,
			CreatedAt:  entryPublished(entry),
			TrendValue: value,
			Breakout:   breakout,
		})
	}

	return items, nil
}

// parseTrendValue converts a trend's traffic annotation into a clamped
// 0-100 value. The literal "Breakout" marks a qualitative surge and forces
// the maximum; any other non-numeric annotation scores zero, logged at
// debug level so silent data loss stays visible.
func (c *TrendsCollector) parseTrendValue(query, raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}

	if raw == breakoutLiteral {
		return maxTrendContribution, true
	}

	count, err := parseTrafficCount(raw)
	if err != nil {
		c.logger.Debug().Str("query", query).Str("value", raw).Msg("unparseable trend value, scoring zero")

		return 0, false
	}

	return trafficTier(count), false
}

const maxTrendContribution = 100

// parseTrafficCount parses annotations like "200K+", "1M+", or "20,000+".
func parseTrafficCount(raw string) (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(raw, "+"))
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1e3
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1e6
		s = strings.TrimSuffix(s, "M")
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse traffic count %q: %w", raw, err)
	}

	return n * multiplier, nil
}

// trafficTier maps an absolute search count onto the 0-100 scale the
// momentum scorer expects.
func trafficTier(count float64) float64 {
	switch {
	case count >= 2e6:
		return 100
	case count >= 1e6:
		return 95
	case count >= 500e3:
		return 90
	case count >= 200e3:
		return 80
	case count >= 100e3:
		return 70
	case count >= 50e3:
		return 60
	case count >= 20e3:
		return 50
	case count >= 10e3:
		return 40
	case count >= 5e3:
		return 30
	case count >= 1e3:
		return 20
	default:
		return 10
	}
}

func trafficExtension(entry *gofeed.Item) string {
	ns, ok := entry.Extensions[trendsExtNamespace]
	if !ok {
		return ""
	}

	values, ok := ns[trendsExtTraffic]
	if !ok || len(values) == 0 {
		return ""
	}

	return strings.TrimSpace(values[0].Value)
}

func entryPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}

	if entry.Published != "" {
		if t, err := dateparse.ParseAny(entry.Published); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}
