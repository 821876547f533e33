// Package collect contains the network collectors that retrieve raw items
// from each attention source. Collectors are the only components that talk
// to upstream services; the scoring engine consumes their already-fetched
// records and never performs I/O itself.
package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

const (
	redditBaseURL        = "https://www.reddit.com"
	redditDefaultTimeout = 30 * time.Second
	redditDefaultRPS     = 1.0
	redditListingLimit   = 25
	defaultUserAgent     = "nicheradar/1.0"
)

var errRedditUnexpectedStatus = errors.New("reddit unexpected status")

// SubredditConfig selects one subreddit to watch, usually loaded from the
// subreddit_config table.
type SubredditConfig struct {
	Subreddit string
	Category  string
	MinScore  int
}

// RedditCollector fetches rising posts from configured subreddits.
type RedditCollector struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zerolog.Logger
}

// RedditConfig configures the Reddit collector.
type RedditConfig struct {
	UserAgent string
	Timeout   time.Duration
	RPS       float64
}

func NewRedditCollector(cfg RedditConfig, logger *zerolog.Logger) *RedditCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = redditDefaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = redditDefaultRPS
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &RedditCollector{
		baseURL:     redditBaseURL,
		userAgent:   ua,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Permalink   string  `json:"permalink"`
				Subreddit   string  `json:"subreddit"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Collect fetches rising posts for every configured subreddit. A failing
// subreddit is logged and skipped; the collector only errors when no
// subreddit could be fetched at all.
func (c *RedditCollector) Collect(ctx context.Context, subs []SubredditConfig) ([]domain.RawItem, error) {
	var (
		items   []domain.RawItem
		failed  int
		lastErr error
	)

	for _, sub := range subs {
		posts, err := c.collectSubreddit(ctx, sub)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return items, err
			}

			c.logger.Warn().Err(err).Str("subreddit", sub.Subreddit).Msg("reddit collection failed")

			failed++
			lastErr = err

			continue
		}

		c.logger.Debug().Str("subreddit", sub.Subreddit).Int("posts", len(posts)).Msg("reddit subreddit collected")

		items = append(items, posts...)
	}

	if len(subs) > 0 && failed == len(subs) {
		return nil, fmt.Errorf("all subreddits failed: %w", lastErr)
	}

	return items, nil
}

func (c *RedditCollector) collectSubreddit(ctx context.Context, sub SubredditConfig) ([]domain.RawItem, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reddit rate limit: %w", err)
	}

	url := fmt.Sprintf("%s/r/%s/rising.json?limit=%d", c.baseURL, sub.Subreddit, redditListingLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create reddit request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errRedditUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reddit response: %w", err)
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("parse reddit response: %w", err)
	}

	var items []domain.RawItem

	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Score < sub.MinScore {
			continue
		}

		items = append(items, domain.RawItem{
			Source:    domain.SourceReddit,
			Title:     p.Title,
			Category:  sub.Category,
			URL:       "https://reddit.com" + p.Permalink,
			CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
			Score:     p.Score,
			Comments:  p.NumComments,
			Subreddit: p.Subreddit,
		})
	}

	return items, nil
}
