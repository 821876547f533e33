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
	hnBaseURL         = "https://hacker-news.firebaseio.com/v0"
	hnDefaultTimeout  = 30 * time.Second
	hnDefaultRPS      = 5.0
	hnTopStoryLimit   = 30
	hnDefaultMinScore = 50
	hnItemURLFmt      = "https://news.ycombinator.com/item?id=%d"
	hnCategory        = "tech"
	hnStoryType       = "story"
)

var errHNUnexpectedStatus = errors.New("hackernews unexpected status")

// HNCollector fetches top stories from the Hacker News Firebase API.
type HNCollector struct {
	baseURL     string
	minScore    int
	limit       int
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zerolog.Logger
}

// HNConfig configures the Hacker News collector.
type HNConfig struct {
	MinScore int
	Limit    int
	Timeout  time.Duration
	RPS      float64
}

func NewHNCollector(cfg HNConfig, logger *zerolog.Logger) *HNCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = hnDefaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = hnDefaultRPS
	}

	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = hnDefaultMinScore
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = hnTopStoryLimit
	}

	return &HNCollector{
		baseURL:     hnBaseURL,
		minScore:    minScore,
		limit:       limit,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger,
	}
}

type hnItem struct {
	ID          int64  `json:"id"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
	TypeName    string `json:"type"`
	Title       string `json:"title"`
}

// Collect fetches the current top stories and keeps those above the score
// threshold. Individual story fetch failures are logged and skipped.
func (c *HNCollector) Collect(ctx context.Context) ([]domain.RawItem, error) {
	ids, err := c.topStoryIDs(ctx)
	if err != nil {
		return nil, err
	}

	if len(ids) > c.limit {
		ids = ids[:c.limit]
	}

	var items []domain.RawItem

	for _, id := range ids {
		story, err := c.fetchItem(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return items, err
			}

			c.logger.Warn().Err(err).Int64("story_id", id).Msg("hackernews story fetch failed")

			continue
		}

		if story.TypeName != hnStoryType || story.Score < c.minScore || story.Title == "" {
			continue
		}

		items = append(items, domain.RawItem{
			Source:    domain.SourceHackerNews,
			Title:     story.Title,
			Category:  hnCategory,
			URL:       fmt.Sprintf(hnItemURLFmt, story.ID),
			CreatedAt: time.Unix(story.Time, 0).UTC(),
			Score:     story.Score,
			Comments:  story.Descendants,
		})
	}

	return items, nil
}

func (c *HNCollector) topStoryIDs(ctx context.Context) ([]int64, error) {
	body, err := c.get(ctx, c.baseURL+"/topstories.json")
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("parse top stories: %w", err)
	}

	return ids, nil
}

func (c *HNCollector) fetchItem(ctx context.Context, id int64) (*hnItem, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id))
	if err != nil {
		return nil, err
	}

	var item hnItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("parse story %d: %w", id, err)
	}

	item.ID = id

	return &item, nil
}

func (c *HNCollector) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("hackernews rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create hackernews request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hackernews request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errHNUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read hackernews response: %w", err)
	}

	return body, nil
}
