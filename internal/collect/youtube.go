package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

const (
	youtubeBaseURL        = "https://www.googleapis.com/youtube/v3"
	youtubeDefaultTimeout = 30 * time.Second
	youtubeDefaultRPS     = 2.0
	youtubeSearchLimit    = 50
	youtubeKeepTop        = 10

	largeChannelSubs = 100000
	smallChannelSubs = 10000
	outlierVPSRatio  = 5.0
	outlierMaxAge    = 90
)

var (
	errYouTubeUnexpectedStatus = errors.New("youtube unexpected status")

	// ErrYouTubeDisabled is returned when no API key is configured; callers
	// treat it as "no snapshot" rather than a failure.
	ErrYouTubeDisabled = errors.New("youtube checks disabled")
)

// YouTubeChecker measures video supply for a keyword through the Data API:
// one search call, then batched video and channel stat lookups.
type YouTubeChecker struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zerolog.Logger
	now         func() time.Time
}

// YouTubeConfig configures the competition checker. An empty APIKey
// disables it.
type YouTubeConfig struct {
	APIKey  string
	Timeout time.Duration
	RPS     float64
}

func NewYouTubeChecker(cfg YouTubeConfig, logger *zerolog.Logger) *YouTubeChecker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = youtubeDefaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = youtubeDefaultRPS
	}

	if cfg.APIKey == "" {
		logger.Warn().Msg("youtube api key not set, competition checks disabled")
	}

	return &YouTubeChecker{
		baseURL:     youtubeBaseURL,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger,
		now:         time.Now,
	}
}

// Enabled reports whether an API key is configured.
func (c *YouTubeChecker) Enabled() bool {
	return c.apiKey != ""
}

type ytSearchResponse struct {
	PageInfo struct {
		TotalResults int64 `json:"totalResults"`
	} `json:"pageInfo"`
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			ChannelID   string    `json:"channelId"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type ytChannelsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// CheckSupply analyses YouTube competition for one keyword. It returns
// ErrYouTubeDisabled when no API key is configured.
func (c *YouTubeChecker) CheckSupply(ctx context.Context, keyword string) (*domain.CompetitionSnapshot, error) {
	if !c.Enabled() {
		return nil, ErrYouTubeDisabled
	}

	search, err := c.search(ctx, keyword)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.CompetitionSnapshot{
		Keyword:      keyword,
		TotalResults: search.PageInfo.TotalResults,
		CheckedAt:    c.now().UTC(),
	}

	if len(search.Items) == 0 {
		snapshot.TotalResults = 0

		return snapshot, nil
	}

	videoIDs := make([]string, 0, len(search.Items))
	channelSet := make(map[string]struct{}, len(search.Items))
	channelIDs := make([]string, 0, len(search.Items))

	for _, item := range search.Items {
		videoIDs = append(videoIDs, item.ID.VideoID)

		if _, seen := channelSet[item.Snippet.ChannelID]; !seen {
			channelSet[item.Snippet.ChannelID] = struct{}{}
			channelIDs = append(channelIDs, item.Snippet.ChannelID)
		}
	}

	if len(channelIDs) > youtubeSearchLimit {
		channelIDs = channelIDs[:youtubeSearchLimit]
	}

	videos, err := c.videoStats(ctx, videoIDs)
	if err != nil {
		return nil, err
	}

	channelSubs, err := c.channelSubs(ctx, channelIDs)
	if err != nil {
		return nil, err
	}

	c.analyse(snapshot, keyword, videos, channelSubs)

	return snapshot, nil
}

func (c *YouTubeChecker) analyse(snap *domain.CompetitionSnapshot, keyword string, videos *ytVideosResponse, channelSubs map[string]int64) {
	now := c.now().UTC()
	keywordLower := strings.ToLower(keyword)

	var (
		results      []domain.TopVideo
		outliers     []domain.TopVideo
		titleMatches int
		ages         []int
		subsSizes    []int64
	)

	for _, video := range videos.Items {
		views, _ := strconv.ParseInt(video.Statistics.ViewCount, 10, 64)
		subs := channelSubs[video.Snippet.ChannelID]
		ageDays := int(now.Sub(video.Snippet.PublishedAt.UTC()).Hours() / 24)

		if strings.Contains(strings.ToLower(video.Snippet.Title), keywordLower) {
			titleMatches++
		}

		ages = append(ages, ageDays)
		subsSizes = append(subsSizes, subs)

		vps := math.Round(float64(views)/float64(subs+1)*100) / 100

		tv := domain.TopVideo{
			VideoID:     video.ID,
			Title:       video.Snippet.Title,
			ChannelID:   video.Snippet.ChannelID,
			Views:       views,
			Subscribers: subs,
			AgeDays:     ageDays,
			VPSRatio:    vps,
		}

		if subs < smallChannelSubs && vps > outlierVPSRatio && ageDays < outlierMaxAge {
			outliers = append(outliers, tv)
		}

		results = append(results, tv)
	}

	snap.ResultsLast7Days = countAgedWithin(ages, 7)
	snap.ResultsLast30Days = countAgedWithin(ages, 30)
	snap.ResultsLast90Days = countAgedWithin(ages, 90)
	snap.AvgVideoAgeDays = avgInts(ages)
	snap.MedianVideoAge = medianInts(ages)
	snap.AvgChannelSubs = avgInt64s(subsSizes)
	snap.MedianChannelSubs = medianInt64s(subsSizes)

	if len(results) > 0 {
		snap.TitleMatchRatio = float64(titleMatches) / float64(len(results))
	}

	for _, subs := range subsSizes {
		if subs > largeChannelSubs {
			snap.LargeChannelCount++
		}

		if subs < smallChannelSubs {
			snap.SmallChannelCount++
		}
	}

	if len(results) > youtubeKeepTop {
		results = results[:youtubeKeepTop]
	}

	if len(outliers) > youtubeKeepTop {
		outliers = outliers[:youtubeKeepTop]
	}

	snap.TopResults = results
	snap.Outliers = outliers
}

func (c *YouTubeChecker) search(ctx context.Context, keyword string) (*ytSearchResponse, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(youtubeSearchLimit))
	params.Set("order", "relevance")

	var out ytSearchResponse
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", keyword, err)
	}

	return &out, nil
}

func (c *YouTubeChecker) videoStats(ctx context.Context, ids []string) (*ytVideosResponse, error) {
	params := url.Values{}
	params.Set("id", strings.Join(ids, ","))
	params.Set("part", "statistics,snippet")

	var out ytVideosResponse
	if err := c.get(ctx, "/videos", params, &out); err != nil {
		return nil, fmt.Errorf("youtube video stats: %w", err)
	}

	return &out, nil
}

func (c *YouTubeChecker) channelSubs(ctx context.Context, ids []string) (map[string]int64, error) {
	params := url.Values{}
	params.Set("id", strings.Join(ids, ","))
	params.Set("part", "statistics")

	var out ytChannelsResponse
	if err := c.get(ctx, "/channels", params, &out); err != nil {
		return nil, fmt.Errorf("youtube channel stats: %w", err)
	}

	subs := make(map[string]int64, len(out.Items))

	for _, ch := range out.Items {
		if ch.Statistics.HiddenSubscriberCount {
			subs[ch.ID] = 0

			continue
		}

		n, _ := strconv.ParseInt(ch.Statistics.SubscriberCount, 10, 64)
		subs[ch.ID] = n
	}

	return subs, nil
}

func (c *YouTubeChecker) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("youtube rate limit: %w", err)
	}

	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create youtube request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errYouTubeUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read youtube response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse youtube response: %w", err)
	}

	return nil
}

func countAgedWithin(ages []int, days int) int {
	var n int

	for _, age := range ages {
		if age <= days {
			n++
		}
	}

	return n
}

func avgInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}

	var sum int
	for _, v := range vals {
		sum += v
	}

	return float64(sum) / float64(len(vals))
}

func avgInt64s(vals []int64) float64 {
	if len(vals) == 0 {
		return 0
	}

	var sum int64
	for _, v := range vals {
		sum += v
	}

	return float64(sum) / float64(len(vals))
}

func medianInts(vals []int) int {
	if len(vals) == 0 {
		return 0
	}

	sorted := make([]int, len(vals))
	copy(sorted, vals)
	sort.Ints(sorted)

	return sorted[len(sorted)/2]
}

func medianInt64s(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}

	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[len(sorted)/2]
}
