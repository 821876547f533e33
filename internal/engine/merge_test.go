package engine

import (
	"reflect"
	"testing"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

func redditItem(title, category string, score, comments int) domain.RawItem {
	return domain.RawItem{
		Source:   domain.SourceReddit,
		Title:    title,
		Category: category,
		URL:      "https://reddit.com/r/test/1",
		Score:    score,
		Comments: comments,
	}
}

func TestTopicMap_Add_MergesAcrossSources(t *testing.T) {
	topics := NewTopicMap()
	topics.AddAll([]domain.RawItem{
		redditItem(`People love "Rust" now`, "tech", 120, 30),
		{
			Source: domain.SourceHackerNews,
			Title:  `Ask HN: why is "Rust" everywhere?`,
			URL:    "https://news.ycombinator.com/item?id=1",
			Score:  80,
		},
	})

	topic := topics.Get("rust")
	if topic == nil {
		t.Fatal("expected rust topic to exist")
	}

	if len(topic.Mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(topic.Mentions))
	}

	if topic.Mentions[0].Source != domain.SourceReddit || topic.Mentions[1].Source != domain.SourceHackerNews {
		t.Errorf("unexpected mention order: %+v", topic.Mentions)
	}
}

func TestTopicMap_Add_FirstSeenWins(t *testing.T) {
	topics := NewTopicMap()
	topics.Add(redditItem(`The "LocalLlama" community`, "tech", 10, 0))
	topics.Add(redditItem(`Why "localllama" matters`, "business", 20, 0))

	topic := topics.Get("localllama")
	if topic == nil {
		t.Fatal("expected topic to exist")
	}

	if topic.Keyword != "localllama" {
		t.Errorf("display keyword: got %q, expected first-seen form", topic.Keyword)
	}

	if topic.Category != "tech" {
		t.Errorf("category: got %q, expected first-seen %q", topic.Category, "tech")
	}
}

func TestTopicMap_Add_TrendQueryUsedDirectly(t *testing.T) {
	topics := NewTopicMap()
	topics.Add(domain.RawItem{
		Source:     domain.SourceGoogleTrend,
		Query:      "quantum batteries",
		TrendValue: 85,
		Breakout:   true,
	})

	topic := topics.Get("quantum batteries")
	if topic == nil {
		t.Fatal("expected trend topic to exist")
	}

	if topic.Category != "uncategorised" {
		t.Errorf("category: got %q, expected default", topic.Category)
	}

	if !topic.Mentions[0].Breakout {
		t.Error("expected breakout flag to carry through")
	}
}

func TestTopicMap_Add_DegenerateItemContributesNothing(t *testing.T) {
	topics := NewTopicMap()
	topics.Add(redditItem("ok", "tech", 500, 10))
	topics.Add(domain.RawItem{Source: domain.SourceGoogleTrend, Query: ""})
	topics.Add(domain.RawItem{Source: domain.SourceGoogleTrend, Query: "2025"})

	if topics.Len() != 0 {
		t.Errorf("expected empty map, got %d topics", topics.Len())
	}
}

func TestTopicMap_Deterministic(t *testing.T) {
	items := []domain.RawItem{
		redditItem(`Show HN: "DuckDB" in the browser`, "tech", 300, 40),
		{Source: domain.SourceHackerNews, Title: "DuckDB hits 1.0", Score: 250},
		{Source: domain.SourceGoogleTrend, Query: "duckdb", TrendValue: 60},
	}

	first := NewTopicMap()
	first.AddAll(items)

	second := NewTopicMap()
	second.AddAll(items)

	if !reflect.DeepEqual(first.Topics(), second.Topics()) {
		t.Error("identical input produced different topic maps")
	}
}

func TestTopicMap_Topics_PreservesDiscoveryOrder(t *testing.T) {
	topics := NewTopicMap()
	topics.Add(domain.RawItem{Source: domain.SourceGoogleTrend, Query: "zig lang"})
	topics.Add(domain.RawItem{Source: domain.SourceGoogleTrend, Query: "ada lang"})
	topics.Add(domain.RawItem{Source: domain.SourceGoogleTrend, Query: "zig lang"})

	got := topics.Topics()
	if len(got) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(got))
	}

	if got[0].Key != "zig lang" || got[1].Key != "ada lang" {
		t.Errorf("unexpected order: %q, %q", got[0].Key, got[1].Key)
	}
}
