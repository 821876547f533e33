package engine

import (
	"github.com/nicheradar/nicheradar/internal/core/domain"
)

// TopicMap folds extracted keywords into canonical topics for the duration
// of one scan. It is exclusively owned by one scan execution; create a fresh
// map per scan instead of sharing one across runs.
type TopicMap struct {
	topics map[string]*domain.Topic
	order  []string
}

// NewTopicMap returns an empty per-scan topic map.
func NewTopicMap() *TopicMap {
	return &TopicMap{topics: make(map[string]*domain.Topic)}
}

// Add merges one raw item into the map. Titles go through keyword
// extraction; trend queries are already keyword-shaped and are used
// directly. Every valid extracted keyword appends exactly one mention.
func (m *TopicMap) Add(item domain.RawItem) {
	for _, keyword := range itemKeywords(item) {
		key := CanonicalKey(keyword)
		if !ValidKey(key) {
			continue
		}

		topic, ok := m.topics[key]
		if !ok {
			topic = &domain.Topic{
				Key:      key,
				Keyword:  keyword,
				Category: itemCategory(item),
			}
			m.topics[key] = topic
			m.order = append(m.order, key)
		}

		topic.Mentions = append(topic.Mentions, mentionFromItem(item))
	}
}

// AddAll merges a batch of raw items.
func (m *TopicMap) AddAll(items []domain.RawItem) {
	for _, item := range items {
		m.Add(item)
	}
}

// Get returns the topic for a canonical key, or nil.
func (m *TopicMap) Get(key string) *domain.Topic {
	return m.topics[key]
}

// Len returns the number of distinct topics.
func (m *TopicMap) Len() int {
	return len(m.topics)
}

// Topics returns all topics in first-seen order.
func (m *TopicMap) Topics() []*domain.Topic {
	out := make([]*domain.Topic, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.topics[key])
	}

	return out
}

func itemKeywords(item domain.RawItem) []string {
	if item.Source == domain.SourceGoogleTrend {
		if item.Query == "" {
			return nil
		}

		return []string{item.Query}
	}

	return ExtractKeywords(item.Title)
}

func itemCategory(item domain.RawItem) string {
	if item.Category == "" {
		return "uncategorised"
	}

	return item.Category
}

func mentionFromItem(item domain.RawItem) domain.SourceMention {
	return domain.SourceMention{
		Source:     item.Source,
		URL:        item.URL,
		Title:      item.Text(),
		Subreddit:  item.Subreddit,
		Score:      item.Score,
		Comments:   item.Comments,
		TrendValue: item.TrendValue,
		Breakout:   item.Breakout,
	}
}
