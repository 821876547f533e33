package engine

import (
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected []string
	}{
		{
			name:     "quoted term wins highest priority",
			title:    `Show HN: I built a "Rust" parser`,
			expected: []string{"rust", "i built a rust parser"},
		},
		{
			name:     "capitalized run detected",
			title:    "Why Local Llama is eating the inference market for everyone involved",
			expected: []string{"why local llama"},
		},
		{
			name:     "short title used whole",
			title:    "Postgres vacuum tuning guide",
			expected: []string{"postgres", "postgres vacuum tuning guide"},
		},
		{
			name:     "boilerplate prefix stripped",
			title:    "TIL: the Antikythera Mechanism predicted eclipses",
			expected: []string{"antikythera mechanism", "the antikythera mechanism predicted eclipses"},
		},
		{
			name:     "empty title",
			title:    "",
			expected: nil,
		},
		{
			name:     "degenerate title yields nothing",
			title:    "ok",
			expected: nil,
		},
		{
			name:     "purely numeric candidates dropped",
			title:    "10000 2025",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.title)

			if len(got) != len(tt.expected) {
				t.Fatalf("ExtractKeywords(%q) = %v, expected %v", tt.title, got, tt.expected)
			}

			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("keyword %d: got %q, expected %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestExtractKeywords_LimitsToThree(t *testing.T) {
	title := `"First Thing" and "Second Thing" and "Third Thing" and "Fourth Thing"`

	got := ExtractKeywords(title)
	if len(got) != maxKeywordsPerTitle {
		t.Fatalf("expected %d keywords, got %d: %v", maxKeywordsPerTitle, len(got), got)
	}

	if got[0] != "first thing" || got[2] != "third thing" {
		t.Errorf("unexpected keyword order: %v", got)
	}
}

func TestExtractKeywords_DedupesCaseInsensitively(t *testing.T) {
	got := ExtractKeywords(`"Kubernetes" tips for Kubernetes admins who love Kubernetes dearly`)

	count := 0

	for _, k := range got {
		if k == "kubernetes" {
			count++
		}
	}

	if count != 1 {
		t.Errorf("expected kubernetes exactly once, got %v", got)
	}
}

func TestExtractKeywords_DropsShortCandidates(t *testing.T) {
	for _, k := range ExtractKeywords(`My "Go" app got fast`) {
		if k == "go" {
			t.Errorf("short candidate should have been dropped: %v", k)
		}
	}
}
