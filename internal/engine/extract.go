package engine

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxKeywordsPerTitle = 3
	minKeywordLength    = 4
	wholeTitleMinWords  = 3
	wholeTitleMaxWords  = 6
)

var (
	boilerplatePrefixRe = regexp.MustCompile(`(?i)^(TIL|ELI5|CMV|TIFU|AMA|WIBTA|AITA|Show HN|Ask HN|Tell HN|Launch HN)\s*:?\s*`)
	quotedRe            = regexp.MustCompile(`"([^"]+)"`)
	capitalizedRunRe    = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`)
	nonWordRe           = regexp.MustCompile(`[^\w\s]`)
)

// matcher produces candidate keywords from a cleaned title. Matchers run in
// priority order and their outputs are concatenated before deduplication.
type matcher func(title string) []string

var matchers = []matcher{
	matchQuoted,
	matchCapitalizedRuns,
	matchWholeTitle,
}

// ExtractKeywords derives up to three candidate topic strings from one
// free-text title. Candidates are lower-cased, deduplicated
// case-insensitively within the title, and must be longer than three
// characters and not purely numeric. A title that matches nothing is not an
// error; the item simply contributes no topics.
func ExtractKeywords(title string) []string {
	if title == "" {
		return nil
	}

	cleaned := boilerplatePrefixRe.ReplaceAllString(title, "")

	var candidates []string
	for _, match := range matchers {
		candidates = append(candidates, match(cleaned)...)
	}

	return dedupeCandidates(candidates)
}

// matchQuoted collects double-quoted substrings verbatim. Quoted terms are
// explicit named entities and carry the highest extraction priority.
func matchQuoted(title string) []string {
	groups := quotedRe.FindAllStringSubmatch(title, -1)

	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g[1])
	}

	return out
}

// matchCapitalizedRuns collects maximal runs of one to four consecutive
// capitalized words, a cheap proper-noun and product-name detector.
func matchCapitalizedRuns(title string) []string {
	return capitalizedRunRe.FindAllString(title, -1)
}

// matchWholeTitle adds the punctuation-stripped title itself when it is
// short enough to be keyword-shaped (three to six words).
func matchWholeTitle(title string) []string {
	stripped := strings.TrimSpace(nonWordRe.ReplaceAllString(title, ""))
	if stripped == "" {
		return nil
	}

	words := strings.Fields(stripped)
	if len(words) < wholeTitleMinWords || len(words) > wholeTitleMaxWords {
		return nil
	}

	return []string{strings.Join(words, " ")}
}

func dedupeCandidates(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))

	var out []string

	for _, c := range candidates {
		k := strings.ToLower(strings.TrimSpace(c))
		if len(k) < minKeywordLength || allDigits(k) {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}

		out = append(out, k)
		if len(out) == maxKeywordsPerTitle {
			break
		}
	}

	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return s != ""
}
