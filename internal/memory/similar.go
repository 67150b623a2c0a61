package memory

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultSimilarLimit bounds FindSimilarFixes.
const DefaultSimilarLimit = 3

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "not": true,
	"from": true, "this": true, "that": true, "was": true, "are": true,
	"error": true, "failed": true, "line": true,
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

// FindSimilarFixes returns stored fix entries whose error text shares the
// most tokens with errText, best match first.
func (s *Store) FindSimilarFixes(errText string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	return SimilarFixes(all, errText, limit), nil
}

// SimilarFixes ranks fix entries by token overlap with errText. Ties go to
// the more recent entry.
func SimilarFixes(all []Entry, errText string, limit int) []Entry {
	query := tokenize(errText)
	if len(query) == 0 {
		return nil
	}
	minOverlap := 2
	if len(query) < 3 {
		minOverlap = 1
	}

	type scored struct {
		entry Entry
		score int
		index int
	}
	var candidates []scored
	for i, e := range all {
		if e.Category != CategoryFix || e.Harmful() != nil {
			continue
		}
		haystack := e.Error
		if haystack == "" {
			haystack = e.Text
		}
		score := 0
		for tok := range tokenize(haystack) {
			if query[tok] {
				score++
			}
		}
		if score >= minOverlap {
			candidates = append(candidates, scored{entry: e, score: score, index: i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index > candidates[j].index
	})

	var out []Entry
	for _, c := range candidates {
		out = append(out, c.entry)
		if len(out) == limit {
			break
		}
	}
	return out
}
