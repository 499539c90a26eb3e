package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is one searchable piece of text and how much a hit in it counts.
type Field struct {
	Text   string
	Weight float64
}

// LevenshteinDistance calculates the edit distance between two strings
// This measures how many single-character edits (insertions, deletions, or substitutions)
// are required to change one string into another
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalizeString(s1))
	r2 := []rune(normalizeString(s2))
	m, n := len(r1), len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rolling rows are enough.
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		cur[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[n]
}

// Threshold is the typo tolerance for a query of the given length.
func Threshold(query string) int {
	n := len([]rune(normalizeString(query)))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	}
	return 2
}

// FuzzyMatch checks if query fuzzy-matches text within a given threshold
// threshold is the maximum allowed edit distance
func FuzzyMatch(query, text string, threshold int) bool {
	query = normalizeString(query)
	text = normalizeString(text)
	if query == "" {
		return false
	}

	if strings.Contains(text, query) {
		return true
	}

	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) || LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}

	// Whole-text distance for short texts, more lenient for long queries.
	if len(text) < 50 {
		if LevenshteinDistance(query, text) <= threshold+len(query)/5 {
			return true
		}
	}
	return false
}

// Score rates how well query matches the weighted fields. Zero means no
// match. Substring hits beat whole-word fuzzy hits, which beat prefixes.
func Score(query string, fields ...Field) float64 {
	q := normalizeString(query)
	if q == "" {
		return 0
	}
	threshold := Threshold(q)

	score := 0.0
	for _, f := range fields {
		text := normalizeString(f.Text)
		if text == "" {
			continue
		}
		if strings.Contains(text, q) {
			score += f.Weight
			if containsWord(text, q) {
				score += f.Weight / 2
			}
			continue
		}
		best := 0.0
		for _, word := range strings.Fields(text) {
			if dist := LevenshteinDistance(q, word); dist <= threshold {
				s := f.Weight/2 - float64(dist)*f.Weight/7
				if s > best {
					best = s
				}
			}
			if strings.HasPrefix(word, q) && f.Weight*0.4 > best {
				best = f.Weight * 0.4
			}
		}
		score += best
	}
	return score
}

// Helper functions

// normalizeString lowercases, strips accents and collapses whitespace.
func normalizeString(s string) string {
	s = removeAccents(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// containsWord checks if text contains query as a whole word
func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if strings.Trim(word, ".,;:!?\"'()[]") == query {
			return true
		}
	}
	return false
}

// removeAccents removes diacritical marks from a string, so "café" and
// "Đà Nẵng" match "cafe" and "da nang".
func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	// đ has no decomposition.
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
}
