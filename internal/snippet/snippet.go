// Package snippet implements the Snippet Builder: given a document's text
// and the set of matched terms, it finds the single best line to show in
// search results.
package snippet

import (
	"strings"
)

// Span marks the byte offsets of one matched-term occurrence within Line.
type Span struct {
	Start, End int
}

// Snippet is the best matching line of a document.
type Snippet struct {
	LineNumber int // 1-based
	Line       string
	Spans      []Span
}

// Build scans text line by line and returns the line on which the most
// distinct terms occur as whole words (case-insensitive). Ties are broken
// by preferring the earliest line. Spans lists every whole-word occurrence
// on the chosen line. Returns ok=false if no line matches.
func Build(text string, terms []string) (Snippet, bool) {
	if len(terms) == 0 {
		return Snippet{}, false
	}
	lowerTerms := make([]string, len(terms))
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}

	lines := strings.Split(text, "\n")

	best := Snippet{}
	bestCount := 0
	found := false

	for i, line := range lines {
		lower := strings.ToLower(line)
		spans, distinct := matchSpans(line, lower, lowerTerms)
		if len(spans) == 0 {
			continue
		}
		if !found || distinct > bestCount {
			found = true
			bestCount = distinct
			best = Snippet{LineNumber: i + 1, Line: line, Spans: spans}
		}
	}

	return best, found
}

// matchSpans finds every whole-word occurrence of any term in lower,
// reporting offsets against the original-case line (same length, same
// byte offsets since lowercasing ASCII preserves length), along with the
// number of distinct terms that matched at least once.
func matchSpans(line, lower string, lowerTerms []string) ([]Span, int) {
	var spans []Span
	matched := make(map[string]bool)
	for _, term := range lowerTerms {
		if term == "" {
			continue
		}
		start := 0
		for {
			idx := strings.Index(lower[start:], term)
			if idx == -1 {
				break
			}
			abs := start + idx
			end := abs + len(term)
			if isWholeWord(lower, abs, end) {
				spans = append(spans, Span{Start: abs, End: end})
				matched[term] = true
			}
			start = abs + 1
			if start >= len(lower) {
				break
			}
		}
	}
	_ = line
	return spans, len(matched)
}

func isWholeWord(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}
