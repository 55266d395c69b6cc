// Package analysis implements the tokenization pipeline shared by indexing
// and querying: identifier splitting, stopword removal, and a light
// deterministic stemmer.
//
// ═══════════════════════════════════════════════════════════════════════════════
// ANALYSIS PIPELINE
// ═══════════════════════════════════════════════════════════════════════════════
//  1. Raw token extraction  → maximal runs of [A-Za-z0-9_]
//  2. Identifier splitting  → underscores, camelCase/PascalCase, digit/letter
//  3. Lowercasing           → normalize case
//  4. Stopword removal      → optional, default on
//  5. Stemming              → optional, default off
//
// Unlike a generic word tokenizer, this one is built for source identifiers:
// "parseHTTPRequest" must yield "parsehttprequest", "parse", "http", and
// "request" so that a search for "http" finds it.
// ═══════════════════════════════════════════════════════════════════════════════
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Options controls the tokenization pipeline. It is persisted alongside the
// index (see Options.Fingerprint) so a query can detect a mismatch against
// the options the index was built with.
type Options struct {
	Stem      bool
	Stopwords bool
}

// DefaultOptions matches spec.md: stopwords on, stemming off.
func DefaultOptions() Options {
	return Options{Stem: false, Stopwords: true}
}

// Fingerprint returns a stable short string identifying these options, for
// storage in the index's meta table.
func (o Options) Fingerprint() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("stem=%v;stopwords=%v;v1", o.Stem, o.Stopwords)))
	return hex.EncodeToString(h[:8])
}

// Tokenize runs the full pipeline over text and returns terms in input
// order. It is a pure function: the same (text, opts) always yields the
// same output.
func Tokenize(text string, opts Options) []string {
	raw := extractRuns(text)

	out := make([]string, 0, len(raw)*2)
	for _, token := range raw {
		out = append(out, expand(token)...)
	}

	out = lowercaseAll(out)

	if opts.Stopwords {
		out = removeStopwords(out)
	}

	if opts.Stem {
		out = stemAll(out)
	}

	return out
}

// extractRuns pulls maximal [A-Za-z0-9_] runs out of text, in order.
func extractRuns(text string) []string {
	var runs []string
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			runs = append(runs, text[start:i])
			start = -1
		}
	}
	if start != -1 {
		runs = append(runs, text[start:])
	}
	return runs
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// expand emits the lowercased whole token plus its identifier-split
// sub-tokens, without duplicating a sub-token equal to the whole token.
func expand(token string) []string {
	whole := strings.ToLower(token)
	parts := splitIdentifier(token)

	if len(parts) == 1 && strings.ToLower(parts[0]) == whole {
		return []string{whole}
	}

	out := make([]string, 0, len(parts)+1)
	out = append(out, whole)
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p))
	}
	return out
}

// splitIdentifier splits an identifier on underscores, camelCase/PascalCase
// boundaries (including acronym runs: "HTTPServer" -> "HTTP", "Server"),
// and digit<->letter boundaries.
func splitIdentifier(token string) []string {
	// First split on underscores.
	var segments []string
	for _, seg := range strings.Split(token, "_") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil
	}

	var out []string
	for _, seg := range segments {
		out = append(out, splitCamelAndDigits(seg)...)
	}
	return out
}

// splitCamelAndDigits splits a single underscore-free segment on
// camelCase/PascalCase and digit/letter boundaries.
func splitCamelAndDigits(seg string) []string {
	runes := []rune(seg)
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]

		boundary := false
		switch {
		case isLower(prev) && isUpper(cur):
			// lowercase -> uppercase: "parseHTTP" | at parse/HTTP
			boundary = true
		case isUpper(prev) && isUpper(cur) && i+1 < len(runes) && isLower(runes[i+1]):
			// acronym run followed by a new word: "HTTPServer" | at HTTP/Server
			boundary = true
		case isDigit(prev) != isDigit(cur) && (isLetter(prev) || isLetter(cur)):
			// digit<->letter boundary
			boundary = true
		}

		if boundary {
			out = append(out, string(runes[start:i]))
			start = i
		}
	}
	out = append(out, string(runes[start:]))
	return out
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return isLower(r) || isUpper(r) }

func lowercaseAll(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, t := range tokens {
		r[i] = strings.ToLower(t)
	}
	return r
}

func removeStopwords(tokens []string) []string {
	r := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := englishStopwords[t]; !stop {
			r = append(r, t)
		}
	}
	return r
}

// stemAll applies the light suffix stemmer to every token.
func stemAll(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, t := range tokens {
		r[i] = Stem(t)
	}
	return r
}

// Stem applies a deterministic light stemmer: strip "-ing", "-ed", "-es",
// "-s" in that order, each only when the residue would still be at least
// 3 characters long. Intentionally simpler than a full Porter2/Snowball
// stemmer: predictable suffix stripping keeps code identifiers like "ids"
// or "args" from being mangled into nonsense roots.
func Stem(token string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}
