// Package query implements the Query Planner: it turns a raw query
// string into the effective set of term ids to rank against, by splitting
// top-level alternatives on "|", tokenizing each with the index's
// persisted analyzer options, resolving against the terms table, and
// unioning in a regex-over-terms augmentation per alternative.
package query

import (
	"errors"
	"strings"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/store"
)

// ErrEmptyIndex is returned when the store has no documents at all.
var ErrEmptyIndex = errors.New("query: index is empty")

// ErrBadQuery is returned when the query string has no usable terms.
var ErrBadQuery = errors.New("query: no usable terms")

// ErrTokenizerMismatch is returned when the planner's analyzer options
// don't match the fingerprint the index was built with.
var ErrTokenizerMismatch = errors.New("query: tokenizer options do not match the index")

// Plan is the resolved output of Planner.Plan: the set of term ids to
// rank against, plus the original per-alternative token groups (kept for
// diagnostics and for --json output).
type Plan struct {
	TermIDs     []int64
	Alternative [][]string
}

// Planner resolves raw query strings against a store using a fixed set of
// analyzer options (the ones the index itself was built with).
type Planner struct {
	Store    *store.Store
	Analyzer analysis.Options
}

// Plan splits raw on top-level "|" alternatives, tokenizes and resolves
// each, and unions the result. Each alternative is also matched as a regex
// against the terms table via Store.MatchTermsRegex; a regex-compile
// failure is non-fatal and simply yields no augmentation for that
// alternative.
func (p *Planner) Plan(raw string) (Plan, error) {
	n, _, err := p.Store.Globals()
	if err != nil {
		return Plan{}, err
	}
	if n == 0 {
		return Plan{}, ErrEmptyIndex
	}

	if fp, ok, err := p.Store.AnalyzerFingerprint(); err == nil && ok {
		if fp != p.Analyzer.Fingerprint() {
			return Plan{}, ErrTokenizerMismatch
		}
	}

	alts := strings.Split(raw, "|")
	seen := make(map[int64]bool)
	var termIDs []int64
	var groups [][]string

	for _, alt := range alts {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		tokens := analysis.Tokenize(alt, p.Analyzer)
		groups = append(groups, tokens)

		for _, tok := range tokens {
			id, ok, err := p.Store.GetTermID(tok)
			if err != nil {
				return Plan{}, err
			}
			if !ok {
				continue
			}
			if !seen[id] {
				seen[id] = true
				termIDs = append(termIDs, id)
			}
		}

		// Regex augmentation: a bare alternative is also tried as a regex
		// against the literal term text, so "pars.*" matches "parse" and
		// "parsing" even though neither is produced by tokenization.
		if ids, err := p.Store.MatchTermsRegex(alt); err == nil {
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					termIDs = append(termIDs, id)
				}
			}
		}
		// A regex compile error is intentionally swallowed: it just means
		// this alternative contributes no regex-matched terms.
	}

	if len(termIDs) == 0 {
		return Plan{}, ErrBadQuery
	}

	return Plan{TermIDs: termIDs, Alternative: groups}, nil
}
