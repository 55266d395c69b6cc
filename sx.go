// Package sx implements the Engine facade that wires the tokenizer, file
// scanner, index store, indexer, query planner, ranker, and snippet
// builder into the two operations a caller actually needs: Index and
// Search. cmd/sx is a thin CLI shell over this package.
package sx

import (
	"context"
	"os"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/indexer"
	"github.com/HACKE-RC/sx/internal/query"
	"github.com/HACKE-RC/sx/internal/rank"
	"github.com/HACKE-RC/sx/internal/scan"
	"github.com/HACKE-RC/sx/internal/snippet"
	"github.com/HACKE-RC/sx/internal/store"
)

// Engine is a handle on one open index.
type Engine struct {
	store    *store.Store
	scanner  *scan.Scanner
	analyzer analysis.Options
}

// Open opens or creates the index database at indexPath.
func Open(indexPath string, analyzer analysis.Options, scanOpts scan.Options) (*Engine, error) {
	s, err := store.Open(indexPath)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    s,
		scanner:  scan.New(scanOpts),
		analyzer: analyzer,
	}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error { return e.store.Close() }

// IndexOptions configures one Index call.
type IndexOptions struct {
	Full     bool
	Workers  int
	Progress indexer.ProgressFunc
}

// Index scans root and updates the store, incrementally unless
// opts.Full is set.
func (e *Engine) Index(ctx context.Context, root string, opts IndexOptions) (indexer.Result, error) {
	mode := indexer.Incremental
	if opts.Full {
		mode = indexer.Full
	}
	return indexer.Run(ctx, e.store, e.scanner, root, indexer.Options{
		Mode:     mode,
		Workers:  opts.Workers,
		Analyzer: e.analyzer,
		Progress: opts.Progress,
	})
}

// SearchOptions configures one Search call.
type SearchOptions struct {
	K          int
	K1         float64
	B          float64
	PathBoost  float64
	PathFilter string
	ExtFilter  string
	Snippets   bool
}

// Hit is one ranked, optionally snippeted search result.
type Hit struct {
	Path    string         `json:"path"`
	Score   float64        `json:"score"`
	Line    int            `json:"line"`
	Snippet string         `json:"snippet"`
	Spans   []snippet.Span `json:"spans,omitempty"`
}

// Search runs queryStr through the query planner and ranker, returning the
// top results.
func (e *Engine) Search(queryStr string, opts SearchOptions) ([]Hit, error) {
	planner := &query.Planner{Store: e.store, Analyzer: e.analyzer}
	plan, err := planner.Plan(queryStr)
	if err != nil {
		return nil, err
	}

	var flatTerms []string
	termText := make(map[int64]string, len(plan.TermIDs))
	for _, group := range plan.Alternative {
		for _, tok := range group {
			flatTerms = append(flatTerms, tok)
			if id, ok, err := e.store.GetTermID(tok); err == nil && ok {
				termText[id] = tok
			}
		}
	}

	params := rank.DefaultParams()
	if opts.K > 0 {
		params.K = opts.K
	}
	if opts.K1 > 0 {
		params.K1 = opts.K1
	}
	if opts.B > 0 {
		params.B = opts.B
	}
	if opts.PathBoost > 0 {
		params.PathBoost = opts.PathBoost
	}
	params.PathFilter = opts.PathFilter
	params.ExtFilter = opts.ExtFilter

	results, err := rank.Rank(e.store, plan.TermIDs, termText, params)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{Path: r.Path, Score: r.Score}
		if opts.Snippets {
			if sn, ok := e.buildSnippet(r.Path, flatTerms); ok {
				hit.Line = sn.LineNumber
				hit.Snippet = sn.Line
				hit.Spans = sn.Spans
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (e *Engine) buildSnippet(path string, terms []string) (snippet.Snippet, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snippet.Snippet{}, false
	}
	return snippet.Build(string(data), terms)
}

// Status summarizes the currently open index, for the CLI's `status`
// subcommand.
type Status struct {
	Root       string
	Docs       int64
	AnalyzerFP string
}

// StatusOf reports the index's document count and recorded root.
func (e *Engine) StatusOf() (Status, error) {
	n, _, err := e.store.Globals()
	if err != nil {
		return Status{}, err
	}
	root, _, err := e.store.IndexedRoot()
	if err != nil {
		return Status{}, err
	}
	fp, _, err := e.store.AnalyzerFingerprint()
	if err != nil {
		return Status{}, err
	}
	return Status{Root: root, Docs: n, AnalyzerFP: fp}, nil
}

// Audit verifies the store's persistent invariants hold.
func (e *Engine) Audit() error { return store.Audit(e.store) }
