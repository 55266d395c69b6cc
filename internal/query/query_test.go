package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/store"
)

func newTestStoreWithTerms(t *testing.T, terms ...string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	docID, err := s.UpsertDocument("doc.go", 1, 1, len(terms))
	if err != nil {
		t.Fatal(err)
	}
	tf := make(map[int64]int, len(terms))
	for _, term := range terms {
		tid, err := s.InternTerm(term)
		if err != nil {
			t.Fatal(err)
		}
		tf[tid]++
	}
	if err := s.WritePostings(docID, tf); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPlanUnionsAlternatives(t *testing.T) {
	s := newTestStoreWithTerms(t, "parse", "render", "commit")
	p := &Planner{Store: s, Analyzer: analysis.DefaultOptions()}

	plan, err := p.Plan("parse | commit")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.TermIDs) != 2 {
		t.Fatalf("TermIDs = %v, want 2 resolved terms", plan.TermIDs)
	}
	if len(plan.Alternative) != 2 {
		t.Fatalf("Alternative groups = %v, want 2", plan.Alternative)
	}
}

func TestPlanBadQuery(t *testing.T) {
	s := newTestStoreWithTerms(t, "parse")
	p := &Planner{Store: s, Analyzer: analysis.DefaultOptions()}

	_, err := p.Plan("zzzznotpresent")
	if err != ErrBadQuery {
		t.Fatalf("Plan error = %v, want ErrBadQuery", err)
	}
}

func TestPlanTokenizerMismatch(t *testing.T) {
	s := newTestStoreWithTerms(t, "parse")
	built := analysis.Options{Stem: false, Stopwords: true}
	if err := s.SetAnalyzerFingerprint(built.Fingerprint()); err != nil {
		t.Fatal(err)
	}

	mismatched := analysis.Options{Stem: true, Stopwords: true}
	p := &Planner{Store: s, Analyzer: mismatched}

	_, err := p.Plan("parse")
	if err != ErrTokenizerMismatch {
		t.Fatalf("Plan error = %v, want ErrTokenizerMismatch", err)
	}
}

func TestPlanEmptyIndex(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	p := &Planner{Store: s, Analyzer: analysis.DefaultOptions()}

	_, err = p.Plan("parse")
	if err != ErrEmptyIndex {
		t.Fatalf("Plan error = %v, want ErrEmptyIndex", err)
	}
}
