package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndPostingsInvariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	docID, err := s.UpsertDocument("a.go", 100.0, 20, 4)
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	parseID, err := s.InternTerm("parse")
	if err != nil {
		t.Fatalf("InternTerm: %v", err)
	}
	requestID, err := s.InternTerm("request")
	if err != nil {
		t.Fatalf("InternTerm: %v", err)
	}

	if err := s.WritePostings(docID, map[int64]int{parseID: 3, requestID: 1}); err != nil {
		t.Fatalf("WritePostings: %v", err)
	}

	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := Audit(s); err != nil {
		t.Fatalf("Audit: %v", err)
	}

	n, sumLen, err := s.Globals()
	if err != nil {
		t.Fatalf("Globals: %v", err)
	}
	if n != 1 || sumLen != 4 {
		t.Fatalf("Globals = (%d, %d), want (1, 4)", n, sumLen)
	}
}

func TestDeleteDocumentDecrementsDF(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	doc1, err := s.UpsertDocument("a.go", 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := s.UpsertDocument("b.go", 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	termID, err := s.InternTerm("shared")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WritePostings(doc1, map[int64]int{termID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.WritePostings(doc2, map[int64]int{termID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	if df, err := s.DF(termID); err != nil || df != 2 {
		t.Fatalf("DF before delete = %d, %v, want 2", df, err)
	}

	if err := s.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(doc1); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	if df, err := s.DF(termID); err != nil || df != 1 {
		t.Fatalf("DF after delete = %d, %v, want 1", df, err)
	}
	n, _, err := s.Globals()
	if err != nil || n != 1 {
		t.Fatalf("Globals N after delete = %d, %v, want 1", n, err)
	}
	if err := Audit(s); err != nil {
		t.Fatalf("Audit after delete: %v", err)
	}
}

func TestMatchTermsRegex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InternTerm("parse"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InternTerm("parsing"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InternTerm("render"); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	ids, err := s.MatchTermsRegex("^pars")
	if err != nil {
		t.Fatalf("MatchTermsRegex: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("MatchTermsRegex matched %d terms, want 2", len(ids))
	}

	if _, err := s.MatchTermsRegex("("); err == nil {
		t.Fatal("expected an error for an invalid regex")
	}
}
