package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/scan"
	"github.com/HACKE-RC/sx/internal/store"
)

func setup(t *testing.T) (string, *store.Store, *scan.Scanner) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return root, s, scan.New(scan.DefaultOptions())
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runOpts() Options {
	return Options{Mode: Incremental, Workers: 2, Analyzer: analysis.DefaultOptions()}
}

func TestIndexIdempotent(t *testing.T) {
	root, s, scanner := setup(t)
	write(t, filepath.Join(root, "a.go"), "package main\nfunc parseRequest() {}\n")

	ctx := context.Background()
	r1, err := Run(ctx, s, scanner, root, runOpts())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if r1.FilesIndexed != 1 {
		t.Fatalf("first run indexed %d files, want 1", r1.FilesIndexed)
	}

	r2, err := Run(ctx, s, scanner, root, runOpts())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r2.FilesIndexed != 0 || r2.FilesSkipped != 1 {
		t.Fatalf("second run = %+v, want 0 indexed / 1 skipped (unchanged mtime+size)", r2)
	}

	if err := store.Audit(s); err != nil {
		t.Fatalf("Audit: %v", err)
	}
}

func TestFullEqualsIncrementalFromScratch(t *testing.T) {
	root, sInc, scanner := setup(t)
	write(t, filepath.Join(root, "a.go"), "package main\nfunc parseRequest() {}\n")
	write(t, filepath.Join(root, "b.go"), "package main\nfunc renderPage() {}\n")

	ctx := context.Background()
	if _, err := Run(ctx, sInc, scanner, root, runOpts()); err != nil {
		t.Fatalf("incremental run: %v", err)
	}
	nInc, sumInc, err := sInc.Globals()
	if err != nil {
		t.Fatal(err)
	}

	sFull, err := store.Open(filepath.Join(t.TempDir(), "full.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer sFull.Close()
	fullOpts := runOpts()
	fullOpts.Mode = Full
	if _, err := Run(ctx, sFull, scanner, root, fullOpts); err != nil {
		t.Fatalf("full run: %v", err)
	}
	nFull, sumFull, err := sFull.Globals()
	if err != nil {
		t.Fatal(err)
	}

	if nInc != nFull || sumInc != sumFull {
		t.Fatalf("incremental (N=%d,sumLen=%d) != full (N=%d,sumLen=%d)", nInc, sumInc, nFull, sumFull)
	}
}

func TestDeletionDecrementsN(t *testing.T) {
	root, s, scanner := setup(t)
	aPath := filepath.Join(root, "a.go")
	write(t, aPath, "package main\n")
	write(t, filepath.Join(root, "b.go"), "package main\n")

	ctx := context.Background()
	if _, err := Run(ctx, s, scanner, root, runOpts()); err != nil {
		t.Fatal(err)
	}
	n1, _, _ := s.Globals()
	if n1 != 2 {
		t.Fatalf("N after first run = %d, want 2", n1)
	}

	if err := os.Remove(aPath); err != nil {
		t.Fatal(err)
	}
	res, err := Run(ctx, s, scanner, root, runOpts())
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesDeleted != 1 {
		t.Fatalf("FilesDeleted = %d, want 1", res.FilesDeleted)
	}
	n2, _, _ := s.Globals()
	if n2 != 1 {
		t.Fatalf("N after deletion = %d, want 1", n2)
	}
}

func TestEmptyDocumentNotRetried(t *testing.T) {
	root, s, scanner := setup(t)
	write(t, filepath.Join(root, "empty.go"), "")

	ctx := context.Background()
	r1, err := Run(ctx, s, scanner, root, runOpts())
	if err != nil {
		t.Fatal(err)
	}
	if r1.FilesIndexed != 1 {
		t.Fatalf("FilesIndexed = %d, want 1 (empty file still counts as indexed)", r1.FilesIndexed)
	}

	meta, ok, err := s.GetDocMeta(filepath.Join(root, "empty.go"))
	if err != nil || !ok {
		t.Fatalf("GetDocMeta: ok=%v err=%v", ok, err)
	}
	if meta.Length != 0 {
		t.Fatalf("Length = %d, want 0", meta.Length)
	}

	r2, err := Run(ctx, s, scanner, root, runOpts())
	if err != nil {
		t.Fatal(err)
	}
	if r2.FilesIndexed != 0 || r2.FilesSkipped != 1 {
		t.Fatalf("second run = %+v, want empty doc skipped, not retried", r2)
	}
}
