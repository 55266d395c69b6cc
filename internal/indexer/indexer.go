// Package indexer implements the incremental indexing algorithm of
// spec.md §4.D: scan the tree, diff against stored (mtime, size) metadata,
// parse changed files in parallel, and commit the result through a single
// writer.
//
// The parallel-parse / serial-write split is grounded on the example
// pack's kadirpekel/hector workflowagent.runParallel (pkg/agent/
// workflowagent/parallel.go), which fans work out across goroutines via
// golang.org/x/sync/errgroup and funnels results back through a channel
// to one consumer. The progress-callback shape is grounded on the other
// example pack entry for a batch index builder (internal-index-builder.go:
// ProgressCallback func(done, total int, msg string)).
package indexer

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/scan"
	"github.com/HACKE-RC/sx/internal/store"
)

// Mode selects between a full rebuild and an incremental update.
type Mode int

const (
	Incremental Mode = iota
	Full
)

// ProgressFunc is called as files finish parsing. total is fixed for the
// run; done increases monotonically; path is the file just completed.
type ProgressFunc func(done, total int, path string)

// FileError records a single file's parse failure without aborting the
// whole run.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// Options configures one indexing run.
type Options struct {
	Mode     Mode
	Workers  int
	Analyzer analysis.Options
	Progress ProgressFunc
}

// Result summarizes a completed run.
type Result struct {
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	FilesDeleted int
	Errors       []*FileError
}

type parsedFile struct {
	path   string
	mtime  float64
	size   int64
	length int
	tf     map[string]int
	err    error
}

// Run performs one index pass over root into s, per the mode and
// concurrency in opts.
func Run(ctx context.Context, s *store.Store, scanner *scan.Scanner, root string, opts Options) (Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	var res Result

	if opts.Mode == Full {
		if err := s.Truncate(); err != nil {
			return res, fmt.Errorf("truncate for full reindex: %w", err)
		}
	}

	existing, err := s.AllPaths()
	if err != nil {
		return res, fmt.Errorf("load existing doc paths: %w", err)
	}

	type candidate struct {
		path  string
		mtime float64
		size  int64
	}
	var candidates []candidate
	seen := make(map[string]bool)

	walkErr := scanner.Walk(root, func(path string, info os.FileInfo) error {
		res.FilesScanned++
		seen[path] = true
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		size := info.Size()

		if opts.Mode == Incremental {
			if meta, ok, err := s.GetDocMeta(path); err == nil && ok {
				if meta.MTime == mtime && meta.Size == size {
					res.FilesSkipped++
					return nil
				}
			}
		}
		candidates = append(candidates, candidate{path, mtime, size})
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("scan %s: %w", root, walkErr)
	}

	// Deletions: anything previously indexed but no longer present on disk.
	var deleted []int64
	if opts.Mode == Incremental {
		for p, docID := range existing {
			if !seen[p] {
				deleted = append(deleted, docID)
			}
		}
	}

	total := len(candidates)
	parsed := make([]parsedFile, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	var mu sync.Mutex
	done := 0

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			pf := parseFile(c.path, c.mtime, c.size, opts.Analyzer)
			parsed[i] = pf

			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(d, total, c.path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("parse phase: %w", err)
	}

	if err := s.Begin(ctx); err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			s.Rollback()
		}
	}()

	if opts.Mode == Full {
		if err := s.Truncate(); err != nil {
			return res, fmt.Errorf("truncate for full reindex: %w", err)
		}
	}

	for _, docID := range deleted {
		if err := s.DeleteDocument(docID); err != nil {
			return res, fmt.Errorf("delete document %d: %w", docID, err)
		}
		res.FilesDeleted++
	}

	for _, pf := range parsed {
		if pf.err != nil {
			res.Errors = append(res.Errors, &FileError{Path: pf.path, Err: pf.err})
			continue
		}

		docID, err := s.UpsertDocument(pf.path, pf.mtime, pf.size, pf.length)
		if err != nil {
			return res, fmt.Errorf("upsert %s: %w", pf.path, err)
		}

		termIDs := make(map[int64]int, len(pf.tf))
		for term, tf := range pf.tf {
			tid, err := s.InternTerm(term)
			if err != nil {
				return res, fmt.Errorf("intern term %q: %w", term, err)
			}
			termIDs[tid] = tf
		}
		if err := s.WritePostings(docID, termIDs); err != nil {
			return res, fmt.Errorf("write postings for %s: %w", pf.path, err)
		}
		res.FilesIndexed++
	}

	if err := s.SetIndexedRoot(root); err != nil {
		return res, err
	}
	if err := s.SetAnalyzerFingerprint(opts.Analyzer.Fingerprint()); err != nil {
		return res, err
	}

	if err := s.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	committed = true

	return res, nil
}

// parseFile reads path and tokenizes it into a term-frequency map. A
// zero-length (empty) document is valid: length=0, no postings, and it is
// not retried on subsequent incremental runs since its stored (mtime,
// size) will match.
func parseFile(path string, mtime float64, size int64, opts analysis.Options) parsedFile {
	data, err := os.ReadFile(path)
	if err != nil {
		return parsedFile{path: path, mtime: mtime, size: size, err: err}
	}

	tokens := analysis.Tokenize(string(data), opts)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	length := 0
	for _, c := range tf {
		length += c
	}

	return parsedFile{path: path, mtime: mtime, size: size, length: length, tf: tf}
}
