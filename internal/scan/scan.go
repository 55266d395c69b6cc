// Package scan implements the File Scanner: it walks a root directory and
// yields the set of files eligible for indexing, applying an extension/
// basename include-list, a fixed skip-dir set, a size ceiling, and a
// binary-content sniff.
//
// The walk itself follows the standard filepath.WalkDir style; the supplemental Watch method layers github.com/fsnotify/fsnotify
// on top for the CLI's --watch flag, an enrichment beyond the batch-only
// scan spec.md describes.
package scan

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// DefaultMaxSize is the size ceiling above which a file is skipped
// regardless of extension.
const DefaultMaxSize = 2 * 1024 * 1024

// DefaultBinaryRatio is the non-printable-byte fraction of the first 1KB
// above which a file is treated as binary. Tunable, not a contract.
const DefaultBinaryRatio = 0.30

// DefaultExtensions lists the file extensions scanned by default.
var DefaultExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".h", ".cc",
	".cpp", ".hpp", ".rs", ".rb", ".php", ".sh", ".md", ".txt", ".yaml",
	".yml", ".json", ".toml", ".sql", ".proto",
}

// DefaultBasenames lists extensionless filenames scanned by default.
var DefaultBasenames = []string{
	"Makefile", "Dockerfile", "README", "LICENSE", "go.mod", "go.sum",
}

// defaultSkipDirs is the fixed set of directory names never descended
// into.
var defaultSkipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, ".venv": {}, "venv": {}, "__pycache__": {},
	".hg": {}, ".svn": {}, "vendor": {}, "dist": {}, "build": {}, "target": {},
	".idea": {}, ".vscode": {}, ".cache": {}, ".mypy_cache": {}, ".pytest_cache": {},
}

// Options configures a Scanner.
type Options struct {
	Extensions []string
	Basenames  []string
	MaxSize    int64
}

// DefaultOptions returns the scanner's built-in include-list and size
// ceiling.
func DefaultOptions() Options {
	return Options{
		Extensions: DefaultExtensions,
		Basenames:  DefaultBasenames,
		MaxSize:    DefaultMaxSize,
	}
}

// Scanner walks a directory tree, yielding eligible file paths.
type Scanner struct {
	opts    Options
	extSet  map[string]struct{}
	baseSet map[string]struct{}
}

// New builds a Scanner from opts. A zero Options falls back to
// DefaultOptions's size ceiling only; callers typically start from
// DefaultOptions and override fields.
func New(opts Options) *Scanner {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	baseSet := make(map[string]struct{}, len(opts.Basenames))
	for _, b := range opts.Basenames {
		baseSet[b] = struct{}{}
	}
	return &Scanner{opts: opts, extSet: extSet, baseSet: baseSet}
}

// eligibleByName reports whether path's extension or basename is in the
// include-list, independent of size/content checks.
func (s *Scanner) eligibleByName(path string) bool {
	base := filepath.Base(path)
	if _, ok := s.baseSet[base]; ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := s.extSet[ext]
	return ok
}

// Walk visits root and calls fn for every eligible file, in lexical
// order (the order filepath.WalkDir guarantees), giving the caller a
// deterministic scan for a fixed tree.
func (s *Scanner) Walk(root string, fn func(path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				if _, skip := defaultSkipDirs[d.Name()]; skip {
					return filepath.SkipDir
				}
				if strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !s.eligibleByName(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > s.opts.MaxSize {
			return nil
		}
		if looksBinary(path) {
			return nil
		}
		return fn(path, info)
	})
}

// looksBinary sniffs the first 1KB of path: a NUL byte, or a non-printable
// ratio above 30%, marks it binary. The 30% threshold is a tunable
// constant, not a contract.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	buf = buf[:n]

	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	if n == 0 {
		return false
	}

	nonPrintable := 0
	for _, b := range buf {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 || b == 0x7f {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > DefaultBinaryRatio
}

// Watch streams filesystem change events for root using fsnotify,
// calling fn with the changed path whenever an eligible file is written,
// created, renamed, or removed. It runs until done is closed or one of the
// watcher's channels is closed; errors reported by the watcher while
// running are ignored.
func (s *Scanner) Watch(root string, done <-chan struct{}, fn func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				if _, skip := defaultSkipDirs[d.Name()]; skip {
					return filepath.SkipDir
				}
			}
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !s.eligibleByName(ev.Name) {
				continue
			}
			fn(ev.Name)
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		}
	}
}
