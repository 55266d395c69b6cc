// Package store implements the persistent Index Store: a single SQLite
// file holding the inverted-index schema (meta/docs/terms/postings). It is
// the sole owner of all persistent search-engine state; every other
// component holds only transient handles for the duration of one
// operation.
//
// The schema and operation set mirror spec.md §3 and §6 exactly. The
// on-disk format is a real SQLite database opened through database/sql
// with the mattn/go-sqlite3 driver, the same driver the example pack's
// kadirpekel/hector module uses for its session and task persistence
// layers (v2/session/store.go).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is bumped whenever the on-disk schema changes shape.
const SchemaVersion = "1"

// Sentinel error kinds, spec.md §7.
var (
	ErrUnavailable = errors.New("store: unavailable")
	ErrCorrupt     = errors.New("store: corrupt")
	ErrNotFound    = errors.New("store: not found")
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
CREATE TABLE IF NOT EXISTS docs (
	doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	mtime REAL NOT NULL,
	size INTEGER NOT NULL,
	length INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS terms (
	term_id INTEGER PRIMARY KEY AUTOINCREMENT,
	term TEXT UNIQUE NOT NULL,
	df INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS postings (
	term_id INTEGER NOT NULL,
	doc_id INTEGER NOT NULL,
	tf INTEGER NOT NULL,
	PRIMARY KEY (term_id, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc_id);
`

// Store wraps a *sql.DB for the index database. mu is held from Begin until
// Commit or Rollback, so only one transaction (and thus one writer) is
// active at a time on top of SQLite's own file-level writer lock. Mutating
// calls made outside a transaction do not take mu.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	// tx is set between Begin and Commit/Rollback.
	tx *sql.Tx
}

// DocMeta is the subset of docs columns the Indexer needs for change
// detection.
type DocMeta struct {
	DocID  int64
	MTime  float64
	Size   int64
	Length int
}

// Open opens or creates the store at path, running schema migration if
// needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", ErrCorrupt, err)
	}

	s := &Store{db: db, path: path}
	if err := s.checkOrSetVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkOrSetVersion() error {
	existing, ok, err := s.getMeta("schema_version")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return s.setMeta("schema_version", SchemaVersion)
	}
	if existing != SchemaVersion {
		return fmt.Errorf("%w: schema version %q, expected %q (run with --full to rebuild)", ErrCorrupt, existing, SchemaVersion)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open store.
func (s *Store) Path() string { return s.path }

func (s *Store) execer() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Begin starts a transaction wrapping one full index run. Only one
// transaction may be open at a time; concurrent writers are forbidden by
// spec.md §1's Non-goals.
func (s *Store) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.tx != nil {
		s.mu.Unlock()
		return errors.New("store: transaction already open")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return errors.New("store: no open transaction")
	}
	defer func() {
		s.tx = nil
		s.mu.Unlock()
	}()
	return s.tx.Commit()
}

// Rollback aborts the open transaction.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return nil
	}
	defer func() {
		s.tx = nil
		s.mu.Unlock()
	}()
	return s.tx.Rollback()
}

// GetDocMeta returns the stored metadata for path, or ok=false if the path
// has never been indexed.
func (s *Store) GetDocMeta(path string) (DocMeta, bool, error) {
	row := s.execer().QueryRow(`SELECT doc_id, mtime, size, length FROM docs WHERE path = ?`, path)
	var m DocMeta
	if err := row.Scan(&m.DocID, &m.MTime, &m.Size, &m.Length); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocMeta{}, false, nil
		}
		return DocMeta{}, false, err
	}
	return m, true, nil
}

// UpsertDocument inserts or updates a document's metadata, returning its
// doc_id.
func (s *Store) UpsertDocument(path string, mtime float64, size int64, length int) (int64, error) {
	ex := s.execer()
	_, err := ex.Exec(`
		INSERT INTO docs(path, mtime, size, length) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, size = excluded.size, length = excluded.length
	`, path, mtime, size, length)
	if err != nil {
		return 0, err
	}
	row := ex.QueryRow(`SELECT doc_id FROM docs WHERE path = ?`, path)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteDocument removes a document and cascades: postings are dropped,
// df is decremented for every affected term, and N/sum_len are left for
// the caller to recompute via Globals (they are derived, not stored
// separately, so no extra bookkeeping is required here beyond postings and
// docs).
func (s *Store) DeleteDocument(docID int64) error {
	ex := s.execer()

	rows, err := ex.Query(`SELECT term_id FROM postings WHERE doc_id = ?`, docID)
	if err != nil {
		return err
	}
	var termIDs []int64
	for rows.Next() {
		var tid int64
		if err := rows.Scan(&tid); err != nil {
			rows.Close()
			return err
		}
		termIDs = append(termIDs, tid)
	}
	rows.Close()

	if _, err := ex.Exec(`DELETE FROM postings WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	for _, tid := range termIDs {
		if _, err := ex.Exec(`UPDATE terms SET df = df - 1 WHERE term_id = ?`, tid); err != nil {
			return err
		}
	}
	if _, err := ex.Exec(`DELETE FROM docs WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	return nil
}

// InternTerm returns the term_id for term, creating it if necessary.
// Idempotent.
func (s *Store) InternTerm(term string) (int64, error) {
	ex := s.execer()
	_, err := ex.Exec(`INSERT INTO terms(term, df) VALUES (?, 0) ON CONFLICT(term) DO NOTHING`, term)
	if err != nil {
		return 0, err
	}
	row := ex.QueryRow(`SELECT term_id FROM terms WHERE term = ?`, term)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// WritePostings replaces any prior postings for doc_id with termFreqs,
// updating df for every inserted or removed term.
func (s *Store) WritePostings(docID int64, termFreqs map[int64]int) error {
	ex := s.execer()

	rows, err := ex.Query(`SELECT term_id FROM postings WHERE doc_id = ?`, docID)
	if err != nil {
		return err
	}
	prior := make(map[int64]bool)
	for rows.Next() {
		var tid int64
		if err := rows.Scan(&tid); err != nil {
			rows.Close()
			return err
		}
		prior[tid] = true
	}
	rows.Close()

	if _, err := ex.Exec(`DELETE FROM postings WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	for tid := range prior {
		if _, ok := termFreqs[tid]; !ok {
			if _, err := ex.Exec(`UPDATE terms SET df = df - 1 WHERE term_id = ?`, tid); err != nil {
				return err
			}
		}
	}
	for tid, tf := range termFreqs {
		if _, err := ex.Exec(`INSERT INTO postings(term_id, doc_id, tf) VALUES (?, ?, ?)`, tid, docID, tf); err != nil {
			return err
		}
		if !prior[tid] {
			if _, err := ex.Exec(`UPDATE terms SET df = df + 1 WHERE term_id = ?`, tid); err != nil {
				return err
			}
		}
	}
	return nil
}

// Posting is one (doc_id, tf) entry from a term's posting list.
type Posting struct {
	DocID int64
	TF    int
}

// IterPostings returns every posting for term_id. Spec.md describes this
// as a lazy sequence; a small local index does not need streaming cursors
// to stay sub-second, so this returns a materialized slice in practice
// while keeping the narrow signature callers rely on.
func (s *Store) IterPostings(termID int64) ([]Posting, error) {
	rows, err := s.execer().Query(`SELECT doc_id, tf FROM postings WHERE term_id = ?`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.DocID, &p.TF); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Doc is the subset of a document's fields the ranker and snippet builder
// need.
type Doc struct {
	Path   string
	Length int
}

// GetDoc fetches a document's path and length by doc_id.
func (s *Store) GetDoc(docID int64) (Doc, error) {
	row := s.execer().QueryRow(`SELECT path, length FROM docs WHERE doc_id = ?`, docID)
	var d Doc
	if err := row.Scan(&d.Path, &d.Length); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Doc{}, ErrNotFound
		}
		return Doc{}, err
	}
	return d, nil
}

// Globals returns (N, sum of document lengths).
func (s *Store) Globals() (int64, int64, error) {
	row := s.execer().QueryRow(`SELECT COUNT(*), COALESCE(SUM(length), 0) FROM docs`)
	var n, sumLen int64
	if err := row.Scan(&n, &sumLen); err != nil {
		return 0, 0, err
	}
	return n, sumLen, nil
}

// AllPaths returns every currently indexed document path, for the
// Indexer's deletion-detection pass (spec.md §4.D step 3-4).
func (s *Store) AllPaths() (map[string]int64, error) {
	rows, err := s.execer().Query(`SELECT path, doc_id FROM docs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var p string
		var id int64
		if err := rows.Scan(&p, &id); err != nil {
			return nil, err
		}
		out[p] = id
	}
	return out, rows.Err()
}

// GetTermID resolves a term to its id, if it exists.
func (s *Store) GetTermID(term string) (int64, bool, error) {
	row := s.execer().QueryRow(`SELECT term_id FROM terms WHERE term = ?`, term)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// DF returns a term's document frequency.
func (s *Store) DF(termID int64) (int64, error) {
	row := s.execer().QueryRow(`SELECT df FROM terms WHERE term_id = ?`, termID)
	var df int64
	if err := row.Scan(&df); err != nil {
		return 0, err
	}
	return df, nil
}

// MatchTermsRegex returns every term_id whose term text matches pattern.
// A regex-compilation failure is returned as an error so callers (the
// Query Planner) can treat it as a non-fatal, droppable augmentation.
func (s *Store) MatchTermsRegex(pattern string) ([]int64, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	rows, err := s.execer().Query(`SELECT term_id, term FROM terms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		var term string
		if err := rows.Scan(&id, &term); err != nil {
			return nil, err
		}
		if re.MatchString(term) {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

// SetIndexedRoot records the absolute path of the tree last indexed.
func (s *Store) SetIndexedRoot(root string) error {
	return s.setMeta("indexed_root", root)
}

// IndexedRoot returns the root recorded by the last successful index run.
func (s *Store) IndexedRoot() (string, bool, error) {
	return s.getMeta("indexed_root")
}

// SetAnalyzerFingerprint persists the tokenizer options fingerprint used
// to build the index.
func (s *Store) SetAnalyzerFingerprint(fp string) error {
	return s.setMeta("analyzer_fingerprint", fp)
}

// AnalyzerFingerprint returns the persisted tokenizer options fingerprint.
func (s *Store) AnalyzerFingerprint() (string, bool, error) {
	return s.getMeta("analyzer_fingerprint")
}

func (s *Store) getMeta(key string) (string, bool, error) {
	row := s.execer().QueryRow(`SELECT value FROM meta WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.execer().Exec(`
		INSERT INTO meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Truncate wipes all content tables and every meta entry except
// schema_version, for a full rebuild
// (spec.md §4.D step 1, mode=full).
func (s *Store) Truncate() error {
	ex := s.execer()
	for _, stmt := range []string{
		`DELETE FROM postings`,
		`DELETE FROM terms`,
		`DELETE FROM docs`,
		`DELETE FROM meta WHERE key NOT IN ('schema_version')`,
	} {
		if _, err := ex.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Audit verifies the three persistent invariants of spec.md §3:
//   - every document's length equals the sum of tf over its postings
//   - every term's df equals the number of distinct documents referencing it
//   - no posting references a missing term or document
//
// It is intended to run in tests after a commit, not on the query hot
// path.
func Audit(s *Store) error {
	rows, err := s.db.Query(`
		SELECT d.doc_id, d.length, COALESCE(SUM(p.tf), 0)
		FROM docs d LEFT JOIN postings p ON p.doc_id = d.doc_id
		GROUP BY d.doc_id
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var docID int64
		var length, sumTF int
		if err := rows.Scan(&docID, &length, &sumTF); err != nil {
			rows.Close()
			return err
		}
		if length != sumTF {
			rows.Close()
			return fmt.Errorf("%w: doc %d length=%d but postings sum to %d", ErrCorrupt, docID, length, sumTF)
		}
	}
	rows.Close()

	rows, err = s.db.Query(`
		SELECT t.term_id, t.df, COUNT(p.doc_id)
		FROM terms t LEFT JOIN postings p ON p.term_id = t.term_id
		GROUP BY t.term_id
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var termID int64
		var df, count int
		if err := rows.Scan(&termID, &df, &count); err != nil {
			rows.Close()
			return err
		}
		if df != count {
			rows.Close()
			return fmt.Errorf("%w: term %d df=%d but %d postings reference it", ErrCorrupt, termID, df, count)
		}
	}
	rows.Close()

	row := s.db.QueryRow(`
		SELECT COUNT(*) FROM postings p
		LEFT JOIN docs d ON d.doc_id = p.doc_id
		LEFT JOIN terms t ON t.term_id = p.term_id
		WHERE d.doc_id IS NULL OR t.term_id IS NULL
	`)
	var orphans int
	if err := row.Scan(&orphans); err != nil {
		return err
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d orphan postings", ErrCorrupt, orphans)
	}
	return nil
}
