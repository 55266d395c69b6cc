// Package rank implements the BM25 Ranker: given a resolved set of term
// ids, it enumerates candidate documents via a roaring-bitmap union,
// scores each with BM25 plus an optional path-token boost, and returns
// the top-k results through a bounded min-heap.
//
// The two-phase "bitmap union for candidates, then score" shape is
// grounded on the teacher's search.go (findCandidateDocuments), with
// postings now read from the SQLite store instead of an in-memory
// skip-list. RoaringBitmap/roaring is the one teacher dependency kept
// as-is; see DESIGN.md.
package rank

import (
	"container/heap"
	"math"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/store"
)

// Params are the tunable BM25 and boost knobs, spec.md §4.F.
type Params struct {
	K          int     // top-k results to return
	K1         float64 // term-frequency saturation
	B          float64 // length normalization
	PathBoost  float64 // multiplicative boost when a matched term also appears in the path
	PathFilter string  // optional substring filter on doc path
	ExtFilter  string  // optional extension filter, e.g. ".go"
}

// DefaultParams matches spec.md's defaults.
func DefaultParams() Params {
	return Params{K: 10, K1: 1.2, B: 0.75, PathBoost: 1.5}
}

// Result is one ranked document.
type Result struct {
	DocID int64
	Path  string
	Score float64
}

// scored is a heap element: a bounded min-heap keeps the k best results
// seen so far, evicting the lowest-scoring one when a better candidate
// arrives.
type scored struct {
	Result
}

type minHeap []scored

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	// Deterministic tie-break: among equal scores, the lexicographically
	// *larger* path sits at the top of the min-heap so it's evicted
	// first, leaving alphabetically earlier paths in the final top-k.
	return h[i].Path > h[j].Path
}
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Rank scores every document reachable from termIDs and returns the top
// params.K, highest score first, alphabetical-by-path as the tie-break.
func Rank(s *store.Store, termIDs []int64, terms map[int64]string, params Params) ([]Result, error) {
	n, sumLen, err := s.Globals()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(sumLen) / float64(n)

	candidates := roaring.New()
	postingsByTerm := make(map[int64][]store.Posting, len(termIDs))
	dfByTerm := make(map[int64]int64, len(termIDs))

	for _, tid := range termIDs {
		postings, err := s.IterPostings(tid)
		if err != nil {
			return nil, err
		}
		postingsByTerm[tid] = postings
		df, err := s.DF(tid)
		if err != nil {
			return nil, err
		}
		dfByTerm[tid] = df
		for _, p := range postings {
			candidates.Add(uint32(p.DocID))
		}
	}

	docTF := make(map[int64]map[int64]int)
	for tid, postings := range postingsByTerm {
		for _, p := range postings {
			m, ok := docTF[p.DocID]
			if !ok {
				m = make(map[int64]int)
				docTF[p.DocID] = m
			}
			m[tid] = p.TF
		}
	}

	pathOK, extOK := compileFilters(params)

	h := &minHeap{}
	heap.Init(h)

	it := candidates.Iterator()
	for it.HasNext() {
		docID := int64(it.Next())

		doc, err := s.GetDoc(docID)
		if err != nil {
			continue
		}
		if !pathOK(doc.Path) {
			continue
		}
		if !extOK(doc.Path) {
			continue
		}

		pathTokens := pathTokenSet(doc.Path)

		score := 0.0
		for tid, tf := range docTF[docID] {
			df := dfByTerm[tid]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			denom := float64(tf) + params.K1*(1-params.B+params.B*float64(doc.Length)/avgLen)
			termScore := idf * (float64(tf) * (params.K1 + 1)) / denom

			boost := 1.0
			if term, ok := terms[tid]; ok && pathTokens[term] {
				boost = params.PathBoost
			}
			score += termScore * boost
		}
		if score <= 0 {
			continue
		}

		candidate := scored{Result{DocID: docID, Path: doc.Path, Score: score}}
		if h.Len() < params.K {
			heap.Push(h, candidate)
		} else if isBetter(candidate.Result, (*h)[0].Result) {
			heap.Pop(h)
			heap.Push(h, candidate)
		}
	}

	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scored).Result
	}
	return out, nil
}

// isBetter reports whether a should replace b as a member of the top-k:
// strictly higher score, or an equal score with an alphabetically earlier
// path (so the alphabetically later occupant is the one evicted).
func isBetter(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Path < b.Path
}

// pathTokenSet identifier-splits a document path the same way the
// tokenizer splits source identifiers, per spec.md's path-boost rule.
func pathTokenSet(path string) map[string]bool {
	tokens := analysis.Tokenize(path, analysis.Options{})
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func compileFilters(params Params) (func(string) bool, func(string) bool) {
	pathOK := func(string) bool { return true }
	if params.PathFilter != "" {
		sub := params.PathFilter
		pathOK = func(p string) bool { return strings.Contains(p, sub) }
	}
	extOK := func(string) bool { return true }
	if params.ExtFilter != "" {
		ext := params.ExtFilter
		extOK = func(p string) bool { return filepath.Ext(p) == ext }
	}
	return pathOK, extOK
}
