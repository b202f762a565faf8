// Package search implements exact top-k similarity search over the
// record store with an explicit Stale/Ready snapshot.
package search

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/becomeliminal/voicevault/memory"
)

// Engine scores a query embedding against every stored record with
// cosine similarity. The full O(n*d) scan is deliberate: at personal
// archive scale it is simpler and more auditable than an approximate
// index, and the memory.Searcher interface leaves room to swap one in
// (see the sibling chromem package).
//
// Engine caches a snapshot of the store. The snapshot is Ready after a
// refresh and Stale after Invalidate; a Stale snapshot is reloaded
// before the next search. Refresh runs under the write lock, scoring
// under the read lock, so concurrent searches never observe a
// half-replaced snapshot.
type Engine struct {
	store memory.Store

	mu       sync.RWMutex
	ready    bool
	dim      int
	snapshot []entry
}

// entry caches one record with its pre-normalized embedding.
type entry struct {
	record *memory.Record
	unit   []float32 // unit-length embedding; nil if the norm is zero
}

// New creates an engine over the given store. The snapshot starts
// Stale; the first search loads it.
func New(store memory.Store) *Engine {
	return &Engine{store: store}
}

// Invalidate marks the snapshot Stale so the next search reloads it.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.ready = false
	e.mu.Unlock()
}

// Refresh reloads the snapshot from the store and marks it Ready.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

func (e *Engine) refreshLocked(ctx context.Context) error {
	records, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	snapshot := make([]entry, 0, len(records))
	dim := 0
	for _, rec := range records {
		if dim == 0 {
			dim = len(rec.Embedding)
		}
		snapshot = append(snapshot, entry{
			record: rec,
			unit:   normalize(rec.Embedding),
		})
	}

	e.snapshot = snapshot
	e.dim = dim
	e.ready = true

	log.Printf("[SEARCH] Snapshot refreshed: %d records, dimension %d", len(snapshot), dim)
	return nil
}

// ensureReady refreshes the snapshot if it is Stale.
func (e *Engine) ensureReady(ctx context.Context) error {
	e.mu.RLock()
	ready := e.ready
	e.mu.RUnlock()
	if ready {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	return e.refreshLocked(ctx)
}

// Search returns up to k records ordered by descending cosine
// similarity, ties broken by most-recent CreatedAt.
func (e *Engine) Search(ctx context.Context, query []float32, k int) ([]memory.SearchResult, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.snapshot) == 0 {
		return nil, nil
	}
	if len(query) != e.dim {
		return nil, &memory.DimensionMismatchError{Got: len(query), Want: e.dim}
	}

	queryUnit := normalize(query)

	results := make([]memory.SearchResult, 0, len(e.snapshot))
	for _, ent := range e.snapshot {
		results = append(results, memory.SearchResult{
			Record: ent.record,
			Score:  dotUnit(queryUnit, ent.unit),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Cosine computes the cosine similarity dot(a,b)/(|a|*|b|), defined as
// 0 when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalize returns a unit-length copy of vec, or nil for a zero-norm
// vector so scoring against it yields 0.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil
	}

	norm = math.Sqrt(norm)
	unit := make([]float32, len(vec))
	for i, v := range vec {
		unit[i] = float32(float64(v) / norm)
	}
	return unit
}

// dotUnit is the dot product of two pre-normalized vectors; nil (zero
// norm) scores 0.
func dotUnit(a, b []float32) float64 {
	if a == nil || b == nil {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
