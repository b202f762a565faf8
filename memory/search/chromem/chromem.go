// Package chromem provides a memory.Searcher backed by chromem-go, an
// embedded vector database. It is the drop-in seam for replacing the
// brute-force engine with an indexed nearest-neighbor backend without
// changing callers.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/voicevault/memory"
)

const collectionName = "voice_notes"

// Searcher mirrors the record store into a chromem collection and
// answers top-k queries through it. Stale/Ready semantics match the
// brute-force engine: Invalidate marks the mirror stale, the next
// search rebuilds it from the store.
type Searcher struct {
	store memory.Store
	db    *chromem.DB

	mu      sync.RWMutex
	ready   bool
	dim     int
	col     *chromem.Collection
	records map[string]*memory.Record // by ID, for result mapping
	zero    []*memory.Record          // zero-norm records, kept out of the collection
	indexed int                       // documents actually in the collection
}

// New creates a chromem-backed searcher over the given store.
func New(store memory.Store) *Searcher {
	return &Searcher{
		store: store,
		db:    chromem.NewDB(),
	}
}

// Invalidate marks the mirrored collection stale.
func (s *Searcher) Invalidate() {
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
}

// Refresh rebuilds the chromem collection from the store.
func (s *Searcher) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Searcher) refreshLocked(ctx context.Context) error {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	// Recreate the collection so deleted or reloaded records do not
	// linger in the mirror.
	if s.col != nil {
		if err := s.db.DeleteCollection(collectionName); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	col, err := s.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	byID := make(map[string]*memory.Record, len(records))
	var zero []*memory.Record
	dim := 0
	indexed := 0
	for _, rec := range records {
		if dim == 0 {
			dim = len(rec.Embedding)
		}
		byID[rec.ID] = rec

		// chromem normalizes embeddings on insert, which turns a
		// zero-norm vector into NaNs. The contract scores those 0
		// against everything, so keep them out of the collection and
		// merge them back at search time.
		if isZero(rec.Embedding) {
			zero = append(zero, rec)
			continue
		}

		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Transcript,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
		indexed++
	}

	s.col = col
	s.records = byID
	s.zero = zero
	s.indexed = indexed
	s.dim = dim
	s.ready = true

	log.Printf("[CHROMEM] Mirror rebuilt: %d records, dimension %d", len(records), dim)
	return nil
}

func (s *Searcher) ensureReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if ready {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	return s.refreshLocked(ctx)
}

// Search returns up to k records ordered by descending similarity,
// ties broken by most-recent CreatedAt.
func (s *Searcher) Search(ctx context.Context, query []float32, k int) ([]memory.SearchResult, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, &memory.DimensionMismatchError{Got: len(query), Want: s.dim}
	}
	if k <= 0 {
		k = len(s.records)
	}

	// chromem cannot score a zero-norm query; the contract defines its
	// similarity to everything as 0, which means the k most recent.
	if isZero(query) {
		return s.mostRecentLocked(k), nil
	}

	// chromem requires nResults <= collection size; shrink until it
	// accepts the query.
	var raw []chromem.Result
	for limit := min(k, s.indexed); limit >= 1; limit-- {
		var err error
		raw, err = s.col.QueryEmbedding(ctx, query, limit, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				raw = nil
				break
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]memory.SearchResult, 0, len(raw)+len(s.zero))
	for _, r := range raw {
		rec, ok := s.records[r.ID]
		if !ok {
			log.Printf("[CHROMEM] Skipping unknown result id=%s", r.ID)
			continue
		}
		results = append(results, memory.SearchResult{
			Record: rec,
			Score:  float64(r.Similarity),
		})
	}

	// Zero-norm records score 0 against every query; merge them in so
	// ranking stays consistent with the brute-force engine.
	for _, rec := range s.zero {
		results = append(results, memory.SearchResult{Record: rec})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// mostRecentLocked returns up to k records, newest first, all scored 0.
func (s *Searcher) mostRecentLocked(k int) []memory.SearchResult {
	results := make([]memory.SearchResult, 0, len(s.records))
	for _, rec := range s.records {
		results = append(results, memory.SearchResult{Record: rec})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// isInsufficientDocsError checks if the error is chromem rejecting an
// nResults larger than the collection.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
