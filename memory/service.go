package memory

import (
	"context"
	"log"

	"github.com/dgraph-io/ristretto"
)

// Service is the single entry point the presentation layer uses.
// It orchestrates the Record Store and the Searcher: remember persists
// a finished (transcript, embedding) pair and invalidates the search
// snapshot; search embeds the query and delegates scoring.
//
// Construct once per process and inject into callers; there is no
// implicit shared instance.
type Service struct {
	store    Store
	searcher Searcher
	embedder Embedder
	config   *Config

	// queryCache maps query text to its embedding so repeated
	// searches skip the Embedding Provider round trip.
	queryCache *ristretto.Cache
}

// Config holds Service configuration.
type Config struct {
	// TopK is the result count used when a search does not specify k.
	// Default: 3.
	TopK int

	// QueryCacheSize is the max cost (bytes) of the query-embedding
	// cache. Zero disables caching.
	QueryCacheSize int64
}

// DefaultConfig returns sensible defaults for a personal archive.
var DefaultConfig = &Config{
	TopK:           3,
	QueryCacheSize: 4 << 20,
}

// NewService creates a new Service. A nil config uses DefaultConfig.
func NewService(store Store, searcher Searcher, embedder Embedder, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig
	}

	s := &Service{
		store:    store,
		searcher: searcher,
		embedder: embedder,
		config:   config,
	}

	if config.QueryCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1 << 14,
			MaxCost:     config.QueryCacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		s.queryCache = cache
	}

	return s, nil
}

// Remember persists a transcribed note with its embedding and marks the
// search snapshot stale. Refresh is deferred to the next search so that
// bursts of appends do not recompute the snapshot per note.
func (s *Service) Remember(ctx context.Context, transcript string, embedding []float32) (*Record, error) {
	rec, err := s.store.Append(ctx, transcript, embedding)
	if err != nil {
		return nil, err
	}

	s.searcher.Invalidate()

	log.Printf("[MEMORY] Remembered note: id=%s, transcript=%q", rec.ID, truncateLog(rec.Transcript, 50))
	return rec, nil
}

// Notes returns every stored record in creation order, for display.
func (s *Service) Notes(ctx context.Context) ([]*Record, error) {
	return s.store.LoadAll(ctx)
}

// Search embeds the query text and returns up to k results ordered by
// descending similarity. k <= 0 falls back to Config.TopK.
func (s *Service) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SearchEmbedding(ctx, embedding, k)
}

// SearchEmbedding searches with an already-embedded query, for callers
// that run the Embedding Provider themselves.
func (s *Service) SearchEmbedding(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = s.config.TopK
	}

	results, err := s.searcher.Search(ctx, embedding, k)
	if err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Search returned %d results (k=%d)", len(results), k)
	return results, nil
}

// embedQuery converts query text to a vector, consulting the cache
// before the Embedding Provider.
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache != nil {
		if cached, ok := s.queryCache.Get(query); ok {
			if embedding, ok := cached.([]float32); ok {
				return embedding, nil
			}
		}
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	if s.queryCache != nil {
		s.queryCache.Set(query, embedding, int64(len(embedding)*4))
	}

	return embedding, nil
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
