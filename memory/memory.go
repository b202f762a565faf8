package memory

import "context"

// Store is the durable record storage backend.
// Implementations: SQLiteStore (local), swappable for a server-backed
// store in production.
//
// Append-only by design: records are never updated. Delete exists for
// out-of-band maintenance, not for the core flow.
type Store interface {
	// Append validates, persists and returns a new record.
	// The first successful append establishes the store's embedding
	// dimension; later appends with a different dimension fail with
	// *ValidationError and leave the store unchanged.
	Append(ctx context.Context, transcript string, embedding []float32) (*Record, error)

	// LoadAll returns every record in creation order. Safe to call
	// repeatedly; reflects all prior successful appends, including
	// those from a previous process lifetime.
	LoadAll(ctx context.Context) ([]*Record, error)

	// Delete removes a record permanently. Maintenance only.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// Searcher answers top-k nearest-neighbor queries against the store's
// records.
//
// Implementations cache a snapshot of the store and track its validity
// as Stale or Ready. Invalidate marks the snapshot Stale after the
// store changed; the next Search re-synchronizes before scoring, so a
// search never runs against data the searcher knows to be outdated.
//
// Implementations: search.Engine (exact brute-force cosine scan),
// chromem.Searcher (embedded vector index).
type Searcher interface {
	// Search returns up to k results ordered by descending score,
	// ties broken by most-recent CreatedAt. Empty snapshot yields an
	// empty slice, not an error. A query whose length disagrees with
	// the stored dimension fails with *DimensionMismatchError.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Invalidate marks the cached snapshot Stale.
	Invalidate()

	// Refresh eagerly reloads the snapshot from the store.
	Refresh(ctx context.Context) error
}

// Embedder converts text to vector embeddings.
// Implementations: MockEmbedder (testing), OpenAIEmbedder (API),
// ONNXEmbedder (local, build tag onnx).
//
// The vector length must be stable across calls within one deployment;
// the store enforces this via its dimension invariant.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
