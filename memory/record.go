package memory

import (
	"time"

	"github.com/google/uuid"
)

// Record is one stored voice note: the transcript produced by the
// Transcription Provider plus its embedding vector.
//
// Records are immutable once written. The embedding dimension is fixed
// for the lifetime of a store; the first written record establishes it.
type Record struct {
	// ID is unique across the full history of the store, including
	// after reloads. UUIDv7, so ids sort by creation time.
	ID string

	// CreatedAt is the capture timestamp, immutable.
	CreatedAt time.Time

	// Transcript is the non-empty text of the note.
	Transcript string

	// Embedding is a fixed-length vector; length matches every other
	// record in the same store.
	Embedding []float32
}

// NewRecordID generates a new unique record ID.
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4
		// rather than propagate an error nobody can act on.
		return uuid.New().String()
	}
	return id.String()
}

// SearchResult pairs a stored record with its similarity score for one
// query. Produced fresh per search, never persisted.
type SearchResult struct {
	Record *Record
	Score  float64
}
