package memory

import "fmt"

// ValidationError reports input that violates the record contract:
// an empty transcript or an embedding whose length disagrees with the
// store's established dimension. Never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a persistence-layer failure (disk full, permission
// denied). Callers must treat it as non-retryable without operator
// intervention.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DimensionMismatchError is surfaced during search when a query
// embedding's length disagrees with the dimension of the stored records.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}

// TranscriptionError wraps a failure from the Transcription Provider:
// unsupported audio format, provider failure, or an empty transcript
// returned as success.
type TranscriptionError struct {
	Format string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("transcription failed (format %q): %v", e.Format, e.Err)
	}
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failure from the Embedding Provider.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
