// Package sqlite provides the durable, append-only record store backed
// by a local SQLite database.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/becomeliminal/voicevault/memory"
)

const dimensionKey = "embedding_dimension"

// Store persists records in a SQLite database. Embeddings are stored as
// little-endian float32 BLOBs; the embedding dimension is pinned in a
// meta table so the invariant survives process restarts.
//
// Writers are serialized with a mutex; reads run concurrently.
type Store struct {
	db *sql.DB

	mu  sync.Mutex // serializes the append path
	dim int        // 0 until the first record establishes it
}

// New opens (or creates) the store at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadDimension(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			transcript TEXT NOT NULL,
			embedding BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// loadDimension restores the pinned embedding dimension, if any.
func (s *Store) loadDimension() error {
	var value string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, dimensionKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load dimension: %w", err)
	}

	dim, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("corrupt dimension value %q: %w", value, err)
	}
	s.dim = dim
	return nil
}

// Dimension returns the established embedding dimension, or 0 if no
// record has been written yet.
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// Append validates and persists a new record. The first append
// establishes the store's embedding dimension; validation failures
// leave the store unchanged.
func (s *Store) Append(ctx context.Context, transcript string, embedding []float32) (*memory.Record, error) {
	if transcript == "" {
		return nil, &memory.ValidationError{Field: "transcript", Reason: "must not be empty"}
	}
	if len(embedding) == 0 {
		return nil, &memory.ValidationError{Field: "embedding", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(embedding) != s.dim {
		return nil, &memory.ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("dimension %d does not match store dimension %d", len(embedding), s.dim),
		}
	}

	rec := &memory.Record{
		ID:         memory.NewRecordID(),
		CreatedAt:  time.Now().UTC(),
		Transcript: transcript,
		Embedding:  embedding,
	}

	blob, err := encodeEmbedding(embedding)
	if err != nil {
		return nil, &memory.StorageError{Op: "append", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &memory.StorageError{Op: "append", Err: err}
	}

	_, err = tx.Exec(
		`INSERT INTO records (id, created_at, transcript, embedding) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(time.RFC3339Nano), rec.Transcript, blob,
	)
	if err != nil {
		tx.Rollback()
		return nil, &memory.StorageError{Op: "append", Err: err}
	}

	if s.dim == 0 {
		_, err = tx.Exec(
			`INSERT INTO store_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			dimensionKey, strconv.Itoa(len(embedding)),
		)
		if err != nil {
			tx.Rollback()
			return nil, &memory.StorageError{Op: "append", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &memory.StorageError{Op: "append", Err: err}
	}

	if s.dim == 0 {
		s.dim = len(embedding)
		log.Printf("[STORE] Established embedding dimension: %d", s.dim)
	}

	return rec, nil
}

// LoadAll returns every record in creation order.
func (s *Store) LoadAll(ctx context.Context) ([]*memory.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, transcript, embedding FROM records ORDER BY seq`)
	if err != nil {
		return nil, &memory.StorageError{Op: "load", Err: err}
	}
	defer rows.Close()

	var records []*memory.Record
	for rows.Next() {
		var (
			rec       memory.Record
			createdAt string
			blob      []byte
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Transcript, &blob); err != nil {
			return nil, &memory.StorageError{Op: "load", Err: err}
		}

		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, &memory.StorageError{Op: "load", Err: fmt.Errorf("corrupt created_at for %s: %w", rec.ID, err)}
		}

		rec.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, &memory.StorageError{Op: "load", Err: fmt.Errorf("corrupt embedding for %s: %w", rec.ID, err)}
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &memory.StorageError{Op: "load", Err: err}
	}

	return records, nil
}

// Delete removes a record permanently. Maintenance only; the search
// snapshot must be invalidated by the caller afterwards.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return &memory.StorageError{Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &memory.StorageError{Op: "delete", Err: fmt.Errorf("record not found: %s", id)}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeEmbedding serializes a vector as little-endian float32 bytes.
func encodeEmbedding(embedding []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, embedding); err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEmbedding deserializes little-endian float32 bytes.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	embedding := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &embedding); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return embedding, nil
}
