package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/becomeliminal/voicevault/memory"
	"github.com/becomeliminal/voicevault/memory/store/sqlite"
)

func newTestStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestAppendAndLoadAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	rec, err := store.Append(ctx, "buy oat milk", []float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("Expected a non-empty record ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Transcript != "buy oat milk" {
		t.Errorf("Transcript = %q, want %q", records[0].Transcript, "buy oat milk")
	}
	if !reflect.DeepEqual(records[0].Embedding, []float32{0.1, 0.2, 0.3}) {
		t.Errorf("Embedding roundtrip mismatch: %v", records[0].Embedding)
	}
	if records[0].ID != rec.ID {
		t.Errorf("ID mismatch: loaded %s, appended %s", records[0].ID, rec.ID)
	}
}

func TestAppendRejectsEmptyTranscript(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Append(ctx, "", []float32{1, 2})
	var validation *memory.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Store should be unchanged after rejected append, has %d records", len(records))
	}
}

func TestAppendRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if _, err := store.Append(ctx, "first note", []float32{1, 2, 3}); err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	_, err := store.Append(ctx, "second note", []float32{1, 2})
	var validation *memory.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected no partial write, got %d records", len(records))
	}
}

func TestDimensionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := store.Append(ctx, "a note", []float32{1, 2, 3}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Dimension(); got != 3 {
		t.Errorf("Dimension after reopen = %d, want 3", got)
	}

	// The pinned dimension still rejects mismatches.
	_, err = reopened.Append(ctx, "bad note", []float32{1, 2})
	var validation *memory.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError after reopen, got %v", err)
	}

	records, err := reopened.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll after reopen failed: %v", err)
	}
	if len(records) != 1 || records[0].Transcript != "a note" {
		t.Errorf("Records did not survive reopen: %+v", records)
	}
}

func TestLoadAllIsIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	transcripts := []string{"first", "second", "third"}
	for _, tr := range transcripts {
		if _, err := store.Append(ctx, tr, []float32{1, 0}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	first, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	second, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("Second LoadAll failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("LoadAll is not idempotent")
	}
	for i, tr := range transcripts {
		if first[i].Transcript != tr {
			t.Errorf("Record %d = %q, want %q (creation order)", i, first[i].Transcript, tr)
		}
	}
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	const n = 10
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := store.Append(ctx, "concurrent note", []float32{float32(i), 1})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Concurrent append %d failed: %v", i, err)
		}
	}

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("Duplicate ID from concurrent appends: %s", id)
		}
		seen[id] = true
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != n {
		t.Errorf("Expected %d records, got %d", n, len(records))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	rec, err := store.Append(ctx, "to be removed", []float32{1, 2})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected empty store after delete, got %d records", len(records))
	}

	var storage *memory.StorageError
	if err := store.Delete(ctx, rec.ID); !errors.As(err, &storage) {
		t.Errorf("Expected StorageError for missing record, got %v", err)
	}
}
