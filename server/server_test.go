package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/becomeliminal/voicevault/memory"
	"github.com/becomeliminal/voicevault/memory/embedder/mock"
	"github.com/becomeliminal/voicevault/memory/search"
	"github.com/becomeliminal/voicevault/memory/store/sqlite"
	"github.com/becomeliminal/voicevault/server"
	trmock "github.com/becomeliminal/voicevault/transcribe/mock"
)

type note struct {
	ID         string   `json:"id"`
	Transcript string   `json:"transcript"`
	Score      *float64 `json:"score"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := mock.New(16)
	service, err := memory.NewService(store, search.New(store), embedder, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	// The mock transcriber treats the upload payload as the transcript,
	// so tests control the stored text directly. No audio dir: keeping
	// raw audio is out of scope here.
	srv := server.New(service, trmock.New(), embedder, "")
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// uploadNote posts a fake audio file whose bytes are the transcript.
func uploadNote(t *testing.T, ts *httptest.Server, transcript string) *http.Response {
	t.Helper()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("audio", "note.wav")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := part.Write([]byte(transcript)); err != nil {
		t.Fatalf("Write part failed: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/notes", mw.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("POST /api/notes failed: %v", err)
	}
	return resp
}

func TestUploadAndSearch(t *testing.T) {
	ts := newTestServer(t)

	transcripts := []string{
		"remember to renew the passport",
		"plan the birthday dinner",
		"fix the bike brakes",
	}
	for _, tr := range transcripts {
		resp := uploadNote(t, ts, tr)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Upload returned %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var created note
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			t.Fatalf("Decode upload response failed: %v", err)
		}
		resp.Body.Close()
		if created.Transcript != tr {
			t.Errorf("Uploaded transcript = %q, want %q", created.Transcript, tr)
		}
		if created.ID == "" {
			t.Error("Expected a record ID in the upload response")
		}
	}

	// Searching with a stored transcript ranks its own note first
	// (deterministic mock embeddings).
	resp, err := http.Get(ts.URL + "/api/search?q=" + url.QueryEscape("plan the birthday dinner"))
	if err != nil {
		t.Fatalf("GET /api/search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Search returned %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var results []note
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("Decode search response failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected default top-3, got %d", len(results))
	}
	if results[0].Transcript != "plan the birthday dinner" {
		t.Errorf("Expected matching note first, got %q", results[0].Transcript)
	}
	if results[0].Score == nil || *results[0].Score < 0.99 {
		t.Errorf("Expected near-1.0 score for exact match, got %v", results[0].Score)
	}
}

func TestSearchEmptyArchive(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/search?q=anything&k=3")
	if err != nil {
		t.Fatalf("GET /api/search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Search returned %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var results []note
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results on empty archive, got %d", len(results))
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/search")
	if err != nil {
		t.Fatalf("GET /api/search failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing query, got %d", resp.StatusCode)
	}
}

func TestUploadEmptyAudioFails(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadNote(t, ts, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502 for failed transcription, got %d", resp.StatusCode)
	}
}

func TestListNotesInCreationOrder(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := uploadNote(t, ts, fmt.Sprintf("note %d", i))
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/notes")
	if err != nil {
		t.Fatalf("GET /api/notes failed: %v", err)
	}
	defer resp.Body.Close()

	var notes []note
	if err := json.NewDecoder(resp.Body).Decode(&notes); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("Expected 3 notes, got %d", len(notes))
	}
	for i, n := range notes {
		if want := fmt.Sprintf("note %d", i); n.Transcript != want {
			t.Errorf("Note %d = %q, want %q (creation order)", i, n.Transcript, want)
		}
	}
}
