// Package server is the thin HTTP shell over the memory core: audio
// upload, free-text search, archive listing, and a websocket event
// stream. It holds no state of its own beyond the uploaded audio files.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/becomeliminal/voicevault/memory"
	"github.com/becomeliminal/voicevault/transcribe"
)

// maxUploadBytes caps a single audio upload (25 MB, the Whisper API
// limit).
const maxUploadBytes = 25 << 20

// Server exposes the memory service over HTTP.
type Server struct {
	service     *memory.Service
	transcriber transcribe.Transcriber
	embedder    memory.Embedder
	hub         *Hub
	audioDir    string
	mux         *http.ServeMux
}

// New creates a server. audioDir is where uploaded audio is kept; empty
// disables keeping the raw audio.
func New(service *memory.Service, transcriber transcribe.Transcriber, embedder memory.Embedder, audioDir string) *Server {
	s := &Server{
		service:     service,
		transcriber: transcriber,
		embedder:    embedder,
		hub:         NewHub(),
		audioDir:    audioDir,
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/notes", s.handleUpload)
	s.mux.HandleFunc("GET /api/notes", s.handleList)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.Handle("GET /api/events", s.hub)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Close()
}

// noteJSON is the wire shape of a stored note.
type noteJSON struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Transcript string    `json:"transcript"`
	Score      *float64  `json:"score,omitempty"`
}

// handleUpload accepts a multipart audio file, transcribes and embeds
// it, and stores the resulting note.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing audio file: %w", err))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read audio: %w", err))
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if format == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("audio filename has no extension"))
		return
	}

	if s.audioDir != "" {
		if err := s.saveAudio(audio, format); err != nil {
			// Keeping the raw audio is best effort; the transcript is
			// the durable artifact.
			log.Printf("[SERVER] Failed to save audio copy: %v", err)
		}
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), audio, format)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	embedding, err := s.embedder.Embed(r.Context(), transcript)
	if err != nil {
		err = &memory.EmbeddingError{Err: err}
		writeError(w, statusFor(err), err)
		return
	}

	rec, err := s.service.Remember(r.Context(), transcript, embedding)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.hub.Broadcast(map[string]any{
		"event": "note_saved",
		"note":  toNoteJSON(rec, nil),
	})

	writeJSON(w, http.StatusCreated, toNoteJSON(rec, nil))
}

// handleList returns the full archive in creation order.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Notes(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	notes := make([]noteJSON, 0, len(records))
	for _, rec := range records {
		notes = append(notes, toNoteJSON(rec, nil))
	}
	writeJSON(w, http.StatusOK, notes)
}

// handleSearch returns top-k matches for a free-text query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter q"))
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid k: %q", raw))
			return
		}
		k = parsed
	}

	results, err := s.service.Search(r.Context(), query, k)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	notes := make([]noteJSON, 0, len(results))
	for _, res := range results {
		score := res.Score
		notes = append(notes, toNoteJSON(res.Record, &score))
	}
	writeJSON(w, http.StatusOK, notes)
}

// saveAudio keeps a copy of the upload under a timestamped filename.
func (s *Server) saveAudio(audio []byte, format string) error {
	if err := os.MkdirAll(s.audioDir, 0750); err != nil {
		return err
	}
	name := time.Now().Format("20060102_150405.000") + "." + format
	return os.WriteFile(filepath.Join(s.audioDir, name), audio, 0600)
}

func toNoteJSON(rec *memory.Record, score *float64) noteJSON {
	return noteJSON{
		ID:         rec.ID,
		CreatedAt:  rec.CreatedAt,
		Transcript: rec.Transcript,
		Score:      score,
	}
}

// statusFor maps the core error taxonomy to HTTP statuses so the UI can
// render a specific message per failure kind.
func statusFor(err error) int {
	var (
		validation    *memory.ValidationError
		dimension     *memory.DimensionMismatchError
		transcription *memory.TranscriptionError
		embedding     *memory.EmbeddingError
		storage       *memory.StorageError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &dimension):
		return http.StatusBadRequest
	case errors.As(err, &transcription), errors.As(err, &embedding):
		return http.StatusBadGateway
	case errors.As(err, &storage):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Printf("[SERVER] Request failed (%d): %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
