// Package mock provides a deterministic Transcriber for tests and
// demos without API access.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/becomeliminal/voicevault/memory"
)

// Transcriber returns the audio bytes interpreted as UTF-8 text, so
// tests control the "transcript" by uploading text payloads.
type Transcriber struct{}

// New creates a mock transcriber.
func New() *Transcriber {
	return &Transcriber{}
}

// Transcribe returns the payload as text, enforcing the same contract
// as a real provider: explicit failure instead of empty-string success.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	text := strings.TrimSpace(string(audio))
	if text == "" {
		return "", &memory.TranscriptionError{
			Format: format,
			Err:    fmt.Errorf("empty audio payload"),
		}
	}
	return text, nil
}
