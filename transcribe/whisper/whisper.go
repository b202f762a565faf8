// Package whisper provides a Transcriber backed by the OpenAI audio
// transcription API.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/voicevault/memory"
)

// supportedFormats are the audio container formats accepted for upload.
var supportedFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"mp4":  true,
	"ogg":  true,
	"webm": true,
	"flac": true,
}

// Transcriber converts audio to text via the Whisper API.
type Transcriber struct {
	client *openai.Client
	model  string
}

// New creates a Whisper transcriber. An empty model defaults to
// whisper-1.
func New(apiKey, model string) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Transcribe sends the audio to the Whisper API and returns the text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if !supportedFormats[format] {
		return "", &memory.TranscriptionError{
			Format: format,
			Err:    fmt.Errorf("unsupported audio format"),
		}
	}
	if len(audio) == 0 {
		return "", &memory.TranscriptionError{
			Format: format,
			Err:    fmt.Errorf("empty audio payload"),
		}
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: t.model,
		// The API infers the container from the filename extension.
		FilePath: "note." + format,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", &memory.TranscriptionError{Format: format, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &memory.TranscriptionError{
			Format: format,
			Err:    fmt.Errorf("provider returned an empty transcript"),
		}
	}
	return text, nil
}
