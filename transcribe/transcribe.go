// Package transcribe defines the speech-to-text provider contract.
//
// The memory core treats transcription as a black-box collaborator: it
// only requires that a provider eventually returns non-empty text or
// fails explicitly. Retry policy belongs to the caller.
package transcribe

import "context"

// Transcriber converts raw audio to text.
// Implementations: whisper.Transcriber (OpenAI API), mock.Transcriber
// (testing).
type Transcriber interface {
	// Transcribe converts audio bytes in the given format (file
	// extension without dot, e.g. "wav", "mp3", "m4a") to text.
	// Fails with *memory.TranscriptionError on unsupported format,
	// provider failure, or an empty transcript; it never reports an
	// empty string as success.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}
