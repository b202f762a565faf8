// Package config loads process configuration from the environment.
package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration for the voicevault process.
// All variables are prefixed VOICEVAULT_, e.g. VOICEVAULT_ADDR.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `envconfig:"ADDR" default:":8080"`

	// DBPath is the SQLite database location.
	DBPath string `envconfig:"DB_PATH" default:"data/voicevault.db"`

	// AudioDir keeps a copy of uploaded audio; empty disables it.
	AudioDir string `envconfig:"AUDIO_DIR" default:"data/audio_uploads"`

	// OpenAIAPIKey enables the Whisper transcriber and the OpenAI
	// embedder. Empty falls back to the mock providers, which is only
	// useful for local demos.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// EmbeddingModel selects the OpenAI embedding model.
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// TopK is the default search result count.
	TopK int `envconfig:"TOP_K" default:"3"`

	// UseChromem switches the searcher from the brute-force engine to
	// the chromem-go index.
	UseChromem bool `envconfig:"USE_CHROMEM" default:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("voicevault", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
