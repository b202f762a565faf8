// Command voicevault runs the voice-note memory server: upload audio,
// get it transcribed and embedded, and search past notes by meaning.
package main

import (
	"log"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/voicevault/config"
	"github.com/becomeliminal/voicevault/memory"
	embmock "github.com/becomeliminal/voicevault/memory/embedder/mock"
	embopenai "github.com/becomeliminal/voicevault/memory/embedder/openai"
	"github.com/becomeliminal/voicevault/memory/search"
	"github.com/becomeliminal/voicevault/memory/search/chromem"
	"github.com/becomeliminal/voicevault/memory/store/sqlite"
	"github.com/becomeliminal/voicevault/server"
	"github.com/becomeliminal/voicevault/transcribe"
	trmock "github.com/becomeliminal/voicevault/transcribe/mock"
	"github.com/becomeliminal/voicevault/transcribe/whisper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	var searcher memory.Searcher
	if cfg.UseChromem {
		searcher = chromem.New(store)
	} else {
		searcher = search.New(store)
	}

	var (
		embedder    memory.Embedder
		transcriber transcribe.Transcriber
	)
	if cfg.OpenAIAPIKey != "" {
		embedder, err = embopenai.New(cfg.OpenAIAPIKey, goopenai.EmbeddingModel(cfg.EmbeddingModel))
		if err != nil {
			log.Fatalf("create embedder: %v", err)
		}
		transcriber, err = whisper.New(cfg.OpenAIAPIKey, "")
		if err != nil {
			log.Fatalf("create transcriber: %v", err)
		}
	} else {
		log.Printf("[MAIN] No API key configured, using mock providers")
		embedder = embmock.New(0)
		transcriber = trmock.New()
	}

	service, err := memory.NewService(store, searcher, embedder, &memory.Config{
		TopK:           cfg.TopK,
		QueryCacheSize: memory.DefaultConfig.QueryCacheSize,
	})
	if err != nil {
		log.Fatalf("create service: %v", err)
	}

	srv := server.New(service, transcriber, embedder, cfg.AudioDir)
	defer srv.Close()

	log.Printf("[MAIN] Listening on %s (db=%s)", cfg.Addr, cfg.DBPath)
	if err := http.ListenAndServe(cfg.Addr, srv.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
