package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/agent/repo"
	"github.com/leadpilot-ai/server/internal/core"
	"github.com/leadpilot-ai/server/internal/rag"
	logx "github.com/leadpilot-ai/server/pkg/logger"
	pkgredis "github.com/leadpilot-ai/server/pkg/redis"
)

const embedBatchSize = 16

// IngestConfig carries what the knowledge ingester needs from the environment.
type IngestConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Redis pkgredis.Config

	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Embedding model.EmbeddingConfig
	RAG       model.RAGConfig
}

func main() {
	dir := flag.String("dir", "./knowledge", "directory of knowledge files to ingest")
	flag.Parse()

	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg IngestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	defer rdb.Close()

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	gclient, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create gemini client")
	}

	embedder := rag.NewGeminiEmbedder(gclient, cfg.Embedding.Model)
	store := repo.NewRedisVectorStore(rdb, cfg.RAG.Collection)
	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)

	chunks, err := chunker.ChunkDirectory(*dir)
	if err != nil {
		logx.Fatal().Err(err).Str("dir", *dir).Msg("failed to chunk knowledge directory")
	}
	if len(chunks) == 0 {
		logx.Warn().Str("dir", *dir).Msg("no knowledge files found")
		return
	}
	logx.Info().Int("chunks", len(chunks)).Str("dir", *dir).Msg("chunked knowledge base")

	// drop the old index so a re-run replaces instead of duplicating
	if err := store.Clear(ctx); err != nil {
		logx.Fatal().Err(err).Msg("failed to clear knowledge index")
	}

	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	total := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			logx.Fatal().Err(err).Int("batch_start", start).Msg("embedding failed")
		}

		docs := make([]rag.Document, len(batch))
		for i, c := range batch {
			meta := c.Metadata
			meta["chunk_index"] = c.ChunkIndex
			meta["updated_at"] = ingestedAt
			docs[i] = rag.Document{
				ID:        uuid.NewString(),
				Text:      c.Text,
				Embedding: vectors[i],
				Metadata:  meta,
			}
		}
		if err := store.Upsert(ctx, docs); err != nil {
			logx.Fatal().Err(err).Int("batch_start", start).Msg("vector upsert failed")
		}
		total += len(docs)
	}

	count, err := store.Count(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to read index size")
	}
	fmt.Printf("Ingested %d chunks (index now holds %d vectors)\n", total, count)
}
