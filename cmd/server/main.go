package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/leadpilot-ai/server/internal/agent/graph"
	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/agent/repo"
	"github.com/leadpilot-ai/server/internal/core"
	"github.com/leadpilot-ai/server/internal/jobs"
	"github.com/leadpilot-ai/server/internal/rag"
	"github.com/leadpilot-ai/server/internal/server"
	"github.com/leadpilot-ai/server/internal/tools"
	logx "github.com/leadpilot-ai/server/pkg/logger"
	pkgredis "github.com/leadpilot-ai/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8000"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Decision     model.DecisionModelConfig
	Response     model.ResponseModelConfig
	Embedding    model.EmbeddingConfig
	RAG          model.RAGConfig
	Confidence   model.ConfidenceConfig
	Conversation model.ConversationConfig
	Scheduler    model.SchedulerConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
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

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("invalid CONVERSATION_TTL")
	}

	leadRepo := repo.NewRedisLeadRepository(rdb)
	conversationRepo := repo.NewRedisConversationRepository(rdb, ttl)
	vectorStore := repo.NewRedisVectorStore(rdb, cfg.RAG.Collection)

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	gclient, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create gemini client")
	}
	embedder := rag.NewGeminiEmbedder(gclient, cfg.Embedding.Model)

	registry := tools.NewRegistry(tools.NewExecutor(),
		tools.NewCRMAdapter(leadRepo),
		tools.NewCalendarAdapter(rdb),
		tools.NewEmailAdapter(rdb),
	)

	runner, err := graph.BuildAgentGraph(ctx, graph.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		DecisionModel: cfg.Decision,
		ResponseModel: cfg.Response,
		Confidence:    cfg.Confidence,
		RAG:           cfg.RAG,
		Conversation:  cfg.Conversation,
		Leads:         leadRepo,
		Conversations: conversationRepo,
		VectorStore:   vectorStore,
		Embedder:      embedder,
		Tools:         registry,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build agent graph")
	}

	scheduler := jobs.NewFollowupScheduler(leadRepo, registry, cfg.Scheduler)
	if err := scheduler.Start(); err != nil {
		logx.Fatal().Err(err).Msg("failed to start followup scheduler")
	}
	defer scheduler.Stop()

	srv := server.New(cfg.HTTPAddr, runner, leadRepo)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("http server failed")
		}
	case sig := <-stop:
		logx.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
