// Command api runs the HTTP server: document management, uploads, RAG
// queries, and query logs. Processing work is enqueued onto Redis for the
// worker binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/osoriodev/ragbase/internal/api"
	"github.com/osoriodev/ragbase/internal/auth"
	"github.com/osoriodev/ragbase/internal/blobstore"
	"github.com/osoriodev/ragbase/internal/config"
	"github.com/osoriodev/ragbase/internal/database"
	"github.com/osoriodev/ragbase/internal/dispatch"
	"github.com/osoriodev/ragbase/internal/limits"
	"github.com/osoriodev/ragbase/internal/llm"
	"github.com/osoriodev/ragbase/internal/logger"
	"github.com/osoriodev/ragbase/internal/rag"
	"github.com/osoriodev/ragbase/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	docs := repository.NewDocumentRepository(pool)
	chunks := repository.NewChunkRepository(pool)
	subs := repository.NewSubscriptionRepository(pool)
	queryLogs := repository.NewQueryLogRepository(pool)

	store, err := blobstore.New(cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	generator, err := llm.New(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	limiter := limits.New(subs, docs)
	engine := rag.New(docs, chunks, generator, queryLogs, log)
	tokens := auth.NewTokenService(cfg.TokenSecret)

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	dispatcher := dispatch.NewQueueDispatcher(client)

	srv := api.New(cfg, docs, chunks, subs, queryLogs, limiter, engine, store, dispatcher, tokens, log)
	return srv.Run(ctx)
}
