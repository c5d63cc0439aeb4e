// Command worker consumes processing jobs from Redis and runs the document
// pipeline: download, extract, chunk, persist.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/osoriodev/ragbase/internal/blobstore"
	"github.com/osoriodev/ragbase/internal/chunker"
	"github.com/osoriodev/ragbase/internal/config"
	"github.com/osoriodev/ragbase/internal/database"
	"github.com/osoriodev/ragbase/internal/extract"
	"github.com/osoriodev/ragbase/internal/logger"
	"github.com/osoriodev/ragbase/internal/processor"
	"github.com/osoriodev/ragbase/internal/repository"
	"github.com/osoriodev/ragbase/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
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

	store, err := blobstore.New(cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	docs := repository.NewDocumentRepository(pool)
	chunks := repository.NewChunkRepository(pool)
	splitter := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
		chunker.WithMode(cfg.ChunkMode),
	)
	proc := processor.New(docs, chunks, store, extract.New(), splitter, log)
	handler := worker.NewHandler(proc, log)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{Concurrency: cfg.Concurrency},
	)
	log.Info().Str("redis", cfg.RedisAddr).Int("concurrency", cfg.Concurrency).Msg("worker starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(handler.Mux())
	}()
	select {
	case <-ctx.Done():
		srv.Shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}
