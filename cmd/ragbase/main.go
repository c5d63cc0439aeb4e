// Command ragbase is the development CLI: it orchestrates the docker-compose
// stack, runs tests, issues dev tokens, and can serve the api with in-process
// workers so no Redis is needed locally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osoriodev/ragbase/internal/api"
	"github.com/osoriodev/ragbase/internal/auth"
	"github.com/osoriodev/ragbase/internal/blobstore"
	"github.com/osoriodev/ragbase/internal/chunker"
	"github.com/osoriodev/ragbase/internal/config"
	"github.com/osoriodev/ragbase/internal/database"
	"github.com/osoriodev/ragbase/internal/dispatch"
	"github.com/osoriodev/ragbase/internal/extract"
	"github.com/osoriodev/ragbase/internal/limits"
	"github.com/osoriodev/ragbase/internal/llm"
	"github.com/osoriodev/ragbase/internal/logger"
	"github.com/osoriodev/ragbase/internal/processor"
	"github.com/osoriodev/ragbase/internal/rag"
	"github.com/osoriodev/ragbase/internal/repository"
)

var composeFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ragbase: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragbase",
		Short: "ragbase development CLI",
		Long: `ragbase CLI orchestrates common development workflows: building and running
the Docker stack, running tests, issuing dev tokens, and serving the api
with in-process workers.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")
	cmd.AddCommand(
		newUpCmd(),
		newDownCmd(),
		newLogsCmd(),
		newTestCmd(),
		newTokenCmd(),
		newServeCmd(),
	)
	return cmd
}

func newUpCmd() *cobra.Command {
	var detach bool
	var skipBuild bool
	cmd := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the docker-compose stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "up"}
			if !skipBuild {
				composeArgs = append(composeArgs, "--build")
			}
			if detach {
				composeArgs = append(composeArgs, "-d")
			}
			composeArgs = append(composeArgs, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	cmd.Flags().BoolVarP(&detach, "detached", "d", true, "Run docker compose in detached mode")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")
	return cmd
}

func newDownCmd() *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the docker-compose stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "down"}
			if removeVolumes {
				composeArgs = append(composeArgs, "-v")
			}
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Tail logs from docker-compose services",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "logs"}
			if follow {
				composeArgs = append(composeArgs, "-f")
			}
			composeArgs = append(composeArgs, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream logs continuously")
	return cmd
}

func newTestCmd() *cobra.Command {
	var race bool
	var cover bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if cover {
				goArgs = append(goArgs, "-cover")
			}
			goArgs = append(goArgs, pkgs...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Collect coverage data")
	return cmd
}

// newTokenCmd issues a signed bearer token for manual testing against a
// server started with the same RAGBASE_TOKEN_SECRET.
func newTokenCmd() *cobra.Command {
	var companyID, userID, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dev bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID == "" {
				return fmt.Errorf("--company is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.TokenTTL
			}
			tokens := auth.NewTokenService(cfg.TokenSecret)
			token, err := tokens.Issue(auth.Claims{
				Subject:   userID,
				UserID:    userID,
				CompanyID: companyID,
				Role:      role,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "Company id the token is scoped to")
	cmd.Flags().StringVar(&userID, "user", "dev", "User id embedded in the token")
	cmd.Flags().StringVar(&role, "role", "member", "Role claim (admin sees all query logs)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to RAGBASE_TOKEN_TTL)")
	return cmd
}

// newServeCmd runs the api with an in-process dispatcher, so documents are
// processed by goroutines in the same binary and Redis is not required.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the api with in-process document workers (no Redis)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveLocal(cmd.Context())
		},
	}
}

func serveLocal(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

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
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	docs := repository.NewDocumentRepository(pool)
	chunks := repository.NewChunkRepository(pool)
	subs := repository.NewSubscriptionRepository(pool)
	queryLogs := repository.NewQueryLogRepository(pool)

	generator, err := llm.New(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
		chunker.WithMode(cfg.ChunkMode),
	)
	proc := processor.New(docs, chunks, store, extract.New(), splitter, log)
	dispatcher := dispatch.NewLocalDispatcher(proc, cfg.Concurrency, log)
	dispatcher.Start(ctx)

	limiter := limits.New(subs, docs)
	engine := rag.New(docs, chunks, generator, queryLogs, log)
	tokens := auth.NewTokenService(cfg.TokenSecret)

	srv := api.New(cfg, docs, chunks, subs, queryLogs, limiter, engine, store, dispatcher, tokens, log)
	return srv.Run(ctx)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
