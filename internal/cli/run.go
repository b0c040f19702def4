package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsentiment/rsent/internal/config"
	"github.com/rsentiment/rsent/internal/health"
	"github.com/rsentiment/rsent/internal/ingest"
	"github.com/rsentiment/rsent/internal/publish"
	"github.com/rsentiment/rsent/internal/reddit"
	"github.com/rsentiment/rsent/internal/registry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the crawl loop until interrupted",
	RunE:  runAction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	client, err := newIngestionClient(cfg, log)
	if err != nil {
		return err
	}

	sender, err := publish.NewPubSub(ctx, cfg.GCPProjectID, cfg.RawItemsTopic)
	if err != nil {
		return fmt.Errorf("create pubsub sender: %w", err)
	}
	defer func() { _ = sender.Close() }()

	publisher, err := publish.New(sender, log)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}

	orchestrator, err := ingest.New(reg, client, publisher, log, ingest.Options{
		PollInterval: cfg.PollInterval,
		Backfill:     cfg.Backfill(),
		MaxPages:     cfg.MaxPages,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	healthSrv := health.NewServer(cfg.Port)
	go func() {
		if err := healthSrv.Start(); err != nil {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("reddit ingester started",
		"region", cfg.GCPRegion,
		"rawItemsTopic", cfg.RawItemsTopic,
		"backfillDays", cfg.BackfillDays,
		"source", cfg.Source,
		"pollInterval", cfg.PollInterval.String(),
		"port", cfg.Port,
	)

	runErr := orchestrator.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", "err", err)
	}

	log.Info("reddit ingester shutting down")
	return runErr
}

func newIngestionClient(cfg *config.Config, log *slog.Logger) (reddit.API, error) {
	if cfg.Source == config.SourceMock {
		return reddit.NewMockClient(), nil
	}

	client, err := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
	}, log)
	if err != nil {
		var credErr *reddit.CredentialError
		if errors.As(err, &credErr) {
			return nil, fmt.Errorf("reddit credentials: %w", err)
		}
		return nil, fmt.Errorf("create reddit client: %w", err)
	}
	return client, nil
}
