package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rsentiment/rsent/internal/config"
	"github.com/rsentiment/rsent/internal/ingest"
	"github.com/rsentiment/rsent/internal/publish"
	"github.com/rsentiment/rsent/internal/registry"
)

var crawlDryRun bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a single crawl cycle",
	Long:  "Runs one crawl cycle over the enabled subreddits and exits. With --dry-run, envelopes are written to stdout as JSON lines instead of being published.",
	RunE:  crawlAction,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "write envelopes to stdout instead of publishing")
	rootCmd.AddCommand(crawlCmd)
}

func crawlAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger()
	ctx := cmd.Context()

	reg, err := registry.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	client, err := newIngestionClient(cfg, log)
	if err != nil {
		return err
	}

	var sender publish.Sender
	if crawlDryRun {
		sender = publish.NewWriter(os.Stdout)
	} else {
		pubsubSender, err := publish.NewPubSub(ctx, cfg.GCPProjectID, cfg.RawItemsTopic)
		if err != nil {
			return fmt.Errorf("create pubsub sender: %w", err)
		}
		defer func() { _ = pubsubSender.Close() }()
		sender = pubsubSender
	}

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

	return orchestrator.RunOnce(ctx)
}
