package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsentiment/rsent/internal/config"
)

// The classification pipeline lives downstream of the raw-items topic
// and is not built yet; this command only proves out its configuration.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Bootstrap the classification service (not implemented)",
	RunE:  processAction,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func processAction(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger()
	log.Info("processor bootstrapped",
		"region", cfg.GCPRegion,
		"subscription", cfg.RawItemsSubscription,
		"dlqTopic", cfg.DLQTopic,
		"vertexModel", cfg.VertexModel,
	)
	log.Warn("classification pipeline is not implemented; exiting")
	return nil
}
