package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsentiment/rsent/internal/config"
	"github.com/rsentiment/rsent/internal/registry"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage the source registry",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subreddits and their watermarks",
	RunE:  sourcesListAction,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable NAME",
	Short: "Enable a subreddit for crawling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable NAME",
	Short: "Disable a subreddit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], false)
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesEnableCmd, sourcesDisableCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func openRegistry() (*registry.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	reg, err := registry.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return reg, nil
}

func sourcesListAction(cmd *cobra.Command, _ []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	subs, err := reg.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	if len(subs) == 0 {
		fmt.Println("No subreddits registered. Run 'rsent seed' first.")
		return nil
	}

	for _, sub := range subs {
		state := "disabled"
		if sub.Enabled {
			state = "enabled"
		}
		watermark := "never crawled"
		if sub.LastCrawledAt != nil {
			watermark = sub.LastCrawledAt.UTC().Format(time.RFC3339)
		}
		fmt.Printf("%-24s %-8s %s\n", sub.Name, state, watermark)
	}
	return nil
}

func setSourceEnabled(cmd *cobra.Command, name string, enabled bool) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	if err := reg.SetEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Subreddit %s %s.\n", name, state)
	return nil
}
