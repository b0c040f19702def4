package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rsentiment/rsent/internal/config"
	"github.com/rsentiment/rsent/internal/registry"
)

// defaultSeedSubreddits matches the initial deployment set.
var defaultSeedSubreddits = []string{"wallstreetbets", "stocks", "options", "investing"}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register subreddits in the source registry",
	Long:  "Upserts subreddits into the registry, enabling them for crawling. Reads names from a YAML file when --file is given, otherwise seeds the default set.",
	RunE:  seedAction,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML file with a subreddits list")
	rootCmd.AddCommand(seedCmd)
}

type seedSpec struct {
	Subreddits []string `yaml:"subreddits"`
}

func seedAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	names := defaultSeedSubreddits
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		var spec seedSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse seed file: %w", err)
		}
		if len(spec.Subreddits) == 0 {
			return fmt.Errorf("seed file %s lists no subreddits", seedFile)
		}
		names = spec.Subreddits
	}

	reg, err := registry.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	ctx := cmd.Context()
	for _, name := range names {
		if err := reg.Upsert(ctx, name); err != nil {
			return fmt.Errorf("seed subreddit: %w", err)
		}
	}

	enabled, err := reg.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled: %w", err)
	}

	enabledNames := make([]string, 0, len(enabled))
	for _, sub := range enabled {
		enabledNames = append(enabledNames, sub.Name)
	}
	fmt.Printf("Seeded subreddits: %s\n", strings.Join(enabledNames, ", "))
	return nil
}
