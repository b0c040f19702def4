// Package config loads the ingester configuration from environment
// variables, applies defaults, and validates at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SourceReddit = "reddit"
	SourceMock   = "mock"

	DefaultRegion        = "europe-west2"
	DefaultRawItemsTopic = "raw-posts"
	DefaultSubscription  = "raw-posts-sub"
	DefaultDLQTopic      = "raw-posts-dlq"
	DefaultVertexModel   = "gemini-1.5-flash"
	DefaultBackfillDays  = 2
	DefaultPollInterval  = time.Minute
	DefaultMaxPages      = 25
	DefaultPort          = "8080"
)

// Config is the process configuration shared by the commands.
type Config struct {
	DatabaseURL string

	GCPProjectID         string
	GCPRegion            string
	RawItemsTopic        string
	RawItemsSubscription string
	DLQTopic             string
	VertexModel          string

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	Source       string
	BackfillDays int
	PollInterval time.Duration
	MaxPages     int
	Port         string
}

// Load reads the environment, applies defaults, and validates. Missing
// Reddit credentials are fatal unless the mock source is selected.
func Load() (*Config, error) {
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:          getenv("DATABASE_URL"),
		GCPProjectID:         getenv("GCP_PROJECT_ID"),
		GCPRegion:            getenv("GCP_REGION"),
		RawItemsTopic:        getenv("PUBSUB_RAW_POSTS_TOPIC"),
		RawItemsSubscription: getenv("PUBSUB_RAW_POSTS_SUBSCRIPTION"),
		DLQTopic:             getenv("PUBSUB_DLQ_TOPIC"),
		VertexModel:          getenv("VERTEX_MODEL"),
		RedditClientID:       getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret:   getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:      getenv("REDDIT_USER_AGENT"),
		Source:               getenv("INGESTER_SOURCE"),
		Port:                 getenv("PORT"),
	}

	applyDefaults(cfg)

	if raw := getenv("INGESTER_BACKFILL_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("INGESTER_BACKFILL_DAYS: %w", err)
		}
		cfg.BackfillDays = days
	}

	if raw := getenv("INGESTER_POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("INGESTER_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = interval
	}

	if raw := getenv("INGESTER_MAX_PAGES"); raw != "" {
		pages, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("INGESTER_MAX_PAGES: %w", err)
		}
		cfg.MaxPages = pages
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.GCPRegion == "" {
		cfg.GCPRegion = DefaultRegion
	}
	if cfg.RawItemsTopic == "" {
		cfg.RawItemsTopic = DefaultRawItemsTopic
	}
	if cfg.RawItemsSubscription == "" {
		cfg.RawItemsSubscription = DefaultSubscription
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = DefaultDLQTopic
	}
	if cfg.VertexModel == "" {
		cfg.VertexModel = DefaultVertexModel
	}
	if cfg.Source == "" {
		cfg.Source = SourceReddit
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	cfg.BackfillDays = DefaultBackfillDays
	cfg.PollInterval = DefaultPollInterval
	cfg.MaxPages = DefaultMaxPages
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch cfg.Source {
	case SourceReddit:
		if cfg.RedditClientID == "" || cfg.RedditClientSecret == "" || cfg.RedditUserAgent == "" {
			return errors.New("REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET and REDDIT_USER_AGENT are required for the reddit source")
		}
	case SourceMock:
		// runs without credentials
	default:
		return fmt.Errorf("INGESTER_SOURCE: unknown source %q (want reddit or mock)", cfg.Source)
	}

	if cfg.BackfillDays <= 0 {
		return errors.New("INGESTER_BACKFILL_DAYS must be positive")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("INGESTER_POLL_INTERVAL must be positive")
	}
	if cfg.MaxPages <= 0 {
		return errors.New("INGESTER_MAX_PAGES must be positive")
	}

	return nil
}

// Backfill converts the configured backfill days to a duration.
func (c *Config) Backfill() time.Duration {
	return time.Duration(c.BackfillDays) * 24 * time.Hour
}
