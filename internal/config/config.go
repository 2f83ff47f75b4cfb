// Package config loads settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings read from environment variables.
type Config struct {
	// Optional at load time. Ingestion reports a missing key as a config failure.
	NewsAPIKey   string        `envconfig:"NEWS_API_KEY"`
	NewsAPIURL   string        `envconfig:"NEWS_API_URL" default:"https://newsdata.io/api/1/news"`
	NewsCountry  string        `envconfig:"NEWS_COUNTRY" default:"us"`
	NewsLanguage string        `envconfig:"NEWS_LANGUAGE" default:"en"`
	NewsTimeout  time.Duration `envconfig:"NEWS_TIMEOUT" default:"30s"`

	ParagraphSize int    `envconfig:"PARAGRAPH_SIZE" default:"5"`
	Segmenter     string `envconfig:"SEGMENTER" default:"nlp"`
	DefaultAuthor string `envconfig:"DEFAULT_AUTHOR" default:"newsdesk"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"bulletin.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"`
	SiteURL       string        `envconfig:"SITE_URL" default:"http://localhost:8080"`
	CronSchedule  string        `envconfig:"CRON_SCHEDULE" default:"@every 1h"`
	IngestTimeout time.Duration `envconfig:"INGEST_TIMEOUT" default:"5m"`
	IngestOnStart bool          `envconfig:"INGEST_ON_START" default:"false"`
	IngestOnView  bool          `envconfig:"INGEST_ON_VIEW" default:"false"`
	PageSize      int           `envconfig:"PAGE_SIZE" default:"10"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values envconfig cannot express with tags.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch strings.ToLower(c.Segmenter) {
	case "nlp", "punct":
	default:
		return fmt.Errorf("unknown SEGMENTER %q", c.Segmenter)
	}
	if c.ParagraphSize < 1 {
		return fmt.Errorf("PARAGRAPH_SIZE must be positive, got %d", c.ParagraphSize)
	}
	return nil
}
