package cmd

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryan-buckman/bulletin/internal/config"
	"github.com/bryan-buckman/bulletin/internal/database"
	"github.com/bryan-buckman/bulletin/internal/news"
)

// openStore opens the backend selected by DB_DRIVER.
func openStore(cfg *config.Config) (*database.DB, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres":
		return database.NewPostgres(cfg.DatabaseURL)
	default:
		return database.New(cfg.DBPath)
	}
}

// newIngester builds the ingest pipeline from cfg.
func newIngester(cfg *config.Config, store news.ArticleStore, logger *zap.Logger) (*news.Ingester, error) {
	seg, err := news.NewSegmenter(cfg.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}
	client := news.NewClient(news.ClientConfig{
		BaseURL:  cfg.NewsAPIURL,
		APIKey:   cfg.NewsAPIKey,
		Country:  cfg.NewsCountry,
		Language: cfg.NewsLanguage,
		Timeout:  cfg.NewsTimeout,
	}, nil)
	normalizer := news.NewNormalizer(seg, cfg.ParagraphSize, cfg.DefaultAuthor)
	return news.NewIngester(client, normalizer, store, logger), nil
}
