// Package app turns a loaded Config into the concrete adapters the
// commands share.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/config"
	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/infrastructure/cache"
	"github.com/vitos/trade_calls/internal/infrastructure/quotes"
	"github.com/vitos/trade_calls/internal/infrastructure/storage"
	"github.com/vitos/trade_calls/internal/usecase"
)

// Closer releases a resource opened during bootstrap.
type Closer func() error

func noopCloser() error { return nil }

// OpenRepository opens the call sheet backend named by storage.driver.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.PositionRepository, Closer, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init sqlite: %w", err)
		}
		return store, store.Close, nil

	case "postgres":
		store, err := storage.NewPostgresStore(ctx, cfg.Storage.PostgresDSN, cfg.Storage.PostgresMaxConns, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		return store, store.Close, nil

	case "s3":
		s3cfg := cfg.Storage.S3
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Endpoint:       s3cfg.Endpoint,
			Region:         s3cfg.Region,
			Bucket:         s3cfg.Bucket,
			Key:            s3cfg.Key,
			AccessKey:      s3cfg.AccessKey,
			SecretKey:      s3cfg.SecretKey,
			ForcePathStyle: s3cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init s3 client: %w", err)
		}
		return storage.NewSheetStore(client, s3cfg.Bucket, s3cfg.Key, logger), noopCloser, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// NewQuoteProvider returns the market data source named by quotes.provider.
func NewQuoteProvider(cfg *config.Config) (domain.QuoteProvider, error) {
	switch cfg.Quotes.Provider {
	case "yahoo":
		return quotes.NewYahooProvider(cfg.Quotes.YahooBaseURL), nil
	case "kite":
		return quotes.NewKiteProvider(cfg.Quotes.KiteAPIKey, cfg.Quotes.KiteAccessToken), nil
	}
	return nil, fmt.Errorf("unknown quotes provider %q", cfg.Quotes.Provider)
}

// NewQuoteCache returns the quote cache named by cache.driver.
func NewQuoteCache(ctx context.Context, cfg *config.Config) (domain.QuoteCache, Closer, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return cache.NewMemoryQuoteCache(), noopCloser, nil
	case "redis":
		c, err := cache.NewRedisQuoteCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
}

// NewMarketService wires provider and cache with the quotes settings.
func NewMarketService(cfg *config.Config, provider domain.QuoteProvider, qc domain.QuoteCache, logger *zap.Logger) *usecase.MarketService {
	return usecase.NewMarketService(provider, qc, usecase.MarketConfig{
		CacheTTL:    cfg.Quotes.CacheTTL,
		Timeout:     cfg.Quotes.Timeout,
		MaxParallel: cfg.Quotes.MaxParallel,
	}, logger)
}
