package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitos/trade_calls/internal/app"
	"github.com/vitos/trade_calls/internal/config"
	"github.com/vitos/trade_calls/internal/infrastructure/logger"
	"github.com/vitos/trade_calls/internal/infrastructure/tracing"
	"github.com/vitos/trade_calls/internal/usecase"
	"github.com/vitos/trade_calls/internal/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to YAML or TOML config")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := tracing.Init(cfg.Tracing.Enabled, version); err != nil {
		log.Error("Failed to init tracing", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage
	repo, closeRepo, err := app.OpenRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open call sheet", zap.Error(err))
	}
	defer closeRepo()

	// 4. Init Quotes
	provider, err := app.NewQuoteProvider(cfg)
	if err != nil {
		log.Fatal("Failed to init quote provider", zap.Error(err))
	}
	quoteCache, closeCache, err := app.NewQuoteCache(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init quote cache", zap.Error(err))
	}
	defer closeCache()

	// 5. Init Services
	market := app.NewMarketService(cfg, provider, quoteCache, log)
	calls := usecase.NewCallService(repo, market, log)
	auth := usecase.NewAuthService(usecase.AuthConfig{
		AdminUser:         cfg.Auth.AdminUser,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		SessionTTL:        cfg.Auth.SessionTTL,
	}, log)
	if cfg.Auth.AdminPasswordHash == "" {
		log.Warn("No admin password hash configured, admin login is disabled")
	}

	// 6. Init Web Server
	hub := web.NewHub(log)
	server := web.NewServer(cfg.Server.Port, calls, market, auth, hub, cfg.Auth.SecureCookie, log)

	log.Info("Terminal starting",
		zap.String("version", version),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("quotes", provider.Name()),
		zap.String("cache", cfg.Cache.Driver),
		zap.Duration("refresh_interval", cfg.Monitor.RefreshInterval),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// Background monitor pass. Disabled unless an interval is configured;
	// the refresh endpoints cover the on-demand case.
	if cfg.Monitor.RefreshInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Monitor.RefreshInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					res, err := server.Refresh(gctx)
					if err != nil {
						log.Error("Scheduled refresh failed", zap.Error(err))
						continue
					}
					if len(res.Changed) > 0 {
						log.Info("Scheduled refresh closed calls", zap.Int("closed", len(res.Changed)))
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	// Session cleanup
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := auth.PruneExpired(); n > 0 {
					log.Debug("Pruned expired sessions", zap.Int("count", n))
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
		return tracing.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Terminal stopped with error", zap.Error(err))
	}
}
