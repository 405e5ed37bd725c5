package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/app"
	"github.com/vitos/trade_calls/internal/config"
	"github.com/vitos/trade_calls/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to YAML or TOML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, closeRepo, err := app.OpenRepository(ctx, cfg, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to open call sheet: %v\n", err)
		os.Exit(1)
	}
	defer closeRepo()

	positions, err := repo.Load(ctx)
	if err != nil {
		fmt.Printf("Failed to load calls: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d calls in %s storage:\n", len(positions), cfg.Storage.Driver)
	for _, p := range positions {
		fmt.Printf("- #%d %s %s entry=%s target=%s sl=%s status=%s",
			p.ID, p.Symbol, p.Side,
			p.EntryPrice.StringFixed(2), p.TargetPrice.StringFixed(2), p.StopLossPrice.StringFixed(2),
			p.Status)
		if !p.IsActive() {
			fmt.Printf(" exit=%s points=%s", p.ExitPrice.StringFixed(2), usecase.RealizedPoints(p).StringFixed(2))
		}
		fmt.Println()
		if err := p.Validate(); err != nil {
			fmt.Printf("  ⚠️ %v\n", err)
		}
	}

	perf := usecase.Summarize(positions)
	fmt.Printf("\nClosed: %d  Wins: %d  Losses: %d  Hit rate: %s%%\n",
		perf.Closed, perf.Wins, perf.Losses, perf.HitRatePercent.StringFixed(2))
	fmt.Printf("Target hits: %d  SL hits: %d  Manual: %d\n",
		perf.TargetHits, perf.StopLossHits, perf.ManualCloses)
	fmt.Printf("Total points: %s\n", perf.TotalPoints.StringFixed(2))
}
