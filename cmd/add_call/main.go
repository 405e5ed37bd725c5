package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/app"
	"github.com/vitos/trade_calls/internal/config"
	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to YAML or TOML config")
	symbol := flag.String("symbol", "", "NSE symbol, e.g. RELIANCE")
	side := flag.String("side", "BUY", "BUY or SELL")
	entry := flag.String("entry", "", "entry price")
	target := flag.String("target", "", "target price")
	sl := flag.String("sl", "", "stop-loss price")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	s, err := domain.ParseSide(*side)
	if err != nil {
		fmt.Printf("Invalid side: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log := zap.NewNop()

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, log)
	if err != nil {
		fmt.Printf("Failed to open call sheet: %v\n", err)
		os.Exit(1)
	}
	defer closeRepo()

	provider, err := app.NewQuoteProvider(cfg)
	if err != nil {
		fmt.Printf("Failed to init quote provider: %v\n", err)
		os.Exit(1)
	}
	market := app.NewMarketService(cfg, provider, nil, log)
	calls := usecase.NewCallService(repo, market, log)

	call, err := calls.Publish(ctx, domain.NewCall{
		Symbol:        *symbol,
		Side:          s,
		EntryPrice:    parsePrice(*entry),
		TargetPrice:   parsePrice(*target),
		StopLossPrice: parsePrice(*sl),
	})
	if err != nil {
		fmt.Printf("Failed to publish call: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Call published!\n")
	fmt.Printf("ID: %d\n", call.ID)
	fmt.Printf("Symbol: %s %s\n", call.Symbol, call.Side)
	fmt.Printf("Entry: %s  Target: %s  SL: %s\n",
		call.EntryPrice.StringFixed(2), call.TargetPrice.StringFixed(2), call.StopLossPrice.StringFixed(2))

	if cmp, ok := market.Quote(ctx, call.Symbol); ok {
		fmt.Printf("CMP: %s\n", cmp.StringFixed(2))
	} else {
		fmt.Printf("⚠️ CMP unavailable from %s\n", provider.Name())
	}
}

func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
