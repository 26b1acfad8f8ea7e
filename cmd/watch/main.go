// Package main runs the CLI watcher: it polls the statistics of one contract
// and prints every refresh, either against a running API server or directly
// against Horizon and Soroban RPC.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/events"
	"soroban-watch/internal/horizon"
	"soroban-watch/internal/poller"
	"soroban-watch/internal/scanner"
	"soroban-watch/internal/soroban"
	"soroban-watch/internal/stats"
)

func main() {
	_ = godotenv.Load()

	contractID := flag.String("contract", os.Getenv("CONTRACT_ID"), "Contract identifier to watch (C...)")
	apiURL := flag.String("api-url", os.Getenv("API_URL"), "Watch through a running API server instead of the chain sources")
	horizonURL := flag.String("horizon-url", envOr("HORIZON_URL", "https://horizon-testnet.stellar.org"), "Horizon base URL")
	sorobanURL := flag.String("soroban-url", envOr("SOROBAN_RPC_URL", "https://soroban-testnet.stellar.org"), "Soroban RPC endpoint")
	interval := flag.Duration("interval", poller.DefaultInterval, "Background refresh interval")
	once := flag.Bool("once", false, "Refresh once, print and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	if *contractID == "" {
		logger.Fatal("--contract is required")
	}

	var source poller.Source
	if *apiURL != "" {
		source = poller.NewHTTPSource(*apiURL)
	} else {
		agg := stats.New(
			scanner.New(horizon.NewHTTPClient(*horizonURL), scanner.WithLogger(logger)),
			events.New(soroban.NewHTTPClient(*sorobanURL), events.WithLogger(logger)),
			stats.WithLogger(logger),
		)
		source = poller.NewLocalSource(agg)
	}

	p := poller.New(source, *contractID,
		poller.WithLogger(logger),
		poller.WithOnUpdate(printStats),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := p.RefreshNow(ctx); err != nil {
		cancel()
		logger.Fatal("initial refresh failed", zap.Error(err))
	}
	cancel()

	if *once {
		return
	}

	p.StartAutoRefresh(*interval)
	defer p.StopAutoRefresh()

	logger.Info("watching contract",
		zap.String("contract_id", *contractID),
		zap.Duration("interval", *interval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("watch stopped")
}

// printStats writes each applied refresh to stdout as one JSON document.
func printStats(s *domain.ContractStats) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(s)
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		os.Exit(1)
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
