// Package main runs the contract activity API server: statistics routes,
// contract registry, refresh history and the WebSocket push channel.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"soroban-watch/internal/events"
	"soroban-watch/internal/horizon"
	"soroban-watch/internal/poller"
	"soroban-watch/internal/scanner"
	"soroban-watch/internal/server"
	"soroban-watch/internal/soroban"
	"soroban-watch/internal/stats"
	"soroban-watch/internal/storage"
	chstore "soroban-watch/internal/storage/clickhouse"
	"soroban-watch/internal/storage/memory"
	pgstore "soroban-watch/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	horizonURL := flag.String("horizon-url", envOr("HORIZON_URL", "https://horizon-testnet.stellar.org"), "Horizon base URL")
	sorobanURL := flag.String("soroban-url", envOr("SOROBAN_RPC_URL", "https://soroban-testnet.stellar.org"), "Soroban RPC endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the contract registry")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for refresh history")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	pushInterval := flag.Duration("push-interval", poller.DefaultInterval, "WebSocket push refresh interval")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	contracts, refreshLog, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatal("failed to create stores", zap.Error(err))
	}
	defer cleanup()

	horizonClient := horizon.NewHTTPClient(*horizonURL)
	sorobanClient := soroban.NewHTTPClient(*sorobanURL)

	agg := stats.New(
		scanner.New(horizonClient, scanner.WithLogger(logger)),
		events.New(sorobanClient, events.WithLogger(logger)),
		stats.WithContractStore(contracts),
		stats.WithLogger(logger),
	)

	hub := server.NewHub(server.HubOptions{
		Source:     poller.NewLocalSource(agg),
		Contracts:  contracts,
		RefreshLog: refreshLog,
		Interval:   *pushInterval,
		Logger:     logger,
	})
	defer hub.Close()

	srv := server.New(server.Options{
		Aggregator: agg,
		Soroban:    sorobanClient,
		Contracts:  contracts,
		RefreshLog: refreshLog,
		Hub:        hub,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		cancel()
	}()

	logger.Info("server listening",
		zap.String("addr", *listenAddr),
		zap.String("horizon", *horizonURL),
		zap.String("soroban", *sorobanURL))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// createStores wires the registry and refresh-history backends. ClickHouse is
// optional: without a DSN the refresh history is simply not recorded.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *zap.Logger) (storage.ContractStore, storage.RefreshLogStore, func(), error) {
	if useMemory {
		return memory.NewContractStore(), memory.NewRefreshLogStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	var refreshLog storage.RefreshLogStore
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		refreshLog = chstore.NewRefreshLogStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		logger.Info("no clickhouse dsn, refresh history disabled")
	}

	return pgstore.NewContractStore(pool), refreshLog, cleanup, nil
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
