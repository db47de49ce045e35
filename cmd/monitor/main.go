package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"token-radar/internal/config"
	"token-radar/internal/domain"
	"token-radar/internal/evm"
	"token-radar/internal/feed"
	"token-radar/internal/monitor"
	"token-radar/internal/notify"
	"token-radar/internal/observability"
	"token-radar/internal/pricing"
	"token-radar/internal/signal"
	"token-radar/internal/storage"
	chstore "token-radar/internal/storage/clickhouse"
	"token-radar/internal/storage/memory"
	"token-radar/internal/storage/migrations"
	pgstore "token-radar/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of configured DSNs")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	once := flag.Bool("once", false, "Run a single poll cycle and exit")

	flag.Parse()

	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, *useMemory, *once)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Monitor failed: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory, once bool) error {
	chain := domain.Chain(cfg.Chain)

	tokenStore, history, cleanup, err := buildStores(ctx, logger, cfg, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	source := feed.NewClient(cfg.Feed.BaseURL, chain,
		feed.WithTimeout(cfg.Feed.Timeout),
		feed.WithMaxRetries(cfg.Feed.MaxRetries),
		feed.WithLogger(logger),
	)

	classifier := signal.New(signal.Options{
		AllowedHandles:      cfg.Signal.AllowedHandles,
		MaxAge:              cfg.Signal.MaxAge,
		RejectFutureSignals: cfg.Signal.RejectFutureSignals,
	})

	oracle, err := buildOracle(logger, cfg, chain)
	if err != nil {
		return err
	}

	minLiquidity := cfg.Monitor.MinLiquidityUSD
	runner := monitor.New(monitor.Options{
		Source:     source,
		Store:      tokenStore,
		History:    history,
		Oracle:     oracle,
		Classifier: classifier,
		Sink:       notify.NewLogSink(logger),
		Filter: func(tok *domain.FeedToken) bool {
			return tok.LiquidityUSD >= minLiquidity
		},
		Workers:  cfg.Monitor.Workers,
		Interval: cfg.Monitor.Interval,
		Logger:   logger,
	})

	if once {
		res, err := runner.TryCycle(ctx)
		if err != nil {
			return err
		}
		logger.Printf("Cycle result: %+v", *res)
		return nil
	}

	logger.Printf("Polling %s feeds every %s with %d workers", chain, cfg.Monitor.Interval, cfg.Monitor.Workers)
	return runner.Run(ctx)
}

// buildStores wires the lifecycle and price history stores: PostgreSQL and
// ClickHouse when DSNs are configured, in-memory fallbacks otherwise.
func buildStores(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) (storage.TokenStore, storage.PriceHistoryStore, func(), error) {
	noop := func() {}

	if useMemory || cfg.Storage.PostgresDSN == "" {
		logger.Println("Using in-memory token store")
		var history storage.PriceHistoryStore = memory.NewPriceHistoryStore()
		return memory.NewTokenStore(), history, noop, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, noop, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, noop, err
	}
	tokenStore := pgstore.NewTokenStore(pool)

	if cfg.Storage.ClickhouseDSN == "" {
		logger.Println("No ClickHouse DSN, keeping price history in memory")
		return tokenStore, memory.NewPriceHistoryStore(), pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, noop, err
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return tokenStore, chstore.NewPriceHistoryStore(conn), cleanup, nil
}

// buildOracle wires the EVM price oracle. Non-EVM chains and missing RPC
// endpoints run without pricing.
func buildOracle(logger *log.Logger, cfg *config.Config, chain domain.Chain) (*pricing.Oracle, error) {
	if !chain.IsEVM() || len(cfg.RPC.Endpoints) == 0 {
		logger.Println("Pricing disabled: no EVM RPC endpoints configured")
		return nil, nil
	}
	if !common.IsHexAddress(cfg.RPC.Factory) {
		return nil, errors.New("rpc.factory must be a valid address when endpoints are set")
	}

	opts := []evm.ClientOption{
		evm.WithTimeout(cfg.RPC.Timeout),
		evm.WithMaxRetries(cfg.RPC.MaxRetries),
	}
	if common.IsHexAddress(cfg.RPC.Router) {
		opts = append(opts, evm.WithRouter(common.HexToAddress(cfg.RPC.Router)))
	}

	client, err := evm.NewRPCClient(cfg.RPC.Endpoints, common.HexToAddress(cfg.RPC.Factory), opts...)
	if err != nil {
		return nil, err
	}

	native := common.HexToAddress(cfg.Pricing.NativeToken)
	usd := common.HexToAddress(cfg.Pricing.USDToken)

	nativeSource := pricing.NativeSourceFromPools(client, native, usd,
		cfg.Pricing.NativeDecimals, cfg.Pricing.USDDecimals)

	return pricing.New(pricing.Options{
		Pools:          client,
		Native:         pricing.NewNativePrice(nativeSource, cfg.Pricing.NativeTTL),
		NativeToken:    native,
		USDToken:       usd,
		NativeDecimals: cfg.Pricing.NativeDecimals,
		USDDecimals:    cfg.Pricing.USDDecimals,
		Protocol:       cfg.Pricing.Protocol,
		StaleAfter:     cfg.Pricing.StaleAfter,
		Logger:         logger,
	}), nil
}
