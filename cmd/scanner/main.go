package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexscope/internal/chain"
	"dexscope/internal/config"
	"dexscope/internal/discovery"
	"dexscope/internal/metrics"
	"dexscope/internal/model"
	"dexscope/internal/pricecache"
	"dexscope/internal/registry"
	"dexscope/internal/scanner"
	"dexscope/internal/storage"
	"dexscope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "scanner",
		Short:        "DEX pool price scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover pools from subgraphs and cache the catalog",
		RunE:  runDiscover,
	}
	addCommonFlags(discoverCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream pool events and track prices",
		RunE:  runScanner,
	}
	addCommonFlags(runCmd)
	runCmd.Flags().String("rpc", "", "websocket RPC URL")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")

	root.AddCommand(discoverCmd, runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("protocols", "./protocols.json", "protocols file path")
	cmd.Flags().String("tokens", "./tokens.json", "token whitelist file path")
	cmd.Flags().String("pool-cache", "./data/pools.jsonl", "pool catalog JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the pool catalog (overrides pool-cache)")
	cmd.Flags().Int("max-retries", 3, "maximum subgraph retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial subgraph retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools, err := discoverPools(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store, cleanup, err := newPoolStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.SavePools(ctx, pools); err != nil {
		return fmt.Errorf("save pool catalog: %w", err)
	}
	logger.Info("pool catalog saved", zap.Int("pools", len(pools)))
	return nil
}

func runScanner(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newPoolStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	pools, err := store.LoadPools(ctx)
	if err != nil {
		return fmt.Errorf("load pool catalog: %w", err)
	}
	if len(pools) == 0 {
		logger.Info("pool catalog empty, running discovery")
		pools, err = discoverPools(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := store.SavePools(ctx, pools); err != nil {
			return fmt.Errorf("save pool catalog: %w", err)
		}
	}
	if len(pools) == 0 {
		return fmt.Errorf("no pools to track; check %s and %s", cfg.ProtocolsFile, config.GraphAPIKeyEnv)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	pools = discovery.EnrichTokenMetadata(ctx, chainClient, pools, logger)

	reg, err := registry.New(pools)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	scannerMetrics := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, scannerMetrics, logger)
	}

	s, err := scanner.New(scanner.Config{
		Registry:      reg,
		Cache:         pricecache.New(),
		Feed:          scanner.NewChainFeed(chainClient),
		OnPriceChange: logPriceChange(logger),
		Logger:        logger,
		Metrics:       scannerMetrics,
	})
	if err != nil {
		return err
	}

	logger.Info("scanner start",
		zap.String("chain_id", chainID.String()),
		zap.Int("pools", reg.Len()),
	)

	if err := s.SeedInitialState(ctx, chainClient); err != nil {
		return err
	}

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("scanner stopped")
		return nil
	}
	return err
}

func discoverPools(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]model.PoolDescriptor, error) {
	protocols, discoveryCfg, err := config.LoadProtocols(cfg.ProtocolsFile)
	if err != nil {
		return nil, err
	}
	if len(protocols) == 0 {
		logger.Warn("no queryable protocols; enable protocols and set the API key",
			zap.String("file", cfg.ProtocolsFile),
			zap.String("env", config.GraphAPIKeyEnv),
		)
	}

	tokens, err := config.LoadTokens(cfg.TokensFile)
	if err != nil {
		return nil, err
	}

	d := discovery.NewDiscoverer(logger, cfg.MaxRetries, cfg.RetryBackoff)
	pools, err := d.Discover(ctx, protocols, discoveryCfg)
	if err != nil {
		return nil, err
	}

	filtered := discovery.FilterByTokenWhitelist(pools, config.Whitelist(tokens))
	logger.Info("discovery complete",
		zap.Int("discovered", len(pools)),
		zap.Int("after_whitelist", len(filtered)),
	)
	return filtered, nil
}

func newPoolStore(ctx context.Context, cfg config.Config) (storage.PoolStore, func(), error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, store.Close, nil
	}
	return storage.NewJSONLStore(cfg.PoolCache), func() {}, nil
}

func logPriceChange(logger *zap.Logger) scanner.PriceChangeFunc {
	return func(desc model.PoolDescriptor, price model.PoolPrice, old *model.PoolPrice) {
		fields := []zap.Field{
			zap.String("pair", desc.Pair()),
			zap.String("protocol", string(desc.Protocol)),
			zap.String("pool", desc.Address.Hex()),
			zap.Float64("token0_price", price.Token0Price),
			zap.Float64("token1_price", price.Token1Price),
		}
		if old != nil && old.Token0Price > 0 {
			change := (price.Token0Price - old.Token0Price) / old.Token0Price * 100.0
			fields = append(fields, zap.Float64("change_pct", change))
		}
		logger.Info("price update", fields...)
	}
}

func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
