package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/593496637/onchain-data-system/internal/chain"
	"github.com/593496637/onchain-data-system/internal/config"
	"github.com/593496637/onchain-data-system/internal/indexer"
	"github.com/593496637/onchain-data-system/internal/memo"
	"github.com/593496637/onchain-data-system/internal/projection"
	"github.com/593496637/onchain-data-system/internal/query"
	"github.com/593496637/onchain-data-system/internal/storage"
	"github.com/593496637/onchain-data-system/internal/storage/memory"
	"github.com/593496637/onchain-data-system/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "On-chain message indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Index a block range and project entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, false)
		},
	}
	addIngestFlags(runCmd)
	root.AddCommand(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the chain tip and stream committed entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, true)
		},
	}
	addIngestFlags(watchCmd)
	root.AddCommand(watchCmd)

	root.AddCommand(newQueryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs in-memory)")
	cmd.Flags().String("raw-out", "", "optional raw logs JSONL path")
	cmd.Flags().String("decode-errors", "./data/decode_errors.jsonl", "decode errors JSONL path")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("poll-interval", 5*time.Second, "tip poll interval in watch mode")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runIngest(cmd *cobra.Command, follow bool) error {
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

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var store storage.EntityStore
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		store = pgStore
	} else {
		logger.Warn("no pg-dsn configured, projecting into memory only")
		store = memory.New()
	}

	decoder, err := memo.NewDecoder()
	if err != nil {
		return err
	}

	hub := query.NewHub()
	projector := projection.NewProjector(store, hub, logger)

	var rawSink storage.LogSink
	if cfg.RawOut != "" {
		rawSink = storage.NewJsonlSink(cfg.RawOut)
	}
	var failureSink storage.FailureSink
	if cfg.DecodeErrors != "" {
		failureSink = storage.NewJsonlSink(cfg.DecodeErrors)
	}

	if follow {
		sub := hub.Subscribe()
		defer sub.Cancel()
		go printEntities(sub, logger)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Follow:            follow,
		PollInterval:      cfg.PollInterval,
	}, chainClient, decoder, projector, rawSink, failureSink, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("follow", follow),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func printEntities(sub *query.Subscription, logger *zap.Logger) {
	encoder := json.NewEncoder(os.Stdout)
	for e := range sub.C {
		if err := encoder.Encode(e); err != nil {
			logger.Warn("encode entity", zap.Error(err))
		}
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
