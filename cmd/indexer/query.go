package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/593496637/onchain-data-system/internal/config"
	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/query"
	"github.com/593496637/onchain-data-system/internal/storage"
	"github.com/593496637/onchain-data-system/internal/storage/postgres"
)

func newQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Scan projected entities",
		RunE:  runQuery,
	}

	queryCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	queryCmd.Flags().String("entity-type", "data_record", "entity type (data_record, transfer_record, swap_record)")
	queryCmd.Flags().String("sender", "", "filter: sender address equals")
	queryCmd.Flags().String("recipient", "", "filter: recipient address equals")
	queryCmd.Flags().Int64("after", 0, "filter: occurredAt >= unix seconds")
	queryCmd.Flags().Int64("before", 0, "filter: occurredAt <= unix seconds")
	queryCmd.Flags().String("contains", "", "filter: message contains substring (case-insensitive)")
	queryCmd.Flags().String("direction", "desc", "order by occurredAt (asc, desc)")
	queryCmd.Flags().Int("limit", 50, "page size")
	queryCmd.Flags().Int("offset", 0, "page offset")
	queryCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return queryCmd
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	entityType, err := model.ParseEntityType(cfg.EntityType)
	if err != nil {
		return err
	}

	filter := storage.Filter{
		SenderEquals:    cfg.Sender,
		RecipientEquals: cfg.Recipient,
		MessageContains: cfg.MessageContains,
	}
	if cfg.OccurredAfter > 0 {
		after := uint64(cfg.OccurredAfter)
		filter.OccurredAfter = &after
	}
	if cfg.OccurredBefore > 0 {
		before := uint64(cfg.OccurredBefore)
		filter.OccurredBefore = &before
	}

	var direction storage.Direction
	switch cfg.Direction {
	case "", "desc":
		direction = storage.Desc
	case "asc":
		direction = storage.Asc
	default:
		return fmt.Errorf("invalid direction: %s", cfg.Direction)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	service := query.NewService(store, query.NewHub(), logger)

	entities, err := service.Scan(ctx, entityType, filter, storage.ScanOptions{
		Direction: direction,
		Limit:     cfg.Limit,
		Offset:    cfg.Offset,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, e := range entities {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("encode entity: %w", err)
		}
	}
	return nil
}
