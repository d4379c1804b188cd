package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/593496637/onchain-data-system/internal/chain"
	"github.com/593496637/onchain-data-system/internal/memo"
	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/projection"
	"github.com/593496637/onchain-data-system/internal/storage"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Follow            bool
	PollInterval      time.Duration
}

// Runner streams logs from the chain, decodes them and projects them into
// the entity store. Decode failures are recorded and skipped; projection
// failures abort the run so the caller can retry the range (the id-keyed
// upsert makes the replay safe).
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	decoder    *memo.Decoder
	projector  *projection.Projector
	rawSink    storage.LogSink
	failures   storage.FailureSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. rawSink and failures are
// optional.
func NewRunner(
	cfg RunConfig,
	chainClient *chain.Client,
	decoder *memo.Decoder,
	projector *projection.Projector,
	rawSink storage.LogSink,
	failures storage.FailureSink,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		decoder:    decoder,
		projector:  projector,
		rawSink:    rawSink,
		failures:   failures,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the indexing loop. In follow mode it keeps polling the tip
// after the initial range completes, until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.projector == nil {
		return fmt.Errorf("projector is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from <= to {
		if err := r.processRange(ctx, chainIDValue, from, to); err != nil {
			return err
		}
	} else {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
	}

	if !r.cfg.Follow {
		return nil
	}

	pollInterval := r.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	last := to
	if from > to {
		last = from - 1
	}

	for {
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		latest, err := r.latestBlockWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		if latest <= last {
			continue
		}

		if err := r.processRange(ctx, chainIDValue, last+1, latest); err != nil {
			return err
		}
		last = latest
	}
}

func (r *Runner) processRange(ctx context.Context, chainID, from, to uint64) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	// Duplicate suppression is scoped to one range; successive ranges are
	// disjoint, and this keeps the set bounded in follow mode.
	r.seen = make(map[string]struct{})

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		var (
			rawRecords []model.LogRecord
			failures   []model.DecodeFailure
			projected  int
			retracted  int
			skipped    int
		)

		for _, log := range logs {
			// A removed log must be retracted before any replacement in the
			// same delivery is projected, so handle it in arrival order.
			if log.Removed {
				if err := r.retractLog(ctx, log); err != nil {
					return err
				}
				retracted++
				continue
			}

			if r.isDuplicate(log) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			record := buildLogRecord(chainID, log, ts, ingestedAt)
			rawRecords = append(rawRecords, record)

			event, err := r.decoder.Decode(record)
			if err != nil {
				if memo.IsDecodeError(err) {
					failures = append(failures, decodeFailureFromRecord(record, err))
					skipped++
					continue
				}
				return fmt.Errorf("decode log %s:%d: %w", record.TxHash, record.LogIndex, err)
			}

			if err := r.projector.Apply(ctx, event); err != nil {
				return err
			}
			projected++
		}

		if r.rawSink != nil {
			if err := r.rawSink.PutLogBatch(rawRecords); err != nil {
				return fmt.Errorf("store raw logs: %w", err)
			}
		}
		if r.failures != nil && len(failures) > 0 {
			if err := r.failures.PutDecodeFailures(failures); err != nil {
				return fmt.Errorf("store decode failures: %w", err)
			}
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(logs)),
			zap.Int("projected", projected),
			zap.Int("retracted", retracted),
			zap.Int("skipped", skipped),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) retractLog(ctx context.Context, log types.Log) error {
	if len(log.Topics) == 0 {
		return nil
	}
	// After a reorg the replacement log can arrive at the same
	// (blockNumber, txHash, logIndex); forget the retracted log so the
	// replacement is projected instead of dropped as a duplicate.
	delete(r.seen, dedupKey(log))
	kind, ok := r.decoder.KindFor(log.Topics[0].Hex())
	if !ok {
		return nil
	}
	return r.projector.Retract(ctx, kind, log.TxHash.Hex(), uint64(log.Index))
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.decoder.Topics())
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.chain.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	key := dedupKey(log)
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	return false
}

func dedupKey(log types.Log) string {
	return fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
}

func decodeFailureFromRecord(record model.LogRecord, err error) model.DecodeFailure {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}
	return model.DecodeFailure{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
