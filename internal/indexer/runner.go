package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/farmabi"
	"farmScope/internal/model"
	"farmScope/internal/storage"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock uint64
	ToBlock   uint64
	// Addresses are farms and factories to pull logs from. Farms announced
	// by a factory's ContractCreated event are followed automatically.
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	Retry             chain.RetryPolicy
}

// Runner streams farm and factory logs from the chain into storage.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	tracked    map[common.Address]struct{}
	addresses  []common.Address
	created    common.Hash
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, sink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:        cfg,
		source:     source,
		storage:    sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		tracked:    make(map[common.Address]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
	for _, addr := range cfg.Addresses {
		r.track(addr)
	}
	return r
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	if err := r.resolveTopics(); err != nil {
		return err
	}

	var chainID uint64
	if err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		chainID, err = r.source.ChainID(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		if cp.ChainID != 0 && cp.ChainID != chainID {
			return fmt.Errorf("checkpoint chain id %d does not match rpc chain id %d", cp.ChainID, chainID)
		}
		for _, farm := range cp.Farms {
			if common.IsHexAddress(farm) {
				r.track(common.HexToAddress(farm))
			}
		}
		if cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, err := r.fetchBatch(ctx, chainID, blockRange)
		if err != nil {
			return err
		}
		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := r.checkpoint.Save(chainID, blockRange.To, r.addressStrings()); err != nil {
			return err
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(records)),
			zap.Int("tracked", len(r.addresses)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

// fetchBatch pulls one range. Farms discovered inside the range are
// fetched from their creation block to the end of the range.
func (r *Runner) fetchBatch(ctx context.Context, chainID uint64, blockRange BlockRange) ([]model.LogRecord, error) {
	r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	logs, err := r.filterLogs(ctx, blockRange.From, blockRange.To, r.addresses)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	pending := logs
	for len(pending) > 0 {
		discovered := make(map[common.Address]uint64)
		for _, log := range pending {
			if farm, ok := r.createdFarm(log); ok {
				discovered[farm] = log.BlockNumber
			}
		}
		pending = nil
		for farm, block := range discovered {
			r.logger.Info("farm discovered", zap.String("farm", farm.Hex()), zap.Uint64("block", block))
			more, err := r.filterLogs(ctx, block, blockRange.To, []common.Address{farm})
			if err != nil {
				return nil, fmt.Errorf("filter logs for %s: %w", farm.Hex(), err)
			}
			pending = append(pending, more...)
		}
		logs = append(logs, pending...)
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed || r.isDuplicate(log) {
			continue
		}
		ts, err := r.blockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		records = append(records, buildLogRecord(chainID, log, ts, ingestedAt))
	}
	sortRecords(records)
	return records, nil
}

func (r *Runner) createdFarm(log types.Log) (common.Address, bool) {
	if len(log.Topics) < 2 || log.Topics[0] != r.created {
		return common.Address{}, false
	}
	farm := common.BytesToAddress(log.Topics[1].Bytes())
	if _, ok := r.tracked[farm]; ok {
		return common.Address{}, false
	}
	r.track(farm)
	return farm, true
}

func (r *Runner) resolveTopics() error {
	parsed, err := farmabi.FactoryABI()
	if err != nil {
		return err
	}
	r.created = parsed.Events[farmabi.EventContractCreated].ID
	if len(r.cfg.Topic0) > 0 {
		return nil
	}
	topics, err := farmabi.Topic0s()
	if err != nil {
		return err
	}
	r.cfg.Topic0 = topics
	return nil
}

func (r *Runner) track(addr common.Address) {
	if _, ok := r.tracked[addr]; ok {
		return
	}
	r.tracked[addr] = struct{}{}
	r.addresses = append(r.addresses, addr)
}

func (r *Runner) addressStrings() []string {
	out := make([]string, 0, len(r.addresses))
	for _, addr := range r.addresses {
		out = append(out, addr.Hex())
	}
	return out
}

func (r *Runner) filterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error) {
	var logs []types.Log
	err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
