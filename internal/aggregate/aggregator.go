package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/farmabi"
	"farmScope/internal/model"
	"farmScope/internal/storage"
)

// Store receives farm records and window metrics. postgres.Store implements it.
type Store interface {
	UpsertFarms(ctx context.Context, farms []model.Farm) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.FarmWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	// Farms seeds the registry, typically from the farms file written by simulate.
	Farms []model.Farm
	// TokenDecimals seeds known decimals keyed by hex address.
	TokenDecimals map[string]uint8
}

// Aggregator aggregates typed events into farm window metrics.
type Aggregator struct {
	cfg          Config
	store        Store
	chainClient  *chain.Client
	totalStaked  TotalStakedFunc
	logger       *zap.Logger
	decimals     *TokenDecimalsCache
	accumulators map[string]*Accumulator
	farmSeen     map[string]model.Farm
	pendingFarms []model.Farm
}

// NewAggregator builds an aggregator. chainClient may be nil, in which case
// unknown decimals default to zero and total staked is not reported.
func NewAggregator(cfg Config, store Store, chainClient *chain.Client, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Aggregator{
		cfg:          cfg,
		store:        store,
		chainClient:  chainClient,
		logger:       logger,
		decimals:     NewTokenDecimalsCache(),
		accumulators: make(map[string]*Accumulator),
		farmSeen:     make(map[string]model.Farm),
	}
	if chainClient != nil {
		a.totalStaked = a.chainTotalStaked
	}
	a.decimals.Seed(cfg.TokenDecimals)
	for _, farm := range cfg.Farms {
		a.farmSeen[farmKey(farm.Address)] = farm
	}
	return a
}

// SetTotalStakedReader replaces the totalSupply reader.
func (a *Aggregator) SetTotalStakedReader(fn TotalStakedFunc) {
	a.totalStaked = fn
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.FarmWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, aggregated, skipped, failed int

	err = storage.ScanLines(inputPath, func(line []byte) error {
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			return nil
		}

		if record.Timestamp <= startTs {
			skipped++
			return nil
		}
		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		switch record.EventName {
		case farmabi.EventContractCreated, farmabi.EventOwnershipOverridden:
			if err := a.noteFactoryEvent(record); err != nil {
				failed++
				a.logger.Warn("factory event", zap.Error(err), zap.String("event", record.EventName))
			}
			return nil
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := farmKey(record.Address)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics := a.flushAccumulator(ctx, acc)
			if metrics != nil {
				batch = append(batch, *metrics)
				aggregated++
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("farm", record.Address), zap.String("event", record.EventName))
			return nil
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, acc := range a.accumulators {
		if metrics := a.flushAccumulator(ctx, acc); metrics != nil {
			batch = append(batch, *metrics)
			aggregated++
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.flushBatches(ctx, batch); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", aggregated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.FarmWindowMetrics) error {
	if len(a.pendingFarms) > 0 {
		if err := a.store.UpsertFarms(ctx, a.pendingFarms); err != nil {
			return fmt.Errorf("upsert farms: %w", err)
		}
		a.pendingFarms = a.pendingFarms[:0]
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) *model.FarmWindowMetrics {
	if acc == nil {
		return nil
	}

	if acc.FarmMeta.StakedAsset == "" {
		if seen, ok := a.farmSeen[farmKey(acc.FarmAddress)]; ok {
			acc.FarmMeta = seen.Meta()
		}
	}
	if acc.FarmMeta.StakedAsset == "" {
		a.logger.Warn("missing farm meta", zap.String("farm", acc.FarmAddress))
		return nil
	}

	a.registerFarm(acc)

	stakedDecimals := a.tokenDecimals(ctx, acc.FarmMeta.StakedAsset)
	rewards := a.formatRewards(ctx, acc.RewardsPaid)

	metrics := &model.FarmWindowMetrics{
		ChainID:           acc.ChainID,
		FarmAddress:       acc.FarmAddress,
		StakedAsset:       acc.FarmMeta.StakedAsset,
		WindowSizeSecs:    int64(a.cfg.WindowSeconds),
		WindowStart:       time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:         time.Unix(int64(acc.WindowEnd), 0).UTC(),
		StakeCount:        acc.StakeCount,
		WithdrawCount:     acc.WithdrawCount,
		Staked:            formatTokenAmount(acc.Staked, stakedDecimals),
		Withdrawn:         formatTokenAmount(acc.Withdrawn, stakedDecimals),
		NetFlow:           formatTokenAmount(acc.NetFlow(), stakedDecimals),
		RewardsPaid:       rewards,
		RewardClaims:      acc.RewardClaims,
		FeesRecovered:     formatTokenAmount(acc.FeesRecovered, stakedDecimals),
		EmissionsStarted:  acc.EmissionsStarted,
		EmissionsEnded:    acc.EmissionsEnded,
		TotalStakedMethod: stakedMethodNone,
	}

	if a.totalStaked != nil && acc.LastBlock > 0 {
		total, method, err := a.fetchTotalStaked(ctx, acc.FarmAddress, acc.LastBlock)
		if err != nil {
			a.logger.Warn("total staked fetch failed", zap.String("farm", acc.FarmAddress), zap.Error(err))
		} else {
			val := formatTokenAmount(total, stakedDecimals)
			metrics.TotalStaked = &val
		}
		metrics.TotalStakedMethod = method
	}

	return metrics
}

// registerFarm queues a farm record the first time the farm shows activity,
// or when activity is seen at an earlier block than recorded.
func (a *Aggregator) registerFarm(acc *Accumulator) {
	key := farmKey(acc.FarmAddress)
	existing, ok := a.farmSeen[key]
	if ok && existing.FirstSeenBlock != 0 && existing.FirstSeenBlock <= acc.FirstBlock {
		return
	}

	farm := existing
	if !ok {
		farm = model.Farm{
			ChainID:      acc.ChainID,
			Address:      acc.FarmAddress,
			StakedAsset:  acc.FarmMeta.StakedAsset,
			RewardAssets: acc.FarmMeta.RewardAssets,
		}
	}
	farm.FirstSeenBlock = acc.FirstBlock
	a.farmSeen[key] = farm
	a.pendingFarms = append(a.pendingFarms, farm)
}

func (a *Aggregator) noteFactoryEvent(record model.TypedEventRecord) error {
	var farmAddr, creator string
	switch record.EventName {
	case farmabi.EventContractCreated:
		var ev model.ContractCreatedEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode contract created: %w", err)
		}
		farmAddr, creator = ev.Farm, ev.Creator
	case farmabi.EventOwnershipOverridden:
		var ev model.OwnershipOverriddenEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode ownership overridden: %w", err)
		}
		farmAddr, creator = ev.Farm, ev.NewCreator
	}
	if !common.IsHexAddress(farmAddr) {
		return fmt.Errorf("invalid farm address: %q", farmAddr)
	}

	key := farmKey(farmAddr)
	farm, ok := a.farmSeen[key]
	if !ok {
		farm = model.Farm{
			ChainID:      record.ChainID,
			Address:      common.HexToAddress(farmAddr).Hex(),
			StakedAsset:  record.FarmMeta.StakedAsset,
			RewardAssets: record.FarmMeta.RewardAssets,
		}
	}
	farm.Creator = creator
	if record.EventName == farmabi.EventContractCreated && (farm.FirstSeenBlock == 0 || record.BlockNumber < farm.FirstSeenBlock) {
		farm.FirstSeenBlock = record.BlockNumber
	}
	a.farmSeen[key] = farm
	a.pendingFarms = append(a.pendingFarms, farm)
	return nil
}

func (a *Aggregator) tokenDecimals(ctx context.Context, token string) uint8 {
	if !common.IsHexAddress(token) {
		a.logger.Warn("invalid token address", zap.String("token", token))
		return 0
	}
	addr := common.HexToAddress(token)
	if decimals, ok := a.decimals.Get(addr); ok {
		return decimals
	}
	if a.chainClient == nil {
		a.decimals.Set(addr, 0)
		return 0
	}
	decimals, err := FetchTokenDecimals(ctx, a.chainClient, addr)
	if err != nil {
		a.logger.Warn("token decimals", zap.String("token", token), zap.Error(err))
		return 0
	}
	a.decimals.Set(addr, decimals)
	return decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func farmKey(address string) string {
	return tokenKey(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
