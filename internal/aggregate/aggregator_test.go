package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/farmabi"
	"farmScope/internal/model"
	"farmScope/internal/storage"
)

var (
	testFarm    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	testStaked  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testReward  = common.HexToAddress("0x0000000000000000000000000000000000000b22")
	testCreator = common.HexToAddress("0x0000000000000000000000000000000000000c33")
	testUser    = common.HexToAddress("0x0000000000000000000000000000000000000d44")
)

type memoryStore struct {
	farms   []model.Farm
	metrics []model.FarmWindowMetrics
}

func (m *memoryStore) UpsertFarms(ctx context.Context, farms []model.Farm) error {
	m.farms = append(m.farms, farms...)
	return nil
}

func (m *memoryStore) UpsertWindowMetrics(ctx context.Context, metrics []model.FarmWindowMetrics) error {
	m.metrics = append(m.metrics, metrics...)
	return nil
}

func typedRecord(t *testing.T, block, ts uint64, address common.Address, event string, decoded interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal decoded: %v", err)
	}
	return model.TypedEventRecord{
		ChainID:     1,
		BlockNumber: block,
		Address:     address.Hex(),
		EventName:   event,
		Timestamp:   ts,
		Decoded:     raw,
		FarmMeta: model.FarmMeta{
			StakedAsset:  testStaked.Hex(),
			RewardAssets: []string{testReward.Hex()},
		},
	}
}

func writeRecords(t *testing.T, records []model.TypedEventRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	w, err := storage.NewWriter(path, false)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func sampleRecords(t *testing.T) []model.TypedEventRecord {
	return []model.TypedEventRecord{
		typedRecord(t, 1, 7201, testFactory, farmabi.EventContractCreated, model.ContractCreatedEventData{Farm: testFarm.Hex(), Creator: testCreator.Hex()}),
		typedRecord(t, 2, 7210, testFarm, farmabi.EventRewardsEmissionStarted, model.EmissionStartedEventData{Rewards: []string{"100"}, Duration: 3600}),
		typedRecord(t, 3, 7220, testFarm, farmabi.EventStaked, model.StakedEventData{User: testUser.Hex(), Amount: "1000"}),
		typedRecord(t, 4, 7230, testFarm, farmabi.EventWithdrawn, model.WithdrawnEventData{User: testUser.Hex(), Amount: "400"}),
		typedRecord(t, 4, 7230, testFarm, farmabi.EventRewardPaid, model.RewardPaidEventData{Token: testReward.Hex(), User: testUser.Hex(), Reward: "50"}),
		typedRecord(t, 5, 10805, testFarm, farmabi.EventStaked, model.StakedEventData{User: testUser.Hex(), Amount: "10"}),
		typedRecord(t, 6, 10810, testFarm, farmabi.EventFeesRecovered, model.FeesRecoveredEventData{Amount: "7"}),
		typedRecord(t, 7, 10820, testFarm, farmabi.EventRewardsEmissionEnded, model.EmissionEndedEventData{}),
	}
}

func TestAggregatorWindows(t *testing.T) {
	path := writeRecords(t, sampleRecords(t))
	store := &memoryStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600}, store, nil, nil)

	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.metrics) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(store.metrics))
	}

	first := store.metrics[0]
	if first.WindowStart.Unix() != 7200 || first.WindowEnd.Unix() != 10800 {
		t.Fatalf("unexpected window %v-%v", first.WindowStart, first.WindowEnd)
	}
	if first.StakeCount != 1 || first.WithdrawCount != 1 || first.RewardClaims != 1 {
		t.Fatalf("unexpected counts %+v", first)
	}
	if first.Staked != "1000" || first.Withdrawn != "400" || first.NetFlow != "600" {
		t.Fatalf("unexpected volumes %s %s %s", first.Staked, first.Withdrawn, first.NetFlow)
	}
	if got := first.RewardsPaid[strings.ToLower(testReward.Hex())]; got != "50" {
		t.Fatalf("expected reward 50, got %q", got)
	}
	if first.EmissionsStarted != 1 || first.EmissionsEnded != 0 {
		t.Fatalf("unexpected emissions %+v", first)
	}
	if first.TotalStaked != nil || first.TotalStakedMethod != stakedMethodNone {
		t.Fatalf("expected no total staked without chain reader")
	}

	second := store.metrics[1]
	if second.WindowStart.Unix() != 10800 || second.Staked != "10" || second.NetFlow != "10" {
		t.Fatalf("unexpected second window %+v", second)
	}
	if second.FeesRecovered != "7" || second.EmissionsEnded != 1 {
		t.Fatalf("unexpected second window fees %+v", second)
	}

	if len(store.farms) != 1 {
		t.Fatalf("expected one farm record, got %d", len(store.farms))
	}
	farm := store.farms[0]
	if farm.Creator != testCreator.Hex() || farm.FirstSeenBlock != 1 || farm.StakedAsset != testStaked.Hex() {
		t.Fatalf("unexpected farm %+v", farm)
	}
}

func TestAggregatorDecimals(t *testing.T) {
	path := writeRecords(t, sampleRecords(t))
	store := &memoryStore{}
	agg := NewAggregator(Config{
		WindowSeconds: 3600,
		TokenDecimals: map[string]uint8{testStaked.Hex(): 2, testReward.Hex(): 1},
	}, store, nil, nil)

	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	first := store.metrics[0]
	if first.Staked != "10.00" || first.NetFlow != "6.00" {
		t.Fatalf("unexpected scaled volumes %s %s", first.Staked, first.NetFlow)
	}
	if got := first.RewardsPaid[strings.ToLower(testReward.Hex())]; got != "5.0" {
		t.Fatalf("unexpected scaled reward %q", got)
	}
}

func TestAggregatorResumesFromState(t *testing.T) {
	path := writeRecords(t, sampleRecords(t))
	stateStore := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}

	store := &memoryStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600, StateStore: stateStore}, store, nil, nil)
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}

	last, ok, err := stateStore.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: %v %v", ok, err)
	}
	if last != 10820 {
		t.Fatalf("expected state 10820, got %d", last)
	}

	again := &memoryStore{}
	agg = NewAggregator(Config{WindowSeconds: 3600, StateStore: stateStore}, again, nil, nil)
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again.metrics) != 0 {
		t.Fatalf("expected no windows on rerun, got %d", len(again.metrics))
	}

	recompute := &memoryStore{}
	agg = NewAggregator(Config{WindowSeconds: 3600, StateStore: stateStore, RecomputeFrom: 10800}, recompute, nil, nil)
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(recompute.metrics) != 1 || recompute.metrics[0].WindowStart.Unix() != 10800 {
		t.Fatalf("expected only the second window, got %+v", recompute.metrics)
	}
}

func TestAggregatorTotalStaked(t *testing.T) {
	path := writeRecords(t, sampleRecords(t))
	store := &memoryStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600}, store, nil, nil)

	var calls []*big.Int
	agg.SetTotalStakedReader(func(ctx context.Context, farm common.Address, block *big.Int) (*big.Int, error) {
		calls = append(calls, block)
		if block != nil && block.Uint64() == 4 {
			return nil, errors.New("pruned")
		}
		return big.NewInt(5000), nil
	})

	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	first, second := store.metrics[0], store.metrics[1]
	if first.TotalStaked == nil || *first.TotalStaked != "5000" || first.TotalStakedMethod != stakedMethodLatest {
		t.Fatalf("expected latest fallback, got %+v", first)
	}
	if second.TotalStaked == nil || second.TotalStakedMethod != stakedMethodBlock {
		t.Fatalf("expected block read, got %+v", second)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 reads, got %d", len(calls))
	}
}

func TestAggregatorSkipsMalformedLines(t *testing.T) {
	records := sampleRecords(t)
	records[2].Decoded = json.RawMessage(`{"amount":"nope"}`)
	path := writeRecords(t, records)
	store := &memoryStore{}

	agg := NewAggregator(Config{WindowSeconds: 3600}, store, nil, nil)
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.metrics[0].StakeCount != 0 || store.metrics[0].WithdrawCount != 1 {
		t.Fatalf("unexpected counts %+v", store.metrics[0])
	}
}

func TestAggregatorRequiresWindow(t *testing.T) {
	agg := NewAggregator(Config{}, &memoryStore{}, nil, nil)
	if err := agg.Run(context.Background(), "unused"); err == nil {
		t.Fatalf("expected error")
	}
}

type stateTable struct {
	values map[string]uint64
}

func (s *stateTable) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *stateTable) SaveState(ctx context.Context, name string, ts uint64) error {
	s.values[name] = ts
	return nil
}

func TestDBStateStore(t *testing.T) {
	table := &stateTable{values: map[string]uint64{}}
	store := &DBStateStore{Table: table, Name: "aggregate_3600"}

	if _, ok, _ := store.Load(context.Background()); ok {
		t.Fatalf("expected empty state")
	}
	if err := store.Save(context.Background(), 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(context.Background())
	if err != nil || !ok || got != 42 {
		t.Fatalf("unexpected state %d %v %v", got, ok, err)
	}
}
