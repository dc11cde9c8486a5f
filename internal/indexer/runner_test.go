package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"farmScope/internal/chain"
	"farmScope/internal/farmabi"
	"farmScope/internal/model"
)

var (
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	testFarm    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testCreator = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeSource struct {
	logs     []types.Log
	failures int
	calls    int
}

func (f *fakeSource) ChainID(context.Context) (uint64, error) { return 43114, nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return 20, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rate limited")
	}
	want := make(map[common.Address]bool, len(addresses))
	for _, addr := range addresses {
		want[addr] = true
	}
	topics := make(map[common.Hash]bool, len(topic0))
	for _, topic := range topic0 {
		topics[topic] = true
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to || !want[log.Address] {
			continue
		}
		if len(topics) > 0 && !topics[log.Topics[0]] {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

type memoryStorage struct {
	records []model.LogRecord
}

func (m *memoryStorage) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func chainLog(t *testing.T, address common.Address, block uint64, index uint, encoded farmabi.Log, err error) types.Log {
	t.Helper()
	if err != nil {
		t.Fatalf("encode %s: %v", encoded.Name, err)
	}
	return types.Log{
		Address:     address,
		Topics:      encoded.Topics,
		Data:        encoded.Data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func TestRunnerFollowsCreatedFarms(t *testing.T) {
	created, err := farmabi.ContractCreated(testFarm, testCreator)
	staked, stakedErr := farmabi.Staked(testCreator, big.NewInt(990))
	source := &fakeSource{
		failures: 1,
		logs: []types.Log{
			chainLog(t, testFarm, 12, 0, staked, stakedErr),
			chainLog(t, testFactory, 10, 3, created, err),
		},
	}
	sink := &memoryStorage{}
	checkpointPath := filepath.Join(t.TempDir(), "checkpoint.json")

	runner := NewRunner(RunConfig{
		FromBlock:         1,
		BatchSize:         100,
		Addresses:         []common.Address{testFactory},
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
		Retry:             chain.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond},
	}, source, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sink.records))
	}
	if sink.records[0].BlockNumber != 10 || sink.records[1].BlockNumber != 12 {
		t.Fatalf("records out of order: %d, %d", sink.records[0].BlockNumber, sink.records[1].BlockNumber)
	}
	if sink.records[1].ChainID != 43114 || sink.records[1].Timestamp != 1_700_000_012 {
		t.Fatalf("unexpected record: %+v", sink.records[1])
	}

	cp, ok, err := NewCheckpointStore(checkpointPath, true).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.LastProcessedBlock != 20 || cp.ChainID != 43114 {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}
	if len(cp.Farms) != 2 || cp.Farms[1] != testFarm.Hex() {
		t.Fatalf("checkpoint farms: %v", cp.Farms)
	}

	// A second run resumes past the checkpoint and has nothing to do.
	again := NewRunner(RunConfig{
		FromBlock:         1,
		BatchSize:         100,
		Addresses:         []common.Address{testFactory},
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}, source, sink, nil)
	calls := source.calls
	if err := again.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if source.calls != calls {
		t.Fatalf("expected no fetches after checkpoint, got %d", source.calls-calls)
	}
}

func TestRunnerChainMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, true).Save(1, 5, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	runner := NewRunner(RunConfig{
		BatchSize:         10,
		Addresses:         []common.Address{testFactory},
		CheckpointPath:    path,
		CheckpointEnabled: true,
	}, &fakeSource{}, &memoryStorage{}, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected chain id mismatch error")
	}
}

func TestRunnerRequiresAddresses(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 10}, &fakeSource{}, &memoryStorage{}, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error without addresses")
	}
}

func TestParseTopic0Names(t *testing.T) {
	topics, err := ParseTopic0([]string{"Staked", " ContractCreated ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	parsed, err := farmabi.FarmABI()
	if err != nil {
		t.Fatalf("farm abi: %v", err)
	}
	if topics[0] != parsed.Events[farmabi.EventStaked].ID {
		t.Fatalf("unexpected Staked topic %s", topics[0].Hex())
	}
	if _, err := ParseTopic0([]string{"NotAnEvent"}); err == nil {
		t.Fatalf("expected error for unknown name")
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short topic")
	}
}
