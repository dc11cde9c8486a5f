package farmabi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"farmScope/internal/model"
)

var (
	testFarm    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testFactory = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testUser    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testToken   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testLP      = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func newTestContext() DecodeContext {
	cache := NewFarmMetaCache()
	cache.Set(testFarm, model.FarmMeta{StakedAsset: testLP.Hex(), RewardAssets: []string{testToken.Hex()}})
	return DecodeContext{FarmMetaCache: cache, Logger: zap.NewNop()}
}

func TestDecoderStakedAndRewardPaid(t *testing.T) {
	decoder, err := NewDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := newTestContext()

	staked, err := Staked(testUser, big.NewInt(990))
	if err != nil {
		t.Fatalf("encode staked: %v", err)
	}
	event, err := decoder.Decode(buildLogRecord(testFarm, staked), ctx)
	if err != nil {
		t.Fatalf("decode staked: %v", err)
	}
	payload, ok := event.Decoded.(model.StakedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if payload.User != testUser.Hex() || payload.Amount != "990" {
		t.Fatalf("staked mismatch: %+v", payload)
	}
	if event.FarmMeta.StakedAsset != testLP.Hex() {
		t.Fatalf("farm meta mismatch: %+v", event.FarmMeta)
	}

	paid, err := RewardPaid(testToken, testUser, big.NewInt(123456789))
	if err != nil {
		t.Fatalf("encode reward paid: %v", err)
	}
	event, err = decoder.Decode(buildLogRecord(testFarm, paid), ctx)
	if err != nil {
		t.Fatalf("decode reward paid: %v", err)
	}
	reward := event.Decoded.(model.RewardPaidEventData)
	if reward.Token != testToken.Hex() || reward.User != testUser.Hex() || reward.Reward != "123456789" {
		t.Fatalf("reward mismatch: %+v", reward)
	}
}

func TestDecoderEmissionLifecycle(t *testing.T) {
	decoder, err := NewDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := newTestContext()

	started, err := RewardsEmissionStarted([]*big.Int{big.NewInt(1000), big.NewInt(2000)}, 2592000)
	if err != nil {
		t.Fatalf("encode started: %v", err)
	}
	event, err := decoder.Decode(buildLogRecord(testFarm, started), ctx)
	if err != nil {
		t.Fatalf("decode started: %v", err)
	}
	payload := event.Decoded.(model.EmissionStartedEventData)
	if len(payload.Rewards) != 2 || payload.Rewards[0] != "1000" || payload.Duration != 2592000 {
		t.Fatalf("started mismatch: %+v", payload)
	}

	ended, err := RewardsEmissionEnded()
	if err != nil {
		t.Fatalf("encode ended: %v", err)
	}
	if len(ended.Data) != 0 {
		t.Fatalf("ended should carry no data")
	}
	event, err = decoder.Decode(buildLogRecord(testFarm, ended), ctx)
	if err != nil {
		t.Fatalf("decode ended: %v", err)
	}
	if event.EventName != EventRewardsEmissionEnded {
		t.Fatalf("event name mismatch: %s", event.EventName)
	}

	permission, err := AddressPermissionSet(testUser, true)
	if err != nil {
		t.Fatalf("encode permission: %v", err)
	}
	event, err = decoder.Decode(buildLogRecord(testFarm, permission), ctx)
	if err != nil {
		t.Fatalf("decode permission: %v", err)
	}
	if got := event.Decoded.(model.AddressPermissionSetEventData); !got.Permitted || got.Account != testUser.Hex() {
		t.Fatalf("permission mismatch: %+v", got)
	}
}

func TestDecoderFactoryEvent(t *testing.T) {
	decoder, err := NewDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	created, err := ContractCreated(testFarm, testUser)
	if err != nil {
		t.Fatalf("encode created: %v", err)
	}
	event, err := decoder.Decode(buildLogRecord(testFactory, created), newTestContext())
	if err != nil {
		t.Fatalf("decode created: %v", err)
	}
	payload := event.Decoded.(model.ContractCreatedEventData)
	if payload.Farm != testFarm.Hex() || payload.Creator != testUser.Hex() {
		t.Fatalf("created mismatch: %+v", payload)
	}
	if event.FarmMeta.StakedAsset != testLP.Hex() {
		t.Fatalf("factory event should pick up farm meta from cache")
	}
}

func TestDecoderRejectsUnknownFarmWithoutChain(t *testing.T) {
	decoder, err := NewDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	staked, err := Staked(testUser, big.NewInt(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	if _, err := decoder.Decode(buildLogRecord(other, staked), DecodeContext{FarmMetaCache: NewFarmMetaCache()}); err == nil {
		t.Fatalf("expected error without metadata and chain client")
	}
}

func TestDecoderTopic0Map(t *testing.T) {
	alias := "0xabcdef0000000000000000000000000000000000000000000000000000000000"
	decoder, err := NewDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "staked"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias should be decodable")
	}
	if _, err := NewDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "swap"}}); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

func TestTopic0sCoverAllEvents(t *testing.T) {
	topics, err := Topic0s()
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 12 {
		t.Fatalf("expected 12 event topics, got %d", len(topics))
	}
}

func buildLogRecord(emitter common.Address, log Log) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     1337,
		BlockNumber: 7,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     emitter.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Timestamp:   1700000000,
	}
}
