package farmabi

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/model"
)

// DecodeContext provides shared dependencies for decoding.
type DecodeContext struct {
	Context       context.Context
	Chain         *chain.Client
	FarmMetaCache *FarmMetaCache
	Logger        *zap.Logger
}

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds aliases from a topic0 hash to a known event name, for
	// deployments compiled with different parameter types.
	Topic0Map map[string]string
}

type eventSource struct {
	parsed  abi.ABI
	event   abi.Event
	factory bool
}

// Decoder turns farm and factory logs into typed events.
type Decoder struct {
	topics map[string]eventSource
}

func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	farm, err := FarmABI()
	if err != nil {
		return nil, fmt.Errorf("parse farm abi: %w", err)
	}
	factory, err := FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}

	topics := make(map[string]eventSource)
	byName := make(map[string]eventSource)
	for _, event := range farm.Events {
		src := eventSource{parsed: farm, event: event}
		topics[strings.ToLower(event.ID.Hex())] = src
		byName[strings.ToLower(event.Name)] = src
	}
	for _, event := range factory.Events {
		src := eventSource{parsed: factory, event: event, factory: true}
		topics[strings.ToLower(event.ID.Hex())] = src
		byName[strings.ToLower(event.Name)] = src
	}

	for topic0, name := range cfg.Topic0Map {
		src, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topics[strings.ToLower(topic0)] = src
	}

	return &Decoder{topics: topics}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topics[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	src, ok := d.topics[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	indexed, err := parseIndexed(src.event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(src.event, log.Data)
	if err != nil {
		return nil, err
	}

	decoded, err := buildPayload(src.event.Name, indexed, values)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.event.Name, err)
	}

	var meta model.FarmMeta
	switch {
	case !src.factory:
		meta, err = getFarmMeta(ctx, common.HexToAddress(log.Address))
		if err != nil {
			return nil, err
		}
	case ctx.FarmMetaCache != nil:
		// Factory events carry the farm as their first indexed argument.
		if farm, ok := indexed["farm"].(common.Address); ok {
			meta, _ = ctx.FarmMetaCache.Get(farm)
		}
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   src.event.Name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		FarmMeta:    meta,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func buildPayload(name string, indexed map[string]interface{}, values []interface{}) (interface{}, error) {
	switch name {
	case EventContractCreated:
		farm, err := addressField(indexed, "farm")
		if err != nil {
			return nil, err
		}
		creator, err := addressField(indexed, "creator")
		if err != nil {
			return nil, err
		}
		return model.ContractCreatedEventData{Farm: farm.Hex(), Creator: creator.Hex()}, nil
	case EventOwnershipOverridden:
		farm, err := addressField(indexed, "farm")
		if err != nil {
			return nil, err
		}
		creator, err := addressField(indexed, "newCreator")
		if err != nil {
			return nil, err
		}
		return model.OwnershipOverriddenEventData{Farm: farm.Hex(), NewCreator: creator.Hex()}, nil
	case EventStaked, EventWithdrawn, EventCoveragePaid:
		user, err := addressField(indexed, "user")
		if err != nil {
			return nil, err
		}
		amount, err := bigValue(values, 0)
		if err != nil {
			return nil, err
		}
		switch name {
		case EventStaked:
			return model.StakedEventData{User: user.Hex(), Amount: amount.String()}, nil
		case EventWithdrawn:
			return model.WithdrawnEventData{User: user.Hex(), Amount: amount.String()}, nil
		default:
			return model.CoveragePaidEventData{User: user.Hex(), Amount: amount.String()}, nil
		}
	case EventRewardPaid:
		token, err := addressField(indexed, "token")
		if err != nil {
			return nil, err
		}
		user, err := addressField(indexed, "user")
		if err != nil {
			return nil, err
		}
		reward, err := bigValue(values, 0)
		if err != nil {
			return nil, err
		}
		return model.RewardPaidEventData{Token: token.Hex(), User: user.Hex(), Reward: reward.String()}, nil
	case EventRewardsEmissionStarted:
		if len(values) != 2 {
			return nil, fmt.Errorf("unexpected values: %d", len(values))
		}
		rewards, ok := values[0].([]*big.Int)
		if !ok {
			return nil, fmt.Errorf("unsupported rewards type %T", values[0])
		}
		duration, err := bigValue(values, 1)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(rewards))
		for _, reward := range rewards {
			out = append(out, reward.String())
		}
		return model.EmissionStartedEventData{Rewards: out, Duration: duration.Uint64()}, nil
	case EventRewardsEmissionEnded:
		return model.EmissionEndedEventData{}, nil
	case EventFeesRecovered:
		amount, err := bigValue(values, 0)
		if err != nil {
			return nil, err
		}
		return model.FeesRecoveredEventData{Amount: amount.String()}, nil
	case EventRewardTokenAdded:
		token, err := addressField(indexed, "token")
		if err != nil {
			return nil, err
		}
		return model.RewardTokenAddedEventData{Token: token.Hex()}, nil
	case EventAddressPermissionSet:
		account, err := addressField(indexed, "account")
		if err != nil {
			return nil, err
		}
		if len(values) != 1 {
			return nil, fmt.Errorf("unexpected values: %d", len(values))
		}
		permitted, ok := values[0].(bool)
		if !ok {
			return nil, fmt.Errorf("unsupported bool type %T", values[0])
		}
		return model.AddressPermissionSetEventData{Account: account.Hex(), Permitted: permitted}, nil
	case EventOwnershipTransferred:
		previous, err := addressField(indexed, "previousOwner")
		if err != nil {
			return nil, err
		}
		next, err := addressField(indexed, "newOwner")
		if err != nil {
			return nil, err
		}
		return model.OwnershipTransferredEventData{PreviousOwner: previous.Hex(), NewOwner: next.Hex()}, nil
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func getFarmMeta(ctx DecodeContext, farm common.Address) (model.FarmMeta, error) {
	if ctx.FarmMetaCache != nil {
		if meta, ok := ctx.FarmMetaCache.Get(farm); ok {
			return meta, nil
		}
	}
	if ctx.Chain == nil {
		return model.FarmMeta{}, fmt.Errorf("no metadata for farm %s and chain client is nil", farm.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	meta, err := FetchFarmMeta(callCtx, ctx.Chain, farm, ctx.Logger)
	if err != nil {
		return model.FarmMeta{}, err
	}
	if ctx.FarmMetaCache != nil {
		ctx.FarmMetaCache.Set(farm, meta)
	}
	return meta, nil
}

func parseIndexed(event abi.Event, topics []string) (map[string]interface{}, error) {
	args := indexedArguments(event.Inputs)
	if len(topics) != len(args)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(args)+1, len(topics))
	}
	hashes, err := parseTopicHashes(topics[1:])
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(args))
	if len(args) == 0 {
		return out, nil
	}
	if err := abi.ParseTopicsIntoMap(out, args, hashes); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	return out, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	if dataHex == "" {
		dataHex = "0x"
	}
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func addressField(values map[string]interface{}, key string) (common.Address, error) {
	value, ok := values[key]
	if !ok {
		return common.Address{}, fmt.Errorf("missing %s", key)
	}
	return asAddress(value)
}

func bigValue(values []interface{}, idx int) (*big.Int, error) {
	if idx >= len(values) {
		return nil, fmt.Errorf("missing value %d", idx)
	}
	return asBigInt(values[idx])
}
