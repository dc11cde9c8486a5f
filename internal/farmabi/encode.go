package farmabi

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Log is an ABI-encoded event ready to be emitted.
type Log struct {
	Name   string
	Topics []common.Hash
	Data   []byte
}

func encode(parsed abi.ABI, name string, indexed []common.Hash, args ...interface{}) (Log, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return Log{}, fmt.Errorf("unknown event %s", name)
	}
	if want := len(indexedArguments(event.Inputs)); want != len(indexed) {
		return Log{}, fmt.Errorf("event %s expects %d indexed topics, got %d", name, want, len(indexed))
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return Log{}, fmt.Errorf("pack %s: %w", name, err)
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	topics = append(topics, indexed...)
	return Log{Name: name, Topics: topics, Data: data}, nil
}

func encodeFarm(name string, indexed []common.Hash, args ...interface{}) (Log, error) {
	parsed, err := FarmABI()
	if err != nil {
		return Log{}, fmt.Errorf("parse farm abi: %w", err)
	}
	return encode(parsed, name, indexed, args...)
}

func encodeFactory(name string, indexed []common.Hash, args ...interface{}) (Log, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return Log{}, fmt.Errorf("parse factory abi: %w", err)
	}
	return encode(parsed, name, indexed, args...)
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func Staked(user common.Address, amount *big.Int) (Log, error) {
	return encodeFarm(EventStaked, []common.Hash{AddressTopic(user)}, amount)
}

func Withdrawn(user common.Address, amount *big.Int) (Log, error) {
	return encodeFarm(EventWithdrawn, []common.Hash{AddressTopic(user)}, amount)
}

func RewardPaid(token, user common.Address, reward *big.Int) (Log, error) {
	return encodeFarm(EventRewardPaid, []common.Hash{AddressTopic(token), AddressTopic(user)}, reward)
}

func RewardsEmissionStarted(rewards []*big.Int, duration uint64) (Log, error) {
	return encodeFarm(EventRewardsEmissionStarted, nil, rewards, new(big.Int).SetUint64(duration))
}

func RewardsEmissionEnded() (Log, error) {
	return encodeFarm(EventRewardsEmissionEnded, nil)
}

func FeesRecovered(amount *big.Int) (Log, error) {
	return encodeFarm(EventFeesRecovered, nil, amount)
}

func RewardTokenAdded(token common.Address) (Log, error) {
	return encodeFarm(EventRewardTokenAdded, []common.Hash{AddressTopic(token)})
}

func AddressPermissionSet(account common.Address, permitted bool) (Log, error) {
	return encodeFarm(EventAddressPermissionSet, []common.Hash{AddressTopic(account)}, permitted)
}

func CoveragePaid(user common.Address, amount *big.Int) (Log, error) {
	return encodeFarm(EventCoveragePaid, []common.Hash{AddressTopic(user)}, amount)
}

func OwnershipTransferred(previous, next common.Address) (Log, error) {
	return encodeFarm(EventOwnershipTransferred, []common.Hash{AddressTopic(previous), AddressTopic(next)})
}

func ContractCreated(farm, creator common.Address) (Log, error) {
	return encodeFactory(EventContractCreated, []common.Hash{AddressTopic(farm), AddressTopic(creator)})
}

func OwnershipOverridden(farm, newCreator common.Address) (Log, error) {
	return encodeFactory(EventOwnershipOverridden, []common.Hash{AddressTopic(farm), AddressTopic(newCreator)})
}

// Topic0s returns the signature hashes of every farm and factory event.
func Topic0s() ([]common.Hash, error) {
	farm, err := FarmABI()
	if err != nil {
		return nil, err
	}
	factory, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, 0, len(farm.Events)+len(factory.Events))
	for _, parsed := range []abi.ABI{farm, factory} {
		for _, event := range parsed.Events {
			out = append(out, event.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}
