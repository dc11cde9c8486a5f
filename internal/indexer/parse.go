package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"farmScope/internal/farmabi"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseTopic0 converts topic0 filters into hashes. Each input is either a
// 32-byte hex hash or the name of a farm or factory event.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	byName, err := eventTopics()
	if err != nil {
		return nil, err
	}

	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if topic, ok := byName[input]; ok {
			topics = append(topics, topic)
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

func eventTopics() (map[string]common.Hash, error) {
	out := make(map[string]common.Hash)
	for _, load := range []func() (abi.ABI, error){farmabi.FarmABI, farmabi.FactoryABI} {
		parsed, err := load()
		if err != nil {
			return nil, err
		}
		for name, event := range parsed.Events {
			out[name] = event.ID
		}
	}
	return out, nil
}
