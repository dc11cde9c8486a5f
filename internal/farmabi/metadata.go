package farmabi

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/model"
)

// maxRewardTokens bounds the rewardTokens(i) probe loop.
const maxRewardTokens = 32

// FarmMetaCache caches farm metadata by address.
type FarmMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.FarmMeta
}

func NewFarmMetaCache() *FarmMetaCache {
	return &FarmMetaCache{data: make(map[common.Address]model.FarmMeta)}
}

func (c *FarmMetaCache) Get(address common.Address) (model.FarmMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *FarmMetaCache) Set(address common.Address, meta model.FarmMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Seed loads registry records, typically the farms file written by simulate.
func (c *FarmMetaCache) Seed(farms []model.Farm) {
	for _, farm := range farms {
		if !common.IsHexAddress(farm.Address) {
			continue
		}
		c.Set(common.HexToAddress(farm.Address), farm.Meta())
	}
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchFarmMeta reads the staked asset and the reward asset list of a
// deployed farm. The reward list is probed index by index until the getter
// reverts.
func FetchFarmMeta(ctx context.Context, chainClient *chain.Client, farm common.Address, logger *zap.Logger) (model.FarmMeta, error) {
	if chainClient == nil {
		return model.FarmMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := FarmABI()
	if err != nil {
		return model.FarmMeta{}, fmt.Errorf("parse farm abi: %w", err)
	}

	values, err := callMethod(ctx, chainClient, farm, parsed, "lpToken", nil)
	if err != nil {
		return model.FarmMeta{}, err
	}
	staked, err := asAddress(values[0])
	if err != nil {
		return model.FarmMeta{}, fmt.Errorf("lpToken: %w", err)
	}

	meta := model.FarmMeta{StakedAsset: staked.Hex()}
	for i := 0; i < maxRewardTokens; i++ {
		values, err := callMethod(ctx, chainClient, farm, parsed, "rewardTokens", nil, big.NewInt(int64(i)))
		if err != nil {
			logger.Debug("reward token probe stopped", zap.String("farm", farm.Hex()), zap.Int("index", i), zap.Error(err))
			break
		}
		token, err := asAddress(values[0])
		if err != nil {
			return model.FarmMeta{}, fmt.Errorf("rewardTokens(%d): %w", i, err)
		}
		meta.RewardAssets = append(meta.RewardAssets, token.Hex())
	}
	return meta, nil
}

func callMethod(ctx context.Context, chainClient *chain.Client, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := chainClient.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, chainClient *chain.Client, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20ABIString.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, chainClient, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	meta.Symbol = readText(ctx, chainClient, token, "symbol", stringABI, bytes32ABI, logger)
	meta.Name = readText(ctx, chainClient, token, "name", stringABI, bytes32ABI, logger)
	return meta, nil
}

// FetchTokenBalance reads balanceOf(owner) at block, or latest when block is nil.
func FetchTokenBalance(ctx context.Context, chainClient *chain.Client, token, owner common.Address, block *big.Int) (*big.Int, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := erc20ABIString.get()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, chainClient, token, parsed, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// FetchTotalStaked reads the farm totalSupply at block, or latest when block is nil.
func FetchTotalStaked(ctx context.Context, chainClient *chain.Client, farm common.Address, block *big.Int) (*big.Int, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := FarmABI()
	if err != nil {
		return nil, fmt.Errorf("parse farm abi: %w", err)
	}
	values, err := callMethod(ctx, chainClient, farm, parsed, "totalSupply", block)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func readText(ctx context.Context, chainClient *chain.Client, token common.Address, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := callMethod(ctx, chainClient, token, stringABI, method, nil); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := callMethod(ctx, chainClient, token, bytes32ABI, method, nil)
	if err != nil {
		logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return text
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
