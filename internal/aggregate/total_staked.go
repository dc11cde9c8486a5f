package aggregate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/farmabi"
)

const (
	stakedMethodBlock  = "total_supply_block"
	stakedMethodLatest = "total_supply_latest"
	stakedMethodNone   = "unavailable"
)

// TotalStakedFunc reads a farm's totalSupply at block, or latest when block is nil.
type TotalStakedFunc func(ctx context.Context, farm common.Address, block *big.Int) (*big.Int, error)

func (a *Aggregator) fetchTotalStaked(ctx context.Context, farmAddr string, blockNumber uint64) (*big.Int, string, error) {
	if a.totalStaked == nil {
		return nil, stakedMethodNone, fmt.Errorf("no chain reader")
	}
	if !common.IsHexAddress(farmAddr) {
		return nil, stakedMethodNone, fmt.Errorf("invalid address")
	}
	farm := common.HexToAddress(farmAddr)

	total, err := a.totalStaked(ctx, farm, new(big.Int).SetUint64(blockNumber))
	if err == nil {
		return total, stakedMethodBlock, nil
	}
	total, err = a.totalStaked(ctx, farm, nil)
	if err == nil {
		return total, stakedMethodLatest, nil
	}
	return nil, stakedMethodNone, fmt.Errorf("totalSupply failed: %w", err)
}

func (a *Aggregator) chainTotalStaked(ctx context.Context, farm common.Address, block *big.Int) (*big.Int, error) {
	return farmabi.FetchTotalStaked(ctx, a.chainClient, farm, block)
}
