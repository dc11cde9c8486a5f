package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/farmabi"
)

// ChainOracle consults a deployed sliding-window TWAP oracle through eth_call.
type ChainOracle struct {
	client  *chain.Client
	address common.Address
	retry   chain.RetryPolicy
	logger  *zap.Logger
}

func NewChainOracle(client *chain.Client, address common.Address, retry chain.RetryPolicy, logger *zap.Logger) *ChainOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainOracle{
		client:  client,
		address: address,
		retry:   retry,
		logger:  logger.With(zap.String("oracle", address.Hex())),
	}
}

// Address returns the oracle contract address.
func (o *ChainOracle) Address() common.Address {
	return o.address
}

func (o *ChainOracle) Consult(ctx context.Context, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address) (*big.Int, error) {
	if o.client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return new(big.Int), nil
	}

	parsed, err := farmabi.OracleABI()
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}
	data, err := parsed.Pack("consult", tokenIn, amountIn, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("pack consult: %w", err)
	}

	var resp []byte
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = o.client.CallContract(ctx, ethereum.CallMsg{To: &o.address, Data: data}, nil)
		if callErr != nil {
			o.logger.Warn("consult failed", zap.String("token_in", tokenIn.Hex()), zap.String("token_out", tokenOut.Hex()), zap.Error(callErr))
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("call consult: %w", err)
	}

	values, err := parsed.Unpack("consult", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack consult: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected consult values: %d", len(values))
	}
	out, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported consult type %T", values[0])
	}
	return out, nil
}
