// Package oracle values one asset in units of another. Pools consult it only
// when a coverage asset is configured.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPrice reports a pair the oracle cannot value.
var ErrNoPrice = errors.New("no price for pair")

// Oracle values amountIn of tokenIn in units of tokenOut.
type Oracle interface {
	Consult(ctx context.Context, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address) (*big.Int, error)
}

type pair struct {
	in  common.Address
	out common.Address
}

type price struct {
	num *big.Int
	den *big.Int
}

// Static is an Oracle backed by a settable price table. Each price is a
// ratio of base units: amountOut = amountIn * num / den.
type Static struct {
	mu     sync.RWMutex
	prices map[pair]price
}

func NewStatic() *Static {
	return &Static{prices: make(map[pair]price)}
}

// SetPrice sets the tokenIn → tokenOut ratio. The reverse direction is
// derived unless set explicitly.
func (s *Static) SetPrice(tokenIn, tokenOut common.Address, num, den *big.Int) error {
	if num == nil || den == nil || num.Sign() < 0 || den.Sign() <= 0 {
		return fmt.Errorf("invalid price %s/%s", num, den)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[pair{in: tokenIn, out: tokenOut}] = price{num: new(big.Int).Set(num), den: new(big.Int).Set(den)}
	return nil
}

func (s *Static) Consult(_ context.Context, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() == 0 {
		return new(big.Int), nil
	}
	if tokenIn == tokenOut {
		return new(big.Int).Set(amountIn), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prices[pair{in: tokenIn, out: tokenOut}]; ok {
		out := new(big.Int).Mul(amountIn, p.num)
		return out.Div(out, p.den), nil
	}
	if p, ok := s.prices[pair{in: tokenOut, out: tokenIn}]; ok && p.num.Sign() > 0 {
		out := new(big.Int).Mul(amountIn, p.den)
		return out.Div(out, p.num), nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoPrice, tokenIn.Hex(), tokenOut.Hex())
}
