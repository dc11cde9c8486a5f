// Package asset holds the fungible-asset transfer primitive consumed by the
// farm ledger, the factory and the manager, plus an in-memory implementation.
package asset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/faults"
)

// Transferrer moves fungible assets between accounts. Every call is atomic:
// it either completes or returns an error without moving anything. A
// transfer may call back into the ledger before it returns.
type Transferrer interface {
	BalanceOf(token, account common.Address) *big.Int
	Decimals(token common.Address) (uint8, error)
	Approve(token, owner, spender common.Address, amount *big.Int) error
	// TransferFrom moves amount from `from` to `to` using the allowance
	// `from` granted to spender.
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	// Transfer moves amount owned by `from`.
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// TransferIn pulls amount of token from `from` into self, spending the
// allowance granted to self. Failures are reported as upstream faults.
func TransferIn(t Transferrer, token, from, self common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := t.TransferFrom(token, self, from, self, amount); err != nil {
		return faults.Upstream(fmt.Sprintf("transfer in %s from %s", token.Hex(), from.Hex()), err)
	}
	return nil
}

// TransferOut sends amount of token held by self to `to`. Failures are
// reported as upstream faults.
func TransferOut(t Transferrer, token, self, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := t.Transfer(token, self, to, amount); err != nil {
		return faults.Upstream(fmt.Sprintf("transfer out %s to %s", token.Hex(), to.Hex()), err)
	}
	return nil
}

// Approve grants spender an allowance over owner's token. Failures are
// reported as upstream faults.
func Approve(t Transferrer, token, owner, spender common.Address, amount *big.Int) error {
	if err := t.Approve(token, owner, spender, amount); err != nil {
		return faults.Upstream(fmt.Sprintf("approve %s for %s", token.Hex(), spender.Hex()), err)
	}
	return nil
}
