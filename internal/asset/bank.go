package asset

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/model"
	"farmScope/internal/state"
)

var (
	ErrUnknownToken          = errors.New("unknown token")
	ErrTokenExists           = errors.New("token already registered")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Hook runs after a transfer of its token has moved balances, inside the same
// transition. Returning an error aborts the transfer. Hooks may re-enter any
// ledger component.
type Hook func(token, from, to common.Address, amount *big.Int) error

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type ledger struct {
	meta       model.TokenMeta
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	hook       Hook
}

// Bank is an in-memory multi-asset ledger whose mutations are journaled in
// the environment, so a failed transition also undoes its asset movements.
type Bank struct {
	env    *state.Env
	logger *zap.Logger
	tokens map[common.Address]*ledger
}

func NewBank(env *state.Env) *Bank {
	return &Bank{
		env:    env,
		logger: env.Logger().With(zap.String("component", "bank")),
		tokens: make(map[common.Address]*ledger),
	}
}

// Register adds a token with its display metadata.
func (b *Bank) Register(token common.Address, symbol string, decimals uint8) error {
	if token == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrUnknownToken)
	}
	if _, ok := b.tokens[token]; ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Hex())
	}
	b.tokens[token] = &ledger{
		meta:       model.TokenMeta{Address: token.Hex(), Symbol: symbol, Name: symbol, Decimals: decimals},
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
	b.logger.Debug("token registered", zap.String("token", token.Hex()), zap.String("symbol", symbol), zap.Uint8("decimals", decimals))
	return nil
}

// SetHook installs a transfer hook on token, replacing any previous one.
func (b *Bank) SetHook(token common.Address, hook Hook) error {
	l, err := b.ledger(token)
	if err != nil {
		return err
	}
	l.hook = hook
	return nil
}

// Mint credits amount of token to `to`.
func (b *Bank) Mint(token, to common.Address, amount *big.Int) error {
	return b.env.Run("bank", "mint", func() error {
		l, err := b.ledger(token)
		if err != nil {
			return err
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		j := b.env.Journal()
		state.Set(j, &l.supply, new(big.Int).Add(l.supply, amount))
		state.SetKey(j, l.balances, to, new(big.Int).Add(balanceOf(l, to), amount))
		return nil
	})
}

// Tokens lists registered token metadata ordered by address.
func (b *Bank) Tokens() []model.TokenMeta {
	out := make([]model.TokenMeta, 0, len(b.tokens))
	for _, l := range b.tokens {
		out = append(out, l.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// TotalSupply returns the minted supply of token.
func (b *Bank) TotalSupply(token common.Address) *big.Int {
	l, ok := b.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(l.supply)
}

// Allowance returns what spender may still pull from owner.
func (b *Bank) Allowance(token, owner, spender common.Address) *big.Int {
	l, ok := b.tokens[token]
	if !ok {
		return new(big.Int)
	}
	if v, ok := l.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *Bank) BalanceOf(token, account common.Address) *big.Int {
	l, ok := b.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balanceOf(l, account))
}

func (b *Bank) Decimals(token common.Address) (uint8, error) {
	l, err := b.ledger(token)
	if err != nil {
		return 0, err
	}
	return l.meta.Decimals, nil
}

func (b *Bank) Approve(token, owner, spender common.Address, amount *big.Int) error {
	return b.env.Run("bank", "approve", func() error {
		l, err := b.ledger(token)
		if err != nil {
			return err
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		state.SetKey(b.env.Journal(), l.allowances, allowanceKey{owner: owner, spender: spender}, new(big.Int).Set(amount))
		return nil
	})
}

func (b *Bank) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	return b.env.Run("bank", "transfer_from", func() error {
		l, err := b.ledger(token)
		if err != nil {
			return err
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		if spender != from {
			key := allowanceKey{owner: from, spender: spender}
			allowed := l.allowances[key]
			if allowed == nil || allowed.Cmp(amount) < 0 {
				return fmt.Errorf("%w: %s may pull %s of %s, needs %s", ErrInsufficientAllowance, spender.Hex(), bigString(allowed), l.meta.Symbol, amount)
			}
			state.SetKey(b.env.Journal(), l.allowances, key, new(big.Int).Sub(allowed, amount))
		}
		return b.move(token, l, from, to, amount)
	})
}

func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	return b.env.Run("bank", "transfer", func() error {
		l, err := b.ledger(token)
		if err != nil {
			return err
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		return b.move(token, l, from, to, amount)
	})
}

func (b *Bank) move(token common.Address, l *ledger, from, to common.Address, amount *big.Int) error {
	fromBalance := balanceOf(l, from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, l.meta.Symbol, amount)
	}
	j := b.env.Journal()
	state.SetKey(j, l.balances, from, new(big.Int).Sub(fromBalance, amount))
	state.SetKey(j, l.balances, to, new(big.Int).Add(balanceOf(l, to), amount))

	if l.hook != nil {
		if err := l.hook(token, from, to, new(big.Int).Set(amount)); err != nil {
			return fmt.Errorf("transfer hook: %w", err)
		}
	}
	return nil
}

func (b *Bank) ledger(token common.Address) (*ledger, error) {
	l, ok := b.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return l, nil
}

func balanceOf(l *ledger, account common.Address) *big.Int {
	if v, ok := l.balances[account]; ok {
		return v
	}
	return new(big.Int)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, bigString(amount))
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
