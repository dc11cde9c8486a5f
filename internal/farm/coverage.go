package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/farmabi"
	"farmScope/internal/faults"
	"farmScope/internal/state"
)

// FundCoverage deposits coverage asset into the reserve. Total funding is
// capped at the configured coverage amount.
func (p *Pool) FundCoverage(caller common.Address, amount *big.Int) error {
	return p.env.Run(component, "fund_coverage", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		if !p.coverageEnabled() {
			return faults.InvalidState("pool has no coverage configured")
		}
		if !positive(amount) {
			return faults.InvalidInput("coverage amount must be positive")
		}
		funded := new(big.Int).Add(p.coverageFunded, amount)
		if funded.Cmp(p.coverageAmount) > 0 {
			return faults.InvalidInput("coverage funding %s exceeds the configured %s", funded, p.coverageAmount)
		}
		j := p.env.Journal()
		state.Set(j, &p.coverageFunded, funded)
		state.Set(j, &p.coverageReserve, new(big.Int).Add(p.coverageReserve, amount))
		return asset.TransferIn(p.bank, p.coverageAsset, caller, p.address, amount)
	})
}

// CoverageEarned returns the coverage account could claim now: the vested
// share of the drop in value of its stake, measured in the coverage asset.
func (p *Pool) CoverageEarned(account common.Address) (*big.Int, error) {
	if !p.coverageEnabled() {
		return new(big.Int), nil
	}
	anchor, ok := p.coverageAnchors[account]
	if !ok || anchor.value.Sign() == 0 {
		return new(big.Int), nil
	}
	current, err := p.valueOf(p.balanceOf(account))
	if err != nil {
		return nil, err
	}
	loss := new(big.Int).Sub(anchor.value, current)
	if loss.Sign() <= 0 {
		return new(big.Int), nil
	}
	if p.coverageDuration > 0 {
		elapsed := p.env.Now() - anchor.since
		if elapsed < p.coverageDuration {
			loss.Mul(loss, new(big.Int).SetUint64(elapsed))
			loss.Quo(loss, new(big.Int).SetUint64(p.coverageDuration))
		}
	}
	if loss.Cmp(p.coverageReserve) > 0 {
		loss.Set(p.coverageReserve)
	}
	return loss, nil
}

// ClaimCoverage pays account its vested coverage.
func (p *Pool) ClaimCoverage(account common.Address) error {
	return p.env.Run(component, "claim_coverage", func() error {
		if !p.coverageEnabled() {
			return faults.InvalidState("pool has no coverage configured")
		}
		amount, err := p.CoverageEarned(account)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return nil
		}
		j := p.env.Journal()
		anchor := p.coverageAnchors[account]
		state.SetKey(j, p.coverageAnchors, account, coverageAnchor{
			value: new(big.Int).Sub(anchor.value, amount),
			since: anchor.since,
		})
		state.Set(j, &p.coverageReserve, new(big.Int).Sub(p.coverageReserve, amount))
		if err := asset.TransferOut(p.bank, p.coverageAsset, p.address, account, amount); err != nil {
			return err
		}
		p.logger.Info("coverage paid", zap.String("account", account.Hex()), zap.String("amount", amount.String()))
		return p.emit(farmabi.CoveragePaid(account, amount))
	})
}

func (p *Pool) coverageEnabled() bool {
	return p.coverageAsset != (common.Address{})
}

func (p *Pool) valueOf(amount *big.Int) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	value, err := p.oracle.Consult(p.env.Context(), p.stakedAsset, amount, p.coverageAsset)
	if err != nil {
		return nil, faults.Upstream("oracle consult", err)
	}
	return value, nil
}

func (p *Pool) growCoverageAnchor(account common.Address, net *big.Int, now uint64) error {
	if !p.coverageEnabled() {
		return nil
	}
	value, err := p.valueOf(net)
	if err != nil {
		return err
	}
	prev := p.coverageAnchors[account]
	total := new(big.Int).Add(orZero(prev.value), value)
	state.SetKey(p.env.Journal(), p.coverageAnchors, account, coverageAnchor{value: total, since: now})
	return nil
}

func (p *Pool) shrinkCoverageAnchor(account common.Address, previous, remaining *big.Int) {
	if !p.coverageEnabled() {
		return
	}
	anchor, ok := p.coverageAnchors[account]
	if !ok || previous.Sign() == 0 {
		return
	}
	value := new(big.Int).Mul(anchor.value, remaining)
	value.Quo(value, previous)
	state.SetKey(p.env.Journal(), p.coverageAnchors, account, coverageAnchor{value: value, since: anchor.since})
}
