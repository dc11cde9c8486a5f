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

// Stake deposits amount of the staked asset for caller. The deposit fee is
// kept by the pool and the remainder is credited to caller.
func (p *Pool) Stake(caller common.Address, amount *big.Int) error {
	return p.env.Run(component, "stake", func() error {
		if !positive(amount) {
			return faults.InvalidInput("stake amount must be positive")
		}
		if p.permissioned && !p.permitted[caller] {
			return faults.Unauthorized("account %s is not permitted to stake", caller.Hex())
		}
		now := p.env.Now()
		if now >= p.periodFinish {
			return faults.InvalidState("no active emission")
		}

		fee := mulBps(amount, p.depositFeeBps)
		net := new(big.Int).Sub(amount, fee)
		if net.Sign() == 0 {
			return faults.InvalidInput("stake amount %s is consumed by the deposit fee", amount)
		}

		p.checkpoint(caller)
		if err := p.growCoverageAnchor(caller, net, now); err != nil {
			return err
		}
		j := p.env.Journal()
		state.SetKey(j, p.balances, caller, new(big.Int).Add(p.balanceOf(caller), net))
		state.Set(j, &p.totalStaked, new(big.Int).Add(p.totalStaked, net))
		state.Set(j, &p.collectedFees, new(big.Int).Add(p.collectedFees, fee))
		state.SetKey(j, p.feeAnchors, caller, now)

		if err := asset.TransferIn(p.bank, p.stakedAsset, caller, p.address, amount); err != nil {
			return err
		}
		p.logger.Debug("staked",
			zap.String("account", caller.Hex()),
			zap.String("amount", net.String()),
			zap.String("fee", fee.String()),
		)
		return p.emit(farmabi.Staked(caller, net))
	})
}

// Withdraw returns amount of caller's stake less the withdrawal fee that
// applies at the current time.
func (p *Pool) Withdraw(caller common.Address, amount *big.Int) error {
	return p.env.Run(component, "withdraw", func() error {
		if !positive(amount) {
			return faults.InvalidInput("withdraw amount must be positive")
		}
		balance := p.balanceOf(caller)
		if amount.Cmp(balance) > 0 {
			return faults.InvalidState("withdraw %s exceeds staked balance %s", amount, balance)
		}

		p.checkpoint(caller)
		fee := p.withdrawalFee(caller, amount)
		net := new(big.Int).Sub(amount, fee)
		remaining := new(big.Int).Sub(balance, amount)
		p.shrinkCoverageAnchor(caller, balance, remaining)

		j := p.env.Journal()
		state.SetKey(j, p.balances, caller, remaining)
		state.Set(j, &p.totalStaked, new(big.Int).Sub(p.totalStaked, amount))
		state.Set(j, &p.collectedFees, new(big.Int).Add(p.collectedFees, fee))

		if err := asset.TransferOut(p.bank, p.stakedAsset, p.address, caller, net); err != nil {
			return err
		}
		p.logger.Debug("withdrawn",
			zap.String("account", caller.Hex()),
			zap.String("amount", net.String()),
			zap.String("fee", fee.String()),
		)
		return p.emit(farmabi.Withdrawn(caller, net))
	})
}

// GetRewards pays account everything it has accrued. Anyone may trigger the
// payout; funds always go to account.
func (p *Pool) GetRewards(account common.Address) error {
	return p.env.Run(component, "get_rewards", func() error {
		if account == (common.Address{}) {
			return faults.InvalidInput("account cannot be the zero address")
		}
		p.checkpoint(account)

		type payout struct {
			asset  common.Address
			amount *big.Int
		}
		j := p.env.Journal()
		var payouts []payout
		for _, reward := range p.rewardAssets {
			key := rewardKey{asset: reward, account: account}
			owed := orZero(p.accrued[key])
			if owed.Sign() == 0 {
				continue
			}
			state.SetKey(j, p.accrued, key, new(big.Int))
			payouts = append(payouts, payout{asset: reward, amount: owed})
		}

		for _, out := range payouts {
			if err := asset.TransferOut(p.bank, out.asset, p.address, account, out.amount); err != nil {
				return err
			}
			if err := p.emit(farmabi.RewardPaid(out.asset, account, out.amount)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exit withdraws caller's whole balance and claims its rewards.
func (p *Pool) Exit(caller common.Address) error {
	return p.env.Run(component, "exit", func() error {
		balance := p.balanceOf(caller)
		if balance.Sign() > 0 {
			if err := p.Withdraw(caller, balance); err != nil {
				return err
			}
		}
		return p.GetRewards(caller)
	})
}

func (p *Pool) withdrawalFee(account common.Address, amount *big.Int) *big.Int {
	var elapsed uint64
	if anchor, ok := p.feeAnchors[account]; ok {
		elapsed = p.env.Now() - anchor
	} else {
		elapsed = p.env.Now()
	}
	return mulBps(amount, p.fees.FeeBps(elapsed))
}

func (p *Pool) balanceOf(account common.Address) *big.Int {
	return orZero(p.balances[account])
}
