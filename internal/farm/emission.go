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

// StartEmission pulls amounts of each reward asset, in reward-asset order,
// from caller and emits them linearly over duration seconds.
func (p *Pool) StartEmission(caller common.Address, amounts []*big.Int, duration uint64) error {
	return p.env.Run(component, "start_emission", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		if len(amounts) != len(p.rewardAssets) {
			return faults.InvalidInput("got %d reward amounts for %d reward assets", len(amounts), len(p.rewardAssets))
		}
		if duration == 0 {
			return faults.InvalidInput("emission duration must be positive")
		}
		for i, amount := range amounts {
			if amount == nil || amount.Sign() < 0 {
				return faults.InvalidInput("reward amount %d must be non-negative", i)
			}
		}
		now := p.env.Now()
		if now < p.periodFinish {
			return faults.InvalidState("emission already active until %d", p.periodFinish)
		}

		p.checkpoint(common.Address{})
		j := p.env.Journal()
		span := new(big.Int).SetUint64(duration)
		for i, reward := range p.rewardAssets {
			rs := p.rewards[reward]
			rate := new(big.Int).Mul(amounts[i], Scale)
			state.Set(j, &rs.rate, rate.Quo(rate, span))
			state.Set(j, &rs.lastUpdate, now)
		}
		state.Set(j, &p.periodFinish, now+duration)
		state.Set(j, &p.rewardsDuration, duration)

		for i, reward := range p.rewardAssets {
			if err := asset.TransferIn(p.bank, reward, caller, p.address, amounts[i]); err != nil {
				return err
			}
		}
		p.logger.Info("emission started",
			zap.Uint64("duration", duration),
			zap.Uint64("period_finish", now+duration),
		)
		return p.emit(farmabi.RewardsEmissionStarted(amounts, duration))
	})
}

// StopEmission ends the active emission now and returns the unemitted
// remainder of every reward asset to caller. The refunds are returned in
// reward-asset order.
func (p *Pool) StopEmission(caller common.Address) ([]*big.Int, error) {
	var refunds []*big.Int
	err := p.env.Run(component, "stop_emission", func() error {
		refunds = nil
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		now := p.env.Now()
		if now > p.periodFinish {
			return faults.InvalidState("no active emission")
		}

		p.checkpoint(common.Address{})
		remaining := new(big.Int).SetUint64(p.periodFinish - now)
		for _, reward := range p.rewardAssets {
			refund := new(big.Int).Mul(p.rewards[reward].rate, remaining)
			refunds = append(refunds, refund.Quo(refund, Scale))
		}
		state.Set(p.env.Journal(), &p.periodFinish, now)

		for i, reward := range p.rewardAssets {
			if err := asset.TransferOut(p.bank, reward, p.address, caller, refunds[i]); err != nil {
				return err
			}
		}
		p.logger.Info("emission stopped", zap.Uint64("remaining", remaining.Uint64()))
		return p.emit(farmabi.RewardsEmissionEnded())
	})
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// RecoverFees sends every collected fee to caller and returns the amount.
func (p *Pool) RecoverFees(caller common.Address) (*big.Int, error) {
	var amount *big.Int
	err := p.env.Run(component, "recover_fees", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		amount = new(big.Int).Set(p.collectedFees)
		state.Set(p.env.Journal(), &p.collectedFees, new(big.Int))
		if err := asset.TransferOut(p.bank, p.stakedAsset, p.address, caller, amount); err != nil {
			return err
		}
		return p.emit(farmabi.FeesRecovered(amount))
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// AddRewardToken appends a reward asset with a zero rate. The next emission
// must fund it.
func (p *Pool) AddRewardToken(caller, reward common.Address) error {
	return p.env.Run(component, "add_reward_token", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		if reward == (common.Address{}) {
			return faults.InvalidInput("reward asset cannot be the zero address")
		}
		if _, exists := p.rewards[reward]; exists {
			return faults.InvalidState("reward asset %s already configured", reward.Hex())
		}
		now := p.env.Now()
		if now < p.periodFinish {
			return faults.InvalidState("cannot add a reward asset during an active emission")
		}
		j := p.env.Journal()
		state.Push(j, &p.rewardAssets, reward)
		state.SetKey(j, p.rewards, reward, &rewardState{
			rate:          new(big.Int),
			perUnitStored: new(big.Int),
			lastUpdate:    now,
		})
		return p.emit(farmabi.RewardTokenAdded(reward))
	})
}
