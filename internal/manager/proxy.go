package manager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/faults"
)

// StartEmission funds and starts an emission on pool from the creator's
// balance. The creator must have approved the manager for each amount.
func (m *Manager) StartEmission(caller, pool common.Address, amounts []*big.Int, duration uint64) error {
	return m.env.Run(component, "start_emission", func() error {
		p, creator, err := m.authorize(caller, pool, false)
		if err != nil {
			return err
		}
		if duration < m.minDuration {
			return faults.InvalidInput("emission duration %d is below the minimum %d", duration, m.minDuration)
		}
		rewards := p.RewardAssets()
		if len(amounts) != len(rewards) {
			return faults.InvalidInput("got %d reward amounts for %d reward assets", len(amounts), len(rewards))
		}
		for i, reward := range rewards {
			if amounts[i] == nil || amounts[i].Sign() < 0 {
				return faults.InvalidInput("reward amount %d must be non-negative", i)
			}
			if err := asset.TransferIn(m.bank, reward, creator, m.address, amounts[i]); err != nil {
				return err
			}
			if err := asset.Approve(m.bank, reward, m.address, pool, amounts[i]); err != nil {
				return err
			}
		}
		if err := p.StartEmission(m.address, amounts, duration); err != nil {
			return err
		}
		m.logger.Info("emission started", zap.String("farm", pool.Hex()), zap.Uint64("duration", duration))
		return nil
	})
}

// StopEmission ends the emission on pool and forwards the refunds to the
// creator. The admin may stop any pool.
func (m *Manager) StopEmission(caller, pool common.Address) error {
	return m.env.Run(component, "stop_emission", func() error {
		p, creator, err := m.authorize(caller, pool, true)
		if err != nil {
			return err
		}
		refunds, err := p.StopEmission(m.address)
		if err != nil {
			return err
		}
		for i, reward := range p.RewardAssets() {
			if err := asset.TransferOut(m.bank, reward, m.address, creator, refunds[i]); err != nil {
				return err
			}
		}
		m.logger.Info("emission stopped", zap.String("farm", pool.Hex()), zap.String("caller", caller.Hex()))
		return nil
	})
}

// RecoverFees forwards the fees collected by pool to its creator.
func (m *Manager) RecoverFees(caller, pool common.Address) error {
	return m.env.Run(component, "recover_fees", func() error {
		p, creator, err := m.authorize(caller, pool, false)
		if err != nil {
			return err
		}
		amount, err := p.RecoverFees(m.address)
		if err != nil {
			return err
		}
		return asset.TransferOut(m.bank, p.StakedAsset(), m.address, creator, amount)
	})
}

func (m *Manager) AddRewardToken(caller, pool, reward common.Address) error {
	return m.env.Run(component, "add_reward_token", func() error {
		p, _, err := m.authorize(caller, pool, false)
		if err != nil {
			return err
		}
		return p.AddRewardToken(m.address, reward)
	})
}

func (m *Manager) SetAddressPermission(caller, pool, account common.Address, permitted bool) error {
	return m.env.Run(component, "set_address_permission", func() error {
		p, _, err := m.authorize(caller, pool, false)
		if err != nil {
			return err
		}
		return p.SetAddressPermission(m.address, account, permitted)
	})
}

// FundCoverage moves coverage asset from the creator into pool's reserve.
func (m *Manager) FundCoverage(caller, pool common.Address, amount *big.Int) error {
	return m.env.Run(component, "fund_coverage", func() error {
		p, creator, err := m.authorize(caller, pool, false)
		if err != nil {
			return err
		}
		if !positive(amount) {
			return faults.InvalidInput("coverage amount must be positive")
		}
		coverage := p.CoverageAsset()
		if coverage == (common.Address{}) {
			return faults.InvalidState("farm %s has no coverage configured", pool.Hex())
		}
		if err := asset.TransferIn(m.bank, coverage, creator, m.address, amount); err != nil {
			return err
		}
		if err := asset.Approve(m.bank, coverage, m.address, pool, amount); err != nil {
			return err
		}
		return p.FundCoverage(m.address, amount)
	})
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
