package factory

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/farmabi"
	"farmScope/internal/faults"
	"farmScope/internal/oracle"
	"farmScope/internal/state"
)

func (f *Factory) onlyAdmin(caller common.Address) error {
	if caller != f.admin {
		return faults.Unauthorized("caller %s is not the factory admin", caller.Hex())
	}
	return nil
}

// SetFee changes the creation fee charged to future creators.
func (f *Factory) SetFee(caller, token common.Address, amount *big.Int) error {
	return f.env.Run(component, "set_fee", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 {
			return faults.InvalidInput("creation fee must be non-negative")
		}
		if amount.Sign() > 0 && token == (common.Address{}) {
			return faults.InvalidInput("creation fee requires a fee token")
		}
		j := f.env.Journal()
		state.Set(j, &f.feeToken, token)
		state.Set(j, &f.creationFee, new(big.Int).Set(amount))
		return nil
	})
}

// SetManager sets the custodian new pools are handed to.
func (f *Factory) SetManager(caller, manager common.Address) error {
	return f.env.Run(component, "set_manager", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		if manager == (common.Address{}) {
			return faults.InvalidInput("manager cannot be the zero address")
		}
		state.Set(f.env.Journal(), &f.manager, manager)
		return nil
	})
}

// OverrideOwnership makes the admin the registered creator of pool. The
// pool stays in the manager's custody.
func (f *Factory) OverrideOwnership(caller, pool common.Address) error {
	return f.env.Run(component, "override_ownership", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		p, ok := f.pools[pool]
		if !ok {
			return faults.InvalidInput("unknown farm %s", pool.Hex())
		}
		previous := f.creators[pool]
		if previous == f.admin {
			return nil
		}
		adminKey := farmKey{creator: f.admin, stakedAsset: p.StakedAsset()}
		if existing, taken := f.farms[adminKey]; taken {
			return faults.InvalidState("admin already has farm %s for %s", existing.Hex(), p.StakedAsset().Hex())
		}

		j := f.env.Journal()
		state.DeleteKey(j, f.farms, farmKey{creator: previous, stakedAsset: p.StakedAsset()})
		state.SetKey(j, f.farms, adminKey, pool)
		state.SetKey(j, f.creators, pool, f.admin)

		f.logger.Warn("farm ownership overridden",
			zap.String("farm", pool.Hex()),
			zap.String("previous_creator", previous.Hex()),
		)
		return f.emit(farmabi.OwnershipOverridden(pool, f.admin))
	})
}

// WithdrawFees sends the creation fees collected in token to the admin.
func (f *Factory) WithdrawFees(caller, token common.Address) (*big.Int, error) {
	var amount *big.Int
	err := f.env.Run(component, "withdraw_fees", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		amount = f.CollectedFees(token)
		if amount.Sign() == 0 {
			return nil
		}
		state.SetKey(f.env.Journal(), f.collected, token, new(big.Int))
		return asset.TransferOut(f.bank, token, f.address, f.admin, amount)
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// AddOracle whitelists an oracle for coverage pools.
func (f *Factory) AddOracle(caller, address common.Address, o oracle.Oracle) error {
	return f.env.Run(component, "add_oracle", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		if address == (common.Address{}) || o == nil {
			return faults.InvalidInput("oracle address and implementation are required")
		}
		state.SetKey(f.env.Journal(), f.oracles, address, o)
		return nil
	})
}

// RemoveOracle drops an oracle from the whitelist. Existing pools keep
// the oracle they were created with.
func (f *Factory) RemoveOracle(caller, address common.Address) error {
	return f.env.Run(component, "remove_oracle", func() error {
		if err := f.onlyAdmin(caller); err != nil {
			return err
		}
		if _, ok := f.oracles[address]; !ok {
			return faults.InvalidState("oracle %s is not whitelisted", address.Hex())
		}
		state.DeleteKey(f.env.Journal(), f.oracles, address)
		return nil
	})
}

func (f *Factory) IsOracle(address common.Address) bool {
	_, ok := f.oracles[address]
	return ok
}
