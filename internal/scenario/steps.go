package scenario

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/factory"
	"farmScope/internal/faults"
)

// Step actions.
const (
	ActionCreateFarm          = "create_farm"
	ActionMint                = "mint"
	ActionApprove             = "approve"
	ActionAdvance             = "advance"
	ActionStake               = "stake"
	ActionWithdraw            = "withdraw"
	ActionExit                = "exit"
	ActionGetRewards          = "get_rewards"
	ActionStartEmission       = "start_emission"
	ActionStopEmission        = "stop_emission"
	ActionRecoverFees         = "recover_fees"
	ActionAddRewardToken      = "add_reward_token"
	ActionSetPermission       = "set_permission"
	ActionFundCoverage        = "fund_coverage"
	ActionClaimCoverage       = "claim_coverage"
	ActionOverrideOwnership   = "override_ownership"
	ActionSetCreationFee      = "set_creation_fee"
	ActionWithdrawCreationFee = "withdraw_creation_fees"
	ActionSetMinimumDuration  = "set_minimum_duration"
	ActionSetPrice            = "set_price"
	ActionExpectBalance       = "expect_balance"
	ActionExpectStaked        = "expect_staked"
	ActionExpectEarned        = "expect_earned"
)

// step runs one action and returns a short description of its result.
func (r *Runner) step(s Step) (string, error) {
	caller := r.address(s.Caller)

	switch s.Action {
	case ActionCreateFarm:
		return r.createFarm(caller, s.Create)

	case ActionMint:
		v, err := amount(s.Amount)
		if err != nil {
			return "", err
		}
		return "", r.bank.Mint(r.address(s.Token), r.address(s.Account), v)

	case ActionApprove:
		v, err := amount(s.Amount)
		if err != nil {
			return "", err
		}
		return "", r.bank.Approve(r.address(s.Token), caller, r.address(s.Spender), v)

	case ActionAdvance:
		r.clock.Advance(s.Seconds)
		return fmt.Sprintf("%d", r.clock.Now()), nil

	case ActionStake, ActionWithdraw:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		v, err := amount(s.Amount)
		if err != nil {
			return "", err
		}
		if s.Action == ActionStake {
			return "", pool.Stake(caller, v)
		}
		return "", pool.Withdraw(caller, v)

	case ActionExit:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		return "", pool.Exit(caller)

	case ActionGetRewards:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		return "", pool.GetRewards(r.accountOr(s, caller))

	case ActionStartEmission:
		vs, err := amounts(s.Amounts)
		if err != nil {
			return "", err
		}
		return "", r.manager.StartEmission(caller, r.address(s.Farm), vs, s.Duration)

	case ActionStopEmission:
		return "", r.manager.StopEmission(caller, r.address(s.Farm))

	case ActionRecoverFees:
		return "", r.manager.RecoverFees(caller, r.address(s.Farm))

	case ActionAddRewardToken:
		return "", r.manager.AddRewardToken(caller, r.address(s.Farm), r.address(s.Token))

	case ActionSetPermission:
		return "", r.manager.SetAddressPermission(caller, r.address(s.Farm), r.address(s.Account), s.Permitted)

	case ActionFundCoverage:
		v, err := amount(s.Amount)
		if err != nil {
			return "", err
		}
		return "", r.manager.FundCoverage(caller, r.address(s.Farm), v)

	case ActionClaimCoverage:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		return "", pool.ClaimCoverage(r.accountOr(s, caller))

	case ActionOverrideOwnership:
		return "", r.factory.OverrideOwnership(caller, r.address(s.Farm))

	case ActionSetCreationFee:
		v, err := amount(s.Amount)
		if err != nil {
			return "", err
		}
		return "", r.factory.SetFee(caller, r.address(s.Token), v)

	case ActionWithdrawCreationFee:
		v, err := r.factory.WithdrawFees(caller, r.address(s.Token))
		if err != nil {
			return "", err
		}
		return v.String(), nil

	case ActionSetMinimumDuration:
		return "", r.manager.SetMinimumEmissionDuration(caller, s.Duration)

	case ActionSetPrice:
		prices, ok := r.oracles[s.Oracle]
		if !ok {
			return "", faults.InvalidInput("unknown oracle %q", s.Oracle)
		}
		if s.Price == nil {
			return "", faults.InvalidInput("set_price needs a price")
		}
		if err := r.setPrice(prices, *s.Price); err != nil {
			return "", faults.InvalidInput("%v", err)
		}
		return "", nil

	case ActionExpectBalance:
		got := r.bank.BalanceOf(r.address(s.Token), r.address(s.Account))
		return got.String(), expectAmount(s, got)

	case ActionExpectStaked:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		got := pool.BalanceOf(r.address(s.Account))
		return got.String(), expectAmount(s, got)

	case ActionExpectEarned:
		pool, err := r.Farm(s.Farm)
		if err != nil {
			return "", err
		}
		got, err := pool.Earned(r.address(s.Token), r.address(s.Account))
		if err != nil {
			return "", err
		}
		return got.String(), expectAmount(s, got)

	default:
		return "", faults.InvalidInput("unknown action %q", s.Action)
	}
}

func (r *Runner) createFarm(caller common.Address, def *FarmDef) (string, error) {
	if def == nil || def.Name == "" {
		return "", faults.InvalidInput("create_farm needs a named create block")
	}
	if _, exists := r.farms[def.Name]; exists {
		return "", faults.InvalidInput("farm name %q already used", def.Name)
	}

	params := factory.Params{
		StakedAsset:             r.address(def.StakedAsset),
		RewardsDuration:         def.RewardsDuration,
		DepositFeeBps:           def.DepositFeeBps,
		WithdrawalFeesBps:       def.WithdrawalFeesBps,
		WithdrawalFeeSchedule:   def.WithdrawalFeeSchedule,
		CoverageVestingDuration: def.CoverageVestingDuration,
	}
	for _, reward := range def.RewardAssets {
		params.RewardAssets = append(params.RewardAssets, r.address(reward))
	}
	if def.Oracle != "" {
		params.Oracle = r.address(def.Oracle)
	}
	if def.CoverageAsset != "" {
		params.CoverageAsset = r.address(def.CoverageAsset)
	}
	if def.CoverageAmount != "" {
		v, err := amount(def.CoverageAmount)
		if err != nil {
			return "", err
		}
		params.CoverageAmount = v
	}

	create := r.factory.CreateNewRewards
	if def.Permissioned {
		create = r.factory.CreateNewPermissionedRewards
	}
	pool, err := create(caller, params)
	if err != nil {
		return "", err
	}
	r.farms[def.Name] = pool.Address()
	return pool.Address().Hex(), nil
}

func (r *Runner) accountOr(s Step, caller common.Address) common.Address {
	if s.Account == "" {
		return caller
	}
	return r.address(s.Account)
}

// expectAmount compares got with the step amount within the optional
// tolerance. A mismatch is an invalid-state failure.
func expectAmount(s Step, got *big.Int) error {
	want, err := amount(s.Amount)
	if err != nil {
		return err
	}
	tolerance := new(big.Int)
	if s.Tolerance != "" {
		if tolerance, err = amount(s.Tolerance); err != nil {
			return err
		}
	}
	diff := new(big.Int).Sub(got, want)
	if diff.Abs(diff).Cmp(tolerance) > 0 {
		return faults.InvalidState("%s: got %s, want %s", s.Action, got, want)
	}
	return nil
}
