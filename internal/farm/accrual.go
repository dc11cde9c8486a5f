package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/state"
)

func (p *Pool) lastTimeRewardApplicable() uint64 {
	now := p.env.Now()
	if now < p.periodFinish {
		return now
	}
	return p.periodFinish
}

// rewardPerUnit extends the stored index by the emission since the last
// update. The index stays put while nothing is staked.
func (p *Pool) rewardPerUnit(reward common.Address) *big.Int {
	rs := p.rewards[reward]
	index := new(big.Int).Set(rs.perUnitStored)
	if p.totalStaked.Sign() == 0 {
		return index
	}
	applicable := p.lastTimeRewardApplicable()
	if applicable <= rs.lastUpdate {
		return index
	}
	delta := new(big.Int).SetUint64(applicable - rs.lastUpdate)
	delta.Mul(delta, rs.rate)
	delta.Quo(delta, p.totalStaked)
	return index.Add(index, delta)
}

func (p *Pool) earned(reward, account common.Address) *big.Int {
	key := rewardKey{asset: reward, account: account}
	out := new(big.Int).Sub(p.rewardPerUnit(reward), orZero(p.perUnitPaid[key]))
	out.Mul(out, p.balanceOf(account))
	out.Quo(out, Scale)
	return out.Add(out, orZero(p.accrued[key]))
}

// checkpoint folds elapsed emission into the stored indices and, for a
// non-zero account, settles its accrued rewards against them. It must run
// before any balance or rate change.
func (p *Pool) checkpoint(account common.Address) {
	j := p.env.Journal()
	applicable := p.lastTimeRewardApplicable()
	for _, reward := range p.rewardAssets {
		rs := p.rewards[reward]
		state.Set(j, &rs.perUnitStored, p.rewardPerUnit(reward))
		if applicable > rs.lastUpdate {
			state.Set(j, &rs.lastUpdate, applicable)
		}
		if account == (common.Address{}) {
			continue
		}
		key := rewardKey{asset: reward, account: account}
		state.SetKey(j, p.accrued, key, p.earned(reward, account))
		state.SetKey(j, p.perUnitPaid, key, new(big.Int).Set(rs.perUnitStored))
	}
}
