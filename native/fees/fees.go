package fees

import (
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

// Settlement proceeds split 97/100 to the beneficiary and 3/200 each to the
// team wallet and the staking pool. Divisions truncate; the remainder stays
// with the custodial address.
const (
	beneficiaryNum = 97
	beneficiaryDen = 100
	cutNum         = 3
	cutDen         = 200
)

// Split divides a settlement amount into the beneficiary, team and staking
// portions.
func Split(amount *big.Int) (beneficiary, team, staking *big.Int) {
	if amount == nil {
		zero := big.NewInt(0)
		return zero, new(big.Int), new(big.Int)
	}
	beneficiary = new(big.Int).Mul(amount, big.NewInt(beneficiaryNum))
	beneficiary.Quo(beneficiary, big.NewInt(beneficiaryDen))
	team = new(big.Int).Mul(amount, big.NewInt(cutNum))
	team.Quo(team, big.NewInt(cutDen))
	staking = new(big.Int).Set(team)
	return beneficiary, team, staking
}

// PayOut moves amount from the contract's custodial address to the recipient.
// When the custodial balance cannot cover the amount plus the base minimum
// balance the payment is skipped, not failed: settlement still applies and a
// skip event records the shortfall. Returns whether the payment went out.
func PayOut(ctx *chain.Context, to types.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	need := new(big.Int).Add(amount, ctx.MinBalance())
	if ctx.Balance(ctx.AppAddress()).Cmp(need) < 0 {
		ctx.Emit(events.NewPayoutSkipped(to, amount))
		return false
	}
	if err := ctx.SendPayment(to, amount); err != nil {
		ctx.Emit(events.NewPayoutSkipped(to, amount))
		return false
	}
	return true
}

// Distribute splits amount and pays the three parties. The guard runs once
// against the full amount: either all three cuts go out or none do. Returns
// whether the distribution happened.
func Distribute(ctx *chain.Context, beneficiary, team, staking types.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	need := new(big.Int).Add(amount, ctx.MinBalance())
	if ctx.Balance(ctx.AppAddress()).Cmp(need) < 0 {
		ctx.Emit(events.NewPayoutSkipped(beneficiary, amount))
		return false
	}
	toBeneficiary, toTeam, toStaking := Split(amount)
	if err := ctx.SendPayment(beneficiary, toBeneficiary); err != nil {
		ctx.Emit(events.NewPayoutSkipped(beneficiary, toBeneficiary))
		return false
	}
	if toTeam.Sign() > 0 {
		if err := ctx.SendPayment(team, toTeam); err != nil {
			ctx.Emit(events.NewPayoutSkipped(team, toTeam))
			return false
		}
	}
	if toStaking.Sign() > 0 {
		if err := ctx.SendPayment(staking, toStaking); err != nil {
			ctx.Emit(events.NewPayoutSkipped(staking, toStaking))
			return false
		}
	}
	return true
}
