package chain

import "math/big"

// Params holds the economic constants of the simulated ledger. All values are
// denominated in base-currency units.
type Params struct {
	// MinFee is the minimum per-operation fee. Groups pool fees: the sum of
	// declared fees must cover one MinFee per operation.
	MinFee *big.Int
	// MinBalance is the base minimum balance every account must retain. The
	// payout guard in the fee-split primitive compares against this base
	// value, not the full per-account requirement.
	MinBalance *big.Int
	// AssetMinBalance is the additional minimum balance per asset opt-in.
	AssetMinBalance *big.Int
	// AppOptInCost is the additional minimum balance required to hold local
	// state for one application.
	AppOptInCost *big.Int
}

// DefaultParams mirrors the original deployment economics: 0.001 fee,
// 0.1 base minimum balance, 0.1 per asset, and the marketplace local-state
// schema cost per app opt-in.
func DefaultParams() Params {
	return Params{
		MinFee:          big.NewInt(1_000),
		MinBalance:      big.NewInt(100_000),
		AssetMinBalance: big.NewInt(100_000),
		AppOptInCost:    big.NewInt(235_500),
	}
}

// Clone returns a deep copy of the parameter set.
func (p Params) Clone() Params {
	clone := p
	if p.MinFee != nil {
		clone.MinFee = new(big.Int).Set(p.MinFee)
	}
	if p.MinBalance != nil {
		clone.MinBalance = new(big.Int).Set(p.MinBalance)
	}
	if p.AssetMinBalance != nil {
		clone.AssetMinBalance = new(big.Int).Set(p.AssetMinBalance)
	}
	if p.AppOptInCost != nil {
		clone.AppOptInCost = new(big.Int).Set(p.AppOptInCost)
	}
	return clone
}

func (p Params) sanitize() Params {
	def := DefaultParams()
	out := p.Clone()
	if out.MinFee == nil || out.MinFee.Sign() <= 0 {
		out.MinFee = def.MinFee
	}
	if out.MinBalance == nil || out.MinBalance.Sign() < 0 {
		out.MinBalance = def.MinBalance
	}
	if out.AssetMinBalance == nil || out.AssetMinBalance.Sign() < 0 {
		out.AssetMinBalance = def.AssetMinBalance
	}
	if out.AppOptInCost == nil || out.AppOptInCost.Sign() < 0 {
		out.AppOptInCost = def.AppOptInCost
	}
	return out
}
