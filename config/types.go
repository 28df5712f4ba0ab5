package config

import (
	"math/big"

	"nftmarket/chain"
)

// Ledger overrides the economic constants of the simulated ledger. A zero
// field keeps the built-in default.
type Ledger struct {
	MinFee          uint64 `toml:"MinFee"`
	MinBalance      uint64 `toml:"MinBalance"`
	AssetMinBalance uint64 `toml:"AssetMinBalance"`
	AppOptInCost    uint64 `toml:"AppOptInCost"`
}

// Params folds the overrides into the default parameter set.
func (l Ledger) Params() chain.Params {
	p := chain.DefaultParams()
	if l.MinFee != 0 {
		p.MinFee = new(big.Int).SetUint64(l.MinFee)
	}
	if l.MinBalance != 0 {
		p.MinBalance = new(big.Int).SetUint64(l.MinBalance)
	}
	if l.AssetMinBalance != 0 {
		p.AssetMinBalance = new(big.Int).SetUint64(l.AssetMinBalance)
	}
	if l.AppOptInCost != 0 {
		p.AppOptInCost = new(big.Int).SetUint64(l.AppOptInCost)
	}
	return p
}
