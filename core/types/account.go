package types

import "math/big"

// Account is the mutable per-address ledger record. Balance carries the base
// currency; Assets holds the balances of every asset the account has opted
// into (presence in the map is the opt-in marker, a zero value is an opted-in
// empty holding). Apps holds the local key/value state for every application
// the account has opted into.
type Account struct {
	Balance  *big.Int
	Assets   map[uint64]uint64
	Apps     map[uint64]map[string][]byte
	AuthAddr Address
}

// NewAccount returns an empty account with all containers initialised.
func NewAccount() *Account {
	return &Account{
		Balance: big.NewInt(0),
		Assets:  make(map[uint64]uint64),
		Apps:    make(map[uint64]map[string][]byte),
	}
}

// EnsureAccount normalises a possibly nil or partially initialised account so
// callers never touch nil maps or a nil balance.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return NewAccount()
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	if acc.Assets == nil {
		acc.Assets = make(map[uint64]uint64)
	}
	if acc.Apps == nil {
		acc.Apps = make(map[uint64]map[string][]byte)
	}
	return acc
}

// Clone returns a deep copy so callers can stage mutations without affecting
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := NewAccount()
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	for id, amt := range a.Assets {
		clone.Assets[id] = amt
	}
	for appID, local := range a.Apps {
		kv := make(map[string][]byte, len(local))
		for k, v := range local {
			kv[k] = append([]byte(nil), v...)
		}
		clone.Apps[appID] = kv
	}
	clone.AuthAddr = a.AuthAddr
	return clone
}

// OptedInAsset reports whether the account holds an opt-in slot for the asset.
func (a *Account) OptedInAsset(assetID uint64) bool {
	if a == nil {
		return false
	}
	_, ok := a.Assets[assetID]
	return ok
}

// OptedInApp reports whether the account has local state for the application.
func (a *Account) OptedInApp(appID uint64) bool {
	if a == nil {
		return false
	}
	_, ok := a.Apps[appID]
	return ok
}
