package chain

import (
	"math/big"

	"nftmarket/core/types"
)

// view is the write-ahead staging buffer for one atomic group. Every account
// and application touched during execution is copied on first access; commit
// writes the copies back, discard is a no-op. Nothing outside the view
// observes intermediate state.
type view struct {
	l        *Ledger
	accounts map[types.Address]*types.Account
	apps     map[uint64]*App
	deleted  []uint64
	events   []*types.Event
}

func (l *Ledger) newView() *view {
	return &view{
		l:        l,
		accounts: make(map[types.Address]*types.Account),
		apps:     make(map[uint64]*App),
	}
}

// account returns the staged copy for addr, materialising an empty account
// when the address has never been seen. An empty account fails any debit, so
// creation-on-touch cannot mint value.
func (v *view) account(addr types.Address) *types.Account {
	if acc, ok := v.accounts[addr]; ok {
		return acc
	}
	var acc *types.Account
	if stored, ok := v.l.accounts[addr]; ok {
		acc = stored.Clone()
	} else {
		acc = types.NewAccount()
	}
	v.accounts[addr] = acc
	return acc
}

func (v *view) app(appID uint64) (*App, error) {
	if app, ok := v.apps[appID]; ok {
		return app, nil
	}
	stored, ok := v.l.apps[appID]
	if !ok {
		return nil, errUnknownApp
	}
	staged := stored.clone()
	v.apps[appID] = staged
	return staged, nil
}

func (v *view) minBalanceFor(acc *types.Account) *big.Int {
	p := v.l.params
	min := new(big.Int).Set(p.MinBalance)
	if n := len(acc.Assets); n > 0 {
		min.Add(min, new(big.Int).Mul(p.AssetMinBalance, big.NewInt(int64(n))))
	}
	if n := len(acc.Apps); n > 0 {
		min.Add(min, new(big.Int).Mul(p.AppOptInCost, big.NewInt(int64(n))))
	}
	return min
}

// debit removes amount from addr, enforcing the account's minimum-balance
// floor.
func (v *view) debit(addr types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errInsufficientFunds
	}
	acc := v.account(addr)
	remaining := new(big.Int).Sub(acc.Balance, amount)
	if remaining.Sign() < 0 {
		return errInsufficientFunds
	}
	if remaining.Cmp(v.minBalanceFor(acc)) < 0 {
		return errBelowMinBalance
	}
	acc.Balance = remaining
	return nil
}

func (v *view) credit(addr types.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	acc := v.account(addr)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
}

func (v *view) moveAsset(from, to types.Address, assetID, amount uint64) error {
	if _, ok := v.l.assets[assetID]; !ok {
		return errUnknownAsset
	}
	fromAcc := v.account(from)
	held, ok := fromAcc.Assets[assetID]
	if !ok {
		return errNotOptedInAsset
	}
	toAcc := v.account(to)
	if _, ok := toAcc.Assets[assetID]; !ok {
		return errNotOptedInAsset
	}
	if held < amount {
		return errInsufficientFunds
	}
	fromAcc.Assets[assetID] = held - amount
	toAcc.Assets[assetID] += amount
	return nil
}

// optInAsset registers a zero holding for the asset and checks the raised
// minimum-balance requirement.
func (v *view) optInAsset(addr types.Address, assetID uint64) error {
	if _, ok := v.l.assets[assetID]; !ok {
		return errUnknownAsset
	}
	acc := v.account(addr)
	if _, ok := acc.Assets[assetID]; ok {
		return errAlreadyOptedIn
	}
	acc.Assets[assetID] = 0
	if acc.Balance.Cmp(v.minBalanceFor(acc)) < 0 {
		return errBelowMinBalance
	}
	return nil
}

// optInApp allocates empty local state for the application and checks the
// raised minimum-balance requirement.
func (v *view) optInApp(addr types.Address, appID uint64) error {
	if _, ok := v.l.apps[appID]; !ok {
		return errUnknownApp
	}
	acc := v.account(addr)
	if _, ok := acc.Apps[appID]; ok {
		return errAlreadyOptedIn
	}
	acc.Apps[appID] = make(map[string][]byte)
	if acc.Balance.Cmp(v.minBalanceFor(acc)) < 0 {
		return errBelowMinBalance
	}
	return nil
}

func (v *view) clearApp(addr types.Address, appID uint64) {
	acc := v.account(addr)
	delete(acc.Apps, appID)
}

func (v *view) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	v.events = append(v.events, evt)
}

// commit flushes every staged copy back into the ledger. Callers hold the
// ledger lock.
func (v *view) commit() {
	for addr, acc := range v.accounts {
		v.l.accounts[addr] = acc
	}
	for id, app := range v.apps {
		v.l.apps[id] = app
	}
	for _, id := range v.deleted {
		delete(v.l.apps, id)
	}
}
