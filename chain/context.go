package chain

import (
	"math/big"

	"nftmarket/core/types"
)

// Context is the execution environment handed to application logic. It exposes
// the triggering operation, its surrounding group, state accessors and the
// inner operations a contract may issue. All mutations go through the staging
// view and only land if the whole group commits.
type Context struct {
	l     *Ledger
	v     *view
	group types.Group
	idx   int
	txn   *types.Transaction
	app   *App
	depth int
}

// Txn returns the operation that triggered this call.
func (c *Context) Txn() *types.Transaction { return c.txn }

// Gtxn returns the operation at absolute group position i, or nil when out of
// range. Contracts usually address neighbours relative to GroupIndex.
func (c *Context) Gtxn(i int) *types.Transaction {
	if i < 0 || i >= len(c.group) {
		return nil
	}
	return c.group[i]
}

// GroupSize returns the number of operations in the surrounding group.
func (c *Context) GroupSize() int { return len(c.group) }

// GroupIndex returns this operation's position within the group.
func (c *Context) GroupIndex() int { return c.idx }

// AppID returns the identifier of the running application.
func (c *Context) AppID() uint64 { return c.app.ID }

// AppAddress returns the custodial address of the running application.
func (c *Context) AppAddress() types.Address { return c.app.Address }

// CreatorAddress returns the deployer of the running application.
func (c *Context) CreatorAddress() types.Address { return c.app.Creator }

// LatestTimestamp returns the chain time observed by this group.
func (c *Context) LatestTimestamp() int64 { return c.l.nowFn() }

// MinFee returns the ledger's minimum per-operation fee.
func (c *Context) MinFee() *big.Int { return new(big.Int).Set(c.l.params.MinFee) }

// MinBalance returns the base minimum balance. Payout guards compare against
// this base value.
func (c *Context) MinBalance() *big.Int { return new(big.Int).Set(c.l.params.MinBalance) }

// AssetMinBalance returns the per-asset minimum balance increment.
func (c *Context) AssetMinBalance() *big.Int { return new(big.Int).Set(c.l.params.AssetMinBalance) }

// Balance returns the staged base-currency balance of addr.
func (c *Context) Balance(addr types.Address) *big.Int {
	return new(big.Int).Set(c.v.account(addr).Balance)
}

// AssetHolding returns addr's staged holding of assetID and whether the
// account is opted in.
func (c *Context) AssetHolding(addr types.Address, assetID uint64) (uint64, bool) {
	amt, ok := c.v.account(addr).Assets[assetID]
	return amt, ok
}

// AppAddressOf resolves the custodial address of another application.
func (c *Context) AppAddressOf(appID uint64) (types.Address, bool) {
	app, err := c.v.app(appID)
	if err != nil {
		return types.ZeroAddress, false
	}
	return app.Address, true
}

// --- Global state ---

// GlobalBytes reads a raw global value.
func (c *Context) GlobalBytes(key string) ([]byte, bool) {
	val, ok := c.app.Global[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), val...), true
}

// GlobalUint reads a global counter, zero when unset.
func (c *Context) GlobalUint(key string) uint64 {
	val, ok := c.app.Global[key]
	if !ok {
		return 0
	}
	return types.Uint64FromBytes(val)
}

// GlobalAddress reads a global address value, zero when unset.
func (c *Context) GlobalAddress(key string) types.Address {
	val, ok := c.app.Global[key]
	if !ok {
		return types.ZeroAddress
	}
	return types.BytesToAddress(val)
}

// SetGlobal stores a raw global value.
func (c *Context) SetGlobal(key string, val []byte) {
	c.app.Global[key] = append([]byte(nil), val...)
}

// SetGlobalUint stores a global counter.
func (c *Context) SetGlobalUint(key string, val uint64) {
	c.app.Global[key] = types.Uint64Bytes(val)
}

// SetGlobalAddress stores a global address value.
func (c *Context) SetGlobalAddress(key string, addr types.Address) {
	c.app.Global[key] = addr.Bytes()
}

// DelGlobal removes a global key.
func (c *Context) DelGlobal(key string) {
	delete(c.app.Global, key)
}

// --- Local state ---

func (c *Context) local(addr types.Address) (map[string][]byte, error) {
	acc := c.v.account(addr)
	state, ok := acc.Apps[c.app.ID]
	if !ok {
		return nil, errNotOptedInApp
	}
	return state, nil
}

// LocalBytes reads a raw local value for addr under the running application.
func (c *Context) LocalBytes(addr types.Address, key string) ([]byte, bool) {
	state, err := c.local(addr)
	if err != nil {
		return nil, false
	}
	val, ok := state[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), val...), true
}

// LocalUint reads a local counter, zero when unset or not opted in.
func (c *Context) LocalUint(addr types.Address, key string) uint64 {
	val, ok := c.LocalBytes(addr, key)
	if !ok {
		return 0
	}
	return types.Uint64FromBytes(val)
}

// LocalAddress reads a local address value, zero when unset or not opted in.
func (c *Context) LocalAddress(addr types.Address, key string) types.Address {
	val, ok := c.LocalBytes(addr, key)
	if !ok {
		return types.ZeroAddress
	}
	return types.BytesToAddress(val)
}

// SetLocal stores a raw local value; the account must be opted in.
func (c *Context) SetLocal(addr types.Address, key string, val []byte) error {
	state, err := c.local(addr)
	if err != nil {
		return err
	}
	state[key] = append([]byte(nil), val...)
	return nil
}

// SetLocalUint stores a local counter.
func (c *Context) SetLocalUint(addr types.Address, key string, val uint64) error {
	return c.SetLocal(addr, key, types.Uint64Bytes(val))
}

// SetLocalAddress stores a local address value.
func (c *Context) SetLocalAddress(addr types.Address, key string, val types.Address) error {
	return c.SetLocal(addr, key, val.Bytes())
}

// DelLocal removes a local key; the account must be opted in.
func (c *Context) DelLocal(addr types.Address, key string) error {
	state, err := c.local(addr)
	if err != nil {
		return err
	}
	delete(state, key)
	return nil
}

// LocalBytesOf reads local state held by addr under another application.
// Aggregation contracts use it to inspect listing records they do not own.
func (c *Context) LocalBytesOf(appID uint64, addr types.Address, key string) ([]byte, bool) {
	acc := c.v.account(addr)
	state, ok := acc.Apps[appID]
	if !ok {
		return nil, false
	}
	val, ok := state[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), val...), true
}

// LocalUintOf reads a counter from local state under another application.
func (c *Context) LocalUintOf(appID uint64, addr types.Address, key string) uint64 {
	val, ok := c.LocalBytesOf(appID, addr, key)
	if !ok {
		return 0
	}
	return types.Uint64FromBytes(val)
}

// LocalAddressOf reads an address from local state under another application.
func (c *Context) LocalAddressOf(appID uint64, addr types.Address, key string) types.Address {
	val, ok := c.LocalBytesOf(appID, addr, key)
	if !ok {
		return types.ZeroAddress
	}
	return types.BytesToAddress(val)
}

// Emit buffers an event; it reaches the emitter only if the group commits.
func (c *Context) Emit(evt *types.Event) { c.v.emit(evt) }

// --- Inner operations ---

// SendPayment moves base currency out of the application's custodial address.
// Inner operations carry no fee of their own.
func (c *Context) SendPayment(to types.Address, amount *big.Int) error {
	if err := c.v.debit(c.app.Address, amount); err != nil {
		return err
	}
	c.v.credit(to, amount)
	return nil
}

// SendAsset moves asset units out of the application's custodial address.
func (c *Context) SendAsset(to types.Address, assetID, amount uint64) error {
	return c.v.moveAsset(c.app.Address, to, assetID, amount)
}

// OptInAsset opts the application's custodial address into an asset.
func (c *Context) OptInAsset(assetID uint64) error {
	return c.v.optInAsset(c.app.Address, assetID)
}

// CallApp issues an inner application call with the application's custodial
// address as sender. Depth is bounded to keep contract recursion finite.
func (c *Context) CallApp(appID uint64, args [][]byte, accounts []types.Address, assets []uint64) error {
	if c.depth+1 > maxInnerDepth {
		return errInnerDepth
	}
	app, err := c.v.app(appID)
	if err != nil {
		return err
	}
	txn := &types.Transaction{
		Type:          types.TxAppCall,
		Sender:        c.app.Address,
		AppID:         appID,
		Args:          args,
		Accounts:      accounts,
		ForeignAssets: assets,
	}
	inner := &Context{
		l:     c.l,
		v:     c.v,
		group: types.Group{txn},
		idx:   0,
		txn:   txn,
		app:   app,
		depth: c.depth + 1,
	}
	return app.Logic.Call(inner)
}
