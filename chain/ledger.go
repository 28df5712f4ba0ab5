package chain

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

// Recorder receives execution outcomes for observability. Implementations
// must be safe for concurrent use.
type Recorder interface {
	GroupCommitted(ops int)
	GroupRejected()
}

type noopRecorder struct{}

func (noopRecorder) GroupCommitted(int) {}
func (noopRecorder) GroupRejected()     {}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Ledger is the simulated chain: accounts, assets, applications and the
// atomic-group execution engine. Every submitted group is validated and
// applied in one step; a rejected group leaves no trace.
type Ledger struct {
	mu          sync.RWMutex
	params      Params
	accounts    map[types.Address]*types.Account
	assets      map[uint64]*AssetParams
	apps        map[uint64]*App
	nextAppID   uint64
	nextAssetID uint64
	nowFn       func() int64
	emitter     events.Emitter
	recorder    Recorder
}

// NewLedger constructs an empty ledger with the supplied parameters.
func NewLedger(params Params) *Ledger {
	return &Ledger{
		params:      params.sanitize(),
		accounts:    make(map[types.Address]*types.Account),
		assets:      make(map[uint64]*AssetParams),
		apps:        make(map[uint64]*App),
		nextAppID:   1,
		nextAssetID: 1,
		nowFn:       func() int64 { return time.Now().Unix() },
		emitter:     events.NoopEmitter{},
		recorder:    noopRecorder{},
	}
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetRecorder configures the execution-outcome recorder. Passing nil resets
// it to a no-op implementation.
func (l *Ledger) SetRecorder(r Recorder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r == nil {
		l.recorder = noopRecorder{}
		return
	}
	l.recorder = r
}

// Params returns a copy of the ledger's economic parameters.
func (l *Ledger) Params() Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params.Clone()
}

// LatestTimestamp returns the current chain time.
func (l *Ledger) LatestTimestamp() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nowFn()
}

// materialise returns the stored account for addr, creating or normalising
// it in place. Callers must hold the write lock.
func (l *Ledger) materialise(addr types.Address) *types.Account {
	acc := types.EnsureAccount(l.accounts[addr])
	l.accounts[addr] = acc
	return acc
}

// Fund credits amount to addr outside of group accounting. It models genesis
// or faucet funding.
func (l *Ledger) Fund(addr types.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.materialise(addr)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
}

// CreateAsset registers a new asset and credits the full supply to the
// creator, opting the creator in.
func (l *Ledger) CreateAsset(creator types.Address, total uint64, unitName string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextAssetID
	l.nextAssetID++
	l.assets[id] = &AssetParams{Creator: creator, Total: total, UnitName: unitName}
	l.materialise(creator).Assets[id] = total
	return id
}

// CreateApp deploys a contract: allocates an identifier, derives the
// custodial address and runs the logic's Create hook against a staging view.
// The hook observes the deployment transaction's accounts, foreign apps and
// foreign assets the same way a group call would.
func (l *Ledger) CreateApp(creator types.Address, logic AppLogic, args [][]byte, accounts []types.Address, foreignApps []uint64, foreignAssets []uint64) (uint64, error) {
	if logic == nil {
		return 0, fmt.Errorf("chain: nil app logic")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextAppID
	app := &App{
		ID:      id,
		Creator: creator,
		Address: AppAddressFor(id),
		Global:  make(map[string][]byte),
		Logic:   logic,
	}
	v := l.newView()
	v.apps[id] = app
	txn := &types.Transaction{
		Type:          types.TxAppCall,
		Sender:        creator,
		Args:          args,
		Accounts:      accounts,
		ForeignApps:   foreignApps,
		ForeignAssets: foreignAssets,
	}
	ctx := &Context{l: l, v: v, group: types.Group{txn}, idx: 0, txn: txn, app: app}
	if err := logic.Create(ctx); err != nil {
		return 0, fmt.Errorf("%w: create: %v", ErrRejected, err)
	}
	l.nextAppID++
	l.apps[id] = app
	v.commit()
	l.flush(v)
	return id, nil
}

// Submit validates and applies an atomic group. Either every operation
// applies or the ledger is untouched and an error wrapping ErrRejected is
// returned.
func (l *Ledger) Submit(group types.Group) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.newView()
	if err := l.execute(v, group); err != nil {
		l.recorder.GroupRejected()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	v.commit()
	l.flush(v)
	l.recorder.GroupCommitted(len(group))
	return nil
}

func (l *Ledger) flush(v *view) {
	for _, evt := range v.events {
		l.emitter.Emit(ledgerEvent{evt: evt})
	}
}

func (l *Ledger) execute(v *view, group types.Group) error {
	if len(group) == 0 {
		return errEmptyGroup
	}
	if len(group) > MaxGroupSize {
		return errGroupTooLarge
	}
	pooled := new(big.Int)
	for _, t := range group {
		pooled.Add(pooled, t.FeeOrZero())
	}
	need := new(big.Int).Mul(l.params.MinFee, big.NewInt(int64(len(group))))
	if pooled.Cmp(need) < 0 {
		return errInsufficientFees
	}
	for i, t := range group {
		if err := l.applyTx(v, group, i, t); err != nil {
			return fmt.Errorf("op %d: %v", i, err)
		}
	}
	return nil
}

func (l *Ledger) applyTx(v *view, group types.Group, idx int, t *types.Transaction) error {
	if t == nil {
		return fmt.Errorf("nil operation")
	}
	sender := v.account(t.Sender)
	auth := t.Sender
	if !sender.AuthAddr.IsZero() {
		auth = sender.AuthAddr
	}
	if t.Signer() != auth {
		return errUnauthorizedSigner
	}
	if err := v.debit(t.Sender, t.FeeOrZero()); err != nil {
		return fmt.Errorf("fee: %v", err)
	}
	switch t.Type {
	case types.TxPayment:
		if err := v.debit(t.Sender, t.AmountOrZero()); err != nil {
			return err
		}
		v.credit(t.Receiver, t.AmountOrZero())
		if !t.RekeyTo.IsZero() {
			acc := v.account(t.Sender)
			if t.RekeyTo == t.Sender {
				acc.AuthAddr = types.ZeroAddress
			} else {
				acc.AuthAddr = t.RekeyTo
			}
		}
		return nil
	case types.TxAssetTransfer:
		return v.moveAsset(t.Sender, t.AssetReceiver, t.AssetID, t.AssetAmount)
	case types.TxAssetOptIn:
		return v.optInAsset(t.Sender, t.AssetID)
	case types.TxAppCall:
		return l.applyAppCall(v, group, idx, t)
	default:
		return fmt.Errorf("unknown operation type %d", t.Type)
	}
}

func (l *Ledger) applyAppCall(v *view, group types.Group, idx int, t *types.Transaction) error {
	app, err := v.app(t.AppID)
	if err != nil {
		return err
	}
	ctx := &Context{l: l, v: v, group: group, idx: idx, txn: t, app: app}
	switch t.OnComplete {
	case types.OcNoOp:
		return app.Logic.Call(ctx)
	case types.OcOptIn:
		return v.optInApp(t.Sender, t.AppID)
	case types.OcClearState:
		v.clearApp(t.Sender, t.AppID)
		return nil
	case types.OcCloseOut:
		return errCloseOutRejected
	case types.OcUpdate:
		return app.Logic.Update(ctx)
	case types.OcDelete:
		if err := app.Logic.Delete(ctx); err != nil {
			return err
		}
		v.deleted = append(v.deleted, t.AppID)
		return nil
	default:
		return fmt.Errorf("unknown completion %d", t.OnComplete)
	}
}

// --- Read-side snapshots ---

// AccountSnapshot returns a deep copy of the account record.
func (l *Ledger) AccountSnapshot(addr types.Address) (*types.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Balance returns the base-currency balance of addr, zero for unknown
// accounts.
func (l *Ledger) Balance(addr types.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

// AssetBalance returns the holding of addr for assetID and whether the
// account is opted in.
func (l *Ledger) AssetBalance(addr types.Address, assetID uint64) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return 0, false
	}
	amt, ok := acc.Assets[assetID]
	return amt, ok
}

// AppGlobalState returns a copy of the application's global key/value state.
func (l *Ledger) AppGlobalState(appID uint64) (map[string][]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	app, ok := l.apps[appID]
	if !ok {
		return nil, false
	}
	out := make(map[string][]byte, len(app.Global))
	for k, vv := range app.Global {
		out[k] = append([]byte(nil), vv...)
	}
	return out, true
}

// AppLocalState returns a copy of addr's local state for appID.
func (l *Ledger) AppLocalState(appID uint64, addr types.Address) (map[string][]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, false
	}
	local, ok := acc.Apps[appID]
	if !ok {
		return nil, false
	}
	out := make(map[string][]byte, len(local))
	for k, vv := range local {
		out[k] = append([]byte(nil), vv...)
	}
	return out, true
}

// AppAddress resolves an application's custodial address.
func (l *Ledger) AppAddress(appID uint64) (types.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	app, ok := l.apps[appID]
	if !ok {
		return types.ZeroAddress, false
	}
	return app.Address, true
}

// AppCreator resolves an application's deployer.
func (l *Ledger) AppCreator(appID uint64) (types.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	app, ok := l.apps[appID]
	if !ok {
		return types.ZeroAddress, false
	}
	return app.Creator, true
}

// OptedInAccounts enumerates every account holding local state for appID, in
// deterministic address order. It is the scan primitive closing the
// out-of-band slot visibility gap.
func (l *Ledger) OptedInAccounts(appID uint64) []types.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.Address
	for addr, acc := range l.accounts {
		if acc.OptedInApp(appID) {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
