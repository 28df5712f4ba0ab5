package staking_test

import (
	"errors"
	"math/big"
	"testing"

	"nftmarket/chain"
	"nftmarket/core/types"
	"nftmarket/native/staking"
	"nftmarket/native/store"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func arg(s string) []byte { return []byte(s) }

func uarg(v uint64) []byte { return types.Uint64Bytes(v) }

const (
	t0           = 1_000_000
	epochSeconds = 7 * 86_400
)

type fixture struct {
	ledger    *chain.Ledger
	stakingID uint64
	storeID   uint64
	appAddr   types.Address
	now       int64

	creator types.Address
	staker1 types.Address
	staker2 types.Address

	tokenID uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:  chain.NewLedger(chain.DefaultParams()),
		now:     t0,
		creator: addr(1),
		staker1: addr(2),
		staker2: addr(3),
	}
	f.ledger.SetNowFunc(func() int64 { return f.now })
	for _, a := range []types.Address{f.creator, f.staker1, f.staker2} {
		f.ledger.Fund(a, big.NewInt(10_000_000))
	}

	var err error
	f.storeID, err = f.ledger.CreateApp(f.creator, store.Contract{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create store app: %v", err)
	}
	f.tokenID = f.ledger.CreateAsset(f.creator, 1_000_000, "STK")
	f.stakingID, err = f.ledger.CreateApp(f.creator, staking.Contract{},
		nil, nil, []uint64{f.storeID}, []uint64{f.tokenID})
	if err != nil {
		t.Fatalf("create staking app: %v", err)
	}
	f.appAddr, _ = f.ledger.AppAddress(f.stakingID)

	setup := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   f.creator,
			Receiver: f.appAddr,
			Amount:   big.NewInt(300_000),
			Fee:      big.NewInt(1_000),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        f.creator,
			AppID:         f.stakingID,
			Args:          [][]byte{arg("setup")},
			ForeignAssets: []uint64{f.tokenID},
			Fee:           big.NewInt(1_000),
		},
	}
	if err := f.ledger.Submit(setup); err != nil {
		t.Fatalf("staking setup: %v", err)
	}

	for _, staker := range []types.Address{f.staker1, f.staker2} {
		f.optInApp(t, staker, f.stakingID)
		f.optInAsset(t, staker, f.tokenID)
		grant := types.Group{&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        f.creator,
			AssetReceiver: staker,
			AssetID:       f.tokenID,
			AssetAmount:   200_000,
			Fee:           big.NewInt(1_000),
		}}
		if err := f.ledger.Submit(grant); err != nil {
			t.Fatalf("grant tokens: %v", err)
		}
	}
	return f
}

func (f *fixture) optInApp(t *testing.T, sender types.Address, appID uint64) {
	t.Helper()
	group := types.Group{&types.Transaction{
		Type:       types.TxAppCall,
		Sender:     sender,
		AppID:      appID,
		OnComplete: types.OcOptIn,
		Fee:        big.NewInt(1_000),
	}}
	if err := f.ledger.Submit(group); err != nil {
		t.Fatalf("opt into app %d: %v", appID, err)
	}
}

func (f *fixture) optInAsset(t *testing.T, sender types.Address, assetID uint64) {
	t.Helper()
	group := types.Group{&types.Transaction{
		Type:    types.TxAssetOptIn,
		Sender:  sender,
		AssetID: assetID,
		Fee:     big.NewInt(1_000),
	}}
	if err := f.ledger.Submit(group); err != nil {
		t.Fatalf("opt into asset %d: %v", assetID, err)
	}
}

func (f *fixture) stakeGroup(staker types.Address, amount uint64) types.Group {
	return types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        staker,
			AssetReceiver: f.appAddr,
			AssetID:       f.tokenID,
			AssetAmount:   amount,
			Fee:           big.NewInt(2_000),
		},
		&types.Transaction{
			Type:   types.TxAppCall,
			Sender: staker,
			AppID:  f.stakingID,
			Args:   [][]byte{arg("stake"), uarg(amount)},
			Fee:    big.NewInt(2_000),
		},
	}
}

func (f *fixture) withdrawGroup(staker types.Address, amount uint64, fee int64) types.Group {
	return types.Group{&types.Transaction{
		Type:   types.TxAppCall,
		Sender: staker,
		AppID:  f.stakingID,
		Args:   [][]byte{arg("withdraw"), uarg(amount)},
		Fee:    big.NewInt(fee),
	}}
}

func (f *fixture) claimGroup(staker types.Address) types.Group {
	return types.Group{&types.Transaction{
		Type:          types.TxAppCall,
		Sender:        staker,
		AppID:         f.stakingID,
		Args:          [][]byte{arg("claim")},
		ForeignAssets: []uint64{f.tokenID},
		Fee:           big.NewInt(1_000),
	}}
}

func (f *fixture) fundPot(t *testing.T, amount int64) {
	t.Helper()
	group := types.Group{&types.Transaction{
		Type:     types.TxPayment,
		Sender:   f.creator,
		Receiver: f.appAddr,
		Amount:   big.NewInt(amount),
		Fee:      big.NewInt(1_000),
	}}
	if err := f.ledger.Submit(group); err != nil {
		t.Fatalf("fund pot: %v", err)
	}
}

func (f *fixture) stakedOf(t *testing.T, staker types.Address) uint64 {
	t.Helper()
	local, ok := f.ledger.AppLocalState(f.stakingID, staker)
	if !ok {
		t.Fatalf("staker has no local state")
	}
	return types.Uint64FromBytes(local["TA"])
}

func TestStakeCreditsNetOfTax(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.stakeGroup(f.staker1, 100_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if got := f.stakedOf(t, f.staker1); got != 99_800 {
		t.Fatalf("staked = %d, want 99800", got)
	}
	if err := f.ledger.Submit(f.stakeGroup(f.staker1, 50_000)); err != nil {
		t.Fatalf("second stake: %v", err)
	}
	if got := f.stakedOf(t, f.staker1); got != 149_700 {
		t.Fatalf("staked = %d, want 149700", got)
	}
	if held, _ := f.ledger.AssetBalance(f.appAddr, f.tokenID); held != 150_000 {
		t.Fatalf("custody holding = %d, want 150000", held)
	}

	// The pooled fee and the declared amount are both checked.
	short := f.stakeGroup(f.staker1, 10_000)
	short[0].Fee = big.NewInt(1_000)
	short[1].Fee = big.NewInt(1_000)
	if err := f.ledger.Submit(short); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("underfee stake error = %v, want ErrRejected", err)
	}
	mismatched := f.stakeGroup(f.staker1, 10_000)
	mismatched[1].Args = [][]byte{arg("stake"), uarg(9_999)}
	if err := f.ledger.Submit(mismatched); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("mismatched stake error = %v, want ErrRejected", err)
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.stakeGroup(f.staker1, 100_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	if err := f.ledger.Submit(f.withdrawGroup(f.staker1, 40_000, 1_000)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("underfee withdraw error = %v, want ErrRejected", err)
	}
	if err := f.ledger.Submit(f.withdrawGroup(f.staker1, 40_000, 2_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.stakedOf(t, f.staker1); got != 59_800 {
		t.Fatalf("staked = %d, want 59800", got)
	}
	if held, _ := f.ledger.AssetBalance(f.staker1, f.tokenID); held != 140_000 {
		t.Fatalf("staker holding = %d, want 140000", held)
	}

	if err := f.ledger.Submit(f.withdrawGroup(f.staker1, 60_000, 2_000)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("overdraw error = %v, want ErrRejected", err)
	}
}

func TestClaimEpochs(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.stakeGroup(f.staker1, 100_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.fundPot(t, 1_100_000)

	// Nothing distributable until the first epoch rolls.
	if err := f.ledger.Submit(f.claimGroup(f.staker1)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("premature claim error = %v, want ErrRejected", err)
	}

	// Custody holds 1.4M; the roll snapshots everything above the base
	// minimum balance: pot 1.3M over 100k staked tokens.
	f.now = t0 + epochSeconds + 10
	before := f.ledger.Balance(f.staker1)
	if err := f.ledger.Submit(f.claimGroup(f.staker1)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	gain := new(big.Int).Sub(f.ledger.Balance(f.staker1), before)
	// 99800 * 1300000 / 100000 - 201000 allowance, minus the 1000 fee.
	if gain.Cmp(big.NewInt(1_096_400-1_000)) != 0 {
		t.Fatalf("claim net = %s, want 1095400", gain)
	}

	// One claim per epoch.
	if err := f.ledger.Submit(f.claimGroup(f.staker1)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("repeat claim error = %v, want ErrRejected", err)
	}

	// Tokens staked inside the running epoch earn nothing until it rolls.
	if err := f.ledger.Submit(f.stakeGroup(f.staker2, 100_000)); err != nil {
		t.Fatalf("late stake: %v", err)
	}
	if err := f.ledger.Submit(f.claimGroup(f.staker2)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("same-epoch claim error = %v, want ErrRejected", err)
	}

	f.fundPot(t, 800_000)
	f.now += epochSeconds + 10
	before = f.ledger.Balance(f.staker2)
	if err := f.ledger.Submit(f.claimGroup(f.staker2)); err != nil {
		t.Fatalf("next-epoch claim: %v", err)
	}
	gain = new(big.Int).Sub(f.ledger.Balance(f.staker2), before)
	// Pot 1003600 over 200000 staked tokens for a 99800 stake.
	if gain.Cmp(big.NewInt(299_796-1_000)) != 0 {
		t.Fatalf("claim net = %s, want 298796", gain)
	}
}

func TestClaimRejectsOversizedPot(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.stakeGroup(f.staker1, 100_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	// A pot past the snapshot range must reject the epoch roll rather than
	// wrap into the distribution counters.
	f.ledger.Fund(f.appAddr, new(big.Int).Lsh(big.NewInt(1), 70))

	f.now = t0 + epochSeconds + 10
	if err := f.ledger.Submit(f.claimGroup(f.staker1)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("oversized pot claim error = %v, want ErrRejected", err)
	}
	global, _ := f.ledger.AppGlobalState(f.stakingID)
	if got := types.Uint64FromBytes(global["PTL"]); got != t0 {
		t.Fatalf("lock time = %d, want the epoch unrolled at %d", got, t0)
	}
	if got := types.Uint64FromBytes(global["DAA"]); got != 0 {
		t.Fatalf("pot snapshot = %d, want 0", got)
	}
}

func TestSetTimelock(t *testing.T) {
	f := newFixture(t)

	call := types.Group{&types.Transaction{
		Type:   types.TxAppCall,
		Sender: f.staker1,
		AppID:  f.stakingID,
		Args:   [][]byte{arg("set_timelock"), uarg(42)},
		Fee:    big.NewInt(1_000),
	}}
	if err := f.ledger.Submit(call); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("stranger timelock error = %v, want ErrRejected", err)
	}

	call[0].Sender = f.creator
	if err := f.ledger.Submit(call); err != nil {
		t.Fatalf("set_timelock: %v", err)
	}
	global, _ := f.ledger.AppGlobalState(f.stakingID)
	if got := types.Uint64FromBytes(global["PTL"]); got != 42 {
		t.Fatalf("lock time = %d, want 42", got)
	}
}
