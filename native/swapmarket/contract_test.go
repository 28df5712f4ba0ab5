package swapmarket_test

import (
	"errors"
	"math/big"
	"testing"

	"nftmarket/chain"
	"nftmarket/core/types"
	"nftmarket/native/swapmarket"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func arg(s string) []byte { return []byte(s) }

func uarg(v uint64) []byte { return types.Uint64Bytes(v) }

type fixture struct {
	ledger  *chain.Ledger
	swapID  uint64
	appAddr types.Address

	creator  types.Address
	offerer  types.Address
	acceptor types.Address
	slot     types.Address
	staking  types.Address
	team     types.Address

	assetA uint64
	assetB uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   chain.NewLedger(chain.DefaultParams()),
		creator:  addr(1),
		offerer:  addr(2),
		acceptor: addr(3),
		slot:     addr(4),
		staking:  addr(5),
		team:     addr(6),
	}
	f.ledger.SetNowFunc(func() int64 { return 1_000_000 })
	for _, a := range []types.Address{f.creator, f.offerer, f.acceptor, f.slot} {
		f.ledger.Fund(a, big.NewInt(10_000_000))
	}

	var err error
	f.swapID, err = f.ledger.CreateApp(f.creator, swapmarket.Contract{},
		nil, []types.Address{f.staking, f.team}, nil, nil)
	if err != nil {
		t.Fatalf("create swap app: %v", err)
	}
	f.appAddr, _ = f.ledger.AppAddress(f.swapID)

	f.assetA = f.ledger.CreateAsset(f.offerer, 10, "AAA")
	f.assetB = f.ledger.CreateAsset(f.acceptor, 10, "BBB")

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
			AppID:         f.swapID,
			Args:          [][]byte{arg("setup")},
			ForeignAssets: []uint64{f.assetA, f.assetB},
			Fee:           big.NewInt(1_000),
		},
	}
	if err := f.ledger.Submit(setup); err != nil {
		t.Fatalf("swap setup: %v", err)
	}

	f.optInApp(t, f.slot, f.swapID)
	f.optInAsset(t, f.offerer, f.assetB)
	f.optInAsset(t, f.acceptor, f.assetA)
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

func (f *fixture) offerGroup(offerUnits, acceptUnits uint64, callFee int64) types.Group {
	return types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        f.offerer,
			AssetReceiver: f.appAddr,
			AssetID:       f.assetA,
			AssetAmount:   offerUnits,
			Fee:           big.NewInt(1_000),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        f.offerer,
			AppID:         f.swapID,
			Args:          [][]byte{arg("swap"), uarg(acceptUnits)},
			Accounts:      []types.Address{f.slot},
			ForeignAssets: []uint64{f.assetA, f.assetB},
			Fee:           big.NewInt(callFee),
		},
	}
}

func (f *fixture) acceptGroup(offerUnits, acceptUnits uint64) types.Group {
	return types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        f.acceptor,
			AssetReceiver: f.appAddr,
			AssetID:       f.assetB,
			AssetAmount:   acceptUnits,
			Fee:           big.NewInt(1_000),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        f.acceptor,
			AppID:         f.swapID,
			Args:          [][]byte{arg("accept"), uarg(offerUnits)},
			Accounts:      []types.Address{f.offerer, f.slot, f.staking, f.team},
			ForeignAssets: []uint64{f.assetA, f.assetB},
			Fee:           big.NewInt(3_000),
		},
	}
}

func (f *fixture) offerUint(t *testing.T, key string) uint64 {
	t.Helper()
	local, ok := f.ledger.AppLocalState(f.swapID, f.slot)
	if !ok {
		t.Fatalf("slot has no local state")
	}
	return types.Uint64FromBytes(local[key])
}

func TestSwapSettlement(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.offerGroup(2, 3, 1_000)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if got := f.offerUint(t, "A_AMT"); got != 3 {
		t.Fatalf("accept amount = %d, want 3", got)
	}

	if err := f.ledger.Submit(f.acceptGroup(2, 3)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if held, _ := f.ledger.AssetBalance(f.acceptor, f.assetA); held != 2 {
		t.Fatalf("acceptor A holding = %d, want 2", held)
	}
	if held, _ := f.ledger.AssetBalance(f.offerer, f.assetB); held != 3 {
		t.Fatalf("offerer B holding = %d, want 3", held)
	}
	// No payments change hands on a swap.
	if got := f.ledger.Balance(f.team); got.Sign() != 0 {
		t.Fatalf("team received %s from a swap", got)
	}
	if got := f.offerUint(t, "O_TKID"); got != 0 {
		t.Fatalf("offer still open after settlement")
	}
}

func TestSwapAcceptValidation(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.offerGroup(2, 3, 1_000)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	// Delivering fewer wanted units than agreed rejects.
	if err := f.ledger.Submit(f.acceptGroup(2, 2)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("short accept error = %v, want ErrRejected", err)
	}
	// Claiming the wrong offered amount rejects.
	if err := f.ledger.Submit(f.acceptGroup(1, 3)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("wrong-amount accept error = %v, want ErrRejected", err)
	}
	if got := f.offerUint(t, "O_AMT"); got != 2 {
		t.Fatalf("offer disturbed by rejected accepts")
	}
}

func TestSwapReplaceRefundsPrior(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.offerGroup(2, 3, 1_000)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	// Replacing without the higher fee rejects.
	if err := f.ledger.Submit(f.offerGroup(4, 5, 1_000)); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("cheap replace error = %v, want ErrRejected", err)
	}

	heldBefore, _ := f.ledger.AssetBalance(f.offerer, f.assetA)
	if err := f.ledger.Submit(f.offerGroup(4, 5, 2_000)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	heldAfter, _ := f.ledger.AssetBalance(f.offerer, f.assetA)
	// 4 units escrowed, 2 refunded.
	if heldAfter != heldBefore-2 {
		t.Fatalf("offerer A holding = %d, want %d", heldAfter, heldBefore-2)
	}
	if got := f.offerUint(t, "O_AMT"); got != 4 {
		t.Fatalf("offer amount = %d, want 4", got)
	}
	if got := f.offerUint(t, "A_AMT"); got != 5 {
		t.Fatalf("accept amount = %d, want 5", got)
	}
}

func TestSwapCancel(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Submit(f.offerGroup(2, 3, 1_000)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	cancel := types.Group{&types.Transaction{
		Type:          types.TxAppCall,
		Sender:        f.acceptor,
		AppID:         f.swapID,
		Args:          [][]byte{arg("cancel")},
		Accounts:      []types.Address{f.slot},
		ForeignAssets: []uint64{f.assetA},
		Fee:           big.NewInt(2_000),
	}}
	if err := f.ledger.Submit(cancel); !errors.Is(err, chain.ErrRejected) {
		t.Fatalf("stranger cancel error = %v, want ErrRejected", err)
	}

	cancel[0].Sender = f.offerer
	if err := f.ledger.Submit(cancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if held, _ := f.ledger.AssetBalance(f.offerer, f.assetA); held != 10 {
		t.Fatalf("offerer A holding = %d, want full supply back", held)
	}
	if got := f.offerUint(t, "O_TKID"); got != 0 {
		t.Fatalf("offer still open after cancel")
	}
}
