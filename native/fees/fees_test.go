package fees

import (
	"errors"
	"math/big"
	"testing"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		amount      int64
		beneficiary int64
		team        int64
		staking     int64
	}{
		{500, 485, 7, 7},
		{1_000, 970, 15, 15},
		{100, 97, 1, 1},
		{199, 193, 2, 2},
		{1, 0, 0, 0},
		{0, 0, 0, 0},
	}
	for _, tc := range cases {
		b, tm, s := Split(big.NewInt(tc.amount))
		if b.Int64() != tc.beneficiary || tm.Int64() != tc.team || s.Int64() != tc.staking {
			t.Fatalf("Split(%d) = %s/%s/%s, want %d/%d/%d",
				tc.amount, b, tm, s, tc.beneficiary, tc.team, tc.staking)
		}
		// Truncation dust must never exceed what the parties received.
		dust := tc.amount - tc.beneficiary - tc.team - tc.staking
		if dust < 0 {
			t.Fatalf("Split(%d) over-distributed by %d", tc.amount, -dust)
		}
	}
}

type payoutLogic struct{}

func (payoutLogic) Create(ctx *chain.Context) error { return nil }

func (payoutLogic) Call(ctx *chain.Context) error {
	txn := ctx.Txn()
	amount := new(big.Int).SetUint64(txn.ArgUint(1))
	switch txn.Method() {
	case "pay":
		PayOut(ctx, txn.Account(1), amount)
		return nil
	case "distribute":
		Distribute(ctx, txn.Account(1), txn.Account(2), txn.Account(3), amount)
		return nil
	}
	return errors.New("unknown method")
}

func (payoutLogic) Update(ctx *chain.Context) error { return nil }
func (payoutLogic) Delete(ctx *chain.Context) error { return nil }

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func setup(t *testing.T, custody int64) (*chain.Ledger, uint64, *captureEmitter) {
	t.Helper()
	l := chain.NewLedger(chain.DefaultParams())
	emitter := &captureEmitter{}
	l.SetEmitter(emitter)
	creator := addr(1)
	l.Fund(creator, big.NewInt(10_000_000))
	appID, err := l.CreateApp(creator, payoutLogic{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	appAddr, _ := l.AppAddress(appID)
	l.Fund(appAddr, big.NewInt(custody))
	return l, appID, emitter
}

func payCall(appID uint64, method string, amount uint64, accounts ...types.Address) *types.Transaction {
	return &types.Transaction{
		Type:     types.TxAppCall,
		Sender:   addr(1),
		AppID:    appID,
		Args:     [][]byte{[]byte(method), types.Uint64Bytes(amount)},
		Accounts: accounts,
		Fee:      big.NewInt(1_000),
	}
}

func TestPayOutGuard(t *testing.T) {
	l, appID, emitter := setup(t, 150_000)
	recipient := addr(9)

	// Amount plus the base minimum exceeds custody: skipped, not failed.
	if err := l.Submit(types.Group{payCall(appID, "pay", 60_000, recipient)}); err != nil {
		t.Fatalf("guarded payout: %v", err)
	}
	if got := l.Balance(recipient); got.Sign() != 0 {
		t.Fatalf("recipient received %s despite guard", got)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypePayoutSkipped {
		t.Fatalf("events = %+v, want one payout skip", emitter.events)
	}

	// Within the guard the payment goes out.
	if err := l.Submit(types.Group{payCall(appID, "pay", 40_000, recipient)}); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if got := l.Balance(recipient); got.Cmp(big.NewInt(40_000)) != 0 {
		t.Fatalf("recipient balance = %s, want 40000", got)
	}
}

func TestDistribute(t *testing.T) {
	l, appID, _ := setup(t, 1_000_000)
	seller := addr(7)
	team := addr(8)
	staking := addr(9)

	group := types.Group{payCall(appID, "distribute", 500, seller, team, staking)}
	if err := l.Submit(group); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := l.Balance(seller); got.Cmp(big.NewInt(485)) != 0 {
		t.Fatalf("seller = %s, want 485", got)
	}
	if got := l.Balance(team); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("team = %s, want 7", got)
	}
	if got := l.Balance(staking); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("staking = %s, want 7", got)
	}
	// Dust stays with the custodial address.
	appAddr, _ := l.AppAddress(appID)
	if got := l.Balance(appAddr); got.Cmp(big.NewInt(999_501)) != 0 {
		t.Fatalf("custody = %s, want 999501", got)
	}
}
