package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// SetupSwapAssets funds the swap custody address and opts it into every named
// asset. The payment covers both the contract's per-asset floor and the
// custody minimum balance raise, whichever is larger.
func (m *Market) SetupSwapAssets(creator types.Address, assets []uint64) error {
	if len(assets) == 0 {
		return fmt.Errorf("client: no assets to set up")
	}
	p := m.net.Params()
	held := 0
	if snap, ok := m.net.AccountSnapshot(m.swapAddr); ok {
		held = len(snap.Assets)
	}
	target := new(big.Int).Mul(p.AssetMinBalance, big.NewInt(int64(held+len(assets))))
	target.Add(target, p.MinBalance)
	target.Sub(target, m.net.Balance(m.swapAddr))

	perAsset := new(big.Int).Add(p.MinFee, p.AssetMinBalance)
	floor := new(big.Int).Mul(perAsset, big.NewInt(int64(len(assets))))
	if target.Cmp(floor) < 0 {
		target = floor
	}
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   creator,
			Receiver: m.swapAddr,
			Amount:   target,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        creator,
			AppID:         m.ids.Swap,
			Args:          [][]byte{[]byte("setup")},
			ForeignAssets: assets,
			Fee:           m.fee(1),
		},
	}
	return m.net.Submit(group)
}

// PlaceOffer escrows offerUnits of offerAsset on the slot against wantUnits
// of wantAsset. An open offer on the slot is replaced and its escrow
// returned.
func (m *Market) PlaceOffer(offerer, slot types.Address, offerAsset, offerUnits, wantAsset, wantUnits uint64) error {
	local, err := m.slotState(m.ids.Swap, slot)
	if err != nil {
		return err
	}
	callFee := m.fee(1)
	if stateUint(local, "O_TKID") != 0 {
		callFee = m.fee(2)
	}
	group := types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        offerer,
			AssetReceiver: m.swapAddr,
			AssetID:       offerAsset,
			AssetAmount:   offerUnits,
			Fee:           m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        offerer,
			AppID:         m.ids.Swap,
			Args:          [][]byte{[]byte("swap"), types.Uint64Bytes(wantUnits)},
			Accounts:      []types.Address{slot},
			ForeignAssets: []uint64{offerAsset, wantAsset},
			Fee:           callFee,
		},
	}
	return m.net.Submit(group)
}

// CancelOffer returns the escrowed asset to the offerer and frees the slot.
func (m *Market) CancelOffer(offerer, slot types.Address) error {
	local, err := m.slotState(m.ids.Swap, slot)
	if err != nil {
		return err
	}
	token := stateUint(local, "O_TKID")
	if token == 0 {
		return fmt.Errorf("%w: swap slot %s", ErrNoOpenEntry, slot)
	}
	group := types.Group{&types.Transaction{
		Type:          types.TxAppCall,
		Sender:        offerer,
		AppID:         m.ids.Swap,
		Args:          [][]byte{[]byte("cancel")},
		Accounts:      []types.Address{slot},
		ForeignAssets: []uint64{token},
		Fee:           m.fee(2),
	}}
	return m.net.Submit(group)
}

// AcceptOffer settles the exchange on the slot: the acceptor delivers the
// wanted asset and receives the offered one.
func (m *Market) AcceptOffer(acceptor, slot types.Address) error {
	local, err := m.slotState(m.ids.Swap, slot)
	if err != nil {
		return err
	}
	offerToken := stateUint(local, "O_TKID")
	offerUnits := stateUint(local, "O_AMT")
	wantToken := stateUint(local, "A_TKID")
	wantUnits := stateUint(local, "A_AMT")
	offerer := stateAddr(local, "O_ADDR")
	if offerToken == 0 || wantToken == 0 {
		return fmt.Errorf("%w: swap slot %s", ErrNoOpenEntry, slot)
	}
	group := types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        acceptor,
			AssetReceiver: m.swapAddr,
			AssetID:       wantToken,
			AssetAmount:   wantUnits,
			Fee:           m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        acceptor,
			AppID:         m.ids.Swap,
			Args:          [][]byte{[]byte("accept"), types.Uint64Bytes(offerUnits)},
			Accounts:      []types.Address{offerer, slot, m.swapFees.staking, m.swapFees.team},
			ForeignAssets: []uint64{offerToken, wantToken},
			Fee:           m.fee(3),
		},
	}
	return m.net.Submit(group)
}
