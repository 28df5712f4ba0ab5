package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// SetupTradeAsset funds the trade custody address and opts it into assetID so
// listings for that asset can be escrowed.
func (m *Market) SetupTradeAsset(creator types.Address, assetID uint64) error {
	p := m.net.Params()
	amount := new(big.Int).Add(p.MinBalance, p.AssetMinBalance)
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   creator,
			Receiver: m.tradeAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        creator,
			AppID:         m.ids.Trade,
			Args:          [][]byte{[]byte("setup")},
			ForeignAssets: []uint64{assetID},
			Fee:           m.fee(2),
		},
	}
	return m.net.Submit(group)
}

// PlaceListing escrows units of assetID on the slot at the asking price. An
// open listing on the slot is replaced; the old escrow returns to the seller
// inside the same group.
func (m *Market) PlaceListing(seller, slot types.Address, assetID, units, price uint64) error {
	local, err := m.slotState(m.ids.Trade, slot)
	if err != nil {
		return err
	}
	assets := []uint64{assetID}
	xferFee := m.fee(2)
	if prior := stateUint(local, "TK_ID"); prior != 0 {
		assets = append(assets, prior)
		xferFee = m.fee(3)
	}
	group := types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        seller,
			AssetReceiver: m.tradeAddr,
			AssetID:       assetID,
			AssetAmount:   units,
			Fee:           xferFee,
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        seller,
			AppID:         m.ids.Trade,
			Args:          [][]byte{[]byte("trade"), types.Uint64Bytes(price)},
			Accounts:      []types.Address{slot},
			ForeignAssets: assets,
			Fee:           m.fee(1),
		},
	}
	return m.net.Submit(group)
}

// CancelListing returns the escrowed asset to the seller and frees the slot.
func (m *Market) CancelListing(seller, slot types.Address) error {
	local, err := m.slotState(m.ids.Trade, slot)
	if err != nil {
		return err
	}
	token := stateUint(local, "TK_ID")
	if token == 0 {
		return fmt.Errorf("%w: trade slot %s", ErrNoOpenEntry, slot)
	}
	group := types.Group{&types.Transaction{
		Type:          types.TxAppCall,
		Sender:        seller,
		AppID:         m.ids.Trade,
		Args:          [][]byte{[]byte("cancel")},
		Accounts:      []types.Address{slot},
		ForeignAssets: []uint64{token},
		Fee:           m.fee(2),
	}}
	return m.net.Submit(group)
}

// AcceptListing settles the listing on the slot: the buyer pays the asking
// price plus the fee headroom, the asset transfers to the buyer, and the
// settlement is reported to the accounting store.
func (m *Market) AcceptListing(buyer, slot types.Address) error {
	local, err := m.slotState(m.ids.Trade, slot)
	if err != nil {
		return err
	}
	token := stateUint(local, "TK_ID")
	units := stateUint(local, "TA")
	price := stateUint(local, "TP")
	seller := stateAddr(local, "S_ADDR")
	if token == 0 || units == 0 || price == 0 {
		return fmt.Errorf("%w: trade slot %s", ErrNoOpenEntry, slot)
	}
	amount := new(big.Int).SetUint64(price)
	amount.Add(amount, m.feeHeadroom())
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   buyer,
			Receiver: m.tradeAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        buyer,
			AppID:         m.ids.Trade,
			Args:          [][]byte{[]byte("accept"), types.Uint64Bytes(units)},
			Accounts:      []types.Address{seller, slot, m.tradeFees.staking, m.tradeFees.team},
			ForeignAssets: []uint64{token},
			Fee:           m.fee(1),
		},
		&types.Transaction{
			Type:     types.TxAppCall,
			Sender:   buyer,
			AppID:    m.ids.Store,
			Args:     [][]byte{[]byte("buy")},
			Accounts: []types.Address{seller},
			Fee:      m.fee(1),
		},
	}
	return m.net.Submit(group)
}
