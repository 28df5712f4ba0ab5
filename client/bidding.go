package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// SetupBidAsset funds the bid custody address and opts it into assetID so
// accepted bids can route the asset through custody.
func (m *Market) SetupBidAsset(creator types.Address, assetID uint64) error {
	p := m.net.Params()
	amount := new(big.Int).Add(p.MinBalance, p.AssetMinBalance)
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   creator,
			Receiver: m.bidAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        creator,
			AppID:         m.ids.Bid,
			Args:          [][]byte{[]byte("setup")},
			ForeignAssets: []uint64{assetID},
			Fee:           m.fee(2),
		},
	}
	return m.net.Submit(group)
}

// PlaceBid escrows price plus the fee headroom against units of assetID on
// the slot. An open bid on the slot is replaced and its escrow refunded.
func (m *Market) PlaceBid(bidder, slot types.Address, assetID, units, price uint64) error {
	if _, err := m.slotState(m.ids.Bid, slot); err != nil {
		return err
	}
	amount := new(big.Int).SetUint64(price)
	amount.Add(amount, m.feeHeadroom())
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   bidder,
			Receiver: m.bidAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        bidder,
			AppID:         m.ids.Bid,
			Args:          [][]byte{[]byte("bid"), types.Uint64Bytes(units)},
			Accounts:      []types.Address{slot},
			ForeignAssets: []uint64{assetID},
			Fee:           m.fee(1),
		},
	}
	return m.net.Submit(group)
}

// CancelBid refunds the escrowed payment and frees the slot.
func (m *Market) CancelBid(bidder, slot types.Address) error {
	local, err := m.slotState(m.ids.Bid, slot)
	if err != nil {
		return err
	}
	if stateUint(local, "TK_ID") == 0 {
		return fmt.Errorf("%w: bid slot %s", ErrNoOpenEntry, slot)
	}
	group := types.Group{&types.Transaction{
		Type:     types.TxAppCall,
		Sender:   bidder,
		AppID:    m.ids.Bid,
		Args:     [][]byte{[]byte("cancel")},
		Accounts: []types.Address{slot},
		Fee:      m.fee(2),
	}}
	return m.net.Submit(group)
}

// AcceptBid settles the bid on the slot from the seller side: the seller
// delivers the asset, collects the fee-split price, and the settlement is
// reported to the accounting store.
func (m *Market) AcceptBid(seller, slot types.Address) error {
	local, err := m.slotState(m.ids.Bid, slot)
	if err != nil {
		return err
	}
	token := stateUint(local, "TK_ID")
	units := stateUint(local, "TA")
	price := stateUint(local, "TP")
	bidder := stateAddr(local, "B_ADDR")
	if token == 0 || units == 0 || price == 0 {
		return fmt.Errorf("%w: bid slot %s", ErrNoOpenEntry, slot)
	}
	group := types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        seller,
			AssetReceiver: m.bidAddr,
			AssetID:       token,
			AssetAmount:   units,
			Fee:           m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        seller,
			AppID:         m.ids.Bid,
			Args:          [][]byte{[]byte("accept"), types.Uint64Bytes(price)},
			Accounts:      []types.Address{bidder, slot, m.bidFees.staking, m.bidFees.team},
			ForeignAssets: []uint64{token},
			Fee:           m.fee(1),
		},
		&types.Transaction{
			Type:     types.TxAppCall,
			Sender:   seller,
			AppID:    m.ids.Store,
			Args:     [][]byte{[]byte("sell")},
			Accounts: []types.Address{bidder},
			Fee:      m.fee(1),
		},
	}
	return m.net.Submit(group)
}
