package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// AuctionTerms carries the parameters of a new auction. Times are unix
// seconds; the reserve is the minimum entry price and the increment the
// minimum raise over the lead bid.
type AuctionTerms struct {
	Start     uint64
	End       uint64
	Reserve   uint64
	Increment uint64
}

// OpenAuction escrows units of assetID on the slot under the given terms.
// The funding payment covers the custody minimum balance and the asset
// opt-in.
func (m *Market) OpenAuction(seller, slot types.Address, assetID, units uint64, terms AuctionTerms) error {
	if _, err := m.slotState(m.ids.Auction, slot); err != nil {
		return err
	}
	p := m.net.Params()
	amount := new(big.Int).Add(p.MinBalance, p.AssetMinBalance)
	amount.Add(amount, p.MinFee)
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   seller,
			Receiver: m.auctionAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:   types.TxAppCall,
			Sender: seller,
			AppID:  m.ids.Auction,
			Args: [][]byte{
				[]byte("setup"),
				types.Uint64Bytes(terms.Start),
				types.Uint64Bytes(terms.End),
				types.Uint64Bytes(terms.Reserve),
				types.Uint64Bytes(terms.Increment),
			},
			Accounts: []types.Address{slot},
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        seller,
			AssetReceiver: m.auctionAddr,
			AssetID:       assetID,
			AssetAmount:   units,
			Fee:           m.fee(1),
		},
	}
	return m.net.Submit(group)
}

// PlaceAuctionBid escrows price plus the fee headroom as a bid on the slot's
// auction. The previous lead, if any, is refunded inside the same group.
func (m *Market) PlaceAuctionBid(bidder, slot types.Address, price uint64) error {
	local, err := m.slotState(m.ids.Auction, slot)
	if err != nil {
		return err
	}
	if stateUint(local, "TK_ID") == 0 {
		return fmt.Errorf("%w: auction slot %s", ErrNoOpenEntry, slot)
	}
	amount := new(big.Int).SetUint64(price)
	amount.Add(amount, m.feeHeadroom())
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   bidder,
			Receiver: m.auctionAddr,
			Amount:   amount,
			Fee:      m.fee(1),
		},
		&types.Transaction{
			Type:     types.TxAppCall,
			Sender:   bidder,
			AppID:    m.ids.Auction,
			Args:     [][]byte{[]byte("bid")},
			Accounts: []types.Address{slot},
			Fee:      m.fee(1),
		},
	}
	return m.net.Submit(group)
}

// CloseAuction ends the auction on the slot. With a lead bid the group
// carries the full settlement shape and the store report; without one it is a
// bare close that returns the asset.
func (m *Market) CloseAuction(caller, slot types.Address) error {
	local, err := m.slotState(m.ids.Auction, slot)
	if err != nil {
		return err
	}
	lead := stateAddr(local, "LB_ADDR")
	call := &types.Transaction{
		Type:     types.TxAppCall,
		Sender:   caller,
		AppID:    m.ids.Auction,
		Args:     [][]byte{[]byte("close")},
		Accounts: []types.Address{slot},
		Fee:      m.fee(1),
	}
	if lead.IsZero() {
		return m.net.Submit(types.Group{call})
	}
	call.Accounts = []types.Address{slot, lead, m.auctionFees.staking, m.auctionFees.team}
	group := types.Group{
		call,
		&types.Transaction{
			Type:        types.TxAppCall,
			Sender:      caller,
			AppID:       m.ids.Store,
			Args:        [][]byte{[]byte("auction")},
			Accounts:    []types.Address{lead, slot},
			ForeignApps: []uint64{m.ids.Auction},
			Fee:         m.fee(1),
		},
	}
	return m.net.Submit(group)
}
