package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// feePair is the staking and team fee sink a contract splits settlements to,
// read back from that contract's global state.
type feePair struct {
	staking types.Address
	team    types.Address
}

// Market wires group builders for every contract of one deployment. Builders
// read fresh ledger state before assembling a group; a rejected group has no
// partial effects, so every operation either settles fully or returns an
// error.
type Market struct {
	net Network
	ids Deployment

	tradeAddr   types.Address
	bidAddr     types.Address
	auctionAddr types.Address
	swapAddr    types.Address
	stakingAddr types.Address

	tradeFees   feePair
	bidFees     feePair
	auctionFees feePair
	swapFees    feePair

	minFee *big.Int
}

// NewMarket resolves the custody addresses and fee sinks of a deployment.
func NewMarket(net Network, ids Deployment) (*Market, error) {
	m := &Market{net: net, ids: ids, minFee: net.Params().MinFee}
	for _, app := range []struct {
		id   uint64
		addr *types.Address
		fees *feePair
	}{
		{ids.Trade, &m.tradeAddr, &m.tradeFees},
		{ids.Bid, &m.bidAddr, &m.bidFees},
		{ids.Auction, &m.auctionAddr, &m.auctionFees},
		{ids.Swap, &m.swapAddr, &m.swapFees},
		{ids.Staking, &m.stakingAddr, nil},
	} {
		addr, ok := net.AppAddress(app.id)
		if !ok {
			return nil, fmt.Errorf("%w: app %d", ErrUnknownApp, app.id)
		}
		*app.addr = addr
		if app.fees == nil {
			continue
		}
		global, ok := net.AppGlobalState(app.id)
		if !ok {
			return nil, fmt.Errorf("%w: app %d", ErrUnknownApp, app.id)
		}
		app.fees.staking = stateAddr(global, "SA_ADDR")
		app.fees.team = stateAddr(global, "TW_ADDR")
	}
	if _, ok := net.AppAddress(ids.Store); !ok {
		return nil, fmt.Errorf("%w: app %d", ErrUnknownApp, ids.Store)
	}
	return m, nil
}

// IDs returns the deployment the market was built from.
func (m *Market) IDs() Deployment { return m.ids }

func (m *Market) fee(n int64) *big.Int {
	return new(big.Int).Mul(m.minFee, big.NewInt(n))
}

// feeHeadroom is the fixed 4-fee allowance settlement payments carry on top
// of the price.
func (m *Market) feeHeadroom() *big.Int { return m.fee(4) }

// slotState fetches the slot's local state under appID, distinguishing a
// missing opt-in from an empty slot.
func (m *Market) slotState(appID uint64, slot types.Address) (map[string][]byte, error) {
	local, ok := m.net.AppLocalState(appID, slot)
	if !ok {
		return nil, fmt.Errorf("%w: slot %s app %d", ErrSlotNotReady, slot, appID)
	}
	return local, nil
}

// OptIntoAsset opts an account into an asset so it can receive transfers.
func (m *Market) OptIntoAsset(account types.Address, assetID uint64) error {
	group := types.Group{&types.Transaction{
		Type:    types.TxAssetOptIn,
		Sender:  account,
		AssetID: assetID,
		Fee:     m.fee(1),
	}}
	return m.net.Submit(group)
}

// TradeSlotBusy reports whether trade slot state holds an open listing.
func TradeSlotBusy(local map[string][]byte) bool { return stateUint(local, "TK_ID") != 0 }

// BidSlotBusy reports whether bid slot state holds an open bid.
func BidSlotBusy(local map[string][]byte) bool { return stateUint(local, "TK_ID") != 0 }

// SwapSlotBusy reports whether swap slot state holds an open offer.
func SwapSlotBusy(local map[string][]byte) bool { return stateUint(local, "O_TKID") != 0 }
