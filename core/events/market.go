package events

import (
	"math/big"
	"strconv"

	"nftmarket/core/types"
)

// Marketplace event type identifiers. Contracts emit one event per applied
// listing transition; nothing is emitted for rejected groups.
const (
	TypeListingPlaced    = "market.listing.placed"
	TypeListingReplaced  = "market.listing.replaced"
	TypeListingCancelled = "market.listing.cancelled"
	TypeListingSettled   = "market.listing.settled"
	TypeAuctionBid       = "market.auction.bid"
	TypeAuctionClosed    = "market.auction.closed"
	TypeStoreRecorded    = "market.store.recorded"
	TypeStoreReset       = "market.store.reset"
	TypePayoutSkipped    = "market.payout.skipped"
	TypeStakeChanged     = "market.stake.changed"
	TypeRewardClaimed    = "market.reward.claimed"
)

// NewListingPlaced reports a new or replacing listing on a slot.
func NewListingPlaced(contract string, owner, slot types.Address, assetID, amount uint64, replaced bool) *types.Event {
	evtType := TypeListingPlaced
	if replaced {
		evtType = TypeListingReplaced
	}
	return &types.Event{
		Type: evtType,
		Attributes: map[string]string{
			"contract": contract,
			"owner":    owner.Hex(),
			"slot":     slot.Hex(),
			"assetId":  strconv.FormatUint(assetID, 10),
			"amount":   strconv.FormatUint(amount, 10),
		},
	}
}

// NewListingCancelled reports a cancellation with escrow returned to the
// owner.
func NewListingCancelled(contract string, owner, slot types.Address) *types.Event {
	return &types.Event{
		Type: TypeListingCancelled,
		Attributes: map[string]string{
			"contract": contract,
			"owner":    owner.Hex(),
			"slot":     slot.Hex(),
		},
	}
}

// NewListingSettled reports an accepted settlement between a listing owner
// and a counterparty.
func NewListingSettled(contract string, owner, counterparty, slot types.Address, assetID, amount uint64, price *big.Int) *types.Event {
	attrs := map[string]string{
		"contract":     contract,
		"owner":        owner.Hex(),
		"counterparty": counterparty.Hex(),
		"slot":         slot.Hex(),
		"assetId":      strconv.FormatUint(assetID, 10),
		"amount":       strconv.FormatUint(amount, 10),
	}
	if price != nil {
		attrs["price"] = price.String()
	}
	return &types.Event{Type: TypeListingSettled, Attributes: attrs}
}

// NewAuctionBid reports a new lead bid.
func NewAuctionBid(slot, bidder types.Address, price *big.Int, numBids uint64) *types.Event {
	return &types.Event{
		Type: TypeAuctionBid,
		Attributes: map[string]string{
			"slot":    slot.Hex(),
			"bidder":  bidder.Hex(),
			"price":   price.String(),
			"numBids": strconv.FormatUint(numBids, 10),
		},
	}
}

// NewAuctionClosed reports an auction close, settled or not.
func NewAuctionClosed(slot types.Address, settled bool) *types.Event {
	return &types.Event{
		Type: TypeAuctionClosed,
		Attributes: map[string]string{
			"slot":    slot.Hex(),
			"settled": strconv.FormatBool(settled),
		},
	}
}

// NewStoreRecorded reports a settlement recorded in the aggregate ledger.
func NewStoreRecorded(direction string, seller, buyer types.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: TypeStoreRecorded,
		Attributes: map[string]string{
			"direction": direction,
			"seller":    seller.Hex(),
			"buyer":     buyer.Hex(),
			"amount":    amount.String(),
		},
	}
}

// NewStoreReset reports an epoch rollover for one account.
func NewStoreReset(account types.Address) *types.Event {
	return &types.Event{
		Type:       TypeStoreReset,
		Attributes: map[string]string{"account": account.Hex()},
	}
}

// NewPayoutSkipped reports the economic guard dropping a payment because the
// custodial balance would fall under the minimum.
func NewPayoutSkipped(recipient types.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: TypePayoutSkipped,
		Attributes: map[string]string{
			"recipient": recipient.Hex(),
			"amount":    amount.String(),
		},
	}
}

// NewStakeChanged reports a stake or withdraw transition.
func NewStakeChanged(account types.Address, staked uint64) *types.Event {
	return &types.Event{
		Type: TypeStakeChanged,
		Attributes: map[string]string{
			"account": account.Hex(),
			"staked":  strconv.FormatUint(staked, 10),
		},
	}
}

// NewRewardClaimed reports a staking reward payout.
func NewRewardClaimed(account types.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"account": account.Hex(),
			"amount":  amount.String(),
		},
	}
}
