package auction

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/fees"
	"nftmarket/native/guard"
)

const (
	keyStoreApp = "SA_ID"
	keyStaking  = "SA_ADDR"
	keyTeam     = "TW_ADDR"
)

// Per-slot local state. An auction keeps its full terms on the slot: the
// escrowed asset, the time window, the reserve, the increment and the running
// lead bid.
const (
	keySeller    = "S_ADDR"
	keyToken     = "TK_ID"
	keyAmount    = "TKA"
	keyStart     = "ST"
	keyEnd       = "ET"
	keyReserve   = "RA"
	keyIncrement = "MBI"
	keyNumBids   = "NB"
	keyLeadPrice = "LBP"
	keyLeadAddr  = "LB_ADDR"
)

var (
	errBadCreate   = errors.New("auction: create expects staking, team and store references")
	errBadSetup    = errors.New("auction: malformed setup group")
	errBadBid      = errors.New("auction: malformed bid group")
	errBadClose    = errors.New("auction: malformed close group")
	errNotSetUp    = errors.New("auction: slot has no escrowed asset")
	errNotStarted  = errors.New("auction: bidding window not open")
	errEnded       = errors.New("auction: bidding window closed")
	errBelowLead   = errors.New("auction: bid below lead plus increment")
	errNotSeller   = errors.New("auction: caller is neither seller nor deployer")
	errStillLive   = errors.New("auction: cannot close a running auction")
	errNotCreator  = errors.New("auction: caller is not the deployer")
	errUnknownCall = errors.New("auction: unknown method")
)

// Contract is the sealed-window auction: the seller escrows an asset with a
// reserve and a time window, bidders escrow rising payments, close settles to
// the lead bid.
type Contract struct{}

var _ chain.AppLogic = Contract{}

func (Contract) Create(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.NumAccounts() != 2 || txn.NumApplications() != 1 {
		return errBadCreate
	}
	ctx.SetGlobalUint(keyStoreApp, txn.Application(1))
	ctx.SetGlobalAddress(keyStaking, txn.Account(1))
	ctx.SetGlobalAddress(keyTeam, txn.Account(2))
	return nil
}

func (c Contract) Call(ctx *chain.Context) error {
	switch ctx.Txn().Method() {
	case "setup":
		return c.setup(ctx)
	case "bid":
		return c.bid(ctx)
	case "close":
		return c.close(ctx)
	}
	return errUnknownCall
}

func (Contract) Update(ctx *chain.Context) error {
	if ctx.Txn().Sender != ctx.CreatorAddress() {
		return errNotCreator
	}
	return nil
}

func (Contract) Delete(ctx *chain.Context) error { return nil }

// setup opens an auction on a slot: funding payment before the call, asset
// escrow after it, terms in the arguments.
func (c Contract) setup(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	amount, err := guard.Payment(ctx.Gtxn(idx-1), ctx.AppAddress())
	if err != nil || ctx.Gtxn(idx-1).Sender != txn.Sender {
		return errBadSetup
	}
	floor := new(big.Int).Add(ctx.MinBalance(), ctx.MinFee())
	if amount.Cmp(floor) < 0 {
		return errBadSetup
	}
	tokenID, escrowed, err := guard.AssetTransfer(ctx.Gtxn(idx+1), ctx.AppAddress())
	if err != nil || escrowed == 0 {
		return errBadSetup
	}

	if txn.NumArgs() != 5 || txn.NumAccounts() != 1 {
		return errBadSetup
	}
	start := txn.ArgUint(1)
	end := txn.ArgUint(2)
	reserve := txn.ArgUint(3)
	increment := txn.ArgUint(4)
	if start >= end {
		return errBadSetup
	}
	if new(big.Int).SetUint64(reserve).Cmp(ctx.MinFee()) <= 0 {
		return errBadSetup
	}

	slot := txn.Account(1)
	if err := ctx.SetLocalAddress(slot, keySeller, txn.Sender); err != nil {
		return err
	}
	ctx.SetLocalUint(slot, keyToken, tokenID)
	ctx.SetLocalUint(slot, keyAmount, escrowed)
	ctx.SetLocalUint(slot, keyStart, start)
	ctx.SetLocalUint(slot, keyEnd, end)
	ctx.SetLocalUint(slot, keyReserve, reserve)
	ctx.SetLocalUint(slot, keyIncrement, increment)
	ctx.SetLocalAddress(slot, keyLeadAddr, types.ZeroAddress)
	ctx.SetLocalUint(slot, keyLeadPrice, 0)
	ctx.SetLocalUint(slot, keyNumBids, 0)

	if _, held := ctx.AssetHolding(ctx.AppAddress(), tokenID); !held {
		// The transfer later in the group needs the holding to exist.
		if err := ctx.OptInAsset(tokenID); err != nil {
			return err
		}
	}
	ctx.Emit(events.NewListingPlaced("auction", txn.Sender, slot, tokenID, escrowed, false))
	return nil
}

// bid takes the lead when the payment clears the lead price plus increment
// plus fee headroom; the previous lead is refunded in full. A payment under
// the threshold rejects the whole group.
func (c Contract) bid(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	if txn.NumAccounts() < 1 {
		return errBadBid
	}
	slot := txn.Account(1)

	held, ok := ctx.AssetHolding(ctx.AppAddress(), ctx.LocalUint(slot, keyToken))
	if !ok || held == 0 {
		return errNotSetUp
	}
	now := uint64(ctx.LatestTimestamp())
	if now < ctx.LocalUint(slot, keyStart) {
		return errNotStarted
	}
	if now >= ctx.LocalUint(slot, keyEnd) {
		return errEnded
	}

	pay := ctx.Gtxn(idx - 1)
	amount, err := guard.Payment(pay, ctx.AppAddress())
	if err != nil || pay.Sender != txn.Sender {
		return errBadBid
	}
	entry := new(big.Int).SetUint64(ctx.LocalUint(slot, keyReserve))
	entry.Add(entry, guard.MinFeeTimes(ctx, 3))
	if amount.Cmp(entry) < 0 {
		return errBadBid
	}

	threshold := new(big.Int).SetUint64(ctx.LocalUint(slot, keyLeadPrice) + ctx.LocalUint(slot, keyIncrement))
	threshold.Add(threshold, guard.MinFeeTimes(ctx, 4))
	if amount.Cmp(threshold) < 0 {
		return errBelowLead
	}

	prevLead := ctx.LocalAddress(slot, keyLeadAddr)
	if !prevLead.IsZero() {
		fees.PayOut(ctx, prevLead, new(big.Int).SetUint64(ctx.LocalUint(slot, keyLeadPrice)))
	}
	price, err := guard.Uint64(new(big.Int).Sub(amount, guard.MinFeeTimes(ctx, 4)))
	if err != nil {
		return errBadBid
	}
	ctx.SetLocalUint(slot, keyLeadPrice, price)
	ctx.SetLocalAddress(slot, keyLeadAddr, txn.Sender)
	ctx.SetLocalUint(slot, keyNumBids, ctx.LocalUint(slot, keyNumBids)+1)
	ctx.Emit(events.NewAuctionBid(slot, txn.Sender, new(big.Int).SetUint64(price), ctx.LocalUint(slot, keyNumBids)))
	return nil
}

// close ends an auction. Before the start the seller takes the asset back;
// after the end with no bids likewise. After the end with a lead bid the
// group must carry the settlement accounts and a trailing store report: the
// asset goes to the lead bidder and the lead price is fee-split to the
// caller.
func (c Contract) close(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	if txn.NumAccounts() < 1 {
		return errBadClose
	}
	slot := txn.Account(1)
	seller := ctx.LocalAddress(slot, keySeller)
	if txn.Sender != seller && txn.Sender != ctx.CreatorAddress() {
		return errNotSeller
	}

	now := uint64(ctx.LatestTimestamp())
	tokenID := ctx.LocalUint(slot, keyToken)
	amount := ctx.LocalUint(slot, keyAmount)

	if now < ctx.LocalUint(slot, keyStart) {
		if err := ctx.SendAsset(txn.Sender, tokenID, amount); err != nil {
			return err
		}
		ctx.Emit(events.NewAuctionClosed(slot, false))
		return nil
	}
	if now < ctx.LocalUint(slot, keyEnd) {
		return errStillLive
	}

	lead := ctx.LocalAddress(slot, keyLeadAddr)
	if lead.IsZero() {
		if err := ctx.SendAsset(txn.Sender, tokenID, amount); err != nil {
			return err
		}
		ctx.Emit(events.NewAuctionClosed(slot, false))
		return nil
	}

	if txn.NumAccounts() != 4 {
		return errBadClose
	}
	if txn.Account(2) != lead {
		return errBadClose
	}
	if txn.Account(3) != ctx.GlobalAddress(keyStaking) || txn.Account(4) != ctx.GlobalAddress(keyTeam) {
		return errBadClose
	}
	store := ctx.Gtxn(idx + 1)
	if err := guard.AppCallTo(store, ctx.GlobalUint(keyStoreApp)); err != nil {
		return errBadClose
	}
	if store.Sender != txn.Sender || store.NumArgs() != 1 || store.Method() != "auction" {
		return errBadClose
	}
	if store.NumAccounts() != 2 || store.Account(1) != lead || store.Account(2) != slot {
		return errBadClose
	}

	if err := ctx.SendAsset(lead, tokenID, amount); err != nil {
		return err
	}
	fees.Distribute(ctx, txn.Sender, ctx.GlobalAddress(keyTeam), ctx.GlobalAddress(keyStaking),
		new(big.Int).SetUint64(ctx.LocalUint(slot, keyLeadPrice)))
	ctx.Emit(events.NewAuctionClosed(slot, true))
	return nil
}
