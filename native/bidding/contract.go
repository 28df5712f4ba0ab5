package bidding

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

// Per-slot local state. The escrow here is the buyer's payment, not the
// asset: a bid names the token it wants and locks the offered price.
const (
	keyBidder = "B_ADDR"
	keyToken  = "TK_ID"
	keyAmount = "TA"
	keyPrice  = "TP"
)

var (
	errBadCreate   = errors.New("bidding: create expects staking, team and store references")
	errBadSetup    = errors.New("bidding: malformed setup group")
	errBadBid      = errors.New("bidding: malformed bid group")
	errBadCancel   = errors.New("bidding: malformed cancel")
	errBadAccept   = errors.New("bidding: malformed accept group")
	errNotOpen     = errors.New("bidding: no open bid for account on slot")
	errNotCreator  = errors.New("bidding: caller is not the deployer")
	errUnknownCall = errors.New("bidding: unknown method")
)

// Contract is the buyer-side marketplace: buyers escrow payments against
// assets they want, sellers settle by delivering the asset.
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
	case "cancel":
		return c.cancel(ctx)
	case "accept":
		return c.accept(ctx)
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

func (Contract) setup(ctx *chain.Context) error {
	txn := ctx.Txn()
	amount, err := guard.Payment(ctx.Gtxn(0), ctx.AppAddress())
	if err != nil {
		return errBadSetup
	}
	if ctx.Gtxn(0).Sender != txn.Sender || amount.Cmp(ctx.MinBalance()) < 0 {
		return errBadSetup
	}
	if txn.NumAssets() != 1 || txn.Asset(0) == 0 {
		return errBadSetup
	}
	if err := guard.FeeAtLeast(ctx, txn, 2); err != nil {
		return errBadSetup
	}
	if _, held := ctx.AssetHolding(ctx.AppAddress(), txn.Asset(0)); !held {
		return ctx.OptInAsset(txn.Asset(0))
	}
	return nil
}

// bid escrows a payment against the named asset. The escrowed price is the
// payment minus the fixed fee headroom; replacing an open bid refunds the
// prior escrow in full.
func (c Contract) bid(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	pay := ctx.Gtxn(idx - 1)
	amount, err := guard.Payment(pay, ctx.AppAddress())
	if err != nil || pay.Sender != txn.Sender {
		return errBadBid
	}
	headroom := guard.MinFeeTimes(ctx, 4)
	if amount.Cmp(headroom) <= 0 {
		return errBadBid
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) == 0 {
		return errBadBid
	}
	if txn.NumAssets() < 1 || txn.Asset(0) == 0 {
		return errBadBid
	}
	if txn.NumAccounts() != 1 {
		return errBadBid
	}
	slot := txn.Account(1)
	bidder := txn.Sender
	price, err := guard.Uint64(new(big.Int).Sub(amount, headroom))
	if err != nil {
		return errBadBid
	}

	replaced := c.isOpen(ctx, bidder, slot)
	if replaced {
		prior := new(big.Int).SetUint64(ctx.LocalUint(slot, keyPrice))
		fees.PayOut(ctx, bidder, prior)
	}
	if err := ctx.SetLocalAddress(slot, keyBidder, bidder); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyToken, txn.Asset(0)); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyAmount, txn.ArgUint(1)); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyPrice, price); err != nil {
		return err
	}
	ctx.Emit(events.NewListingPlaced("bidding", bidder, slot, txn.Asset(0), txn.ArgUint(1), replaced))
	return nil
}

// cancel refunds the escrowed payment in full and zeroes the slot.
func (c Contract) cancel(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.NumAccounts() != 1 {
		return errBadCancel
	}
	slot := txn.Account(1)
	if !c.isOpen(ctx, txn.Sender, slot) {
		return errNotOpen
	}
	if err := guard.FeeAtLeast(ctx, txn, 2); err != nil {
		return errBadCancel
	}
	fees.PayOut(ctx, txn.Sender, new(big.Int).SetUint64(ctx.LocalUint(slot, keyPrice)))
	c.closeBid(ctx, slot)
	ctx.Emit(events.NewListingCancelled("bidding", txn.Sender, slot))
	return nil
}

// accept is seller-initiated: the seller's asset transfer precedes this call,
// a store report follows. The escrowed price is fee-split to the seller and
// the asset goes to the bidder.
func (c Contract) accept(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	xferAsset, xferAmount, err := guard.AssetTransfer(ctx.Gtxn(idx-1), ctx.AppAddress())
	if err != nil {
		return errBadAccept
	}

	if txn.NumAccounts() != 4 {
		return errBadAccept
	}
	bidder := txn.Account(1)
	slot := txn.Account(2)
	if txn.Account(3) != ctx.GlobalAddress(keyStaking) || txn.Account(4) != ctx.GlobalAddress(keyTeam) {
		return errBadAccept
	}
	if !c.isOpen(ctx, bidder, slot) {
		return errNotOpen
	}
	if txn.NumAssets() != 1 || txn.Asset(0) != xferAsset || txn.Asset(0) != ctx.LocalUint(slot, keyToken) {
		return errBadAccept
	}
	price := ctx.LocalUint(slot, keyPrice)
	if txn.NumArgs() != 2 || txn.ArgUint(1) != price {
		return errBadAccept
	}
	if xferAmount != ctx.LocalUint(slot, keyAmount) {
		return errBadAccept
	}

	store := ctx.Gtxn(idx + 1)
	if err := guard.AppCallTo(store, ctx.GlobalUint(keyStoreApp)); err != nil {
		return errBadAccept
	}
	if store.Sender != txn.Sender || store.NumArgs() != 1 || store.Method() != "sell" {
		return errBadAccept
	}
	if store.NumAccounts() != 1 || store.Account(1) != bidder {
		return errBadAccept
	}

	fees.Distribute(ctx, txn.Sender, ctx.GlobalAddress(keyTeam), ctx.GlobalAddress(keyStaking), new(big.Int).SetUint64(price))
	if err := ctx.SendAsset(bidder, ctx.LocalUint(slot, keyToken), ctx.LocalUint(slot, keyAmount)); err != nil {
		return err
	}
	c.closeBid(ctx, slot)
	ctx.Emit(events.NewListingSettled("bidding", txn.Sender, bidder, slot, txn.Asset(0), xferAmount, new(big.Int).SetUint64(price)))
	return nil
}

func (Contract) isOpen(ctx *chain.Context, account, slot types.Address) bool {
	if ctx.LocalUint(slot, keyToken) == 0 ||
		ctx.LocalUint(slot, keyAmount) == 0 ||
		ctx.LocalUint(slot, keyPrice) == 0 {
		return false
	}
	return ctx.LocalAddress(slot, keyBidder) == account
}

func (Contract) closeBid(ctx *chain.Context, slot types.Address) {
	ctx.SetLocalUint(slot, keyToken, 0)
	ctx.SetLocalUint(slot, keyAmount, 0)
	ctx.SetLocalUint(slot, keyPrice, 0)
}
