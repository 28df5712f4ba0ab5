package trade

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/fees"
	"nftmarket/native/guard"
)

// Global state keys: the collaborating store app and the two fee recipients.
const (
	keyStoreApp = "SA_ID"
	keyStaking  = "SA_ADDR"
	keyTeam     = "TW_ADDR"
)

// Per-slot local state keys. A slot with all three trade fields non-zero holds
// an open listing; zeroing them is the canonical closed state.
const (
	keySeller = "S_ADDR"
	keyToken  = "TK_ID"
	keyAmount = "TA"
	keyPrice  = "TP"
)

var (
	errBadCreate    = errors.New("trade: create expects staking, team and store references")
	errBadSetup     = errors.New("trade: malformed setup group")
	errBadListing   = errors.New("trade: malformed listing group")
	errBadCancel    = errors.New("trade: malformed cancel")
	errBadAccept    = errors.New("trade: malformed accept group")
	errNotOpen      = errors.New("trade: no open listing for account on slot")
	errNotCreator   = errors.New("trade: caller is not the deployer")
	errUnknownCall  = errors.New("trade: unknown method")
	errEscrowMissed = errors.New("trade: escrowed asset not held")
)

// Contract is the fixed-price marketplace: sellers escrow an asset on a slot
// with an asking price, buyers settle by paying the price in full.
type Contract struct{}

var _ chain.AppLogic = Contract{}

// Create records the store app ID and the two fee recipient addresses from
// the deployment references.
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
	case "trade":
		return c.trade(ctx)
	case "cancel":
		return c.cancel(ctx)
	case "accept":
		return c.accept(ctx)
	}
	return errUnknownCall
}

// Update is deployer-only.
func (Contract) Update(ctx *chain.Context) error {
	if ctx.Txn().Sender != ctx.CreatorAddress() {
		return errNotCreator
	}
	return nil
}

// Delete is permissive; remaining escrow is forfeited by whoever tears the
// contract down.
func (Contract) Delete(ctx *chain.Context) error { return nil }

// setup funds the custodial address and opts it into the listed asset. The
// opt-in is idempotent so the same asset can back many listings.
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

// trade opens (or replaces) a listing: the preceding operation escrows the
// asset, the call carries the asking price and the slot. Replacing returns
// the previously escrowed asset to its owner first.
func (c Contract) trade(ctx *chain.Context) error {
	txn := ctx.Txn()
	_, escrowed, err := guard.AssetTransfer(ctx.Gtxn(0), ctx.AppAddress())
	if err != nil {
		return errBadListing
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) == 0 {
		return errBadListing
	}
	if txn.NumAccounts() != 1 {
		return errBadListing
	}
	// A replacement names the old asset too and pays for its return.
	switch txn.NumAssets() {
	case 1:
		if err := guard.FeeAtLeast(ctx, ctx.Gtxn(0), 2); err != nil {
			return errBadListing
		}
	case 2:
		if err := guard.FeeAtLeast(ctx, ctx.Gtxn(0), 3); err != nil {
			return errBadListing
		}
	default:
		return errBadListing
	}
	slot := txn.Account(1)
	seller := txn.Sender
	replaced := c.isOpen(ctx, seller, slot)
	if replaced {
		if err := c.returnEscrow(ctx, seller, slot); err != nil {
			return err
		}
	}
	if err := ctx.SetLocalAddress(slot, keySeller, seller); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyToken, txn.Asset(0)); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyAmount, escrowed); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(slot, keyPrice, txn.ArgUint(1)); err != nil {
		return err
	}
	ctx.Emit(events.NewListingPlaced("trade", seller, slot, txn.Asset(0), escrowed, replaced))
	return nil
}

// cancel returns the escrowed asset to the listing owner and zeroes the slot.
func (c Contract) cancel(ctx *chain.Context) error {
	txn := ctx.Txn()
	if err := guard.FeeAtLeast(ctx, txn, 2); err != nil {
		return errBadCancel
	}
	if txn.NumAccounts() != 1 {
		return errBadCancel
	}
	slot := txn.Account(1)
	if !c.isOpen(ctx, txn.Sender, slot) {
		return errNotOpen
	}
	if txn.NumAssets() != 1 || txn.Asset(0) != ctx.LocalUint(slot, keyToken) {
		return errBadCancel
	}
	if err := c.returnEscrow(ctx, txn.Sender, slot); err != nil {
		return err
	}
	c.closeListing(ctx, slot)
	ctx.Emit(events.NewListingCancelled("trade", txn.Sender, slot))
	return nil
}

// accept settles a listing: the buyer's payment precedes this call, a store
// report follows it. All identity and amount fields must match the listing
// exactly.
func (c Contract) accept(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	pay := ctx.Gtxn(idx - 1)
	amount, err := guard.Payment(pay, ctx.AppAddress())
	if err != nil || pay.Sender != txn.Sender {
		return errBadAccept
	}

	if txn.NumAccounts() != 4 {
		return errBadAccept
	}
	seller := txn.Account(1)
	slot := txn.Account(2)
	if txn.Account(3) != ctx.GlobalAddress(keyStaking) || txn.Account(4) != ctx.GlobalAddress(keyTeam) {
		return errBadAccept
	}
	if !c.isOpen(ctx, seller, slot) {
		return errNotOpen
	}
	if txn.NumAssets() != 1 || txn.Asset(0) != ctx.LocalUint(slot, keyToken) {
		return errBadAccept
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) != ctx.LocalUint(slot, keyAmount) {
		return errBadAccept
	}
	price := ctx.LocalUint(slot, keyPrice)
	expected := new(big.Int).SetUint64(price)
	expected.Add(expected, guard.MinFeeTimes(ctx, 4))
	if amount.Cmp(expected) != 0 {
		return errBadAccept
	}

	store := ctx.Gtxn(idx + 1)
	if err := guard.AppCallTo(store, ctx.GlobalUint(keyStoreApp)); err != nil {
		return errBadAccept
	}
	if store.Sender != txn.Sender || store.NumArgs() != 1 || store.Method() != "buy" {
		return errBadAccept
	}
	if store.NumAccounts() != 1 || store.Account(1) != seller {
		return errBadAccept
	}

	fees.Distribute(ctx, seller, ctx.GlobalAddress(keyTeam), ctx.GlobalAddress(keyStaking), new(big.Int).SetUint64(price))
	if err := c.returnEscrow(ctx, txn.Sender, slot); err != nil {
		return err
	}
	c.closeListing(ctx, slot)
	ctx.Emit(events.NewListingSettled("trade", seller, txn.Sender, slot, txn.Asset(0), txn.ArgUint(1), new(big.Int).SetUint64(price)))
	return nil
}

// isOpen reports whether the slot holds an open listing owned by account.
func (Contract) isOpen(ctx *chain.Context, account, slot types.Address) bool {
	if ctx.LocalUint(slot, keyToken) == 0 ||
		ctx.LocalUint(slot, keyAmount) == 0 ||
		ctx.LocalUint(slot, keyPrice) == 0 {
		return false
	}
	return ctx.LocalAddress(slot, keySeller) == account
}

func (Contract) returnEscrow(ctx *chain.Context, to types.Address, slot types.Address) error {
	tokenID := ctx.LocalUint(slot, keyToken)
	amount := ctx.LocalUint(slot, keyAmount)
	if held, ok := ctx.AssetHolding(ctx.AppAddress(), tokenID); !ok || held < amount {
		return errEscrowMissed
	}
	return ctx.SendAsset(to, tokenID, amount)
}

func (Contract) closeListing(ctx *chain.Context, slot types.Address) {
	ctx.SetLocalUint(slot, keyToken, 0)
	ctx.SetLocalUint(slot, keyAmount, 0)
	ctx.SetLocalUint(slot, keyPrice, 0)
}
