package store

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/guard"
)

// Global state: running totals plus the registered collaborator app IDs. Only
// groups shaped exactly like a collaborator settlement may write here.
const (
	keyTotalSold   = "TSA"
	keyTotalBought = "TBA"
	keyTradeApp    = "TA_ADDR"
	keyBidApp      = "BA_ADDR"
	keyAuctionApp  = "AA_ADDR"
	keyDistApp     = "DA_ADDR"
)

// Per-account local state.
const (
	keySold   = "SA"
	keyBought = "BA"
)

// Lead-bid keys read from auction slot state under the auction app.
const (
	auctionLeadAddrKey  = "LB_ADDR"
	auctionLeadPriceKey = "LBP"
)

var (
	errBadSetup    = errors.New("store: setup expects four collaborator apps from the deployer")
	errBadReset    = errors.New("store: reset restricted to the distribution app")
	errBadBuy      = errors.New("store: group does not match a trade settlement")
	errBadSell     = errors.New("store: group does not match a bid settlement")
	errBadAuction  = errors.New("store: group does not match an auction settlement")
	errNotCreator  = errors.New("store: caller is not the deployer")
	errUnknownCall = errors.New("store: unknown method")
)

// Contract is the aggregate accounting ledger. It never holds funds; it
// verifies that the adjacent group operations form a genuine collaborator
// settlement and mirrors the settled amount into per-account and global
// counters.
type Contract struct{}

var _ chain.AppLogic = Contract{}

func (Contract) Create(ctx *chain.Context) error {
	ctx.SetGlobalUint(keyTotalSold, 0)
	ctx.SetGlobalUint(keyTotalBought, 0)
	return nil
}

func (c Contract) Call(ctx *chain.Context) error {
	switch ctx.Txn().Method() {
	case "setup":
		return c.setup(ctx)
	case "reset":
		return c.reset(ctx)
	case "buy":
		return c.buy(ctx)
	case "sell":
		return c.sell(ctx)
	case "auction":
		return c.auction(ctx)
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

// setup registers the collaborator app IDs: trade, bid, auction and the
// reward distribution app.
func (Contract) setup(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.Sender != ctx.CreatorAddress() {
		return errBadSetup
	}
	if txn.NumApplications() != 4 {
		return errBadSetup
	}
	for i := 1; i <= 4; i++ {
		if txn.Application(i) == 0 {
			return errBadSetup
		}
	}
	ctx.SetGlobalUint(keyTradeApp, txn.Application(1))
	ctx.SetGlobalUint(keyBidApp, txn.Application(2))
	ctx.SetGlobalUint(keyAuctionApp, txn.Application(3))
	ctx.SetGlobalUint(keyDistApp, txn.Application(4))
	return nil
}

// reset zeroes one account's counters and subtracts them from the totals.
// Only the distribution app's custodial address may call it, which it does
// during an epoch rollover.
func (Contract) reset(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.Sender != chain.AppAddressFor(ctx.GlobalUint(keyDistApp)) {
		return errBadReset
	}
	if txn.NumAccounts() != 1 {
		return errBadReset
	}
	account := txn.Account(1)
	sold := ctx.LocalUint(account, keySold)
	bought := ctx.LocalUint(account, keyBought)
	ctx.SetGlobalUint(keyTotalSold, ctx.GlobalUint(keyTotalSold)-sold)
	ctx.SetGlobalUint(keyTotalBought, ctx.GlobalUint(keyTotalBought)-bought)
	if err := ctx.SetLocalUint(account, keySold, 0); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(account, keyBought, 0); err != nil {
		return err
	}
	ctx.Emit(events.NewStoreReset(account))
	return nil
}

// record applies one settlement to the counters. Both parties must hold
// local state here; a missing opt-in rejects the whole group.
func (Contract) record(ctx *chain.Context, direction string, seller, buyer types.Address, amount uint64) error {
	if err := ctx.SetLocalUint(seller, keySold, ctx.LocalUint(seller, keySold)+amount); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(buyer, keyBought, ctx.LocalUint(buyer, keyBought)+amount); err != nil {
		return err
	}
	ctx.SetGlobalUint(keyTotalSold, ctx.GlobalUint(keyTotalSold)+amount)
	ctx.SetGlobalUint(keyTotalBought, ctx.GlobalUint(keyTotalBought)+amount)
	ctx.Emit(events.NewStoreRecorded(direction, seller, buyer, new(big.Int).SetUint64(amount)))
	return nil
}

// buy mirrors a trade settlement: caller is the buyer, the named account the
// seller. The recorded amount is the buyer's payment minus the fee headroom.
func (c Contract) buy(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	tradeApp := ctx.GlobalUint(keyTradeApp)
	tradeAddr, ok := ctx.AppAddressOf(tradeApp)
	if !ok {
		return errBadBuy
	}
	pay := ctx.Gtxn(idx - 2)
	amount, err := guard.Payment(pay, tradeAddr)
	if err != nil || pay.Sender != txn.Sender {
		return errBadBuy
	}

	accept := ctx.Gtxn(idx - 1)
	if err := guard.AppCallTo(accept, tradeApp); err != nil {
		return errBadBuy
	}
	if accept.Sender != txn.Sender {
		return errBadBuy
	}
	if accept.NumArgs() != 2 || accept.Method() != "accept" || accept.ArgUint(1) == 0 {
		return errBadBuy
	}
	if accept.NumAccounts() != 4 || txn.NumAccounts() != 1 {
		return errBadBuy
	}
	seller := txn.Account(1)
	if accept.Account(1) != seller {
		return errBadBuy
	}

	price, err := guard.Uint64(new(big.Int).Sub(amount, guard.MinFeeTimes(ctx, 4)))
	if err != nil || price == 0 {
		return errBadBuy
	}
	return c.record(ctx, "buy", seller, txn.Sender, price)
}

// sell mirrors a bid settlement: caller is the seller, the named account the
// bidder. The recorded amount is the bid price carried on the accept call.
func (c Contract) sell(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	xfer := ctx.Gtxn(idx - 2)
	if xfer == nil || xfer.Type != types.TxAssetTransfer {
		return errBadSell
	}

	bidApp := ctx.GlobalUint(keyBidApp)
	accept := ctx.Gtxn(idx - 1)
	if err := guard.AppCallTo(accept, bidApp); err != nil {
		return errBadSell
	}
	if accept.Sender != txn.Sender {
		return errBadSell
	}
	if accept.NumArgs() != 2 || accept.Method() != "accept" || accept.ArgUint(1) == 0 {
		return errBadSell
	}
	if accept.NumAccounts() != 4 || txn.NumAccounts() != 1 {
		return errBadSell
	}
	bidder := txn.Account(1)
	if accept.Account(1) != bidder {
		return errBadSell
	}
	return c.record(ctx, "sell", txn.Sender, bidder, accept.ArgUint(1))
}

// auction mirrors an auction settlement. The lead bid is read from the slot's
// state under the auction app; a close with no bids records nothing.
func (c Contract) auction(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()

	auctionApp := ctx.GlobalUint(keyAuctionApp)
	if txn.NumApplications() != 1 || txn.Application(1) != auctionApp {
		return errBadAuction
	}
	if txn.NumAccounts() != 2 {
		return errBadAuction
	}
	lead := txn.Account(1)
	slot := txn.Account(2)

	leadAddr := ctx.LocalAddressOf(auctionApp, slot, auctionLeadAddrKey)
	leadPrice := ctx.LocalUintOf(auctionApp, slot, auctionLeadPriceKey)
	if leadAddr.IsZero() || leadPrice == 0 {
		return nil
	}

	closeCall := ctx.Gtxn(idx - 1)
	if err := guard.AppCallTo(closeCall, auctionApp); err != nil {
		return errBadAuction
	}
	if closeCall.Sender != txn.Sender {
		return errBadAuction
	}
	if closeCall.NumArgs() != 1 || closeCall.Method() != "close" {
		return errBadAuction
	}
	if closeCall.NumAccounts() != 4 {
		return errBadAuction
	}
	if closeCall.Account(2) != lead || leadAddr != lead {
		return errBadAuction
	}
	if closeCall.Account(1) != slot {
		return errBadAuction
	}
	return c.record(ctx, "auction", txn.Sender, lead, leadPrice)
}
