package swapmarket

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/guard"
)

const (
	keyStaking = "SA_ADDR"
	keyTeam    = "TW_ADDR"
)

// Per-slot local state: the offered asset held in escrow and the asset the
// offerer wants back.
const (
	keyOfferer      = "O_ADDR"
	keyOfferToken   = "O_TKID"
	keyOfferAmount  = "O_AMT"
	keyAcceptToken  = "A_TKID"
	keyAcceptAmount = "A_AMT"
)

var (
	errBadCreate    = errors.New("swapmarket: create expects staking and team references")
	errBadSetup     = errors.New("swapmarket: malformed setup group")
	errBadSwap      = errors.New("swapmarket: malformed swap group")
	errBadCancel    = errors.New("swapmarket: malformed cancel")
	errBadAccept    = errors.New("swapmarket: malformed accept group")
	errNotOpen      = errors.New("swapmarket: no open offer for account on slot")
	errNotCreator   = errors.New("swapmarket: caller is not the deployer")
	errUnknownCall  = errors.New("swapmarket: unknown method")
	errEscrowMissed = errors.New("swapmarket: escrowed asset not held")
)

// Contract is the asset-for-asset exchange: no payments change hands at
// settlement and nothing is reported to the accounting ledger.
type Contract struct{}

var _ chain.AppLogic = Contract{}

func (Contract) Create(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.NumAccounts() != 2 {
		return errBadCreate
	}
	ctx.SetGlobalAddress(keyStaking, txn.Account(1))
	ctx.SetGlobalAddress(keyTeam, txn.Account(2))
	return nil
}

func (c Contract) Call(ctx *chain.Context) error {
	switch ctx.Txn().Method() {
	case "setup":
		return c.setup(ctx)
	case "swap":
		return c.swap(ctx)
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

// setup opts the custodial address into every named asset; the funding
// payment must cover the raised minimum balance for all of them.
func (c Contract) setup(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	amount, err := guard.Payment(ctx.Gtxn(idx-1), ctx.AppAddress())
	if err != nil || ctx.Gtxn(idx-1).Sender != txn.Sender {
		return errBadSetup
	}
	if txn.NumAssets() < 1 {
		return errBadSetup
	}
	perAsset := new(big.Int).Add(ctx.MinFee(), ctx.AssetMinBalance())
	need := new(big.Int).Mul(perAsset, big.NewInt(int64(txn.NumAssets())))
	if amount.Cmp(need) < 0 {
		return errBadSetup
	}
	for i := 0; i < txn.NumAssets(); i++ {
		if _, held := ctx.AssetHolding(ctx.AppAddress(), txn.Asset(i)); held {
			continue
		}
		if err := ctx.OptInAsset(txn.Asset(i)); err != nil {
			return err
		}
	}
	return nil
}

// swap opens (or replaces) an offer: the preceding transfer escrows the
// offered asset, the arguments name the wanted asset and amount.
func (c Contract) swap(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	xferAsset, xferAmount, err := guard.AssetTransfer(ctx.Gtxn(idx-1), ctx.AppAddress())
	if err != nil || xferAsset == 0 || xferAmount == 0 {
		return errBadSwap
	}
	if txn.NumAccounts() != 1 {
		return errBadSwap
	}
	if txn.NumAssets() < 2 || txn.Asset(0) == 0 || txn.Asset(1) == 0 {
		return errBadSwap
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) == 0 {
		return errBadSwap
	}
	slot := txn.Account(1)
	offerer := txn.Sender
	replaced := c.isOpen(ctx, offerer, slot)
	if replaced {
		// Replacing returns the old escrow, which costs an extra inner
		// transfer.
		if err := guard.FeeAtLeast(ctx, txn, 2); err != nil {
			return errBadSwap
		}
		if err := c.returnEscrow(ctx, offerer, slot); err != nil {
			return err
		}
	}
	if err := ctx.SetLocalAddress(slot, keyOfferer, offerer); err != nil {
		return err
	}
	ctx.SetLocalUint(slot, keyOfferToken, txn.Asset(0))
	ctx.SetLocalUint(slot, keyOfferAmount, xferAmount)
	ctx.SetLocalUint(slot, keyAcceptToken, txn.Asset(1))
	ctx.SetLocalUint(slot, keyAcceptAmount, txn.ArgUint(1))
	ctx.Emit(events.NewListingPlaced("swap", offerer, slot, txn.Asset(0), xferAmount, replaced))
	return nil
}

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
	if txn.NumAssets() != 1 || txn.Asset(0) != ctx.LocalUint(slot, keyOfferToken) {
		return errBadCancel
	}
	if err := c.returnEscrow(ctx, txn.Sender, slot); err != nil {
		return err
	}
	c.closeOffer(ctx, slot)
	ctx.Emit(events.NewListingCancelled("swap", txn.Sender, slot))
	return nil
}

// accept settles the exchange: the caller's transfer of the wanted asset
// precedes this call; the offered asset goes to the caller and the wanted
// asset to the offerer.
func (c Contract) accept(ctx *chain.Context) error {
	txn := ctx.Txn()
	idx := ctx.GroupIndex()
	if err := guard.FeeAtLeast(ctx, txn, 3); err != nil {
		return errBadAccept
	}
	_, xferAmount, err := guard.AssetTransfer(ctx.Gtxn(idx-1), ctx.AppAddress())
	if err != nil || xferAmount == 0 {
		return errBadAccept
	}
	if txn.NumAccounts() != 4 {
		return errBadAccept
	}
	offerer := txn.Account(1)
	slot := txn.Account(2)
	if txn.Account(3) != ctx.GlobalAddress(keyStaking) || txn.Account(4) != ctx.GlobalAddress(keyTeam) {
		return errBadAccept
	}
	if !c.isOpen(ctx, offerer, slot) {
		return errNotOpen
	}
	if txn.NumAssets() != 2 {
		return errBadAccept
	}
	if txn.Asset(0) != ctx.LocalUint(slot, keyOfferToken) || txn.Asset(1) != ctx.LocalUint(slot, keyAcceptToken) {
		return errBadAccept
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) != ctx.LocalUint(slot, keyOfferAmount) {
		return errBadAccept
	}
	if xferAmount != ctx.LocalUint(slot, keyAcceptAmount) {
		return errBadAccept
	}

	offerToken := ctx.LocalUint(slot, keyOfferToken)
	offerAmount := ctx.LocalUint(slot, keyOfferAmount)
	if err := ctx.SendAsset(txn.Sender, offerToken, offerAmount); err != nil {
		return err
	}
	if err := ctx.SendAsset(offerer, ctx.LocalUint(slot, keyAcceptToken), ctx.LocalUint(slot, keyAcceptAmount)); err != nil {
		return err
	}
	c.closeOffer(ctx, slot)
	ctx.Emit(events.NewListingSettled("swap", offerer, txn.Sender, slot, offerToken, offerAmount, nil))
	return nil
}

func (Contract) isOpen(ctx *chain.Context, account, slot types.Address) bool {
	if ctx.LocalUint(slot, keyOfferToken) == 0 ||
		ctx.LocalUint(slot, keyOfferAmount) == 0 ||
		ctx.LocalUint(slot, keyAcceptToken) == 0 ||
		ctx.LocalUint(slot, keyAcceptAmount) == 0 {
		return false
	}
	return ctx.LocalAddress(slot, keyOfferer) == account
}

func (Contract) returnEscrow(ctx *chain.Context, to types.Address, slot types.Address) error {
	tokenID := ctx.LocalUint(slot, keyOfferToken)
	amount := ctx.LocalUint(slot, keyOfferAmount)
	if held, ok := ctx.AssetHolding(ctx.AppAddress(), tokenID); !ok || held < amount {
		return errEscrowMissed
	}
	return ctx.SendAsset(to, tokenID, amount)
}

func (Contract) closeOffer(ctx *chain.Context, slot types.Address) {
	ctx.SetLocalUint(slot, keyOfferToken, 0)
	ctx.SetLocalUint(slot, keyOfferAmount, 0)
	ctx.SetLocalUint(slot, keyAcceptToken, 0)
	ctx.SetLocalUint(slot, keyAcceptAmount, 0)
}
