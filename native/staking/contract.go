package staking

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/guard"
)

// Global state: the staked token, the store app, the epoch lock time and the
// per-epoch distribution snapshot.
const (
	keyToken    = "TK_ID"
	keyStoreApp = "SA_ID"
	keyLockTime = "PTL"
	keyWeekPot  = "DAA"
	keyWeekTotg = "WTTA"
)

// Per-account local state. The epoch marker records which lock window the
// week-stake counter belongs to; a counter from an earlier window no longer
// reduces the claim.
const (
	keyStaked       = "TA"
	keyLastClaimed  = "CDT"
	keyWeekWithdraw = "WWA"
	keyWeekStake    = "WSA"
	keyStakeEpoch   = "WSE"
)

const (
	// Stake credits carry the token's 0.2% transfer tax.
	stakeCreditNum = 9_980
	stakeCreditDen = 10_000

	epochSeconds = 7 * 86_400

	// Fixed allowance subtracted from every claim, covering the round of
	// fees the claim group spends.
	claimFeeAllowance = 201_000
)

var (
	errBadCreate    = errors.New("staking: create expects the staked token and the store app")
	errNotCreator   = errors.New("staking: caller is not the deployer")
	errBadTimelock  = errors.New("staking: malformed timelock call")
	errBadStake     = errors.New("staking: malformed stake group")
	errBadWithdraw  = errors.New("staking: malformed withdraw")
	errOverdrawn    = errors.New("staking: withdraw exceeds staked amount")
	errBadClaim     = errors.New("staking: malformed claim")
	errPotRange     = errors.New("staking: epoch pot exceeds the distributable range")
	errNothingDue   = errors.New("staking: no reward due")
	errClaimedEpoch = errors.New("staking: already claimed this epoch")
	errBadRollover  = errors.New("staking: malformed rollover")
	errUnknownCall  = errors.New("staking: unknown method")
)

// Contract distributes the marketplace's staking cut. Stakers lock the token;
// once per weekly epoch the accumulated base-currency pot is snapshotted and
// claims pay out pro rata against the snapshot.
type Contract struct{}

var _ chain.AppLogic = Contract{}

func (Contract) Create(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.NumAssets() != 1 || txn.NumApplications() != 1 {
		return errBadCreate
	}
	ctx.SetGlobalUint(keyToken, txn.Asset(0))
	ctx.SetGlobalUint(keyStoreApp, txn.Application(1))
	return nil
}

func (c Contract) Call(ctx *chain.Context) error {
	switch ctx.Txn().Method() {
	case "setup":
		return c.setup(ctx)
	case "set_timelock":
		return c.setTimelock(ctx)
	case "stake":
		return c.stake(ctx)
	case "withdraw":
		return c.withdraw(ctx)
	case "claim":
		return c.claim(ctx)
	case "rollover":
		return c.rollover(ctx)
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

// setup opts the custodial address into the staked token and starts the
// first epoch.
func (Contract) setup(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.Sender != ctx.CreatorAddress() {
		return errNotCreator
	}
	if txn.NumAssets() != 1 || txn.Asset(0) != ctx.GlobalUint(keyToken) {
		return errBadCreate
	}
	if _, held := ctx.AssetHolding(ctx.AppAddress(), txn.Asset(0)); !held {
		if err := ctx.OptInAsset(txn.Asset(0)); err != nil {
			return err
		}
	}
	ctx.SetGlobalUint(keyLockTime, uint64(ctx.LatestTimestamp()))
	return nil
}

func (Contract) setTimelock(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.Sender != ctx.CreatorAddress() {
		return errNotCreator
	}
	if txn.NumArgs() != 2 {
		return errBadTimelock
	}
	ctx.SetGlobalUint(keyLockTime, txn.ArgUint(1))
	return nil
}

// stake records a deposit: the preceding transfer moves the token into
// custody and the staker is credited net of the transfer tax.
func (Contract) stake(ctx *chain.Context) error {
	txn := ctx.Txn()
	if err := guard.Size(ctx, 2); err != nil {
		return errBadStake
	}
	assetID, amount, err := guard.AssetTransfer(ctx.Gtxn(0), ctx.AppAddress())
	if err != nil || ctx.Gtxn(0).Sender != txn.Sender {
		return errBadStake
	}
	if assetID != ctx.GlobalUint(keyToken) {
		return errBadStake
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) == 0 || txn.ArgUint(1) != amount {
		return errBadStake
	}
	pooled := new(big.Int).Add(ctx.Gtxn(0).FeeOrZero(), txn.FeeOrZero())
	if pooled.Cmp(guard.MinFeeTimes(ctx, 4)) < 0 {
		return errBadStake
	}

	wide := new(big.Int).SetUint64(amount)
	wide.Mul(wide, big.NewInt(stakeCreditNum))
	wide.Quo(wide, big.NewInt(stakeCreditDen))
	credited := wide.Uint64()
	staker := txn.Sender
	lock := ctx.GlobalUint(keyLockTime)
	weekStake := ctx.LocalUint(staker, keyWeekStake)
	if ctx.LocalUint(staker, keyStakeEpoch) != lock {
		weekStake = 0
	}
	if err := ctx.SetLocalUint(staker, keyStaked, ctx.LocalUint(staker, keyStaked)+credited); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(staker, keyWeekStake, weekStake+credited); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(staker, keyStakeEpoch, lock); err != nil {
		return err
	}
	ctx.Emit(events.NewStakeChanged(staker, ctx.LocalUint(staker, keyStaked)))
	return nil
}

// withdraw returns staked tokens. The contract sends the token back itself;
// withdrawn amounts are tracked so the current epoch's claim excludes them.
func (Contract) withdraw(ctx *chain.Context) error {
	txn := ctx.Txn()
	if err := guard.FeeAtLeast(ctx, txn, 2); err != nil {
		return errBadWithdraw
	}
	if txn.NumArgs() != 2 || txn.ArgUint(1) == 0 {
		return errBadWithdraw
	}
	amount := txn.ArgUint(1)
	staker := txn.Sender
	staked := ctx.LocalUint(staker, keyStaked)
	if amount > staked {
		return errOverdrawn
	}
	if err := ctx.SendAsset(staker, ctx.GlobalUint(keyToken), amount); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(staker, keyWeekWithdraw, ctx.LocalUint(staker, keyWeekWithdraw)+amount); err != nil {
		return err
	}
	if err := ctx.SetLocalUint(staker, keyStaked, staked-amount); err != nil {
		return err
	}
	ctx.Emit(events.NewStakeChanged(staker, staked-amount))
	return nil
}

// claim pays the caller's share of the epoch pot. The first claim after the
// lock expires rolls the epoch: it snapshots the distributable balance and
// the total staked supply, then restarts the lock.
func (c Contract) claim(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.NumAssets() != 1 || txn.Asset(0) != ctx.GlobalUint(keyToken) {
		return errBadClaim
	}
	staker := txn.Sender
	staked := ctx.LocalUint(staker, keyStaked)
	if staked == 0 {
		return errBadClaim
	}
	if ctx.GlobalUint(keyLockTime) <= ctx.LocalUint(staker, keyLastClaimed) {
		return errClaimedEpoch
	}

	now := uint64(ctx.LatestTimestamp())
	if now >= ctx.GlobalUint(keyLockTime)+epochSeconds {
		pot := new(big.Int).Sub(ctx.Balance(ctx.AppAddress()), ctx.MinBalance())
		if pot.Sign() < 0 {
			pot.SetInt64(0)
		}
		snapshot, err := guard.Uint64(pot)
		if err != nil {
			return errPotRange
		}
		total, _ := ctx.AssetHolding(ctx.AppAddress(), ctx.GlobalUint(keyToken))
		ctx.SetGlobalUint(keyWeekPot, snapshot)
		ctx.SetGlobalUint(keyWeekTotg, total)
		ctx.SetGlobalUint(keyLockTime, now)
	}

	weekTotal := ctx.GlobalUint(keyWeekTotg)
	if weekTotal == 0 {
		return errNothingDue
	}
	weekStake := ctx.LocalUint(staker, keyWeekStake)
	if ctx.LocalUint(staker, keyStakeEpoch) != ctx.GlobalUint(keyLockTime) {
		weekStake = 0
	}
	if weekStake >= staked {
		return errNothingDue
	}
	eligible := staked - weekStake
	share := new(big.Int).SetUint64(eligible)
	share.Mul(share, new(big.Int).SetUint64(ctx.GlobalUint(keyWeekPot)))
	share.Quo(share, new(big.Int).SetUint64(weekTotal))
	share.Sub(share, big.NewInt(claimFeeAllowance))
	if share.Sign() <= 0 {
		return errNothingDue
	}
	if err := ctx.SendPayment(staker, share); err != nil {
		return err
	}

	if err := ctx.SetLocalUint(staker, keyLastClaimed, ctx.GlobalUint(keyLockTime)); err != nil {
		return err
	}
	ctx.SetLocalUint(staker, keyWeekWithdraw, 0)
	ctx.SetLocalUint(staker, keyWeekStake, 0)
	ctx.Emit(events.NewRewardClaimed(staker, share))
	return nil
}

// rollover lets the deployer zero one account's aggregate trading counters
// at an epoch boundary. The store only accepts the reset from this app's
// custodial address, so the call goes through as an inner operation.
func (Contract) rollover(ctx *chain.Context) error {
	txn := ctx.Txn()
	if txn.Sender != ctx.CreatorAddress() {
		return errNotCreator
	}
	if txn.NumAccounts() != 1 {
		return errBadRollover
	}
	return ctx.CallApp(ctx.GlobalUint(keyStoreApp),
		[][]byte{[]byte("reset")},
		[]types.Address{txn.Account(1)},
		nil)
}
