package client_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/chain"
	"nftmarket/client"
	"nftmarket/core/types"
)

type marketFixture struct {
	ledger *chain.Ledger
	market *client.Market
	ids    client.Deployment
	now    int64

	creator     types.Address
	seller      types.Address
	buyer       types.Address
	stakingSink types.Address
	teamSink    types.Address

	stakeToken uint64
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	f := &marketFixture{
		ledger:      chain.NewLedger(chain.DefaultParams()),
		now:         1_000_000,
		creator:     addr(1),
		seller:      addr(2),
		buyer:       addr(3),
		stakingSink: addr(8),
		teamSink:    addr(9),
	}
	f.ledger.SetNowFunc(func() int64 { return f.now })
	for _, a := range []types.Address{f.creator, f.seller, f.buyer} {
		f.ledger.Fund(a, big.NewInt(50_000_000))
	}
	f.stakeToken = f.ledger.CreateAsset(f.creator, 1_000_000, "STK")

	var err error
	f.ids, err = client.Deploy(f.ledger, f.creator, f.stakingSink, f.teamSink, f.stakeToken)
	require.NoError(t, err)
	f.market, err = client.NewMarket(f.ledger, f.ids)
	require.NoError(t, err)

	require.NoError(t, f.market.OptIntoStore(f.seller))
	require.NoError(t, f.market.OptIntoStore(f.buyer))
	return f
}

func (f *marketFixture) storeTotalSold(t *testing.T) uint64 {
	t.Helper()
	global, ok := f.ledger.AppGlobalState(f.ids.Store)
	require.True(t, ok)
	return types.Uint64FromBytes(global["TSA"])
}

func TestNewMarketUnknownApp(t *testing.T) {
	f := newMarketFixture(t)
	bad := f.ids
	bad.Swap = 9_999
	_, err := client.NewMarket(f.ledger, bad)
	require.ErrorIs(t, err, client.ErrUnknownApp)
}

func TestTradeFlow(t *testing.T) {
	f := newMarketFixture(t)
	nft := f.ledger.CreateAsset(f.seller, 5, "ART")
	require.NoError(t, f.market.SetupTradeAsset(f.creator, nft))
	require.NoError(t, f.market.OptIntoAsset(f.buyer, nft))

	book := openBook(t, f.seller)
	slot, err := book.Acquire(f.ledger, f.ids.Trade)
	require.NoError(t, err)

	require.NoError(t, f.market.PlaceListing(f.seller, slot, nft, 2, 50_000))
	local, ok := f.ledger.AppLocalState(f.ids.Trade, slot)
	require.True(t, ok)
	require.True(t, client.TradeSlotBusy(local))

	sellerBefore := f.ledger.Balance(f.seller)
	require.NoError(t, f.market.AcceptListing(f.buyer, slot))

	held, _ := f.ledger.AssetBalance(f.buyer, nft)
	require.EqualValues(t, 2, held)
	gain := new(big.Int).Sub(f.ledger.Balance(f.seller), sellerBefore)
	require.EqualValues(t, 48_500, gain.Int64(), "seller collects 97 percent of the price")
	require.EqualValues(t, 750, f.ledger.Balance(f.teamSink).Int64())
	require.EqualValues(t, 750, f.ledger.Balance(f.stakingSink).Int64())
	require.EqualValues(t, 50_000, f.storeTotalSold(t))

	// The slot is empty again and can go back into rotation.
	require.ErrorIs(t, f.market.AcceptListing(f.buyer, slot), client.ErrNoOpenEntry)
	require.NoError(t, book.Release(f.ids.Trade, slot))
	again, err := book.Acquire(f.ledger, f.ids.Trade)
	require.NoError(t, err)
	require.Equal(t, slot, again)

	// Epoch maintenance zeroes the seller's counters through the distributor.
	require.NoError(t, f.market.RolloverAccount(f.creator, f.seller))
	require.EqualValues(t, 0, f.storeTotalSold(t))
}

func TestBidFlow(t *testing.T) {
	f := newMarketFixture(t)
	nft := f.ledger.CreateAsset(f.seller, 5, "ART")
	require.NoError(t, f.market.SetupBidAsset(f.creator, nft))
	require.NoError(t, f.market.OptIntoAsset(f.buyer, nft))

	book := openBook(t, f.buyer)
	slot, err := book.Acquire(f.ledger, f.ids.Bid)
	require.NoError(t, err)

	require.NoError(t, f.market.PlaceBid(f.buyer, slot, nft, 1, 10_000))

	sellerBefore := f.ledger.Balance(f.seller)
	require.NoError(t, f.market.AcceptBid(f.seller, slot))

	held, _ := f.ledger.AssetBalance(f.buyer, nft)
	require.EqualValues(t, 1, held)
	// 9700 split gain minus the 3000 in group fees the seller pays.
	gain := new(big.Int).Sub(f.ledger.Balance(f.seller), sellerBefore)
	require.EqualValues(t, 9_700-3_000, gain.Int64())
	require.EqualValues(t, 10_000, f.storeTotalSold(t))

	require.ErrorIs(t, f.market.CancelBid(f.buyer, slot), client.ErrNoOpenEntry)
}

func TestAuctionFlow(t *testing.T) {
	f := newMarketFixture(t)
	nft := f.ledger.CreateAsset(f.seller, 1, "ART")
	require.NoError(t, f.market.OptIntoAsset(f.buyer, nft))

	book := openBook(t, f.seller)
	slot, err := book.Acquire(f.ledger, f.ids.Auction)
	require.NoError(t, err)

	terms := client.AuctionTerms{
		Start:     uint64(f.now) + 100,
		End:       uint64(f.now) + 1_000,
		Reserve:   10_000,
		Increment: 1_000,
	}
	require.NoError(t, f.market.OpenAuction(f.seller, slot, nft, 1, terms))

	// The window is closed until the start time.
	require.ErrorIs(t, f.market.PlaceAuctionBid(f.buyer, slot, 16_000), chain.ErrRejected)

	f.now += 200
	require.NoError(t, f.market.PlaceAuctionBid(f.buyer, slot, 16_000))

	f.now += 2_000
	sellerBefore := f.ledger.Balance(f.seller)
	require.NoError(t, f.market.CloseAuction(f.seller, slot))

	held, _ := f.ledger.AssetBalance(f.buyer, nft)
	require.EqualValues(t, 1, held)
	// 15520 split gain minus the 2000 in close group fees.
	gain := new(big.Int).Sub(f.ledger.Balance(f.seller), sellerBefore)
	require.EqualValues(t, 15_520-2_000, gain.Int64())
	require.EqualValues(t, 16_000, f.storeTotalSold(t))
}

func TestSwapFlow(t *testing.T) {
	f := newMarketFixture(t)
	assetA := f.ledger.CreateAsset(f.seller, 10, "AAA")
	assetB := f.ledger.CreateAsset(f.buyer, 10, "BBB")
	require.NoError(t, f.market.SetupSwapAssets(f.creator, []uint64{assetA, assetB}))
	require.NoError(t, f.market.OptIntoAsset(f.seller, assetB))
	require.NoError(t, f.market.OptIntoAsset(f.buyer, assetA))

	book := openBook(t, f.seller)
	slot, err := book.Acquire(f.ledger, f.ids.Swap)
	require.NoError(t, err)

	require.NoError(t, f.market.PlaceOffer(f.seller, slot, assetA, 3, assetB, 4))
	require.NoError(t, f.market.AcceptOffer(f.buyer, slot))

	heldA, _ := f.ledger.AssetBalance(f.buyer, assetA)
	require.EqualValues(t, 3, heldA)
	heldB, _ := f.ledger.AssetBalance(f.seller, assetB)
	require.EqualValues(t, 4, heldB)
	require.EqualValues(t, 0, f.storeTotalSold(t), "swaps do not touch the accounting store")
}

func TestStakingFlow(t *testing.T) {
	f := newMarketFixture(t)
	require.NoError(t, f.market.OptIntoStaking(f.seller))
	require.NoError(t, f.market.OptIntoAsset(f.seller, f.stakeToken))
	grant := types.Group{&types.Transaction{
		Type:          types.TxAssetTransfer,
		Sender:        f.creator,
		AssetReceiver: f.seller,
		AssetID:       f.stakeToken,
		AssetAmount:   200_000,
		Fee:           big.NewInt(1_000),
	}}
	require.NoError(t, f.ledger.Submit(grant))

	require.NoError(t, f.market.Stake(f.seller, 100_000))
	require.EqualValues(t, 99_800, f.market.StakedBalance(f.seller).Int64())

	require.NoError(t, f.market.WithdrawStake(f.seller, 40_000))
	require.EqualValues(t, 59_800, f.market.StakedBalance(f.seller).Int64())

	// Nothing distributable until the first epoch rolls.
	require.ErrorIs(t, f.market.ClaimRewards(f.seller), chain.ErrRejected)

	custody, _ := f.ledger.AppAddress(f.ids.Staking)
	pot := types.Group{&types.Transaction{
		Type:     types.TxPayment,
		Sender:   f.creator,
		Receiver: custody,
		Amount:   big.NewInt(1_000_000),
		Fee:      big.NewInt(1_000),
	}}
	require.NoError(t, f.ledger.Submit(pot))

	f.now += 7*86_400 + 10
	before := f.ledger.Balance(f.seller)
	require.NoError(t, f.market.ClaimRewards(f.seller))
	gain := new(big.Int).Sub(f.ledger.Balance(f.seller), before)
	// Pot 1.1M over 60000 staked tokens for a 59800 stake, minus the claim
	// allowance and the call fee.
	require.EqualValues(t, 895_333-1_000, gain.Int64())
}
