package client

import (
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/types"
	"nftmarket/native/auction"
	"nftmarket/native/bidding"
	"nftmarket/native/staking"
	"nftmarket/native/store"
	"nftmarket/native/swapmarket"
	"nftmarket/native/trade"
)

// Deployment records the app IDs of one full marketplace deployment.
type Deployment struct {
	Store   uint64
	Trade   uint64
	Bid     uint64
	Auction uint64
	Swap    uint64
	Staking uint64
}

// Deploy creates and wires the whole marketplace: the accounting store, the
// three market contracts, the swap exchange and the reward distributor. The
// market contracts reference the store and the two fee sinks at creation; the
// store's setup registers them back, and the distributor's setup funds its
// custody and starts the first epoch.
func Deploy(ledger *chain.Ledger, creator, stakingAddr, teamAddr types.Address, stakeToken uint64) (Deployment, error) {
	var d Deployment
	var err error

	d.Store, err = ledger.CreateApp(creator, store.Contract{}, nil, nil, nil, nil)
	if err != nil {
		return Deployment{}, err
	}
	sinks := []types.Address{stakingAddr, teamAddr}
	d.Trade, err = ledger.CreateApp(creator, trade.Contract{}, nil, sinks, []uint64{d.Store}, nil)
	if err != nil {
		return Deployment{}, err
	}
	d.Bid, err = ledger.CreateApp(creator, bidding.Contract{}, nil, sinks, []uint64{d.Store}, nil)
	if err != nil {
		return Deployment{}, err
	}
	d.Auction, err = ledger.CreateApp(creator, auction.Contract{}, nil, sinks, []uint64{d.Store}, nil)
	if err != nil {
		return Deployment{}, err
	}
	d.Swap, err = ledger.CreateApp(creator, swapmarket.Contract{}, nil, sinks, nil, nil)
	if err != nil {
		return Deployment{}, err
	}
	d.Staking, err = ledger.CreateApp(creator, staking.Contract{}, nil, nil, []uint64{d.Store}, []uint64{stakeToken})
	if err != nil {
		return Deployment{}, err
	}

	p := ledger.Params()
	register := types.Group{&types.Transaction{
		Type:        types.TxAppCall,
		Sender:      creator,
		AppID:       d.Store,
		Args:        [][]byte{[]byte("setup")},
		ForeignApps: []uint64{d.Trade, d.Bid, d.Auction, d.Staking},
		Fee:         new(big.Int).Set(p.MinFee),
	}}
	if err := ledger.Submit(register); err != nil {
		return Deployment{}, err
	}

	custody, _ := ledger.AppAddress(d.Staking)
	fund := new(big.Int).Add(p.MinBalance, p.AssetMinBalance)
	distSetup := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   creator,
			Receiver: custody,
			Amount:   fund,
			Fee:      new(big.Int).Set(p.MinFee),
		},
		&types.Transaction{
			Type:          types.TxAppCall,
			Sender:        creator,
			AppID:         d.Staking,
			Args:          [][]byte{[]byte("setup")},
			ForeignAssets: []uint64{stakeToken},
			Fee:           new(big.Int).Set(p.MinFee),
		},
	}
	if err := ledger.Submit(distSetup); err != nil {
		return Deployment{}, err
	}
	return d, nil
}
