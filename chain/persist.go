package chain

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
	"nftmarket/storage"
)

var snapshotKey = []byte("market-ledger-snapshot")

// Stored forms exist because RLP cannot encode maps; state is flattened into
// deterministically ordered slices before serialisation.

type storedPair struct {
	Key   string
	Value []byte
}

type storedHolding struct {
	AssetID uint64
	Amount  uint64
}

type storedLocal struct {
	AppID uint64
	Pairs []storedPair
}

type storedAccount struct {
	Address  []byte
	Balance  *big.Int
	Assets   []storedHolding
	Apps     []storedLocal
	AuthAddr []byte
}

type storedAsset struct {
	ID       uint64
	Creator  []byte
	Total    uint64
	UnitName string
}

type storedApp struct {
	ID      uint64
	Creator []byte
	Address []byte
	Global  []storedPair
}

type storedLedger struct {
	NextAppID   uint64
	NextAssetID uint64
	Accounts    []storedAccount
	Assets      []storedAsset
	Apps        []storedApp
}

func sortedPairs(state map[string][]byte) []storedPair {
	pairs := make([]storedPair, 0, len(state))
	for k, v := range state {
		pairs = append(pairs, storedPair{Key: k, Value: append([]byte(nil), v...)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

func pairsToMap(pairs []storedPair) map[string][]byte {
	out := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		out[p.Key] = append([]byte(nil), p.Value...)
	}
	return out
}

// Persist writes a full ledger snapshot to db. Application logic is not
// serialised; Restore re-binds it through the caller-supplied resolver.
func (l *Ledger) Persist(db storage.Database) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := storedLedger{NextAppID: l.nextAppID, NextAssetID: l.nextAssetID}

	for addr, acc := range l.accounts {
		stored := storedAccount{
			Address:  addr.Bytes(),
			Balance:  new(big.Int).Set(acc.Balance),
			AuthAddr: acc.AuthAddr.Bytes(),
		}
		for id, amt := range acc.Assets {
			stored.Assets = append(stored.Assets, storedHolding{AssetID: id, Amount: amt})
		}
		sort.Slice(stored.Assets, func(i, j int) bool { return stored.Assets[i].AssetID < stored.Assets[j].AssetID })
		for appID, state := range acc.Apps {
			stored.Apps = append(stored.Apps, storedLocal{AppID: appID, Pairs: sortedPairs(state)})
		}
		sort.Slice(stored.Apps, func(i, j int) bool { return stored.Apps[i].AppID < stored.Apps[j].AppID })
		snap.Accounts = append(snap.Accounts, stored)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool {
		return types.BytesToAddress(snap.Accounts[i].Address).Compare(types.BytesToAddress(snap.Accounts[j].Address)) < 0
	})

	for id, asset := range l.assets {
		snap.Assets = append(snap.Assets, storedAsset{
			ID:       id,
			Creator:  asset.Creator.Bytes(),
			Total:    asset.Total,
			UnitName: asset.UnitName,
		})
	}
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].ID < snap.Assets[j].ID })

	for id, app := range l.apps {
		snap.Apps = append(snap.Apps, storedApp{
			ID:      id,
			Creator: app.Creator.Bytes(),
			Address: app.Address.Bytes(),
			Global:  sortedPairs(app.Global),
		})
	}
	sort.Slice(snap.Apps, func(i, j int) bool { return snap.Apps[i].ID < snap.Apps[j].ID })

	encoded, err := rlp.EncodeToBytes(&snap)
	if err != nil {
		return fmt.Errorf("chain: encode snapshot: %w", err)
	}
	return db.Put(snapshotKey, encoded)
}

// Restore rebuilds a ledger from the snapshot stored in db. The resolver maps
// application identifiers back to their logic; a nil result rejects the
// snapshot.
func Restore(db storage.Database, params Params, resolve func(appID uint64) AppLogic) (*Ledger, error) {
	encoded, err := db.Get(snapshotKey)
	if err != nil {
		return nil, fmt.Errorf("chain: read snapshot: %w", err)
	}
	var snap storedLedger
	if err := rlp.DecodeBytes(encoded, &snap); err != nil {
		return nil, fmt.Errorf("chain: decode snapshot: %w", err)
	}

	l := NewLedger(params)
	l.nextAppID = snap.NextAppID
	l.nextAssetID = snap.NextAssetID

	for _, stored := range snap.Accounts {
		acc := types.NewAccount()
		if stored.Balance != nil {
			acc.Balance = new(big.Int).Set(stored.Balance)
		}
		acc.AuthAddr = types.BytesToAddress(stored.AuthAddr)
		for _, h := range stored.Assets {
			acc.Assets[h.AssetID] = h.Amount
		}
		for _, local := range stored.Apps {
			acc.Apps[local.AppID] = pairsToMap(local.Pairs)
		}
		l.accounts[types.BytesToAddress(stored.Address)] = acc
	}

	for _, stored := range snap.Assets {
		l.assets[stored.ID] = &AssetParams{
			Creator:  types.BytesToAddress(stored.Creator),
			Total:    stored.Total,
			UnitName: stored.UnitName,
		}
	}

	for _, stored := range snap.Apps {
		logic := resolve(stored.ID)
		if logic == nil {
			return nil, fmt.Errorf("chain: no logic for application %d", stored.ID)
		}
		l.apps[stored.ID] = &App{
			ID:      stored.ID,
			Creator: types.BytesToAddress(stored.Creator),
			Address: types.BytesToAddress(stored.Address),
			Global:  pairsToMap(stored.Global),
			Logic:   logic,
		}
	}
	return l, nil
}
