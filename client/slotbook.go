package client

import (
	"encoding/binary"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"

	"nftmarket/core/types"
)

var slotsBucket = []byte("slots")

const (
	slotFree byte = iota
	slotBusy
)

// SlotBook is the per-owner index of slot accounts, keyed by application.
// The on-disk copy survives restarts; Scan reconciles it with the chain so
// slots provisioned out of band become visible.
type SlotBook struct {
	db    *bolt.DB
	owner types.Address
}

// OpenSlotBook opens (or creates) the slot index at path for one owner.
func OpenSlotBook(path string, owner types.Address) (*SlotBook, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &SlotBook{db: db, owner: owner}, nil
}

func (b *SlotBook) Close() error { return b.db.Close() }

// Owner returns the address the book's slots are rekeyed to.
func (b *SlotBook) Owner() types.Address { return b.owner }

func appKey(appID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, appID)
	return buf
}

// Slots returns every recorded slot for appID with its busy flag.
func (b *SlotBook) Slots(appID uint64) (map[types.Address]bool, error) {
	out := make(map[types.Address]bool)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(slotsBucket).Bucket(appKey(appID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			if len(k) != types.AddressLength || len(v) != 1 {
				return nil
			}
			out[types.BytesToAddress(k)] = v[0] == slotBusy
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *SlotBook) setStatus(appID uint64, slot types.Address, status byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(slotsBucket).CreateBucketIfNotExists(appKey(appID))
		if err != nil {
			return err
		}
		return bucket.Put(slot.Bytes(), []byte{status})
	})
}

// Release marks a slot reusable after its entry closed.
func (b *SlotBook) Release(appID uint64, slot types.Address) error {
	return b.setStatus(appID, slot, slotFree)
}

// Acquire returns a free recorded slot, or provisions a fresh one: generate a
// keypair, fund it with the minimum balance plus the app opt-in cost, rekey it
// to the owner, and opt it into the app. Provisioning is one atomic group; a
// rejection leaves no partial slot behind.
func (b *SlotBook) Acquire(net Network, appID uint64) (types.Address, error) {
	var reuse types.Address
	var found bool
	if err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(slotsBucket).Bucket(appKey(appID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			if !found && len(k) == types.AddressLength && len(v) == 1 && v[0] == slotFree {
				reuse = types.BytesToAddress(k)
				found = true
			}
			return nil
		})
	}); err != nil {
		return types.ZeroAddress, err
	}
	if found {
		return reuse, b.setStatus(appID, reuse, slotBusy)
	}

	acct, err := NewAccount()
	if err != nil {
		return types.ZeroAddress, err
	}
	p := net.Params()
	fund := new(big.Int).Add(p.MinBalance, p.AppOptInCost)
	group := types.Group{
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   b.owner,
			Receiver: acct.Address,
			Amount:   fund,
			Fee:      new(big.Int).Mul(p.MinFee, big.NewInt(3)),
		},
		&types.Transaction{
			Type:     types.TxPayment,
			Sender:   acct.Address,
			Receiver: acct.Address,
			Amount:   big.NewInt(0),
			RekeyTo:  b.owner,
			Fee:      big.NewInt(0),
		},
		&types.Transaction{
			Type:       types.TxAppCall,
			Sender:     acct.Address,
			SignedBy:   b.owner,
			AppID:      appID,
			OnComplete: types.OcOptIn,
			Fee:        big.NewInt(0),
		},
	}
	if err := net.Submit(group); err != nil {
		return types.ZeroAddress, err
	}
	return acct.Address, b.setStatus(appID, acct.Address, slotBusy)
}

// Scan reconciles the book with the chain: every account opted into appID
// whose signing authority is the owner becomes a recorded slot. inUse reports
// whether a slot's local state holds an open entry; nil treats every
// discovered slot as free.
func (b *SlotBook) Scan(net Network, appID uint64, inUse func(local map[string][]byte) bool) error {
	known, err := b.Slots(appID)
	if err != nil {
		return err
	}
	for _, addr := range net.OptedInAccounts(appID) {
		if _, ok := known[addr]; ok {
			continue
		}
		snap, ok := net.AccountSnapshot(addr)
		if !ok || snap.AuthAddr != b.owner {
			continue
		}
		status := slotFree
		if inUse != nil {
			local, _ := net.AppLocalState(appID, addr)
			if inUse(local) {
				status = slotBusy
			}
		}
		if err := b.setStatus(appID, addr, status); err != nil {
			return err
		}
	}
	return nil
}
