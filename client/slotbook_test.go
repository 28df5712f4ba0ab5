package client_test

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/chain"
	"nftmarket/client"
	"nftmarket/core/types"
	"nftmarket/native/store"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func openBook(t *testing.T, owner types.Address) *client.SlotBook {
	t.Helper()
	book, err := client.OpenSlotBook(filepath.Join(t.TempDir(), "slots.db"), owner)
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })
	return book
}

func newSlotLedger(t *testing.T, owner types.Address) (*chain.Ledger, uint64) {
	t.Helper()
	ledger := chain.NewLedger(chain.DefaultParams())
	ledger.Fund(owner, big.NewInt(10_000_000))
	appID, err := ledger.CreateApp(owner, store.Contract{}, nil, nil, nil, nil)
	require.NoError(t, err)
	return ledger, appID
}

func TestAcquireProvisionsSlot(t *testing.T) {
	owner := addr(1)
	ledger, appID := newSlotLedger(t, owner)
	book := openBook(t, owner)

	slot, err := book.Acquire(ledger, appID)
	require.NoError(t, err)
	require.False(t, slot.IsZero())

	snap, ok := ledger.AccountSnapshot(slot)
	require.True(t, ok)
	require.Equal(t, owner, snap.AuthAddr, "slot must be rekeyed to its owner")
	require.True(t, snap.OptedInApp(appID))
	// Funded with exactly the minimum balance plus the opt-in cost.
	require.Equal(t, int64(335_500), snap.Balance.Int64())

	slots, err := book.Slots(appID)
	require.NoError(t, err)
	require.True(t, slots[slot], "acquired slot must be recorded busy")
}

func TestReleaseAndReuse(t *testing.T) {
	owner := addr(1)
	ledger, appID := newSlotLedger(t, owner)
	book := openBook(t, owner)

	slot, err := book.Acquire(ledger, appID)
	require.NoError(t, err)
	require.NoError(t, book.Release(appID, slot))

	again, err := book.Acquire(ledger, appID)
	require.NoError(t, err)
	require.Equal(t, slot, again, "a released slot is reused before provisioning a new one")

	other, err := book.Acquire(ledger, appID)
	require.NoError(t, err)
	require.NotEqual(t, slot, other)
}

func TestScanDiscoversForeignSlots(t *testing.T) {
	owner := addr(1)
	ledger, appID := newSlotLedger(t, owner)

	// Provision through one book, then rebuild the index from scratch.
	first := openBook(t, owner)
	slot, err := first.Acquire(ledger, appID)
	require.NoError(t, err)

	rebuilt := openBook(t, owner)
	slots, err := rebuilt.Slots(appID)
	require.NoError(t, err)
	require.Empty(t, slots)

	require.NoError(t, rebuilt.Scan(ledger, appID, nil))
	slots, err = rebuilt.Slots(appID)
	require.NoError(t, err)
	require.Contains(t, slots, slot)
	require.False(t, slots[slot], "scanned slot without an entry is free")

	// Accounts opted in but controlled by someone else stay invisible.
	stranger := addr(2)
	ledger.Fund(stranger, big.NewInt(10_000_000))
	strangerBook := openBook(t, stranger)
	foreign, err := strangerBook.Acquire(ledger, appID)
	require.NoError(t, err)

	require.NoError(t, rebuilt.Scan(ledger, appID, nil))
	slots, err = rebuilt.Slots(appID)
	require.NoError(t, err)
	require.NotContains(t, slots, foreign)
}
