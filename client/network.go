package client

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/types"
)

// Network is the ledger surface the client builds against: group submission
// plus the read-side queries used to assemble groups from fresh state.
type Network interface {
	Params() chain.Params
	Submit(group types.Group) error
	Balance(addr types.Address) *big.Int
	AssetBalance(addr types.Address, assetID uint64) (uint64, bool)
	AccountSnapshot(addr types.Address) (*types.Account, bool)
	AppGlobalState(appID uint64) (map[string][]byte, bool)
	AppLocalState(appID uint64, addr types.Address) (map[string][]byte, bool)
	AppAddress(appID uint64) (types.Address, bool)
	OptedInAccounts(appID uint64) []types.Address
}

var _ Network = (*chain.Ledger)(nil)

var (
	// ErrUnknownApp reports an app ID with no ledger record.
	ErrUnknownApp = errors.New("client: application not found on ledger")
	// ErrSlotNotReady reports a slot that is not opted into the target app.
	ErrSlotNotReady = errors.New("client: slot is not provisioned for the application")
	// ErrNoOpenEntry reports a slot with nothing listed on it.
	ErrNoOpenEntry = errors.New("client: slot has no open entry")
)

func stateUint(state map[string][]byte, key string) uint64 {
	return types.Uint64FromBytes(state[key])
}

func stateAddr(state map[string][]byte, key string) types.Address {
	b := state[key]
	if len(b) != types.AddressLength {
		return types.ZeroAddress
	}
	return types.BytesToAddress(b)
}
