package chain

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/types"
)

// AppLogic is implemented by every contract hosted on the ledger. Each method
// runs inside an atomic group: a returned error rejects the whole group with
// no partial effects.
type AppLogic interface {
	// Create runs once when the application is deployed.
	Create(ctx *Context) error
	// Call handles a no-op application call; contracts dispatch on the
	// leading string argument.
	Call(ctx *Context) error
	// Update guards the update lifecycle operation.
	Update(ctx *Context) error
	// Delete guards the delete lifecycle operation.
	Delete(ctx *Context) error
}

// App is a deployed contract instance: identity, custodial address, global
// state and the logic driving its transitions.
type App struct {
	ID      uint64
	Creator types.Address
	Address types.Address
	Global  map[string][]byte
	Logic   AppLogic
}

func (a *App) clone() *App {
	if a == nil {
		return nil
	}
	clone := &App{
		ID:      a.ID,
		Creator: a.Creator,
		Address: a.Address,
		Global:  make(map[string][]byte, len(a.Global)),
		Logic:   a.Logic,
	}
	for k, v := range a.Global {
		clone.Global[k] = append([]byte(nil), v...)
	}
	return clone
}

// AssetParams describes a fungible or non-fungible unit managed by the
// ledger.
type AssetParams struct {
	Creator  types.Address
	Total    uint64
	UnitName string
}

// AppAddressFor derives the deterministic custodial address of an
// application from its identifier.
func AppAddressFor(appID uint64) types.Address {
	digest := ethcrypto.Keccak256([]byte("appID"), types.Uint64Bytes(appID))
	return types.BytesToAddress(digest[12:])
}
