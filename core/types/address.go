package types

import (
	"bytes"
	"encoding/hex"
)

// AddressLength is the byte length of account and application addresses.
const AddressLength = 20

// Address identifies an account on the simulated ledger. Application custodial
// addresses and user accounts share the same address space.
type Address [AddressLength]byte

// ZeroAddress is the canonical empty address. It marks unset fields such as a
// cleared lead bidder or a self-authorized account.
var ZeroAddress Address

// BytesToAddress copies b into an Address, truncating from the left when b is
// longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the 0x-prefixed hex encoding of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether the address equals ZeroAddress.
func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return a.Hex() }

// Compare orders addresses lexicographically, for deterministic iteration.
func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }
