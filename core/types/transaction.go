package types

import (
	"encoding/binary"
	"math/big"
)

// TxType enumerates the primitive operation kinds a group may contain.
type TxType uint8

const (
	TxPayment TxType = iota + 1
	TxAssetTransfer
	TxAssetOptIn
	TxAppCall
)

// OnComplete selects the application lifecycle outcome of an app call,
// mirroring the four-outcome completion model: plain call, opt-in, close-out,
// clear, update and delete.
type OnComplete uint8

const (
	OcNoOp OnComplete = iota
	OcOptIn
	OcCloseOut
	OcClearState
	OcUpdate
	OcDelete
)

// Transaction is a single operation inside an atomic group. Fields are a
// union over the operation kinds; validation of which fields are meaningful
// for which kind happens at execution time.
type Transaction struct {
	Type   TxType
	Sender Address
	// SignedBy identifies the key that authorised the operation. Zero means
	// the sender signed for itself. A rekeyed account is spendable only by
	// its auth address.
	SignedBy Address
	Fee      *big.Int
	// RekeyTo, when set on a payment, reassigns the sender's signing
	// authority after the payment applies.
	RekeyTo Address

	// Payment fields.
	Receiver Address
	Amount   *big.Int

	// Asset transfer / opt-in fields.
	AssetID       uint64
	AssetAmount   uint64
	AssetReceiver Address

	// Application call fields. AppID zero requests creation.
	AppID         uint64
	OnComplete    OnComplete
	Args          [][]byte
	Accounts      []Address
	ForeignAssets []uint64
	ForeignApps   []uint64
}

// Group is an ordered set of operations that commit or reject together.
type Group []*Transaction

// Method returns the leading string argument of an app call, the dispatch
// selector used by every contract.
func (t *Transaction) Method() string {
	if t == nil || len(t.Args) == 0 {
		return ""
	}
	return string(t.Args[0])
}

// ArgUint decodes argument i as a big-endian uint64, returning zero when the
// argument is absent or malformed.
func (t *Transaction) ArgUint(i int) uint64 {
	if t == nil || i < 0 || i >= len(t.Args) || len(t.Args[i]) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(t.Args[i])
}

// NumArgs returns the argument count, including the method selector.
func (t *Transaction) NumArgs() int {
	if t == nil {
		return 0
	}
	return len(t.Args)
}

// Account resolves app-call account references the way contracts address
// them: index 0 is the sender, indices 1..n are the foreign account list.
func (t *Transaction) Account(i int) Address {
	if t == nil || i < 0 {
		return ZeroAddress
	}
	if i == 0 {
		return t.Sender
	}
	if i-1 < len(t.Accounts) {
		return t.Accounts[i-1]
	}
	return ZeroAddress
}

// NumAccounts returns the length of the foreign account list (excluding the
// sender).
func (t *Transaction) NumAccounts() int {
	if t == nil {
		return 0
	}
	return len(t.Accounts)
}

// Asset resolves foreign asset references; index 0 is the first foreign
// asset.
func (t *Transaction) Asset(i int) uint64 {
	if t == nil || i < 0 || i >= len(t.ForeignAssets) {
		return 0
	}
	return t.ForeignAssets[i]
}

// NumAssets returns the length of the foreign asset list.
func (t *Transaction) NumAssets() int {
	if t == nil {
		return 0
	}
	return len(t.ForeignAssets)
}

// Application resolves foreign app references the way contracts address
// them: index 0 is the called app, indices 1..n are the foreign app list.
func (t *Transaction) Application(i int) uint64 {
	if t == nil || i < 0 {
		return 0
	}
	if i == 0 {
		return t.AppID
	}
	if i-1 < len(t.ForeignApps) {
		return t.ForeignApps[i-1]
	}
	return 0
}

// NumApplications returns the length of the foreign app list (excluding the
// called app).
func (t *Transaction) NumApplications() int {
	if t == nil {
		return 0
	}
	return len(t.ForeignApps)
}

// Signer returns the effective signing identity: SignedBy when present,
// otherwise the sender itself.
func (t *Transaction) Signer() Address {
	if t == nil {
		return ZeroAddress
	}
	if !t.SignedBy.IsZero() {
		return t.SignedBy
	}
	return t.Sender
}

// FeeOrZero returns the declared fee, never nil.
func (t *Transaction) FeeOrZero() *big.Int {
	if t == nil || t.Fee == nil {
		return big.NewInt(0)
	}
	return t.Fee
}

// AmountOrZero returns the payment amount, never nil.
func (t *Transaction) AmountOrZero() *big.Int {
	if t == nil || t.Amount == nil {
		return big.NewInt(0)
	}
	return t.Amount
}

// Uint64Bytes encodes v big-endian for use as an app-call argument or state
// value.
func Uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// Uint64FromBytes decodes a big-endian state value, returning zero for any
// malformed input.
func Uint64FromBytes(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
