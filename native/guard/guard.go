package guard

import (
	"errors"
	"math/big"

	"nftmarket/chain"
	"nftmarket/core/types"
)

// Contracts validate the exact shape of their surrounding group before
// touching state; these helpers hold the shared checks.

var (
	ErrGroupShape    = errors.New("guard: unexpected group shape")
	ErrWrongReceiver = errors.New("guard: operation pays the wrong receiver")
	ErrFeeTooLow     = errors.New("guard: declared fee below requirement")
	ErrAmountRange   = errors.New("guard: amount exceeds the recordable range")
)

// Size asserts the group holds exactly n operations.
func Size(ctx *chain.Context, n int) error {
	if ctx.GroupSize() != n {
		return ErrGroupShape
	}
	return nil
}

// Payment asserts op is a base-currency payment to recipient and returns its
// amount.
func Payment(op *types.Transaction, recipient types.Address) (*big.Int, error) {
	if op == nil || op.Type != types.TxPayment {
		return nil, ErrGroupShape
	}
	if op.Receiver != recipient {
		return nil, ErrWrongReceiver
	}
	return op.AmountOrZero(), nil
}

// AssetTransfer asserts op moves asset units to recipient and returns the
// asset identifier and amount.
func AssetTransfer(op *types.Transaction, recipient types.Address) (uint64, uint64, error) {
	if op == nil || op.Type != types.TxAssetTransfer {
		return 0, 0, ErrGroupShape
	}
	if op.AssetReceiver != recipient {
		return 0, 0, ErrWrongReceiver
	}
	return op.AssetID, op.AssetAmount, nil
}

// AppCallTo asserts op is a no-op call into appID.
func AppCallTo(op *types.Transaction, appID uint64) error {
	if op == nil || op.Type != types.TxAppCall || op.OnComplete != types.OcNoOp {
		return ErrGroupShape
	}
	if op.AppID != appID {
		return ErrGroupShape
	}
	return nil
}

// FeeAtLeast asserts op declares a fee covering n minimum fees. Listing
// operations over-declare so the contract's later inner payments stay funded.
func FeeAtLeast(ctx *chain.Context, op *types.Transaction, n int64) error {
	need := new(big.Int).Mul(ctx.MinFee(), big.NewInt(n))
	if op.FeeOrZero().Cmp(need) < 0 {
		return ErrFeeTooLow
	}
	return nil
}

// MinFeeTimes returns n minimum fees as an amount, the escrow adjustment
// applied when a deposit includes fee headroom.
func MinFeeTimes(ctx *chain.Context, n int64) *big.Int {
	return new(big.Int).Mul(ctx.MinFee(), big.NewInt(n))
}

// Uint64 narrows an amount for storage in contract state. State words are
// 64-bit; anything wider must reject the group rather than wrap.
func Uint64(v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, ErrAmountRange
	}
	return v.Uint64(), nil
}
