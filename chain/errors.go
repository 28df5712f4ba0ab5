package chain

import "errors"

var (
	// ErrRejected wraps every group rejection so callers can distinguish a
	// validation reject (rebuild and resubmit) from infrastructure errors.
	ErrRejected = errors.New("chain: group rejected")

	errEmptyGroup         = errors.New("chain: empty group")
	errGroupTooLarge      = errors.New("chain: group exceeds maximum size")
	errInsufficientFees   = errors.New("chain: pooled fees below minimum")
	errUnauthorizedSigner = errors.New("chain: signer not authorized for sender")
	errUnknownAsset       = errors.New("chain: unknown asset")
	errUnknownApp         = errors.New("chain: unknown application")
	errNotOptedInAsset    = errors.New("chain: account not opted into asset")
	errNotOptedInApp      = errors.New("chain: account not opted into application")
	errAlreadyOptedIn     = errors.New("chain: already opted in")
	errInsufficientFunds  = errors.New("chain: insufficient balance")
	errBelowMinBalance    = errors.New("chain: balance would fall below minimum")
	errCloseOutRejected   = errors.New("chain: close-out not supported")
	errInnerDepth         = errors.New("chain: inner call depth exceeded")
)

// MaxGroupSize bounds the number of operations in one atomic group.
const MaxGroupSize = 16

const maxInnerDepth = 4
