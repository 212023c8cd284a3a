// Package txexec validates and applies one SignedTransaction against a
// state.WriteScope, per the ordering of checks and effects in the component
// design for the transaction executor.
package txexec

import "errors"

// Error taxonomy: these are all Input-invalid per the error classification —
// non-fatal to the node, reject the input, surface to the submitting
// caller. A failing transaction leaves all state unchanged.
var (
	ErrInvalidSignature = errors.New("txexec: invalid signature")
	ErrUnknownSender    = errors.New("txexec: unknown sender")
	ErrBadNonce         = errors.New("txexec: bad nonce")
	ErrInsufficientFunds = errors.New("txexec: insufficient funds")
	ErrInvalidCall      = errors.New("txexec: invalid call")
)

// MinimumStakeKrat is the floor, in whole KRAT, below which a
// RegisterValidator call is rejected as invalid (a Stake call is rejected
// only when its amount is zero), independent of the
// VC-based reduction applied elsewhere (consensus/vc computes the
// *effective* requirement; this is the executor's absolute floor so a
// zero-amount stake call is always invalid).
const MinimumStakeKrat = 1
