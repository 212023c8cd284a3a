// Package bootstrap implements the bootstrap-era admission helpers layered
// on top of consensus.ValidatorSet's early-candidate queue: the
// zero-stake-with-immediate-uptime-VC admission effect and the minimum VC
// total for leader-selection eligibility. Grounded on the teacher's
// deposits.go (candidate-queue-to-active-validator promotion shape),
// generalized from a deposit-contract-driven queue to the spec's 3-distinct-
// voter multi-sig admission.
package bootstrap

import (
	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/state"
)

// InitializeBootstrapVC is invoked synchronously from inside
// ValidatorSet.VoteEarlyCandidate's onAdmit callback, still holding the
// validator set's write lock, and must be called with the state store's
// write scope already open for the same block — never re-acquiring either
// lock (the reentrancy hazard the component design calls out explicitly).
// It sets the new validator's uptime VC to 100, the one-time credit that
// lets a freshly admitted bootstrap validator participate in leader
// selection immediately rather than starting from zero.
func InitializeBootstrapVC(ws *state.WriteScope, candidate types.AccountID) {
	vc := ws.GetVCRecord(candidate)
	vc.Uptime = 100
	ws.SetVCRecord(candidate, vc)
}

// MinVoteRequirement is the minimum VC total a bootstrap-era validator must
// hold to be eligible for VRF slot-leader selection (BOOTSTRAP_MIN_VC_REQUIREMENT).
const MinVoteRequirement = 100
