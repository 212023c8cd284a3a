// Package finality implements the two-phase (prevote/precommit) finality
// gadget: round state machine, vote tallying against a 2/3-plus supermajority
// of active stake-weighted voting power, and equivocation detection.
// Grounded on the teacher's ssf_round_engine.go (round-phase state machine:
// Prevoting/Precommitting/Completed/Failed, vote accumulation, timeout
// handling) and finality.go (justification assembly), generalized from
// committee-based BLS aggregate signatures to whole-validator-set ed25519
// signature collection.
package finality

import (
	"sync"

	"github.com/kratoschain/kratos/core/types"
)

// Phase is the round's current stage.
type Phase uint8

const (
	PhasePrevoting Phase = iota
	PhasePrecommitting
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePrevoting:
		return "prevoting"
	case PhasePrecommitting:
		return "precommitting"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SupermajorityNumerator/Denominator implement the integer rule
// count*100 >= total*67, the normative resolution of the spec's own 66/67
// ambiguity (DESIGN.md Open Question OQ1) applied uniformly to both
// finality and governance exit thresholds.
const (
	SupermajorityNumerator   = 67
	SupermajorityDenominator = 100
)

// HasSupermajority reports whether count of total reaches the 67% bound
// using only integer arithmetic, so the threshold never depends on
// floating-point rounding.
func HasSupermajority(count, total uint64) bool {
	if total == 0 {
		return false
	}
	return count*SupermajorityDenominator >= total*SupermajorityNumerator
}

// Round tracks one finality round's vote tallies for a single target block.
// A round always starts in Prevoting; upon reaching a prevote supermajority
// it advances to Precommitting; upon a precommit supermajority it completes
// and yields a FinalityJustification. Grounded on ssf_round_engine.go's
// round struct, generalized from committee subsets to the whole active set.
type Round struct {
	mu sync.Mutex

	Epoch        types.EpochNumber
	RoundNumber  uint64
	TargetNumber types.BlockNumber
	TargetHash   types.Hash

	phase Phase

	prevotes   map[types.AccountID]types.FinalityVote
	precommits map[types.AccountID]types.FinalityVote

	totalStake uint64
	weights    map[types.AccountID]uint64
}

// NewRound starts a fresh round for the given target, with the supplied
// stake-weight table (typically each active validator's KRAT stake).
func NewRound(epoch types.EpochNumber, roundNumber uint64, targetNumber types.BlockNumber, targetHash types.Hash, weights map[types.AccountID]uint64) *Round {
	var total uint64
	for _, w := range weights {
		total += w
	}
	return &Round{
		Epoch:        epoch,
		RoundNumber:  roundNumber,
		TargetNumber: targetNumber,
		TargetHash:   targetHash,
		phase:        PhasePrevoting,
		prevotes:     make(map[types.AccountID]types.FinalityVote),
		precommits:   make(map[types.AccountID]types.FinalityVote),
		weights:      weights,
		totalStake:   total,
	}
}

func (r *Round) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// AddVote ingests a verified vote (signature check happens in the caller,
// before this is called, since Round has no access to crypto keys). It
// returns an EquivocationProof if the voter already cast a conflicting vote
// of the same kind in this round, in which case the new vote is rejected.
func (r *Round) AddVote(vote types.FinalityVote) (*types.EquivocationProof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.prevotes
	if vote.Kind == types.VotePrecommit {
		bucket = r.precommits
	}

	if existing, ok := bucket[vote.Voter]; ok {
		if existing.TargetHash != vote.TargetHash || existing.Round != vote.Round {
			return &types.EquivocationProof{
				Voter: vote.Voter,
				Round: vote.Round,
				Kind:  vote.Kind,
				Vote1: existing,
				Vote2: vote,
			}, ErrEquivocation
		}
		return nil, nil // duplicate, idempotent
	}

	if vote.TargetNumber != r.TargetNumber || vote.TargetHash != r.TargetHash {
		return nil, ErrWrongTarget
	}
	bucket[vote.Voter] = vote

	r.advanceLocked()
	return nil, nil
}

func (r *Round) advanceLocked() {
	switch r.phase {
	case PhasePrevoting:
		if HasSupermajority(r.weightOfLocked(r.prevotes), r.totalStake) {
			r.phase = PhasePrecommitting
		}
	case PhasePrecommitting:
		if HasSupermajority(r.weightOfLocked(r.precommits), r.totalStake) {
			r.phase = PhaseCompleted
		}
	}
}

func (r *Round) weightOfLocked(votes map[types.AccountID]types.FinalityVote) uint64 {
	var sum uint64
	for voter := range votes {
		sum += r.weights[voter]
	}
	return sum
}

// Fail marks the round as failed (timeout with no supermajority reached),
// so the caller can move to the next round without re-counting votes.
func (r *Round) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseCompleted {
		r.phase = PhaseFailed
	}
}

// Justification assembles the FinalityJustification once the round has
// completed, collecting every precommit signature gathered.
func (r *Round) Justification() (types.FinalityJustification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseCompleted {
		return types.FinalityJustification{}, false
	}
	sigs := make([]types.VoterSignature, 0, len(r.precommits))
	for _, v := range r.precommits {
		sigs = append(sigs, types.VoterSignature{Voter: v.Voter, Signature: v.Signature})
	}
	return types.FinalityJustification{
		BlockNumber: r.TargetNumber,
		BlockHash:   r.TargetHash,
		Epoch:       r.Epoch,
		Signatures:  sigs,
	}, true
}
