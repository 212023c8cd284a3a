package consensus

import (
	"sort"
	"sync"

	"github.com/kratoschain/kratos/core/types"
)

// ValidatorSet is the exclusive owner of the validator registry and the
// pending early-validator candidate queue. It is guarded by a single
// RWMutex, the same reader/writer discipline as state.Store, and the chain
// engine always locks (state, validators) in that fixed order to avoid
// deadlock. Grounded on the teacher's validator_set.go (BLS-pubkey-indexed
// active-set/exit-queue bookkeeping), generalized to the stake/VC/reputation
// model and keyed directly by types.AccountID.
type ValidatorSet struct {
	mu sync.RWMutex

	validators map[types.AccountID]types.Validator
	pending    map[types.AccountID]*types.EarlyCandidate
}

// NewValidatorSet returns an empty set. Genesis wiring inserts the initial
// bootstrap validators directly via Put.
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{
		validators: make(map[types.AccountID]types.Validator),
		pending:    make(map[types.AccountID]*types.EarlyCandidate),
	}
}

func (vs *ValidatorSet) Get(id types.AccountID) (types.Validator, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.validators[id]
	return v, ok
}

// Put inserts or overwrites a validator entry.
func (vs *ValidatorSet) Put(v types.Validator) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.validators[v.ID] = v
}

// Remove deletes a validator entry entirely (used after an unregistered
// validator's stake has fully unbonded and withdrawn).
func (vs *ValidatorSet) Remove(id types.AccountID) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	delete(vs.validators, id)
}

// Active returns a stable-ordered snapshot of every validator with
// StatusActive, the slice the leader-selection and finality-quorum
// computations both operate on.
func (vs *ValidatorSet) Active() []types.Validator {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]types.Validator, 0, len(vs.validators))
	for _, v := range vs.validators {
		if v.Status == types.StatusActive {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// All returns a stable-ordered snapshot of every validator regardless of
// status, used by state-root computation.
func (vs *ValidatorSet) All() []types.Validator {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]types.Validator, 0, len(vs.validators))
	for _, v := range vs.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// ActiveCount reports len(Active()) without the allocation, used by the
// security-state machine on every block.
func (vs *ValidatorSet) ActiveCount() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	n := 0
	for _, v := range vs.validators {
		if v.Status == types.StatusActive {
			n++
		}
	}
	return n
}

// Mutate runs f with the write lock held, the counterpart to state.Store's
// Mutate. The chain engine calls this and state.Store.Mutate together under
// the fixed lock order (state, validators) whenever a block touches both.
func (vs *ValidatorSet) Mutate(f func(vs *ValidatorSet)) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	f(vs)
}

// proposeEarlyCandidateLocked records the first vote for a bootstrap-era
// validator candidate proposed by proposer. Must be called with the write
// lock already held (from inside Mutate). If candidate is already pending
// or already a validator, this is a no-op.
func (vs *ValidatorSet) proposeEarlyCandidateLocked(proposer, candidate types.AccountID, at types.BlockNumber) {
	if _, exists := vs.validators[candidate]; exists {
		return
	}
	if _, exists := vs.pending[candidate]; exists {
		return
	}
	vs.pending[candidate] = &types.EarlyCandidate{
		Proposer:  proposer,
		Voters:    map[types.AccountID]struct{}{proposer: {}},
		CreatedAt: at,
	}
}

// ProposeEarlyCandidate is the exported, self-locking entry point for the
// chain engine's phase-2 application of a ProposeEarlyValidator call.
func (vs *ValidatorSet) ProposeEarlyCandidate(proposer, candidate types.AccountID, at types.BlockNumber) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.proposeEarlyCandidateLocked(proposer, candidate, at)
}

// VoteEarlyCandidate appends voter's distinct vote to candidate's pending
// entry. When the third distinct voter is recorded, the candidate is
// admitted as an Active validator with zero stake and onAdmit is invoked
// (synchronously, still holding the write lock) so the caller can apply
// initialize_bootstrap_vc without a re-entrant lock acquisition. Returns
// whether admission happened on this call.
func (vs *ValidatorSet) VoteEarlyCandidate(voter, candidate types.AccountID, epoch types.EpochNumber, onAdmit func(types.AccountID)) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	entry, ok := vs.pending[candidate]
	if !ok {
		return false
	}
	entry.Voters[voter] = struct{}{}
	if entry.VoterCount() < 3 {
		return false
	}

	delete(vs.pending, candidate)
	vs.validators[candidate] = types.Validator{
		ID:          candidate,
		Stake:       types.ZeroBalance(),
		Reputation:  100,
		Status:      types.StatusActive,
		JoinedEpoch: epoch,
		IsBootstrap: true,
	}
	if onAdmit != nil {
		onAdmit(candidate)
	}
	return true
}

// PendingCandidates returns a snapshot of the current early-validator
// admission queue, for the validator_getPendingCandidates RPC method.
func (vs *ValidatorSet) PendingCandidates() map[types.AccountID]types.EarlyCandidate {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make(map[types.AccountID]types.EarlyCandidate, len(vs.pending))
	for id, c := range vs.pending {
		voters := make(map[types.AccountID]struct{}, len(c.Voters))
		for v := range c.Voters {
			voters[v] = struct{}{}
		}
		out[id] = types.EarlyCandidate{Proposer: c.Proposer, Voters: voters, CreatedAt: c.CreatedAt}
	}
	return out
}
