// Package governance implements the proposal lifecycle: creation with a
// stake-weighted voting-power snapshot, ballot casting, quorum/threshold
// tallying, timelocked execution, and deposit accounting (spec.md §4.14).
// Grounded on the teacher's (removed) consensus/fork_choice.go state-machine
// shape and the governance-types reference file's Proposal/Vote/Tally
// split, generalized from nhbchain's string-keyed deposit-period lifecycle
// to the spec's snapshot-immune, two-threshold (standard/exit) model.
package governance

import (
	"sync"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/log"
)

const (
	// DepositKrat is the whole-KRAT proposal deposit held in escrow.
	DepositKrat = 100

	// StandardThresholdBps is the strict-majority pass threshold for
	// standard proposals: yes/(yes+no) >= 51%, ties do not pass.
	StandardThresholdBps = 5100
	// ExitThresholdBps is the supermajority pass threshold for exit
	// (constitutional) proposals, matching the finality gadget's 2/3 rule.
	ExitThresholdBps = 6700
	// QuorumBps is the minimum participation (yes+no+abstain)/total
	// required for a proposal's outcome to count at all.
	QuorumBps = 3000

	VotingPeriodBlocks         = 7 * 24 * 60 * 60 / 1 // placeholder block-time-independent constant; callers pass block counts derived from their own slot timing
	StandardTimelockBlocks     = 12 * 24 * 60 * 60
	ExitTimelockBlocks         = 30 * 24 * 60 * 60
	ExecutionGraceBlocks       = 2 * 24 * 60 * 60
)

// Registry holds every proposal the chain has ever seen, guarded by its own
// lock — per spec.md §5, governance state is never touched while the chain
// writer holds the state/validator locks.
type Registry struct {
	mu        sync.RWMutex
	proposals map[uint64]*types.Proposal
	nextID    uint64
	hasActiveExit bool
	audit     *AuditLog
	log       *log.Logger
}

// NewRegistry creates an empty proposal registry.
func NewRegistry() *Registry {
	return &Registry{
		proposals: make(map[uint64]*types.Proposal),
		nextID:    1,
		audit:     NewAuditLog(),
		log:       log.Default().Module("governance"),
	}
}

// Audit returns the registry's append-only lifecycle-transition log.
func (r *Registry) Audit() *AuditLog { return r.audit }

// Get returns a copy of a proposal by id.
func (r *Registry) Get(id uint64) (types.Proposal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proposals[id]
	if !ok {
		return types.Proposal{}, false
	}
	return *p, true
}

// All returns a snapshot of every proposal, unordered.
func (r *Registry) All() []types.Proposal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Proposal, 0, len(r.proposals))
	for _, p := range r.proposals {
		out = append(out, *p)
	}
	return out
}

// Create opens a new proposal, snapshotting the active validator set's
// total stake as the quorum/threshold denominator for the proposal's
// entire lifetime (the snapshot-immunity property, spec.md §8 property 5).
// createdAt/votingEndsAt/timelockEndsAt are block numbers the caller
// derives from its own slot timing; Create itself is timing-agnostic.
func (r *Registry) Create(proposer types.AccountID, kind types.ProposalType, chainID uint64, createdAt, votingEndsAt, timelockEndsAt types.BlockNumber, snapshotTotalStake types.Balance, payload []byte, deposit types.Balance, securityFrozen bool) (types.Proposal, error) {
	if securityFrozen {
		return types.Proposal{}, ErrGovernanceFrozen
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == types.ProposalExit && r.hasActiveExit {
		return types.Proposal{}, ErrExitProposalExists
	}

	p := &types.Proposal{
		ID:                 r.nextID,
		ChainID:            chainID,
		Proposer:           proposer,
		Type:               kind,
		Status:             types.ProposalActive,
		CreatedAt:          createdAt,
		VotingEndsAt:       votingEndsAt,
		TimelockEndsAt:     timelockEndsAt,
		Deposit:            deposit,
		SnapshotTotalStake: snapshotTotalStake,
		Payload:            payload,
	}
	r.nextID++
	r.proposals[p.ID] = p
	if kind == types.ProposalExit {
		r.hasActiveExit = true
	}
	r.audit.Record(p.ID, EventCreated, p.Status)
	r.log.Info("proposal created", "id", p.ID, "proposer", proposer.Hex(), "type", kind)
	return *p, nil
}

// Vote casts voter's ballot, weighted by voter's snapshot stake (recorded
// by the caller at creation time and passed in here — the registry never
// re-reads current stake, preserving the snapshot-immunity invariant).
func (r *Registry) Vote(id uint64, voter types.AccountID, choice types.VoteChoice, snapshotStake types.Balance, castAt uint64) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Status != types.ProposalActive {
		return ErrNotActive
	}
	if p.HasVoted(voter) {
		return ErrAlreadyVoted
	}

	p.Votes = append(p.Votes, types.VoteRecord{
		Voter:         voter,
		Choice:        choice,
		SnapshotStake: snapshotStake,
		CastAt:        castAt,
	})
	switch choice {
	case types.VoteYes:
		if sum, err := p.Yes.Add(snapshotStake); err == nil {
			p.Yes = sum
		}
	case types.VoteNo:
		if sum, err := p.No.Add(snapshotStake); err == nil {
			p.No = sum
		}
	case types.VoteAbstain:
		if sum, err := p.Abstain.Add(snapshotStake); err == nil {
			p.Abstain = sum
		}
	}
	r.audit.Record(id, EventVoteCast, p.Status)
	return nil
}

// Tally evaluates a proposal whose voting period has just ended against
// quorum and threshold, transitioning it to Passed or Rejected. now is the
// current block number; Tally is a no-op if voting has not yet ended.
func (r *Registry) Tally(id uint64, now types.BlockNumber) (types.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return types.Proposal{}, ErrProposalNotFound
	}
	if p.Status != types.ProposalActive || now < p.VotingEndsAt {
		return *p, nil
	}

	passed := evaluateOutcome(*p)
	if passed {
		p.Status = types.ProposalPassed
		r.audit.Record(id, EventPassed, p.Status)
	} else {
		p.Status = types.ProposalRejected
		if p.Type == types.ProposalExit {
			r.hasActiveExit = false
		}
		r.audit.Record(id, EventRejected, p.Status)
	}
	return *p, nil
}

// evaluateOutcome applies quorum then threshold, both computed against the
// proposal's immutable snapshot denominator — never the current stake.
func evaluateOutcome(p types.Proposal) bool {
	participating, err := p.Yes.Add(p.No)
	if err != nil {
		return false
	}
	if sum, err := participating.Add(p.Abstain); err == nil {
		participating = sum
	}
	if p.SnapshotTotalStake.IsZero() {
		return false
	}
	quorumBps := participating.ShareBasisPoints(p.SnapshotTotalStake)
	if quorumBps < QuorumBps {
		return false
	}

	decisive, err := p.Yes.Add(p.No)
	if err != nil || decisive.IsZero() {
		return false
	}
	yesBps := p.Yes.ShareBasisPoints(decisive)

	threshold := uint64(StandardThresholdBps)
	if p.Type == types.ProposalExit {
		threshold = ExitThresholdBps
	}
	return yesBps >= threshold
}

// ReadyToExecute marks a Passed proposal as executable once its timelock
// has elapsed, so long as it is still within the post-timelock grace
// window; past the grace window it expires and its deposit burns instead
// of returning.
func (r *Registry) ReadyToExecute(id uint64, now types.BlockNumber) (types.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return types.Proposal{}, ErrProposalNotFound
	}
	if p.Status != types.ProposalPassed {
		return *p, ErrNotPassed
	}
	if now < p.TimelockEndsAt {
		return *p, ErrTimelockNotElapsed
	}
	if now > p.TimelockEndsAt+ExecutionGraceBlocks {
		p.Status = types.ProposalExpired
		r.audit.Record(id, EventExpired, p.Status)
		return *p, nil
	}
	p.Status = types.ProposalReadyToExecute
	r.audit.Record(id, EventReadyToExecute, p.Status)
	return *p, nil
}

// Execute marks a ready proposal Executed. The caller is responsible for
// actually interpreting and applying p.Payload against chain state before
// calling this — Execute only records the terminal lifecycle transition
// and releases the deposit.
func (r *Registry) Execute(id uint64, securityFrozen bool) (types.Proposal, error) {
	if securityFrozen {
		return types.Proposal{}, ErrGovernanceFrozen
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return types.Proposal{}, ErrProposalNotFound
	}
	if p.Status != types.ProposalReadyToExecute {
		return *p, ErrNotPassed
	}
	p.Status = types.ProposalExecuted
	if p.Type == types.ProposalExit {
		r.hasActiveExit = false
	}
	r.audit.Record(id, EventExecuted, p.Status)
	r.log.Info("proposal executed", "id", id)
	return *p, nil
}

// Cancel withdraws a proposal before its voting period ends; only its
// proposer may do this, and an exit proposal can never be cancelled once
// voting has ended (not just once it has closed favorably).
func (r *Registry) Cancel(id uint64, caller types.AccountID, now types.BlockNumber) (types.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return types.Proposal{}, ErrProposalNotFound
	}
	if p.Proposer != caller {
		return *p, ErrNotProposer
	}
	if p.Status != types.ProposalActive {
		return *p, ErrWrongPhaseForCancel
	}
	if p.Type == types.ProposalExit && now >= p.VotingEndsAt {
		return *p, ErrExitVotingClosed
	}
	if now >= p.VotingEndsAt {
		return *p, ErrWrongPhaseForCancel
	}
	p.Status = types.ProposalCancelled
	if p.Type == types.ProposalExit {
		r.hasActiveExit = false
	}
	r.audit.Record(id, EventCancelled, p.Status)
	return *p, nil
}

// DepositDisposition reports whether a terminal proposal's deposit should
// be returned to the proposer or burned, per spec.md §4.14.
func DepositDisposition(status types.ProposalStatus) (returned bool) {
	switch status {
	case types.ProposalPassed, types.ProposalExecuted, types.ProposalRejected, types.ProposalCancelled:
		return true
	case types.ProposalExpired:
		return false
	default:
		return false
	}
}

// TimelockBlocks returns the timelock duration for a proposal type, scaled
// by the security-state machine's Degraded-state doubling multiplier.
func TimelockBlocks(kind types.ProposalType, timelockMultiplier uint64) types.BlockNumber {
	base := types.BlockNumber(StandardTimelockBlocks)
	if kind == types.ProposalExit {
		base = types.BlockNumber(ExitTimelockBlocks)
	}
	return base * types.BlockNumber(timelockMultiplier)
}
