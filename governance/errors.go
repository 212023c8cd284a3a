package governance

import "errors"

var (
	ErrProposalNotFound    = errors.New("governance: proposal not found")
	ErrNotActive           = errors.New("governance: proposal not in active voting period")
	ErrAlreadyVoted        = errors.New("governance: voter already cast a ballot on this proposal")
	ErrNotEligible         = errors.New("governance: voter was not an active validator at proposal creation")
	ErrInvalidChoice       = errors.New("governance: invalid vote choice")
	ErrExitProposalExists  = errors.New("governance: a chain may have at most one active exit proposal")
	ErrExitVotingClosed    = errors.New("governance: exit proposal cannot be cancelled once voting ends")
	ErrNotProposer         = errors.New("governance: only the proposer may cancel a proposal")
	ErrWrongPhaseForCancel = errors.New("governance: proposal can only be cancelled before voting ends")
	ErrNotPassed           = errors.New("governance: proposal is not in a state ready to execute")
	ErrTimelockNotElapsed  = errors.New("governance: timelock has not elapsed")
	ErrGraceExpired        = errors.New("governance: execution grace window has elapsed")
	ErrGovernanceFrozen    = errors.New("governance: proposal creation/execution is frozen in the current security state")
)
