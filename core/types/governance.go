package types

// ProposalStatus is the lifecycle state of a governance proposal.
type ProposalStatus uint8

const (
	ProposalActive ProposalStatus = iota
	ProposalPassed
	ProposalRejected
	ProposalReadyToExecute
	ProposalExecuted
	ProposalCancelled
	ProposalExpired
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalActive:
		return "active"
	case ProposalPassed:
		return "passed"
	case ProposalRejected:
		return "rejected"
	case ProposalReadyToExecute:
		return "ready_to_execute"
	case ProposalExecuted:
		return "executed"
	case ProposalCancelled:
		return "cancelled"
	case ProposalExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ProposalType distinguishes standard (51% threshold) from exit/constitutional
// (supermajority threshold) proposals.
type ProposalType uint8

const (
	ProposalStandard ProposalType = iota
	ProposalExit
)

// VoteChoice is a validator's ballot on a proposal.
type VoteChoice uint8

const (
	VoteYes VoteChoice = iota
	VoteNo
	VoteAbstain
)

func (c VoteChoice) Valid() bool {
	return c == VoteYes || c == VoteNo || c == VoteAbstain
}

// VoteRecord is one cast ballot, weighted by the snapshot stake recorded at
// proposal creation time — never by the voter's current stake.
type VoteRecord struct {
	Voter         AccountID
	Choice        VoteChoice
	SnapshotStake Balance
	CastAt        uint64
}

// Proposal is immutable after creation except for Status and the vote
// aggregates (Yes/No/Abstain/Votes).
type Proposal struct {
	ID            uint64
	ChainID       uint64
	Proposer      AccountID
	Type          ProposalType
	Status        ProposalStatus
	CreatedAt     BlockNumber
	VotingEndsAt  BlockNumber
	TimelockEndsAt BlockNumber
	Deposit       Balance

	// SnapshotTotalStake is the total active stake recorded at creation;
	// it is the quorum denominator for the whole lifetime of the proposal,
	// immune to later stake changes.
	SnapshotTotalStake Balance

	Yes     Balance
	No      Balance
	Abstain Balance
	Votes   []VoteRecord

	// Payload is the opaque governance action this proposal carries,
	// interpreted by the governance module, not by the core transaction
	// executor.
	Payload []byte
}

// HasVoted reports whether voter already cast a ballot on this proposal.
func (p *Proposal) HasVoted(voter AccountID) bool {
	for _, v := range p.Votes {
		if v.Voter == voter {
			return true
		}
	}
	return false
}
