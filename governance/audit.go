package governance

import (
	"sync"

	"github.com/kratoschain/kratos/core/types"
)

// EventKind tags one governance lifecycle transition.
type EventKind uint8

const (
	EventCreated EventKind = iota
	EventVoteCast
	EventPassed
	EventRejected
	EventReadyToExecute
	EventExecuted
	EventCancelled
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventVoteCast:
		return "vote_cast"
	case EventPassed:
		return "passed"
	case EventRejected:
		return "rejected"
	case EventReadyToExecute:
		return "ready_to_execute"
	case EventExecuted:
		return "executed"
	case EventCancelled:
		return "cancelled"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuditRecord is one entry in a proposal's lifecycle trail, grounded on the
// nhbchain governance reference file's AuditRecord/AuditEvent split.
type AuditRecord struct {
	ProposalID uint64
	Event      EventKind
	Status     types.ProposalStatus
	Seq        uint64
}

// AuditLog is an append-only, in-memory trail of every lifecycle transition
// every proposal has gone through, supporting spec.md §8 property 8 ("the
// outcome is a pure function of recorded ballots and snapshot stake") by
// making the whole transition sequence replayable for tests and RPC
// diagnostics.
type AuditLog struct {
	mu      sync.RWMutex
	records []AuditRecord
	seq     uint64
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record appends a lifecycle transition.
func (a *AuditLog) Record(proposalID uint64, event EventKind, status types.ProposalStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.records = append(a.records, AuditRecord{
		ProposalID: proposalID,
		Event:      event,
		Status:     status,
		Seq:        a.seq,
	})
}

// For returns every recorded transition for a single proposal, in the
// order they were recorded.
func (a *AuditLog) For(proposalID uint64) []AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []AuditRecord
	for _, r := range a.records {
		if r.ProposalID == proposalID {
			out = append(out, r)
		}
	}
	return out
}

// All returns every recorded transition across every proposal, in
// recording order.
func (a *AuditLog) All() []AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AuditRecord, len(a.records))
	copy(out, a.records)
	return out
}
