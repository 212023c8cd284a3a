// Package slashing implements the graded slashing schedule: four severity
// tiers (Critical/High/Medium/Low) each with a fixed VC penalty, a
// stake-penalty basis-point range, and a re-eligibility cooldown, plus the
// critical-event counter decay and reputation adjustments. All stake math
// is done in integer basis points — no floating point — per the component
// design. Grounded on the teacher's slashing_detector.go (severity
// classification from equivocation/downtime evidence) and
// equivocation_detector.go (proof-of-misbehavior shape), generalized from
// BLS double-vote/surround-vote detection to the ed25519 two-phase
// equivocation proofs the finality package produces.
package slashing

import "github.com/kratoschain/kratos/core/types"

// Severity is one of the four graded tiers.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Schedule is one severity tier's fixed penalties, all in basis points
// (1bp = 0.01%) except CooldownEpochs.
type Schedule struct {
	VCPenaltyBps      uint64 // fraction of total VC removed
	StakePenaltyMinBp uint64
	StakePenaltyMaxBp uint64
	CooldownEpochs    uint64
}

// Schedules is indexed by Severity.
var Schedules = map[Severity]Schedule{
	SeverityCritical: {VCPenaltyBps: 5000, StakePenaltyMinBp: 500, StakePenaltyMaxBp: 2000, CooldownEpochs: 52},
	SeverityHigh:     {VCPenaltyBps: 2500, StakePenaltyMinBp: 100, StakePenaltyMaxBp: 500, CooldownEpochs: 12},
	SeverityMedium:   {VCPenaltyBps: 1000, StakePenaltyMinBp: 0, StakePenaltyMaxBp: 100, CooldownEpochs: 0},
	SeverityLow:      {VCPenaltyBps: 500, StakePenaltyMinBp: 0, StakePenaltyMaxBp: 0, CooldownEpochs: 0},
}

// ReputationSlashPenalty, ReputationBlockProduced and ReputationMissedBlock
// are the fixed reputation deltas (§4.8), applied independent of severity
// tier; ReputationMaxCap and ReputationFloor bound the result.
const (
	ReputationSlashPenalty  = 20
	ReputationBlockProduced = 1
	ReputationMaxCap        = 100
	ReputationMissedBlock   = 1
	ReputationFloor         = 0
)

// CriticalDecayPeriodEpochs is how often the critical-event counter decays
// by 1 absent a new critical-severity event.
const CriticalDecayPeriodEpochs = 26

// Outcome is the computed effect of one slashing event on a validator.
type Outcome struct {
	Severity        Severity
	VCRemoved       types.ValidatorCredits
	StakePenaltyBps uint64 // the specific bp value chosen within [min,max] for this event
	CooldownUntil   types.EpochNumber
}

// ApplyVC removes VCPenaltyBps of the validator's total VC, proportionally
// across the four sub-counters, flooring each at zero.
func ApplyVC(credits types.ValidatorCredits, sched Schedule) types.ValidatorCredits {
	return types.ValidatorCredits{
		Vote:        reduceByBps(credits.Vote, sched.VCPenaltyBps),
		Uptime:      reduceByBps(credits.Uptime, sched.VCPenaltyBps),
		Arbitration: reduceByBps(credits.Arbitration, sched.VCPenaltyBps),
		Seniority:   reduceByBps(credits.Seniority, sched.VCPenaltyBps),
	}
}

func reduceByBps(v uint64, bps uint64) uint64 {
	penalty := (v * bps) / 10000
	if penalty > v {
		return 0
	}
	return v - penalty
}

// StakePenaltyAmount computes the KRAT amount to debit at the given bp rate
// (chosen within [min,max] by the caller based on evidence severity within
// the tier), applied to base — the sum of active stake and any pending
// unbonding entries, since re-staking during an active unbond must not
// shrink the slashable base (§4.8).
func StakePenaltyAmount(base types.Balance, bps uint64) types.Balance {
	return base.MulBasisPoints(bps)
}

// DebitProportional splits a total stake penalty across active stake and
// pending unbonding entries in proportion to their share of base, so a
// validator cannot shield stake from slashing by unbonding it. Returns the
// new active stake and the new unbonding entries (amounts reduced
// pro-rata, maturity epochs unchanged).
func DebitProportional(active types.Balance, unbonding []types.UnbondingEntry, penalty types.Balance) (types.Balance, []types.UnbondingEntry) {
	base := active
	for _, u := range unbonding {
		if sum, err := base.Add(u.Amount); err == nil {
			base = sum
		}
	}
	if base.IsZero() {
		return active, unbonding
	}

	activeShareBps := active.ShareBasisPoints(base)
	activePenalty := penalty.MulBasisPoints(activeShareBps)

	newActive, err := active.Sub(activePenalty)
	if err != nil {
		newActive = types.ZeroBalance()
	}

	remaining, err := penalty.Sub(activePenalty)
	if err != nil {
		remaining = types.ZeroBalance()
	}

	newUnbonding := make([]types.UnbondingEntry, len(unbonding))
	copy(newUnbonding, unbonding)
	for i := range newUnbonding {
		if remaining.IsZero() {
			break
		}
		entryShareBps := newUnbonding[i].Amount.ShareBasisPoints(base)
		share := penalty.MulBasisPoints(entryShareBps)
		if share.Cmp(remaining) > 0 {
			share = remaining
		}
		newAmt, err := newUnbonding[i].Amount.Sub(share)
		if err != nil {
			newAmt = types.ZeroBalance()
		}
		newUnbonding[i].Amount = newAmt
		remaining, _ = remaining.Sub(share)
	}

	return newActive, newUnbonding
}

// DecayCriticalCount applies the 1-per-26-epoch decay to a validator's
// critical-event counter, to be called at each epoch boundary.
func DecayCriticalCount(count uint32, lastCritical, now types.EpochNumber) uint32 {
	if count == 0 {
		return 0
	}
	elapsed := uint64(now - lastCritical)
	decayed := elapsed / CriticalDecayPeriodEpochs
	if decayed >= uint64(count) {
		return 0
	}
	return count - uint32(decayed)
}

// AdjustReputationSlash applies the fixed -20 reputation penalty, flooring
// at 0.
func AdjustReputationSlash(rep uint8) uint8 {
	if rep < ReputationSlashPenalty {
		return ReputationFloor
	}
	return rep - ReputationSlashPenalty
}

// AdjustReputationProduced applies the +1 reward for producing a block,
// capping at 100.
func AdjustReputationProduced(rep uint8) uint8 {
	if rep >= ReputationMaxCap-ReputationBlockProduced {
		return ReputationMaxCap
	}
	return rep + ReputationBlockProduced
}

// AdjustReputationMissed applies the -1 penalty for missing a scheduled
// block, flooring at 0.
func AdjustReputationMissed(rep uint8) uint8 {
	if rep < ReputationMissedBlock {
		return ReputationFloor
	}
	return rep - ReputationMissedBlock
}
