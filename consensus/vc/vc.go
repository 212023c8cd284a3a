// Package vc implements the Validator Credits merit system: the four
// sub-counter windows (vote/uptime/arbitration/seniority), their caps and
// reset cadences, the bootstrap-era 2x multiplier, epoch-boundary decay for
// missed epochs, and the VC-based stake-requirement reduction. Grounded on
// the teacher's epoch_boundary.go per-epoch validator sweep and
// reward_calculator_v2.go's windowed-accumulator shape, generalized from
// beacon-chain attestation rewards to the merit-score model.
package vc

import "github.com/kratoschain/kratos/core/types"

// Window caps, fixed by the component design (§4.7).
const (
	VoteCapPerEpoch        = 3
	VoteCapPer4Epochs      = 50
	UptimeCapPerEpoch      = 1
	UptimeAutoThresholdPct = 95
	ArbitrationGain        = 5
	ArbitrationCapPer52    = 5
	SeniorityGain          = 5
	SeniorityCapPer4       = 1

	BootstrapMultiplier = 2 // applies to vote and uptime gains only

	VCNormDenominator = 5000 // VC_norm = min(total_vc/5000, 1)
)

// Stake-requirement reduction parameters, which differ between the
// bootstrap era and normal operation (§4.7).
type ReductionParams struct {
	MaxReduction float64 // fraction, e.g. 0.99 or 0.95
	Floor        uint64  // absolute floor in KRAT
}

func BootstrapReduction() ReductionParams { return ReductionParams{MaxReduction: 0.99, Floor: 50_000} }
func NormalReduction() ReductionParams    { return ReductionParams{MaxReduction: 0.95, Floor: 25_000} }

// VCNorm computes min(total_vc/5000, 1) as a float in [0,1].
func VCNorm(totalVC uint64) float64 {
	n := float64(totalVC) / float64(VCNormDenominator)
	if n > 1 {
		n = 1
	}
	return n
}

// RequiredStake computes max(nominal*(1-max_reduction*VC_norm), floor).
func RequiredStake(nominalKrat uint64, totalVC uint64, p ReductionParams) uint64 {
	norm := VCNorm(totalVC)
	reduced := float64(nominalKrat) * (1 - p.MaxReduction*norm)
	floor := float64(p.Floor)
	if reduced < floor {
		return p.Floor
	}
	return uint64(reduced)
}

// Accumulator tracks the rolling windows needed to enforce the per-epoch and
// multi-epoch caps for one validator. The chain engine keeps one per active
// validator, keyed by AccountID, alongside the persisted ValidatorCredits
// totals in state.Store.
type Accumulator struct {
	// voteThisEpoch/voteLast4Epochs track the two vote caps independently;
	// voteLast4Epochs is a ring of the last 4 per-epoch totals.
	voteThisEpoch   uint64
	voteLast4Epochs [4]uint64
	epochCursor     int

	uptimeThisEpoch uint64

	arbitrationLast52 uint64 // running total within the trailing 52-epoch window start
	arbitrationWindowStart types.EpochNumber

	seniorityLast4 uint64
	seniorityWindowStart types.EpochNumber
}

// NewAccumulator returns a zeroed accumulator anchored at the given epoch.
func NewAccumulator(at types.EpochNumber) *Accumulator {
	return &Accumulator{arbitrationWindowStart: at, seniorityWindowStart: at}
}

// GrantVote credits +1 vote VC if the per-epoch (3) and 4-epoch (50) caps
// both still have room; doubled during the bootstrap era. Returns the
// amount actually credited.
func (a *Accumulator) GrantVote(bootstrap bool) uint64 {
	gain, epochCap, windowCap := uint64(1), uint64(VoteCapPerEpoch), uint64(VoteCapPer4Epochs)
	if bootstrap {
		gain, epochCap, windowCap = BootstrapMultiplier, VoteCapPerEpoch*BootstrapMultiplier, VoteCapPer4Epochs*BootstrapMultiplier
	}
	if a.voteThisEpoch+gain > epochCap {
		gain = saturatingDelta(a.voteThisEpoch, epochCap)
	}
	var sum4 uint64
	for _, v := range a.voteLast4Epochs {
		sum4 += v
	}
	if sum4+gain > windowCap {
		gain = saturatingDelta(sum4, windowCap)
	}
	a.voteThisEpoch += gain
	return gain
}

// GrantUptime credits +1 uptime VC automatically when epoch participation
// is >= 95%, capped at 1 per epoch; doubled during the bootstrap era.
func (a *Accumulator) GrantUptime(participationPct int, bootstrap bool) uint64 {
	if participationPct < UptimeAutoThresholdPct {
		return 0
	}
	gain, cap := uint64(1), uint64(UptimeCapPerEpoch)
	if bootstrap {
		gain, cap = BootstrapMultiplier, UptimeCapPerEpoch*BootstrapMultiplier
	}
	if a.uptimeThisEpoch+gain > cap {
		gain = saturatingDelta(a.uptimeThisEpoch, cap)
	}
	a.uptimeThisEpoch += gain
	return gain
}

// GrantArbitration credits +5 per successful arbitration outcome, capped at
// 5 within a trailing 52-epoch window. Not subject to the bootstrap
// multiplier.
func (a *Accumulator) GrantArbitration(now types.EpochNumber) uint64 {
	a.rollArbitrationWindow(now)
	gain := uint64(ArbitrationGain)
	if a.arbitrationLast52+gain > ArbitrationCapPer52 {
		gain = saturatingDelta(a.arbitrationLast52, ArbitrationCapPer52)
	}
	a.arbitrationLast52 += gain
	return gain
}

// GrantSeniority credits +5 automatically every 4 epochs of continuous
// active service, capped at 1 grant per 4-epoch window.
func (a *Accumulator) GrantSeniority(now types.EpochNumber) uint64 {
	a.rollSeniorityWindow(now)
	if a.seniorityLast4 >= SeniorityCapPer4 {
		return 0
	}
	a.seniorityLast4++
	return SeniorityGain
}

// AdvanceEpoch rotates the per-epoch vote window and resets the per-epoch
// uptime counter; called once per epoch boundary for every accumulator.
func (a *Accumulator) AdvanceEpoch() {
	a.epochCursor = (a.epochCursor + 1) % 4
	a.voteLast4Epochs[a.epochCursor] = a.voteThisEpoch
	a.voteThisEpoch = 0
	a.uptimeThisEpoch = 0
}

func (a *Accumulator) rollArbitrationWindow(now types.EpochNumber) {
	if now-a.arbitrationWindowStart >= 52 {
		a.arbitrationLast52 = 0
		a.arbitrationWindowStart = now
	}
}

func (a *Accumulator) rollSeniorityWindow(now types.EpochNumber) {
	if now-a.seniorityWindowStart >= 4 {
		a.seniorityLast4 = 0
		a.seniorityWindowStart = now
	}
}

// DecayMissedEpoch applies the linear 1-unit-per-sub-counter-per-missed-epoch
// decay (DESIGN.md Open Question OQ4), flooring at zero, to the persisted VC
// totals for a validator that missed participation during an epoch.
func DecayMissedEpoch(credits types.ValidatorCredits) types.ValidatorCredits {
	return types.ValidatorCredits{
		Vote:        saturatingSub(credits.Vote, 1),
		Uptime:      saturatingSub(credits.Uptime, 1),
		Arbitration: saturatingSub(credits.Arbitration, 1),
		Seniority:   saturatingSub(credits.Seniority, 1),
	}
}

func saturatingSub(v, d uint64) uint64 {
	if v < d {
		return 0
	}
	return v - d
}

func saturatingDelta(cur, cap uint64) uint64 {
	if cur >= cap {
		return 0
	}
	return cap - cur
}

