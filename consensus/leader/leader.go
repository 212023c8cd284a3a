// Package leader implements VRF-weighted slot-leader selection: each active
// validator's weight combines stake (square-root-capped) and Validator
// Credits (log-scaled), and the leader for a slot is chosen by a weighted
// exponential race over per-validator VRF outputs. Grounded on the
// teacher's vrf_election.go (VRF-proof generation/verification shape) and
// proposer_election.go (per-slot deterministic selection from a committee),
// generalized from BLS-VRF-over-RANDAO to an ed25519-keyed, stake+VC
// weighted race.
package leader

import (
	"math"
	"sort"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
)

const (
	StakeCapKrat      = 1_000_000
	MinEffectiveVC    = 1
	BootstrapMinVCReq = 100
)

// Weight computes w(v) = min(sqrt(stake), sqrt(STAKE_CAP)) *
// ln(1+max(vc_total, MIN_EFFECTIVE_VC)), per the component design (§4.5).
// stakeKrat is the validator's stake expressed in whole KRAT (see
// types.Balance.KratFloat), not base units.
//
// A validator admitted with zero stake (the bootstrap early-validator path,
// §4.15) that has since earned vc_total >= BootstrapMinVCReq must have a
// nonzero weight (§8.2 property 2: VRF_weight(V) > 0 ⇔ V.vc_total ≥ 100,
// for stake == 0 validators) — sqrt(0) alone would zero out the whole
// product regardless of VC, so the stake term floors at a nominal 1 KRAT
// once that VC bar is cleared, mirroring the same MIN_EFFECTIVE pattern
// already used for vc_total below.
func Weight(stakeKrat float64, vcTotal uint64) float64 {
	stake := stakeKrat
	if stake <= 0 && vcTotal >= BootstrapMinVCReq {
		stake = 1
	}
	cap := float64(StakeCapKrat)
	stakeTerm := math.Sqrt(stake)
	capTerm := math.Sqrt(cap)
	if stakeTerm > capTerm {
		stakeTerm = capTerm
	}

	effVC := vcTotal
	if effVC < MinEffectiveVC {
		effVC = MinEffectiveVC
	}
	vcTerm := math.Log(1 + float64(effVC))

	return stakeTerm * vcTerm
}

// candidateScore is the VRF output for a validator at a given slot, reduced
// to a float in (0,1] for the weighted race. The VRF output itself is the
// validator's ed25519 signature over the domain-separated (slot, round)
// message, hashed to a uniform value.
func candidateScore(vrfOutput types.Hash) float64 {
	// Treat the first 8 bytes of the VRF output as a uniform uint64 and map
	// to (0,1]; adding 1 to the numerator avoids score == 0 (ln(0) is -Inf).
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(vrfOutput[i])
	}
	return (float64(v) + 1) / (math.MaxUint64 + 1.0)
}

// VRFOutput computes the deterministic VRF-style output for one validator
// at one slot: the domain-separated hash of the validator's signature over
// the slot/round preimage. Callers supply the validator's own signature
// (produced by signing the slot message with their node key) so the output
// is both unpredictable-in-advance and universally verifiable after the
// fact, the standard VRF-via-signature construction.
func VRFOutput(sig types.Signature) types.Hash {
	return crypto.HashToHash(sig[:])
}

// Candidate is one validator's weight and VRF score for a given slot.
type Candidate struct {
	ID     types.AccountID
	Weight float64
	Score  float64
}

// SelectLeader runs the weighted exponential race
// argmax_v(-ln(score(v)) * w(v)) over candidates and returns the winner.
// Ties (possible only with a degenerate VRF implementation) are broken by
// AccountID ascending for determinism.
func SelectLeader(validators []types.Validator, vrfOutputs map[types.AccountID]types.Hash, bootstrap bool) (types.AccountID, bool) {
	candidates := buildCandidates(validators, vrfOutputs, bootstrap)
	if len(candidates) == 0 {
		return types.AccountID{}, false
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID.Less(candidates[j].ID) })

	best := candidates[0]
	bestValue := raceValue(best)
	for _, c := range candidates[1:] {
		v := raceValue(c)
		if v > bestValue {
			best, bestValue = c, v
		}
	}
	return best.ID, true
}

func raceValue(c Candidate) float64 {
	return -math.Log(c.Score) * c.Weight
}

// bootstrap is accepted for callers that key off it elsewhere (the
// clock-health priority_modifier, §4.9) but no longer gates eligibility
// here directly — the spec conditions the VC-floor exclusion on
// v.stake == 0, not on whether the chain itself is in its bootstrap era.
func buildCandidates(validators []types.Validator, vrfOutputs map[types.AccountID]types.Hash, bootstrap bool) []Candidate {
	out := make([]Candidate, 0, len(validators))
	for _, v := range validators {
		if v.Status != types.StatusActive {
			continue
		}
		if v.Reputation == 0 {
			continue
		}
		if v.Stake.IsZero() && v.VC.Total() < BootstrapMinVCReq {
			continue
		}
		out_, ok := vrfOutputs[v.ID]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			ID:     v.ID,
			Weight: Weight(v.Stake.KratFloat(), v.VC.Total()),
			Score:  candidateScore(out_),
		})
	}
	return out
}
