package leader

import (
	"math"
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func TestWeight_ZeroStakeFloorsAtVCBar(t *testing.T) {
	below := Weight(0, BootstrapMinVCReq-1)
	if below != 0 {
		t.Errorf("Weight(0, %d) = %v, want 0 (below VC bar)", BootstrapMinVCReq-1, below)
	}

	at := Weight(0, BootstrapMinVCReq)
	if at <= 0 {
		t.Errorf("Weight(0, %d) = %v, want > 0 (VC bar cleared)", BootstrapMinVCReq, at)
	}

	above := Weight(0, BootstrapMinVCReq+500)
	if above <= at {
		t.Errorf("Weight(0, %d) = %v, want > Weight(0, %d) = %v", BootstrapMinVCReq+500, above, BootstrapMinVCReq, at)
	}
}

func TestWeight_StakeCappedAtSqrtCap(t *testing.T) {
	atCap := Weight(StakeCapKrat, 1000)
	overCap := Weight(StakeCapKrat*4, 1000)
	if atCap != overCap {
		t.Errorf("Weight() at cap = %v, over cap = %v, want equal (stake term saturates)", atCap, overCap)
	}
}

func TestWeight_MonotonicInStakeAndVC(t *testing.T) {
	lowStake := Weight(100, 1000)
	highStake := Weight(10000, 1000)
	if highStake <= lowStake {
		t.Errorf("Weight() not monotonic in stake: %v (100 KRAT) >= %v (10000 KRAT)", lowStake, highStake)
	}

	lowVC := Weight(1000, 10)
	highVC := Weight(1000, 10000)
	if highVC <= lowVC {
		t.Errorf("Weight() not monotonic in vc_total: %v (vc=10) >= %v (vc=10000)", lowVC, highVC)
	}
}

func validatorFor(id byte, stake uint64, voteVC uint64, reputation uint8, status types.ValidatorStatus) types.Validator {
	var account types.AccountID
	account[0] = id
	return types.Validator{
		ID:         account,
		Stake:      types.KratToBalance(stake),
		VC:         types.ValidatorCredits{Vote: voteVC},
		Reputation: reputation,
		Status:     status,
	}
}

func vrfFor(id byte, firstByte byte) map[types.AccountID]types.Hash {
	var account types.AccountID
	account[0] = id
	var h types.Hash
	h[0] = firstByte
	return map[types.AccountID]types.Hash{account: h}
}

func TestBuildCandidates_ExcludesZeroReputation(t *testing.T) {
	v := validatorFor(1, 1000, 200, 0, types.StatusActive)
	vrf := vrfFor(1, 0x10)
	id, ok := SelectLeader([]types.Validator{v}, vrf, false)
	if ok {
		t.Errorf("SelectLeader() with Reputation=0 = (%v, %v), want no candidate", id, ok)
	}
}

func TestBuildCandidates_ExcludesZeroStakeBelowVCBar(t *testing.T) {
	v := validatorFor(1, 0, BootstrapMinVCReq-1, 100, types.StatusActive)
	vrf := vrfFor(1, 0x10)
	if _, ok := SelectLeader([]types.Validator{v}, vrf, false); ok {
		t.Error("SelectLeader() with stake=0, vc below bar = candidate present, want excluded")
	}
}

func TestBuildCandidates_AdmitsZeroStakeAboveVCBar(t *testing.T) {
	v := validatorFor(1, 0, BootstrapMinVCReq, 100, types.StatusActive)
	vrf := vrfFor(1, 0x10)
	if _, ok := SelectLeader([]types.Validator{v}, vrf, false); !ok {
		t.Error("SelectLeader() with stake=0, vc at bar = no candidate, want admitted")
	}
}

func TestBuildCandidates_ExcludesInactiveStatus(t *testing.T) {
	v := validatorFor(1, 1000, 200, 100, types.StatusJailed)
	vrf := vrfFor(1, 0x10)
	if _, ok := SelectLeader([]types.Validator{v}, vrf, false); ok {
		t.Error("SelectLeader() with Status=Jailed = candidate present, want excluded")
	}
}

func TestBuildCandidates_ExcludesMissingVRFOutput(t *testing.T) {
	v := validatorFor(1, 1000, 200, 100, types.StatusActive)
	if _, ok := SelectLeader([]types.Validator{v}, map[types.AccountID]types.Hash{}, false); ok {
		t.Error("SelectLeader() with no VRF output for sole validator = candidate present, want excluded")
	}
}

func TestSelectLeader_NoCandidatesReturnsFalse(t *testing.T) {
	if _, ok := SelectLeader(nil, nil, false); ok {
		t.Error("SelectLeader(nil, nil) = ok, want false")
	}
}

func TestSelectLeader_Deterministic(t *testing.T) {
	v1 := validatorFor(1, 5000, 300, 100, types.StatusActive)
	v2 := validatorFor(2, 8000, 150, 100, types.StatusActive)
	validators := []types.Validator{v1, v2}
	vrf := map[types.AccountID]types.Hash{}
	for k, v := range vrfFor(1, 0x40) {
		vrf[k] = v
	}
	for k, v := range vrfFor(2, 0x80) {
		vrf[k] = v
	}

	first, ok := SelectLeader(validators, vrf, false)
	if !ok {
		t.Fatal("SelectLeader() = not ok, want a winner")
	}
	for i := 0; i < 10; i++ {
		got, ok := SelectLeader(validators, vrf, false)
		if !ok || got != first {
			t.Fatalf("SelectLeader() repeat call = (%v, %v), want (%v, true)", got, ok, first)
		}
	}
}

func TestVRFOutput_Deterministic(t *testing.T) {
	var sig types.Signature
	sig[0] = 0xAB
	a := VRFOutput(sig)
	b := VRFOutput(sig)
	if a != b {
		t.Errorf("VRFOutput() not deterministic for identical signature: %v != %v", a, b)
	}

	sig[0] = 0xCD
	c := VRFOutput(sig)
	if c == a {
		t.Error("VRFOutput() produced the same output for two different signatures")
	}
}

func TestCandidateScore_NeverZero(t *testing.T) {
	var zero types.Hash
	if s := candidateScore(zero); s <= 0 {
		t.Errorf("candidateScore(zero hash) = %v, want > 0 (ln(0) must never be evaluated)", s)
	}

	var max types.Hash
	for i := range max {
		max[i] = 0xFF
	}
	if s := candidateScore(max); s > 1 || s <= 0 {
		t.Errorf("candidateScore(max hash) = %v, want in (0,1]", s)
	}
}

func TestWeight_NeverNegativeOrNaN(t *testing.T) {
	w := Weight(0, 0)
	if w < 0 || math.IsNaN(w) {
		t.Errorf("Weight(0, 0) = %v, want a finite non-negative value", w)
	}
}
