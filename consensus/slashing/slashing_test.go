package slashing

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func TestApplyVC_ProportionalAcrossSubCounters(t *testing.T) {
	credits := types.ValidatorCredits{Vote: 100, Uptime: 40, Arbitration: 5, Seniority: 5}
	sched := Schedules[SeverityCritical] // 5000bps = 50%

	got := ApplyVC(credits, sched)
	want := types.ValidatorCredits{Vote: 50, Uptime: 20, Arbitration: 2, Seniority: 2}
	if got != want {
		t.Errorf("ApplyVC() = %+v, want %+v", got, want)
	}
}

func TestApplyVC_FloorsAtZero(t *testing.T) {
	credits := types.ValidatorCredits{Vote: 1}
	sched := Schedule{VCPenaltyBps: 10000}
	got := ApplyVC(credits, sched)
	if got.Vote != 0 {
		t.Errorf("ApplyVC() Vote = %d, want 0", got.Vote)
	}
}

func TestStakePenaltyAmount(t *testing.T) {
	base := types.KratToBalance(10_000)
	got := StakePenaltyAmount(base, 500) // 5%
	want := types.KratToBalance(500)
	if got.Cmp(want) != 0 {
		t.Errorf("StakePenaltyAmount(10000, 500bps) = %v, want %v", got, want)
	}
}

// TestDebitProportional_UnbondingCannotShieldStake drives the mandatory
// scenario: a validator begins unbonding part of its stake, then a later
// slash event must debit both the remaining active stake and the pending
// unbond proportionally against the combined base, so re-staking or partial
// unbonding between the two events never shrinks the slashable amount.
func TestDebitProportional_UnbondingCannotShieldStake(t *testing.T) {
	active := types.KratToBalance(20_000)
	unbonding := []types.UnbondingEntry{
		{Amount: types.KratToBalance(30_000), MatureEpoch: 200},
	}
	// base = 50,000 KRAT; High severity at 500bps (5%) = 2,500 KRAT penalty.
	sched := Schedules[SeverityHigh]
	base, _ := active.Add(unbonding[0].Amount)
	totalPenalty := StakePenaltyAmount(base, sched.StakePenaltyMaxBp)
	wantTotalPenalty := types.KratToBalance(2_500)
	if totalPenalty.Cmp(wantTotalPenalty) != 0 {
		t.Fatalf("total penalty = %v, want %v", totalPenalty, wantTotalPenalty)
	}

	newActive, newUnbonding := DebitProportional(active, unbonding, totalPenalty)

	// active is 40% of the 50,000 base, unbonding is 60%: penalty splits
	// 1,000 / 1,500 KRAT respectively.
	wantActive := types.KratToBalance(19_000)
	wantUnbonding := types.KratToBalance(28_500)

	if newActive.Cmp(wantActive) != 0 {
		t.Errorf("DebitProportional() active = %v, want %v", newActive, wantActive)
	}
	if len(newUnbonding) != 1 || newUnbonding[0].Amount.Cmp(wantUnbonding) != 0 {
		t.Errorf("DebitProportional() unbonding = %+v, want amount %v", newUnbonding, wantUnbonding)
	}
	if newUnbonding[0].MatureEpoch != 200 {
		t.Errorf("DebitProportional() changed MatureEpoch to %d, want unchanged 200", newUnbonding[0].MatureEpoch)
	}

	debitedActive, _ := active.Sub(newActive)
	debitedUnbonding, _ := unbonding[0].Amount.Sub(newUnbonding[0].Amount)
	totalDebited, _ := debitedActive.Add(debitedUnbonding)
	if totalDebited.Cmp(totalPenalty) != 0 {
		t.Errorf("sum of debits = %v, want total penalty %v", totalDebited, totalPenalty)
	}
}

func TestDebitProportional_NoUnbonding(t *testing.T) {
	active := types.KratToBalance(10_000)
	penalty := types.KratToBalance(500)
	newActive, newUnbonding := DebitProportional(active, nil, penalty)
	want := types.KratToBalance(9_500)
	if newActive.Cmp(want) != 0 {
		t.Errorf("DebitProportional() active = %v, want %v", newActive, want)
	}
	if len(newUnbonding) != 0 {
		t.Errorf("DebitProportional() unbonding = %+v, want empty", newUnbonding)
	}
}

func TestDebitProportional_ZeroBaseIsNoop(t *testing.T) {
	active := types.ZeroBalance()
	newActive, newUnbonding := DebitProportional(active, nil, types.KratToBalance(1))
	if !newActive.IsZero() || len(newUnbonding) != 0 {
		t.Errorf("DebitProportional() with zero base mutated state: active=%v unbonding=%v", newActive, newUnbonding)
	}
}

func TestDecayCriticalCount(t *testing.T) {
	cases := []struct {
		name         string
		count        uint32
		lastCritical types.EpochNumber
		now          types.EpochNumber
		want         uint32
	}{
		{"zero stays zero", 0, 0, 1000, 0},
		{"no elapse, no decay", 3, 100, 100, 3},
		{"one period decays by one", 3, 0, CriticalDecayPeriodEpochs, 2},
		{"many periods floor at zero", 3, 0, CriticalDecayPeriodEpochs * 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecayCriticalCount(tc.count, tc.lastCritical, tc.now)
			if got != tc.want {
				t.Errorf("DecayCriticalCount(%d, %d, %d) = %d, want %d", tc.count, tc.lastCritical, tc.now, got, tc.want)
			}
		})
	}
}

func TestAdjustReputationSlash_FloorsAtZero(t *testing.T) {
	if got := AdjustReputationSlash(10); got != 0 {
		t.Errorf("AdjustReputationSlash(10) = %d, want 0", got)
	}
	if got := AdjustReputationSlash(100); got != 80 {
		t.Errorf("AdjustReputationSlash(100) = %d, want 80", got)
	}
}

func TestAdjustReputationProduced_CapsAt100(t *testing.T) {
	if got := AdjustReputationProduced(100); got != 100 {
		t.Errorf("AdjustReputationProduced(100) = %d, want 100", got)
	}
	if got := AdjustReputationProduced(50); got != 51 {
		t.Errorf("AdjustReputationProduced(50) = %d, want 51", got)
	}
}

func TestAdjustReputationMissed_FloorsAtZero(t *testing.T) {
	if got := AdjustReputationMissed(0); got != 0 {
		t.Errorf("AdjustReputationMissed(0) = %d, want 0", got)
	}
	if got := AdjustReputationMissed(1); got != 0 {
		t.Errorf("AdjustReputationMissed(1) = %d, want 0", got)
	}
}
