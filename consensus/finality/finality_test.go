package finality

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func accountFor(b byte) types.AccountID {
	var id types.AccountID
	id[0] = b
	return id
}

func TestHasSupermajority(t *testing.T) {
	cases := []struct {
		count, total uint64
		want         bool
	}{
		{67, 100, true},
		{66, 100, false},
		{2, 3, false}, // 2*100=200 < 3*67=201: 2-of-3 alone does not clear 67%
		{0, 0, false},
	}
	for _, tc := range cases {
		if got := HasSupermajority(tc.count, tc.total); got != tc.want {
			t.Errorf("HasSupermajority(%d, %d) = %v, want %v", tc.count, tc.total, got, tc.want)
		}
	}
}

func weights(ids ...types.AccountID) map[types.AccountID]uint64 {
	w := make(map[types.AccountID]uint64, len(ids))
	for _, id := range ids {
		w[id] = 1
	}
	return w
}

func TestRound_AdvancesThroughPhasesOnSupermajority(t *testing.T) {
	v1, v2, v3 := accountFor(1), accountFor(2), accountFor(3)
	target := types.Hash{0xAA}
	r := NewRound(0, 0, 10, target, weights(v1, v2, v3))

	if r.Phase() != PhasePrevoting {
		t.Fatalf("initial Phase() = %v, want Prevoting", r.Phase())
	}

	vote := func(voter types.AccountID, kind types.VoteKind) types.FinalityVote {
		return types.FinalityVote{Kind: kind, TargetNumber: 10, TargetHash: target, Round: 0, Epoch: 0, Voter: voter}
	}

	// With 3 equal-weight voters, 2/3 (66.6%) does not clear the 67% bound;
	// all three must vote before the round advances.
	if _, err := r.AddVote(vote(v1, types.VotePrevote)); err != nil {
		t.Fatalf("AddVote(v1 prevote) error = %v", err)
	}
	if _, err := r.AddVote(vote(v2, types.VotePrevote)); err != nil {
		t.Fatalf("AddVote(v2 prevote) error = %v", err)
	}
	if r.Phase() != PhasePrevoting {
		t.Fatalf("Phase() after 2/3 prevotes = %v, want still Prevoting (67%% not cleared by 2/3)", r.Phase())
	}
	if _, err := r.AddVote(vote(v3, types.VotePrevote)); err != nil {
		t.Fatalf("AddVote(v3 prevote) error = %v", err)
	}
	if r.Phase() != PhasePrecommitting {
		t.Fatalf("Phase() after 3/3 prevotes = %v, want Precommitting", r.Phase())
	}

	if _, err := r.AddVote(vote(v1, types.VotePrecommit)); err != nil {
		t.Fatalf("AddVote(v1 precommit) error = %v", err)
	}
	if _, err := r.AddVote(vote(v2, types.VotePrecommit)); err != nil {
		t.Fatalf("AddVote(v2 precommit) error = %v", err)
	}
	if r.Phase() != PhasePrecommitting {
		t.Fatalf("Phase() after 2/3 precommits = %v, want still Precommitting", r.Phase())
	}
	if _, err := r.AddVote(vote(v3, types.VotePrecommit)); err != nil {
		t.Fatalf("AddVote(v3 precommit) error = %v", err)
	}
	if r.Phase() != PhaseCompleted {
		t.Fatalf("Phase() after 3/3 precommits = %v, want Completed", r.Phase())
	}

	just, ok := r.Justification()
	if !ok {
		t.Fatal("Justification() ok = false after completion, want true")
	}
	if just.BlockNumber != 10 || just.BlockHash != target {
		t.Errorf("Justification() = %+v, want BlockNumber=10 BlockHash=%v", just, target)
	}
	if len(just.Signatures) != 3 {
		t.Errorf("Justification() has %d signatures, want 3 precommitters", len(just.Signatures))
	}
}

func TestRound_JustificationBeforeCompletionFails(t *testing.T) {
	r := NewRound(0, 0, 10, types.Hash{0xAA}, weights(accountFor(1), accountFor(2), accountFor(3)))
	if _, ok := r.Justification(); ok {
		t.Error("Justification() before completion = ok, want false")
	}
}

func TestRound_AddVote_WrongTargetRejected(t *testing.T) {
	r := NewRound(0, 0, 10, types.Hash{0xAA}, weights(accountFor(1)))
	vote := types.FinalityVote{Kind: types.VotePrevote, TargetNumber: 11, TargetHash: types.Hash{0xAA}, Voter: accountFor(1)}
	if _, err := r.AddVote(vote); err != ErrWrongTarget {
		t.Errorf("AddVote() with wrong TargetNumber error = %v, want ErrWrongTarget", err)
	}
}

func TestRound_AddVote_DuplicateIsIdempotent(t *testing.T) {
	v1 := accountFor(1)
	target := types.Hash{0xAA}
	r := NewRound(0, 0, 10, target, weights(v1, accountFor(2), accountFor(3)))
	vote := types.FinalityVote{Kind: types.VotePrevote, TargetNumber: 10, TargetHash: target, Round: 0, Voter: v1}

	if _, err := r.AddVote(vote); err != nil {
		t.Fatalf("AddVote() first call error = %v", err)
	}
	proof, err := r.AddVote(vote)
	if err != nil || proof != nil {
		t.Errorf("AddVote() identical repeat = (%v, %v), want (nil, nil)", proof, err)
	}
}

func TestRound_AddVote_EquivocationDetected(t *testing.T) {
	v1 := accountFor(1)
	target := types.Hash{0xAA}
	r := NewRound(0, 0, 10, target, weights(v1, accountFor(2), accountFor(3)))

	first := types.FinalityVote{Kind: types.VotePrecommit, TargetNumber: 10, TargetHash: target, Round: 0, Voter: v1}
	if _, err := r.AddVote(first); err != nil {
		t.Fatalf("AddVote(first) error = %v", err)
	}

	conflicting := first
	conflicting.Round = 1
	proof, err := r.AddVote(conflicting)
	if err != ErrEquivocation {
		t.Fatalf("AddVote(conflicting) error = %v, want ErrEquivocation", err)
	}
	if proof == nil || proof.Voter != v1 || proof.Vote1 != first || proof.Vote2 != conflicting {
		t.Errorf("AddVote(conflicting) proof = %+v, want voter %v with both votes recorded", proof, v1)
	}
}

func TestRound_Fail_DoesNotOverrideCompleted(t *testing.T) {
	v1, v2 := accountFor(1), accountFor(2)
	target := types.Hash{0xAA}
	r := NewRound(0, 0, 10, target, weights(v1, v2))

	vote := func(voter types.AccountID) types.FinalityVote {
		return types.FinalityVote{Kind: types.VotePrevote, TargetNumber: 10, TargetHash: target, Voter: voter}
	}
	r.AddVote(vote(v1))
	r.AddVote(vote(v2))
	if r.Phase() != PhasePrecommitting {
		t.Fatalf("setup: Phase() = %v, want Precommitting", r.Phase())
	}

	precommit := func(voter types.AccountID) types.FinalityVote {
		return types.FinalityVote{Kind: types.VotePrecommit, TargetNumber: 10, TargetHash: target, Voter: voter}
	}
	r.AddVote(precommit(v1))
	r.AddVote(precommit(v2))
	if r.Phase() != PhaseCompleted {
		t.Fatalf("setup: Phase() = %v, want Completed", r.Phase())
	}

	r.Fail()
	if r.Phase() != PhaseCompleted {
		t.Errorf("Phase() after Fail() on a completed round = %v, want still Completed", r.Phase())
	}
}

func TestRound_Fail_MarksIncompleteRoundFailed(t *testing.T) {
	r := NewRound(0, 0, 10, types.Hash{0xAA}, weights(accountFor(1), accountFor(2), accountFor(3)))
	r.Fail()
	if r.Phase() != PhaseFailed {
		t.Errorf("Phase() after Fail() = %v, want Failed", r.Phase())
	}
}
