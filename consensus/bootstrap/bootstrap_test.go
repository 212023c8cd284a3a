package bootstrap

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/state"
)

func TestInitializeBootstrapVC_SetsUptimeTo100(t *testing.T) {
	store := state.NewStore(0)
	var candidate types.AccountID
	candidate[0] = 0x01

	err := store.Mutate(func(ws *state.WriteScope) error {
		InitializeBootstrapVC(ws, candidate)
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	got := store.GetVCRecord(candidate)
	if got.Uptime != 100 {
		t.Errorf("VC record Uptime = %d, want 100", got.Uptime)
	}
}

func TestInitializeBootstrapVC_PreservesOtherCounters(t *testing.T) {
	store := state.NewStore(0)
	var candidate types.AccountID
	candidate[0] = 0x02

	store.Mutate(func(ws *state.WriteScope) error {
		ws.SetVCRecord(candidate, types.ValidatorCredits{Vote: 10, Arbitration: 5, Seniority: 5})
		return nil
	})

	store.Mutate(func(ws *state.WriteScope) error {
		InitializeBootstrapVC(ws, candidate)
		return nil
	})

	got := store.GetVCRecord(candidate)
	want := types.ValidatorCredits{Vote: 10, Uptime: 100, Arbitration: 5, Seniority: 5}
	if got != want {
		t.Errorf("VC record = %+v, want %+v", got, want)
	}
}

func TestInitializeBootstrapVC_RolledBackOnMutateError(t *testing.T) {
	store := state.NewStore(0)
	var candidate types.AccountID
	candidate[0] = 0x03

	errBoom := state.ErrAccountNotFound
	err := store.Mutate(func(ws *state.WriteScope) error {
		InitializeBootstrapVC(ws, candidate)
		return errBoom
	})
	if err != errBoom {
		t.Fatalf("Mutate() error = %v, want %v", err, errBoom)
	}

	if got := store.GetVCRecord(candidate); got.Uptime != 0 {
		t.Errorf("VC record Uptime = %d after rollback, want 0", got.Uptime)
	}
}
