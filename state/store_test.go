package state

import (
	"errors"
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func accountFor(b byte) types.AccountID {
	var id types.AccountID
	id[0] = b
	return id
}

func TestStore_GetAccount_MissingReturnsZeroValue(t *testing.T) {
	s := NewStore(0)
	acc := s.GetAccount(accountFor(0x01))
	if !acc.IsEmpty() {
		t.Errorf("GetAccount() on an unknown id = %+v, want the zero account", acc)
	}
	if s.AccountExists(accountFor(0x01)) {
		t.Error("AccountExists() on an unknown id = true, want false")
	}
}

func TestStore_Mutate_CommitsOnSuccess(t *testing.T) {
	s := NewStore(0)
	id := accountFor(0x01)
	err := s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(100)})
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if got := s.GetAccount(id); got.Balance.Cmp(types.KratToBalance(100)) != 0 {
		t.Errorf("GetAccount() after commit = %+v, want Balance=100 KRAT", got)
	}
	if !s.AccountExists(id) {
		t.Error("AccountExists() after commit = false, want true")
	}
}

func TestStore_Mutate_RollsBackOnError(t *testing.T) {
	s := NewStore(0)
	id := accountFor(0x01)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(100)})
		return nil
	})

	sentinel := errors.New("boom")
	err := s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(999)})
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Mutate() error = %v, want the sentinel error", err)
	}

	if got := s.GetAccount(id); got.Balance.Cmp(types.KratToBalance(100)) != 0 {
		t.Errorf("GetAccount() after rolled-back Mutate() = %+v, want unchanged Balance=100 KRAT", got)
	}
}

func TestStore_Mutate_RollsBackNewlyCreatedAccount(t *testing.T) {
	s := NewStore(0)
	id := accountFor(0x02)
	sentinel := errors.New("boom")

	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(1)})
		return sentinel
	})

	if s.AccountExists(id) {
		t.Error("AccountExists() = true after a rolled-back Mutate() that created the account, want false")
	}
}

func TestWriteScope_ReflectsWritesWithinSameScope(t *testing.T) {
	s := NewStore(0)
	id := accountFor(0x03)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(5)})
		if !ws.AccountExists(id) {
			t.Error("WriteScope.AccountExists() = false immediately after SetAccount within the same scope")
		}
		if got := ws.GetAccount(id); got.Balance.Cmp(types.KratToBalance(5)) != 0 {
			t.Errorf("WriteScope.GetAccount() = %+v, want the just-written value", got)
		}
		return nil
	})
}

func TestWriteScope_SnapshotRevertsOnlySinceSnapshot(t *testing.T) {
	s := NewStore(0)
	id := accountFor(0x04)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(1)})
		snap := ws.Snapshot()
		ws.SetAccount(id, types.Account{Balance: types.KratToBalance(2)})
		ws.RevertToSnapshot(snap)
		if got := ws.GetAccount(id); got.Balance.Cmp(types.KratToBalance(1)) != 0 {
			t.Errorf("GetAccount() after RevertToSnapshot = %+v, want Balance=1 KRAT (pre-snapshot value)", got)
		}
		return nil
	})
}

func TestComputeStateRoot_Deterministic(t *testing.T) {
	s := NewStore(0)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(10)})
		ws.SetAccount(accountFor(0x02), types.Account{Balance: types.KratToBalance(20)})
		ws.SetVCRecord(accountFor(0x01), types.ValidatorCredits{Vote: 3})
		return nil
	})

	validators := []types.Validator{{ID: accountFor(0x01), Stake: types.KratToBalance(50_000)}}
	a := s.ComputeStateRoot(1, 7, validators)
	b := s.ComputeStateRoot(1, 7, validators)
	if a != b {
		t.Error("ComputeStateRoot() not deterministic for identical input")
	}
}

func TestComputeStateRoot_IndependentOfInsertionOrder(t *testing.T) {
	validators := []types.Validator{
		{ID: accountFor(0x01), Stake: types.KratToBalance(10_000)},
		{ID: accountFor(0x02), Stake: types.KratToBalance(20_000)},
	}

	s1 := NewStore(0)
	s1.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(1)})
		ws.SetAccount(accountFor(0x02), types.Account{Balance: types.KratToBalance(2)})
		return nil
	})
	root1 := s1.ComputeStateRoot(5, 1, validators)

	s2 := NewStore(0)
	s2.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x02), types.Account{Balance: types.KratToBalance(2)})
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(1)})
		return nil
	})
	root2 := s2.ComputeStateRoot(5, 1, []types.Validator{validators[1], validators[0]})

	if root1 != root2 {
		t.Error("ComputeStateRoot() depends on map/slice insertion order, want canonical account-id-ascending ordering to make it insertion-order-independent")
	}
}

func TestComputeStateRoot_DiffersByBlockNumber(t *testing.T) {
	s := NewStore(0)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(1)})
		return nil
	})
	a := s.ComputeStateRoot(1, 1, nil)
	b := s.ComputeStateRoot(2, 1, nil)
	if a == b {
		t.Error("ComputeStateRoot() produced the same root for two different block numbers")
	}
}

func TestComputeStateRoot_DiffersByChainID(t *testing.T) {
	s := NewStore(0)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(1)})
		return nil
	})
	a := s.ComputeStateRoot(1, 1, nil)
	b := s.ComputeStateRoot(1, 2, nil)
	if a == b {
		t.Error("ComputeStateRoot() produced the same root for two different chain IDs")
	}
}

func TestComputeStateRoot_DiffersByAccountMutation(t *testing.T) {
	s := NewStore(0)
	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(1)})
		return nil
	})
	before := s.ComputeStateRoot(1, 1, nil)

	s.Mutate(func(ws *WriteScope) error {
		ws.SetAccount(accountFor(0x01), types.Account{Balance: types.KratToBalance(2)})
		return nil
	})
	after := s.ComputeStateRoot(1, 1, nil)

	if before == after {
		t.Error("ComputeStateRoot() unchanged after an account balance mutation")
	}
}
