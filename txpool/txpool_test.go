package txpool

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
)

func hashFn(b []byte) types.Hash { return crypto.HashToHash(b) }

func mkSender(b byte) types.AccountID {
	var id types.AccountID
	id[0] = b
	return id
}

func mkTx(sender types.AccountID, nonce uint64, fee uint64) types.SignedTransaction {
	tx := types.Transaction{
		Sender: sender,
		Nonce:  nonce,
		Fee:    types.NewBalance(fee),
		Call:   types.Call{Kind: types.CallTransfer, Transfer: &types.TransferCall{To: mkSender(99), Amount: types.NewBalance(1)}},
	}
	return types.SignedTransaction{Tx: tx}
}

type fakeReader struct {
	nonces map[types.AccountID]uint64
}

func (f fakeReader) GetAccount(id types.AccountID) types.Account {
	return types.Account{Nonce: f.nonces[id]}
}

func TestAddRejectsNonceBelowCurrent(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	err := p.Add(mkTx(sender, 3, 100), 5, hashFn, types.EncodeTransaction)
	if err != ErrNonceTooLow {
		t.Fatalf("expected ErrNonceTooLow, got %v", err)
	}
}

func TestAddRejectsNonceBeyondMaxGap(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	// current=5, MaxGap=2 -> accepted range [5,7]; 8 must be rejected.
	err := p.Add(mkTx(sender, 8, 100), 5, hashFn, types.EncodeTransaction)
	if err != ErrNonceGapTooWide {
		t.Fatalf("expected ErrNonceGapTooWide, got %v", err)
	}
}

func TestAddAcceptsWithinGap(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	for _, n := range []uint64{5, 6, 7} {
		if err := p.Add(mkTx(sender, n, 100), 5, hashFn, types.EncodeTransaction); err != nil {
			t.Fatalf("nonce %d: unexpected error %v", n, err)
		}
	}
	if p.Len() != 3 {
		t.Fatalf("expected 3 pooled, got %d", p.Len())
	}
}

func TestReplaceByFeeRequiresTenPercentBump(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	if err := p.Add(mkTx(sender, 5, 100), 5, hashFn, types.EncodeTransaction); err != nil {
		t.Fatalf("initial add: %v", err)
	}
	// 109 is below the required 110 (1.10x of 100).
	if err := p.Add(mkTx(sender, 5, 109), 5, hashFn, types.EncodeTransaction); err != ErrUnderpriced {
		t.Fatalf("expected ErrUnderpriced, got %v", err)
	}
	// Exactly 110 clears the bump.
	if err := p.Add(mkTx(sender, 5, 110), 5, hashFn, types.EncodeTransaction); err != nil {
		t.Fatalf("expected replacement to succeed, got %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected replacement to keep pool at 1, got %d", p.Len())
	}
}

func TestAddRejectsDuplicateHash(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	tx := mkTx(sender, 5, 100)
	if err := p.Add(tx, 5, hashFn, types.EncodeTransaction); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := p.Add(tx, 5, hashFn, types.EncodeTransaction); err != ErrAlreadyKnown {
		t.Fatalf("expected ErrAlreadyKnown, got %v", err)
	}
}

func TestSelectWithStateStartsFromOnChainNonceNotZero(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	// Sender's on-chain nonce is already 10; pool holds 10, 11, 13 (gap at 12).
	for _, n := range []uint64{10, 11, 13} {
		if err := p.Add(mkTx(sender, n, 100), 10, hashFn, types.EncodeTransaction); err != nil {
			t.Fatalf("add nonce %d: %v", n, err)
		}
	}
	reader := fakeReader{nonces: map[types.AccountID]uint64{sender: 10}}
	selected := p.SelectWithState(reader, 10)
	if len(selected) != 2 {
		t.Fatalf("expected contiguous run of 2 (10,11), got %d", len(selected))
	}
	if selected[0].Tx.Nonce != 10 || selected[1].Tx.Nonce != 11 {
		t.Fatalf("unexpected selection order: %+v", selected)
	}
}

func TestRemoveIncludedDropsFromPool(t *testing.T) {
	p := New(DefaultConfig())
	sender := mkSender(1)
	tx := mkTx(sender, 5, 100)
	if err := p.Add(tx, 5, hashFn, types.EncodeTransaction); err != nil {
		t.Fatalf("add: %v", err)
	}
	hash := tx.EnsureHash(hashFn, types.EncodeTransaction)
	p.RemoveIncluded([]types.Hash{hash})
	if p.Has(hash) {
		t.Fatalf("expected transaction to be removed")
	}
	if p.Len() != 0 {
		t.Fatalf("expected empty pool, got %d", p.Len())
	}
}

func TestPoolFullRejectsBeyondMaxPerSender(t *testing.T) {
	cfg := Config{MaxPerSender: 2, MaxTotal: 100}
	p := New(cfg)
	sender := mkSender(1)
	for _, n := range []uint64{0, 1} {
		if err := p.Add(mkTx(sender, n, 100), 0, hashFn, types.EncodeTransaction); err != nil {
			t.Fatalf("add nonce %d: %v", n, err)
		}
	}
	if err := p.Add(mkTx(sender, 2, 100), 0, hashFn, types.EncodeTransaction); err != ErrPoolFull {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}
