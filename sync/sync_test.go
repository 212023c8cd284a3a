package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kratoschain/kratos/chain"
	"github.com/kratoschain/kratos/core/types"
)

type fakeImporter struct {
	head    types.Block
	imports []types.BlockNumber
	failOn  map[types.BlockNumber]error
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{failOn: make(map[types.BlockNumber]error)}
}

func (f *fakeImporter) ImportBlock(block types.Block) error {
	if err, ok := f.failOn[block.Header.Number]; ok {
		return err
	}
	f.imports = append(f.imports, block.Header.Number)
	if block.Header.Number > f.head.Header.Number {
		f.head = block
	}
	return nil
}

func (f *fakeImporter) Head() types.Block { return f.head }

func mkBlock(n uint64) types.Block {
	return types.Block{Header: types.BlockHeader{Number: types.BlockNumber(n)}}
}

func newSyncedSyncer(importer Importer) *Syncer {
	s := New(importer)
	s.CompleteGenesisExchange(GenesisResponse{Hash: types.Hash{1}, ChainName: "kratos-test"})
	return s
}

func TestOfferBlockRejectsBeforeGenesisExchange(t *testing.T) {
	s := New(newFakeImporter())
	_, err := s.OfferBlock(mkBlock(1))
	if err != ErrNoGenesis {
		t.Fatalf("expected ErrNoGenesis, got %v", err)
	}
}

func TestOfferBlockImportsNextHeightImmediately(t *testing.T) {
	imp := newFakeImporter()
	s := newSyncedSyncer(imp)

	accepted, err := s.OfferBlock(mkBlock(1))
	if err != nil || !accepted {
		t.Fatalf("expected accepted import, got accepted=%v err=%v", accepted, err)
	}
	if len(imp.imports) != 1 || imp.imports[0] != 1 {
		t.Fatalf("expected block 1 imported, got %v", imp.imports)
	}
}

func TestOfferBlockIgnoresStaleDuplicate(t *testing.T) {
	imp := newFakeImporter()
	imp.head = mkBlock(5)
	s := newSyncedSyncer(imp)

	accepted, err := s.OfferBlock(mkBlock(3))
	if err != nil {
		t.Fatalf("stale block should never error, got %v", err)
	}
	if accepted {
		t.Fatalf("stale block should not be accepted")
	}
}

func TestOfferBlockBuffersAheadAndDrainsInOrder(t *testing.T) {
	imp := newFakeImporter()
	s := newSyncedSyncer(imp)

	// Offer 3 and 2 before 1: both buffer since they're ahead of head+1.
	if _, err := s.OfferBlock(mkBlock(3)); err != nil {
		t.Fatalf("offer 3: %v", err)
	}
	if _, err := s.OfferBlock(mkBlock(2)); err != nil {
		t.Fatalf("offer 2: %v", err)
	}
	if s.BufferedCount() != 2 {
		t.Fatalf("expected 2 buffered, got %d", s.BufferedCount())
	}

	// Offering 1 should import 1, then drain 2 and 3 from the buffer.
	accepted, err := s.OfferBlock(mkBlock(1))
	if err != nil || !accepted {
		t.Fatalf("offer 1: accepted=%v err=%v", accepted, err)
	}
	if len(imp.imports) != 3 {
		t.Fatalf("expected 3 blocks imported after drain, got %v", imp.imports)
	}
	if s.BufferedCount() != 0 {
		t.Fatalf("expected buffer drained, got %d remaining", s.BufferedCount())
	}
}

func TestOfferBlockRejectsTooFarAhead(t *testing.T) {
	imp := newFakeImporter()
	s := newSyncedSyncer(imp)

	_, err := s.OfferBlock(mkBlock(uint64(MaxBufferAhead) + 2))
	if err != ErrTooFarAhead {
		t.Fatalf("expected ErrTooFarAhead, got %v", err)
	}
}

func TestClassifyForBanOnlyFlagsStructuralErrors(t *testing.T) {
	if _, ok := ClassifyForBan(chain.ErrUnknownParent); ok {
		t.Fatalf("unknown parent (benign race/out-of-order) must never be ban-worthy")
	}
	if reason, ok := ClassifyForBan(chain.ErrBadBlockSignature); !ok || reason != BanBadSignature {
		t.Fatalf("expected BanBadSignature, got reason=%v ok=%v", reason, ok)
	}
	if _, ok := ClassifyForBan(errors.New("some transient io error")); ok {
		t.Fatalf("unrelated errors must not be ban-worthy")
	}
}

func TestPeerLimiterBoundsInFlight(t *testing.T) {
	l := NewPeerLimiter()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var releases []func()
	for i := 0; i < MaxInFlightPerPeer; i++ {
		release, err := l.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		releases = append(releases, release)
	}

	blockedCtx, blockedCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer blockedCancel()
	if _, err := l.Acquire(blockedCtx); err == nil {
		t.Fatalf("expected acquiring beyond MaxInFlightPerPeer to block/timeout")
	}

	for _, r := range releases {
		r()
	}
}
