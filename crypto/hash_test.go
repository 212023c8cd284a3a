package crypto

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func TestHash_Deterministic(t *testing.T) {
	a := Hash([]byte("hello"))
	b := Hash([]byte("hello"))
	if string(a) != string(b) {
		t.Error("Hash() not deterministic for identical input")
	}
}

func TestHash_ConcatenatesArguments(t *testing.T) {
	a := Hash([]byte("hel"), []byte("lo"))
	b := Hash([]byte("hello"))
	if string(a) != string(b) {
		t.Error("Hash(\"hel\",\"lo\") != Hash(\"hello\"), want equal (arguments concatenated)")
	}
}

func TestDomainHash_DiffersAcrossDomains(t *testing.T) {
	data := []byte("payload")
	a := DomainHash(types.DomainTx, data)
	b := DomainHash(types.DomainBlock, data)
	if a == b {
		t.Error("DomainHash() produced the same hash under two different domains")
	}
}

func TestCommitHash_OrderIndependent(t *testing.T) {
	a := types.Hash{0x01}
	b := types.Hash{0x02}
	if CommitHash(a, b) != CommitHash(b, a) {
		t.Error("CommitHash(a,b) != CommitHash(b,a), want order-independent pairing")
	}
}

func TestMerkleRoot_Empty(t *testing.T) {
	if got := MerkleRoot(nil); got != (types.Hash{}) {
		t.Errorf("MerkleRoot(nil) = %v, want zero hash", got)
	}
}

func TestMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := types.Hash{0xAA}
	if got := MerkleRoot([]types.Hash{leaf}); got != leaf {
		t.Errorf("MerkleRoot(single) = %v, want the leaf itself %v", got, leaf)
	}
}

func TestMerkleRoot_OddCountDuplicatesLast(t *testing.T) {
	a, b, c := types.Hash{0x01}, types.Hash{0x02}, types.Hash{0x03}
	got := MerkleRoot([]types.Hash{a, b, c})
	want := CommitHash(CommitHash(a, b), CommitHash(c, c))
	if got != want {
		t.Errorf("MerkleRoot(3 leaves) = %v, want %v (last leaf duplicated)", got, want)
	}
}

func TestMerkleRoot_Deterministic(t *testing.T) {
	leaves := []types.Hash{{0x01}, {0x02}, {0x03}, {0x04}}
	if MerkleRoot(leaves) != MerkleRoot(leaves) {
		t.Error("MerkleRoot() not deterministic for identical input")
	}
}

func TestMerkleRoot_PairingOrderSensitive(t *testing.T) {
	a, b, c, d := types.Hash{0x01}, types.Hash{0x02}, types.Hash{0x03}, types.Hash{0x04}
	// (a,b)+(c,d) pairs differently than (a,c)+(b,d): leaf position within
	// the list still matters even though CommitHash is symmetric per pair.
	first := MerkleRoot([]types.Hash{a, b, c, d})
	second := MerkleRoot([]types.Hash{a, c, b, d})
	if first == second {
		t.Error("MerkleRoot() produced the same root for two different leaf orderings that pair leaves differently")
	}
}

func TestIncrementalHasher_MatchesHash(t *testing.T) {
	h := NewIncrementalHasher()
	h.Write([]byte("hello"))
	viaIncremental := h.Sum256()
	viaHash := HashToHash([]byte("hello"))
	if viaIncremental != viaHash {
		t.Errorf("IncrementalHasher.Sum256() = %v, want %v (matches HashToHash)", viaIncremental, viaHash)
	}
}

func TestIncrementalHasher_Reset(t *testing.T) {
	h := NewIncrementalHasher()
	h.Write([]byte("hello"))
	h.Reset()
	h.Write([]byte("world"))
	got := h.Sum256()
	want := HashToHash([]byte("world"))
	if got != want {
		t.Errorf("IncrementalHasher after Reset() = %v, want %v", got, want)
	}
}
