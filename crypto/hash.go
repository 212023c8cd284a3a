package crypto

import (
	"hash"

	"github.com/kratoschain/kratos/core/types"
	"golang.org/x/crypto/sha3"
)

// Hash computes the Keccak-256 digest of the concatenation of data, the hash
// primitive used for block hashes, transaction hashes, and the state root.
func Hash(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// HashToHash is Hash but returns a types.Hash.
func HashToHash(data ...[]byte) types.Hash {
	return types.BytesToHash(Hash(data...))
}

// DomainHash computes H(domain || data), a domain-separated digest: the
// same data hashed under two different domain tags yields two different
// hashes. Signatures (ed25519.go) are made over domain || data directly,
// not over this digest.
func DomainHash(domain string, data []byte) types.Hash {
	return HashToHash([]byte(domain), data)
}

// IncrementalHasher is an incremental Keccak-256 hasher, used by the state
// store to feed canonical account/validator encodings into a single digest
// without building an intermediate byte slice.
type IncrementalHasher struct {
	state hash.Hash
}

func NewIncrementalHasher() *IncrementalHasher {
	return &IncrementalHasher{state: sha3.NewLegacyKeccak256()}
}

func (h *IncrementalHasher) Write(data []byte) (int, error) {
	return h.state.Write(data)
}

func (h *IncrementalHasher) WriteHash(v types.Hash) { h.state.Write(v[:]) }

func (h *IncrementalHasher) WriteAccountID(a types.AccountID) { h.state.Write(a[:]) }

func (h *IncrementalHasher) Sum256() types.Hash {
	var result types.Hash
	sum := h.state.Sum(nil)
	copy(result[:], sum[:32])
	return result
}

func (h *IncrementalHasher) Reset() { h.state.Reset() }

// CommitHash combines two hashes commutatively: H(min(a,b) || max(a,b)).
// Used by the state store's Merkle-style root so that pairing order within
// a level never affects the resulting root.
func CommitHash(a, b types.Hash) types.Hash {
	if a.Less(b) {
		return HashToHash(a[:], b[:])
	}
	return HashToHash(b[:], a[:])
}

// MerkleRoot folds a list of leaf hashes into a single root using CommitHash
// pairwise, duplicating the last leaf when the level has odd length. An
// empty list roots to the zero hash.
func MerkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, CommitHash(level[i], level[i+1]))
			} else {
				next = append(next, CommitHash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}
