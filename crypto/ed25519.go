package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/kratoschain/kratos/core/types"
)

// KeyPair holds an ed25519 key pair. PublicKey doubles as the AccountID.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// GenerateKeyPair creates a fresh ed25519 key pair from the system CSPRNG.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key pair: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// KeyPairFromSeed deterministically derives a key pair from a 32-byte seed,
// used to load a persisted node key (see nodekey.go).
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// AccountID returns the AccountID identifying this key pair (its public key).
func (kp *KeyPair) AccountID() types.AccountID {
	return types.BytesToAccountID(kp.Public)
}

// Sign signs canonicalBytes under the given domain tag, producing the
// domain-separated signature required everywhere in the spec: the signed
// message is domain_tag || canonical_bytes, concatenated directly (no
// intermediate hash) so verification can be performed without recomputing
// a digest first.
func (kp *KeyPair) Sign(domain string, canonicalBytes []byte) types.Signature {
	msg := domainMessage(domain, canonicalBytes)
	sig := ed25519.Sign(kp.Private, msg)
	return types.BytesToSignature(sig)
}

// Verify checks that sig is a valid signature by pub over canonicalBytes
// under domain. Cross-domain replay (signing under one tag, verifying under
// another) always fails because the signed bytes differ.
func Verify(pub types.AccountID, domain string, canonicalBytes []byte, sig types.Signature) bool {
	msg := domainMessage(domain, canonicalBytes)
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

func domainMessage(domain string, canonicalBytes []byte) []byte {
	msg := make([]byte, 0, len(domain)+len(canonicalBytes))
	msg = append(msg, []byte(domain)...)
	msg = append(msg, canonicalBytes...)
	return msg
}
