package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// NodeKeyFile is the default filename for the persisted peer-identity seed,
// kept alongside other node state (§6 "persisted state layout").
const NodeKeyFile = "nodekey"

// LoadOrCreateNodeKey reads the 32-byte ed25519 seed at path, creating a new
// random one with 0600 permissions if the file does not exist. The returned
// KeyPair is this node's durable peer identity, distinct from any validator
// signing key.
func LoadOrCreateNodeKey(path string) (*KeyPair, error) {
	seed, err := os.ReadFile(path)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("crypto: nodekey file %s has wrong length %d", path, len(seed))
		}
		return KeyPairFromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("crypto: read nodekey: %w", err)
	}

	seed = make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("crypto: generate nodekey seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("crypto: create nodekey dir: %w", err)
	}
	if err := os.WriteFile(path, seed, 0600); err != nil {
		return nil, fmt.Errorf("crypto: write nodekey: %w", err)
	}
	return KeyPairFromSeed(seed)
}
