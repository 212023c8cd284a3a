// Package state implements the account-level state store: the exclusive
// owner of account balances/nonces/stake/unbonding schedules and validator
// credit records, plus the canonical state-root computation.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
)

// Store is the in-memory mapping account-id -> Account plus account-id ->
// VCRecord. It is guarded by a single RWMutex: reads (GetAccount) take the
// read side and are cheap and concurrent; Mutate takes the write side and
// runs a closure to completion before releasing it, so a block's whole set
// of transaction effects commits or is discarded atomically.
//
// readCache fronts GetAccount with an in-memory byte cache keyed by account
// id, so concurrent readers don't all re-walk the authoritative map; it is
// invalidated on every write to the account it concerns.
type Store struct {
	mu sync.RWMutex

	accounts map[types.AccountID]types.Account
	vc       map[types.AccountID]types.ValidatorCredits

	readCache *fastcache.Cache
}

// NewStore creates an empty state store with a bounded read-cache.
func NewStore(readCacheBytes int) *Store {
	if readCacheBytes <= 0 {
		readCacheBytes = 32 * 1024 * 1024
	}
	return &Store{
		accounts:  make(map[types.AccountID]types.Account),
		vc:        make(map[types.AccountID]types.ValidatorCredits),
		readCache: fastcache.New(readCacheBytes),
	}
}

// GetAccount returns a copy of the account record, or the zero account if
// none exists. Accounts are created lazily on first credit, so a miss here
// is not an error.
func (s *Store) GetAccount(id types.AccountID) types.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id]
}

// AccountExists reports whether id has an explicit account record, as
// opposed to merely never having been credited. The transaction executor
// uses this to reject transactions from a sender the chain has never seen,
// independent of whether that sender's fields happen to all be zero.
func (s *Store) AccountExists(id types.AccountID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[id]
	return ok
}

// GetVCRecord returns a copy of the validator-credits record for id, or the
// zero record if none exists yet.
func (s *Store) GetVCRecord(id types.AccountID) types.ValidatorCredits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vc[id]
}

// WriteScope is the exclusive-write handle passed into the closure given to
// Mutate. It is not safe to retain or use after Mutate returns, and it must
// never be acquired re-entrantly: any code that already holds one (notably
// the bootstrap-VC initialization path called from inside block import)
// must receive this handle as a parameter rather than call Mutate again.
type WriteScope struct {
	store   *Store
	journal *journal
}

// GetAccount reads the working value, reflecting any writes already made
// earlier within the same scope.
func (w *WriteScope) GetAccount(id types.AccountID) types.Account {
	return w.store.accounts[id]
}

func (w *WriteScope) GetVCRecord(id types.AccountID) types.ValidatorCredits {
	return w.store.vc[id]
}

// AccountExists reports whether id has an explicit account record already,
// reflecting any SetAccount calls made earlier within this same scope.
func (w *WriteScope) AccountExists(id types.AccountID) bool {
	_, ok := w.store.accounts[id]
	return ok
}

// SetAccount overwrites the account record for id, journaling the prior
// value so a later RevertToSnapshot can undo it.
func (w *WriteScope) SetAccount(id types.AccountID, acc types.Account) {
	prev, existed := w.store.accounts[id]
	w.journal.append(accountChange{id: id, prev: prev, existed: existed})
	w.store.accounts[id] = acc
	w.store.readCache.Del(id[:])
}

// SetVCRecord overwrites the VC record for id, journaling the prior value.
func (w *WriteScope) SetVCRecord(id types.AccountID, vc types.ValidatorCredits) {
	prev, existed := w.store.vc[id]
	w.journal.append(vcChange{id: id, prev: prev, existed: existed})
	w.store.vc[id] = vc
}

// Snapshot returns a revert point for the current scope's journal.
func (w *WriteScope) Snapshot() int { return w.journal.snapshot() }

// RevertToSnapshot undoes every change made since id was taken.
func (w *WriteScope) RevertToSnapshot(id int) { w.journal.revertToSnapshot(id, w.store) }

// Mutate runs f under the exclusive writer. If f returns an error, every
// change it made is rolled back before Mutate returns, so a failing
// transaction or block leaves state untouched (the "no partial block"
// invariant).
func (s *Store) Mutate(f func(w *WriteScope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &WriteScope{store: s, journal: newJournal()}
	start := w.Snapshot()
	if err := f(w); err != nil {
		w.RevertToSnapshot(start)
		return err
	}
	return nil
}

// ComputeStateRoot walks all accounts, VC records, and the supplied
// validator snapshot in canonical (account-id-ascending) order and returns
// the Merkle-style root over their canonical encodings, mixing in
// blockNumber and chainID so the same state at different heights or on
// different chains never collides. It takes the store's read lock itself,
// so it must not be called from inside a Mutate closure.
func (s *Store) ComputeStateRoot(blockNumber types.BlockNumber, chainID uint64, validators []types.Validator) types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.computeStateRootLocked(blockNumber, chainID, validators)
}

func (s *Store) computeStateRootLocked(blockNumber types.BlockNumber, chainID uint64, validators []types.Validator) types.Hash {
	ids := make([]types.AccountID, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	leaves := make([]types.Hash, 0, len(ids)+len(s.vc)+len(validators)+2)

	mix := crypto.NewIncrementalHasher()
	mix.Write(encodeU64(uint64(blockNumber)))
	mix.Write(encodeU64(chainID))
	leaves = append(leaves, mix.Sum256())

	for _, id := range ids {
		leaves = append(leaves, encodeAccountLeaf(id, s.accounts[id]))
	}

	vcIDs := make([]types.AccountID, 0, len(s.vc))
	for id := range s.vc {
		vcIDs = append(vcIDs, id)
	}
	sort.Slice(vcIDs, func(i, j int) bool { return vcIDs[i].Less(vcIDs[j]) })
	for _, id := range vcIDs {
		leaves = append(leaves, encodeVCLeaf(id, s.vc[id]))
	}

	sortedValidators := make([]types.Validator, len(validators))
	copy(sortedValidators, validators)
	sort.Slice(sortedValidators, func(i, j int) bool { return sortedValidators[i].ID.Less(sortedValidators[j].ID) })
	for _, v := range sortedValidators {
		leaves = append(leaves, encodeValidatorLeaf(v))
	}

	return crypto.MerkleRoot(leaves)
}

func encodeU64(v uint64) []byte {
	e := types.NewCanonicalEncoder()
	e.PutUint64(v)
	return e.Bytes()
}

func encodeAccountLeaf(id types.AccountID, acc types.Account) types.Hash {
	e := types.NewCanonicalEncoder()
	e.PutAccountID(id)
	e.PutBalance(acc.Balance)
	e.PutUint64(acc.Nonce)
	e.PutBalance(acc.Staked)
	e.PutVarint(uint64(len(acc.Unbonding)))
	for _, u := range acc.Unbonding {
		e.PutBalance(u.Amount)
		e.PutUint64(uint64(u.MatureEpoch))
	}
	return crypto.HashToHash(e.Bytes())
}

func encodeVCLeaf(id types.AccountID, vc types.ValidatorCredits) types.Hash {
	e := types.NewCanonicalEncoder()
	e.PutAccountID(id)
	e.PutUint64(vc.Vote)
	e.PutUint64(vc.Uptime)
	e.PutUint64(vc.Arbitration)
	e.PutUint64(vc.Seniority)
	return crypto.HashToHash(e.Bytes())
}

func encodeValidatorLeaf(v types.Validator) types.Hash {
	e := types.NewCanonicalEncoder()
	e.PutAccountID(v.ID)
	e.PutBalance(v.Stake)
	e.PutUint8(uint8(v.Status))
	e.PutUint8(v.Reputation)
	e.PutUint64(uint64(v.JoinedEpoch))
	e.PutBool(v.IsBootstrap)
	return crypto.HashToHash(e.Bytes())
}

// ErrAccountNotFound is returned by operations that require an existing
// account (distinct from GetAccount, which returns the zero value instead).
var ErrAccountNotFound = fmt.Errorf("state: account not found")
