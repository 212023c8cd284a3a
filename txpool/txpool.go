// Package txpool implements the state-aware mempool (spec.md §4.10):
// per-sender nonce-ordered pending transactions, a bounded acceptance
// window ahead of each sender's on-chain nonce, replace-by-fee, and
// selection that starts from the chain's actual nonce rather than
// assuming a sender restarts at zero. Grounded on the teacher's
// account_tracker.go/queue_manager.go per-sender bookkeeping split, with
// the EIP-1559/blob/multidimensional-gas priority machinery (the teacher's
// priority_queue.go/price_bumper.go) dropped: Kratos transactions pay a
// single flat Fee (core/types/transaction.go), so there is no base-fee
// market to track, and gas/blob pricing is out of spec.md's scope.
package txpool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/log"
)

// MaxGap is the furthest a transaction's nonce may sit ahead of the
// sender's current on-chain nonce and still be accepted into the pool.
const MaxGap = 2

// ReplacementBumpNumerator/Denominator express the 1.10x minimum fee bump
// a replacement transaction must clear against the incumbent at the same
// (sender, nonce), as an integer ratio to avoid floating point.
const (
	ReplacementBumpNumerator   = 110
	ReplacementBumpDenominator = 100
)

var (
	ErrAlreadyKnown      = errors.New("txpool: transaction already known")
	ErrNonceTooLow       = errors.New("txpool: nonce below current on-chain nonce")
	ErrNonceGapTooWide   = errors.New("txpool: nonce exceeds current nonce + max gap")
	ErrUnderpriced       = errors.New("txpool: replacement fee below the required bump")
	ErrPoolFull          = errors.New("txpool: pool at capacity")
	ErrInsufficientFunds = errors.New("txpool: sender balance cannot cover fee and call amount")
)

// Config bounds the pool's memory footprint.
type Config struct {
	MaxPerSender int
	MaxTotal     int
}

// DefaultConfig matches the teacher's queue_manager.go defaults, scaled
// down from EVM-block-sized pools since Kratos transactions carry no gas
// limit to size against.
func DefaultConfig() Config {
	return Config{MaxPerSender: 64, MaxTotal: 4096}
}

// StateReader is the minimal read-only view the pool needs from the chain
// state store to run state-aware admission and selection.
type StateReader interface {
	GetAccount(id types.AccountID) types.Account
}

// senderQueue holds one sender's pending transactions, keyed by nonce.
type senderQueue struct {
	byNonce map[uint64]types.SignedTransaction
}

func newSenderQueue() *senderQueue {
	return &senderQueue{byNonce: make(map[uint64]types.SignedTransaction)}
}

// Pool is the guarded in-memory mempool. It must never be locked while the
// caller holds the state store's write lock (spec.md §5's lock-ordering
// discipline: state+validators, then independently, mempool).
type Pool struct {
	mu      sync.RWMutex
	cfg     Config
	senders map[types.AccountID]*senderQueue
	byHash  map[types.Hash]types.SignedTransaction
	log     *log.Logger
}

// New creates an empty pool.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:     cfg,
		senders: make(map[types.AccountID]*senderQueue),
		byHash:  make(map[types.Hash]types.SignedTransaction),
		log:     log.Default().Module("txpool"),
	}
}

// Add validates and inserts stx, given the sender's current on-chain
// nonce (the caller reads this from the state store before calling Add,
// outside any state lock). Returns ErrAlreadyKnown if an identical
// transaction (same hash) is already pooled.
func (p *Pool) Add(stx types.SignedTransaction, currentNonce uint64, hashFn func([]byte) types.Hash, encFn func(types.Transaction) []byte) error {
	hash := stx.EnsureHash(hashFn, encFn)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byHash[hash]; ok {
		return ErrAlreadyKnown
	}

	tx := stx.Tx
	if tx.Nonce < currentNonce {
		return ErrNonceTooLow
	}
	if tx.Nonce > currentNonce+MaxGap {
		return ErrNonceGapTooWide
	}

	sq, ok := p.senders[tx.Sender]
	if !ok {
		sq = newSenderQueue()
		p.senders[tx.Sender] = sq
	}

	if existing, ok := sq.byNonce[tx.Nonce]; ok {
		if !bumpsFee(existing.Tx.Fee, tx.Fee) {
			return ErrUnderpriced
		}
		existingHash := existing.EnsureHash(hashFn, encFn)
		delete(p.byHash, existingHash)
	} else if p.totalLocked() >= p.cfg.MaxTotal || len(sq.byNonce) >= p.cfg.MaxPerSender {
		return ErrPoolFull
	}

	sq.byNonce[tx.Nonce] = stx
	p.byHash[hash] = stx
	return nil
}

// bumpsFee reports whether candidate clears the 1.10x minimum replacement
// bump over incumbent, computed as incumbent*110 <= candidate*100 to stay
// in integer arithmetic (mirrors Balance.ShareBasisPoints's overflow-safe
// big.Int approach rather than a floating-point multiply).
func bumpsFee(incumbent, candidate types.Balance) bool {
	lhs := new(big.Int).Mul(incumbent.Big(), big.NewInt(ReplacementBumpNumerator))
	rhs := new(big.Int).Mul(candidate.Big(), big.NewInt(ReplacementBumpDenominator))
	return lhs.Cmp(rhs) <= 0
}

// Remove drops a transaction by hash, e.g. after its block commits.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stx, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if sq, ok := p.senders[stx.Tx.Sender]; ok {
		delete(sq.byNonce, stx.Tx.Nonce)
		if len(sq.byNonce) == 0 {
			delete(p.senders, stx.Tx.Sender)
		}
	}
}

// RemoveIncluded drops every transaction in hashes, called once per
// committed block (spec.md §4.10's "on successful block commit, remove
// included txs").
func (p *Pool) RemoveIncluded(hashes []types.Hash) {
	for _, h := range hashes {
		p.Remove(h)
	}
}

// Has reports whether hash is already pooled.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Len returns the total number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalLocked()
}

func (p *Pool) totalLocked() int {
	n := 0
	for _, sq := range p.senders {
		n += len(sq.byNonce)
	}
	return n
}

// SelectWithState returns up to limit transactions, choosing for each
// sender the longest contiguous ascending run of nonces starting at that
// sender's current on-chain nonce (read via reader), per spec.md §4.10's
// select_with_state contract — never assuming a sender starts at nonce 0.
func (p *Pool) SelectWithState(reader StateReader, limit int) []types.SignedTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	senderIDs := make([]types.AccountID, 0, len(p.senders))
	for id := range p.senders {
		senderIDs = append(senderIDs, id)
	}
	sort.Slice(senderIDs, func(i, j int) bool { return senderIDs[i].Less(senderIDs[j]) })

	var out []types.SignedTransaction
	for _, id := range senderIDs {
		if len(out) >= limit {
			break
		}
		sq := p.senders[id]
		expected := reader.GetAccount(id).Nonce
		for len(out) < limit {
			stx, ok := sq.byNonce[expected]
			if !ok {
				break
			}
			out = append(out, stx)
			expected++
		}
	}
	return out
}
