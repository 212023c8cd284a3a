// Package types defines the core data structures of the Kratos consensus
// and state machine: identifiers, accounts, validators, blocks,
// transactions, finality votes, and governance proposals.
package types

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	HashLength      = 32
	AccountIDLength = 32
	SignatureLength = 64
)

// Hash is the 32-byte digest produced by hashing a canonical encoding.
type Hash [HashLength]byte

// BytesToHash converts bytes to a Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string (with or without "0x") to a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return fmt.Sprintf("0x%x", h[:]) }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func (h Hash) IsZero() bool  { return h == Hash{} }
func (h Hash) String() string { return h.Hex() }

// Less gives Hash a lexicographic total order, used by the state store when
// walking accounts/validators in canonical order for root computation.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// AccountID is a 32-byte ed25519 public key. It is the single identity used
// across wallet, validator, and proposer roles.
type AccountID [AccountIDLength]byte

func BytesToAccountID(b []byte) AccountID {
	var a AccountID
	a.SetBytes(b)
	return a
}

func HexToAccountID(s string) AccountID {
	return BytesToAccountID(fromHex(s))
}

func (a AccountID) Bytes() []byte { return a[:] }
func (a AccountID) Hex() string   { return fmt.Sprintf("0x%x", a[:]) }

func (a *AccountID) SetBytes(b []byte) {
	if len(b) > AccountIDLength {
		b = b[len(b)-AccountIDLength:]
	}
	copy(a[AccountIDLength-len(b):], b)
}

func (a AccountID) IsZero() bool  { return a == AccountID{} }
func (a AccountID) String() string { return a.Hex() }

func (a AccountID) Less(other AccountID) bool {
	for i := range a {
		if a[i] != other[i] {
			return a[i] < other[i]
		}
	}
	return false
}

// Signature is a 64-byte ed25519 signature, always produced over a
// domain-separated message (domain_tag || canonical_bytes).
type Signature [SignatureLength]byte

func BytesToSignature(b []byte) Signature {
	var s Signature
	s.SetBytes(b)
	return s
}

func (s Signature) Bytes() []byte { return s[:] }
func (s Signature) Hex() string   { return fmt.Sprintf("0x%x", s[:]) }

func (s *Signature) SetBytes(b []byte) {
	if len(b) > SignatureLength {
		b = b[len(b)-SignatureLength:]
	}
	copy(s[SignatureLength-len(b):], b)
}

func (s Signature) IsZero() bool  { return s == Signature{} }
func (s Signature) String() string { return s.Hex() }

// Domain separation tags. A signature produced under one tag must never
// verify under another.
const (
	DomainTx        = "KRATOS_TX_"
	DomainBlock     = "KRATOS_BLOCK_"
	DomainFinality  = "KRATOS_FINALITY_V1:"
	DomainHeartbeat = "KRATOS_HEARTBEAT_V1"
)

// BlockNumber, EpochNumber and SlotNumber are unsigned 64-bit counters.
// Slot is absolute since genesis, never reduced modulo epoch length.
type (
	BlockNumber uint64
	EpochNumber uint64
	SlotNumber  uint64
)

// SlotsPerEpoch is the fixed epoch length used to derive EpochOf(slot).
const SlotsPerEpoch = 600

// EpochOf derives the epoch number an absolute slot belongs to.
func EpochOf(slot SlotNumber) EpochNumber {
	return EpochNumber(uint64(slot) / SlotsPerEpoch)
}

// Balance is an unsigned 128-bit integer counted in base units (12 decimals
// to the whole KRAT token). It wraps uint256.Int but is range-checked to
// stay within 128 bits by every arithmetic helper below.
type Balance struct {
	v uint256.Int
}

var maxBalance = func() uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, 128)
	return *new(uint256.Int).Sub(shifted, one)
}()

// NewBalance constructs a Balance from a uint64 base-unit amount.
func NewBalance(v uint64) Balance {
	return Balance{v: *uint256.NewInt(v)}
}

// ZeroBalance is the additive identity.
func ZeroBalance() Balance { return Balance{} }

// BalanceFromBig converts a big.Int, returning an error if it is negative or
// exceeds the 128-bit range.
func BalanceFromBig(b *big.Int) (Balance, error) {
	if b.Sign() < 0 {
		return Balance{}, fmt.Errorf("types: negative balance")
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Balance{}, fmt.Errorf("types: balance exceeds 256 bits")
	}
	if u.Gt(&maxBalance) {
		return Balance{}, fmt.Errorf("types: balance exceeds 128-bit range")
	}
	return Balance{v: *u}, nil
}

func (b Balance) Big() *big.Int { return b.v.ToBig() }

func (b Balance) IsZero() bool { return b.v.IsZero() }

func (b Balance) Cmp(other Balance) int { return b.v.Cmp(&other.v) }

func (b Balance) Gte(other Balance) bool { return b.v.Cmp(&other.v) >= 0 }
func (b Balance) Gt(other Balance) bool  { return b.v.Cmp(&other.v) > 0 }
func (b Balance) Lt(other Balance) bool  { return b.v.Cmp(&other.v) < 0 }

// Add returns a+b, erroring if the 128-bit range is exceeded.
func (b Balance) Add(other Balance) (Balance, error) {
	var r uint256.Int
	overflow := r.AddOverflow(&b.v, &other.v)
	if overflow || r.Gt(&maxBalance) {
		return Balance{}, fmt.Errorf("types: balance overflow on add")
	}
	return Balance{v: r}, nil
}

// Sub returns a-b, erroring if the result would be negative.
func (b Balance) Sub(other Balance) (Balance, error) {
	if b.v.Lt(&other.v) {
		return Balance{}, fmt.Errorf("types: balance underflow on sub")
	}
	var r uint256.Int
	r.Sub(&b.v, &other.v)
	return Balance{v: r}, nil
}

// MulBasisPoints returns floor(b * bps / 10000), used for slashing and fee
// splits. bps may exceed 10000 only in internal callers that already
// validated the bound.
func (b Balance) MulBasisPoints(bps uint64) Balance {
	num := new(uint256.Int).Mul(&b.v, uint256.NewInt(bps))
	num.Div(num, uint256.NewInt(10000))
	return Balance{v: *num}
}

// ShareBasisPoints returns floor(b*10000/total) as a bp value in [0,10000],
// computed in big.Int to avoid the uint64 overflow that b.Big().Uint64()*
// 10000 risks once balances approach the top of the 128-bit range. Returns
// 0 if total is zero.
func (b Balance) ShareBasisPoints(total Balance) uint64 {
	if total.IsZero() {
		return 0
	}
	num := new(big.Int).Mul(b.Big(), big.NewInt(10000))
	num.Div(num, total.Big())
	return num.Uint64()
}

// Bytes16 returns the big-endian 16-byte representation, used by canonical
// encoding.
func (b Balance) Bytes16() [16]byte {
	var out [16]byte
	bz := b.v.Bytes32()
	copy(out[:], bz[16:])
	return out
}

// BalanceFromBytes16 is the inverse of Bytes16.
func BalanceFromBytes16(b [16]byte) Balance {
	var full [32]byte
	copy(full[16:], b[:])
	var u uint256.Int
	u.SetBytes(full[:])
	return Balance{v: u}
}

func (b Balance) String() string { return b.v.Dec() }

// KratDecimals is the number of base-unit decimals per whole KRAT.
const KratDecimals = 12

var kratUnit = func() uint256.Int {
	u := uint256.NewInt(1)
	for i := 0; i < KratDecimals; i++ {
		u = new(uint256.Int).Mul(u, uint256.NewInt(10))
	}
	return *u
}()

// KratToBalance converts a whole-KRAT amount to its base-unit Balance.
func KratToBalance(whole uint64) Balance {
	var r uint256.Int
	r.Mul(uint256.NewInt(whole), &kratUnit)
	return Balance{v: r}
}

// KratFloat returns the balance expressed as whole KRAT (fractional part
// included), for use in weight/scoring formulas where float precision is
// acceptable.
func (b Balance) KratFloat() float64 {
	f := new(big.Float).SetInt(b.Big())
	unit := new(big.Float).SetInt(kratUnit.ToBig())
	out, _ := new(big.Float).Quo(f, unit).Float64()
	return out
}

func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
