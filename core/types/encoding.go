package types

import (
	"encoding/binary"
	"fmt"
)

// CanonicalEncoder builds the bespoke wire format used for both hashing and
// signing: fixed-width integers little-endian, fields in declared struct
// order, and variable-length fields prefixed by an unsigned LEB128 varint
// length. This is deliberately not RLP — Kratos has no EVM/receipt trie to
// stay interoperable with.
type CanonicalEncoder struct {
	buf []byte
}

func NewCanonicalEncoder() *CanonicalEncoder {
	return &CanonicalEncoder{buf: make([]byte, 0, 256)}
}

func (e *CanonicalEncoder) Bytes() []byte { return e.buf }

func (e *CanonicalEncoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *CanonicalEncoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *CanonicalEncoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *CanonicalEncoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// PutVarint appends an unsigned LEB128 varint, used as a length prefix for
// every variable-length field.
func (e *CanonicalEncoder) PutVarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf = append(e.buf, tmp[:n]...)
}

// PutBytes writes a varint length prefix followed by the raw bytes.
func (e *CanonicalEncoder) PutBytes(b []byte) {
	e.PutVarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *CanonicalEncoder) PutFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *CanonicalEncoder) PutHash(h Hash)           { e.PutFixed(h[:]) }
func (e *CanonicalEncoder) PutAccountID(a AccountID) { e.PutFixed(a[:]) }
func (e *CanonicalEncoder) PutSignature(s Signature) { e.PutFixed(s[:]) }
func (e *CanonicalEncoder) PutBalance(b Balance) {
	bz := b.Bytes16()
	e.PutFixed(bz[:])
}

// CanonicalDecoder reads a buffer produced by CanonicalEncoder in the same
// field order. Decoding errors are returned rather than panicking, since
// untrusted wire bytes reach this from peers and RPC.
type CanonicalDecoder struct {
	buf []byte
	pos int
}

func NewCanonicalDecoder(b []byte) *CanonicalDecoder {
	return &CanonicalDecoder{buf: b}
}

func (d *CanonicalDecoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return fmt.Errorf("types: canonical decode: need %d bytes, have %d", n, len(d.buf)-d.pos)
	}
	return nil
}

func (d *CanonicalDecoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *CanonicalDecoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *CanonicalDecoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *CanonicalDecoder) Bool() (bool, error) {
	v, err := d.Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *CanonicalDecoder) Varint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("types: canonical decode: bad varint")
	}
	d.pos += n
	return v, nil
}

func (d *CanonicalDecoder) Bytes() ([]byte, error) {
	n, err := d.Varint()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}

func (d *CanonicalDecoder) Fixed(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

func (d *CanonicalDecoder) Hash() (Hash, error) {
	b, err := d.Fixed(HashLength)
	if err != nil {
		return Hash{}, err
	}
	return BytesToHash(b), nil
}

func (d *CanonicalDecoder) AccountID() (AccountID, error) {
	b, err := d.Fixed(AccountIDLength)
	if err != nil {
		return AccountID{}, err
	}
	return BytesToAccountID(b), nil
}

func (d *CanonicalDecoder) Signature() (Signature, error) {
	b, err := d.Fixed(SignatureLength)
	if err != nil {
		return Signature{}, err
	}
	return BytesToSignature(b), nil
}

func (d *CanonicalDecoder) Balance() (Balance, error) {
	b, err := d.Fixed(16)
	if err != nil {
		return Balance{}, err
	}
	var arr [16]byte
	copy(arr[:], b)
	return BalanceFromBytes16(arr), nil
}

// Remaining reports whether the decoder has consumed the entire buffer,
// used by round-trip tests to catch trailing garbage.
func (d *CanonicalDecoder) Remaining() int { return len(d.buf) - d.pos }

// EncodeTransaction produces the canonical bytes of a Transaction, used both
// to compute SignedTransaction.Hash and as the tx-domain signing preimage.
func EncodeTransaction(tx Transaction) []byte {
	e := NewCanonicalEncoder()
	e.PutAccountID(tx.Sender)
	e.PutUint64(tx.Nonce)
	e.PutUint8(uint8(tx.Call.Kind))
	encodeCall(e, tx.Call)
	e.PutUint64(tx.Timestamp)
	e.PutBalance(tx.Fee)
	return e.Bytes()
}

func encodeCall(e *CanonicalEncoder, c Call) {
	switch c.Kind {
	case CallTransfer:
		e.PutAccountID(c.Transfer.To)
		e.PutBalance(c.Transfer.Amount)
	case CallStake:
		e.PutBalance(c.Stake.Amount)
	case CallUnstake:
		e.PutBalance(c.Unstake.Amount)
	case CallWithdrawUnbonded:
		// no payload
	case CallRegisterValidator:
		e.PutBalance(c.RegisterValidator.Stake)
	case CallUnregisterValidator:
		// no payload
	case CallProposeEarlyValidator:
		e.PutAccountID(c.ProposeEarlyValidator.Candidate)
	case CallVoteEarlyValidator:
		e.PutAccountID(c.VoteEarlyValidator.Candidate)
	case CallGovernance, CallSidechain:
		e.PutBytes(c.Opaque)
	}
}

// EncodeBlockHeader produces the canonical bytes of a header. Callers that
// need the block hash pass in a header with Signature zeroed.
func EncodeBlockHeader(h BlockHeader) []byte {
	e := NewCanonicalEncoder()
	e.PutUint64(uint64(h.Number))
	e.PutHash(h.ParentHash)
	e.PutHash(h.TransactionsRoot)
	e.PutHash(h.StateRoot)
	e.PutUint64(h.Timestamp)
	e.PutUint64(uint64(h.Epoch))
	e.PutUint64(uint64(h.Slot))
	e.PutAccountID(h.Author)
	return e.Bytes()
}

// EncodeFinalityVote produces the canonical bytes signed under DomainFinality.
func EncodeFinalityVote(v FinalityVote) []byte {
	e := NewCanonicalEncoder()
	e.PutUint8(uint8(v.Kind))
	e.PutUint64(uint64(v.TargetNumber))
	e.PutHash(v.TargetHash)
	e.PutUint32(v.Round)
	e.PutUint64(uint64(v.Epoch))
	e.PutAccountID(v.Voter)
	return e.Bytes()
}
