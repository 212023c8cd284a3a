package types

// BlockHeader carries everything hashed/signed for a block, excluding the
// body. block.hash = H(canonical(header_without_signature)); the signature
// itself is therefore never part of its own preimage.
type BlockHeader struct {
	Number           BlockNumber
	ParentHash       Hash
	TransactionsRoot Hash
	StateRoot        Hash
	Timestamp        uint64
	Epoch            EpochNumber
	Slot             SlotNumber
	Author           AccountID
	Signature        Signature
}

// SlashEvent is one misbehavior event resolved against a validator, carried
// in a block's body alongside its transactions. The penalty is fully
// resolved (not just the severity tier) before it is embedded, so every
// importer applies the identical deterministic state transition regardless
// of whether it was the node that first observed the misbehavior.
type SlashEvent struct {
	Validator       AccountID
	Reason          string
	VCPenaltyBps    uint64
	StakePenaltyBps uint64
}

// Block is a header plus its ordered transaction body and any slashing
// events resolved for inclusion in this block.
type Block struct {
	Header       BlockHeader
	Transactions []SignedTransaction
	SlashEvents  []SlashEvent
}

// Hash computes the block hash from the canonical encoding of the header
// with its signature field zeroed, per the data model.
func (b *Block) Hash(hasher func([]byte) Hash, enc func(BlockHeader) []byte) Hash {
	unsigned := b.Header
	unsigned.Signature = Signature{}
	return hasher(enc(unsigned))
}
