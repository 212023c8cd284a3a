package types

// CallKind tags the variant held by a Call.
type CallKind uint8

const (
	CallTransfer CallKind = iota
	CallStake
	CallUnstake
	CallWithdrawUnbonded
	CallRegisterValidator
	CallUnregisterValidator
	CallProposeEarlyValidator
	CallVoteEarlyValidator
	// CallGovernance and CallSidechain carry opaque payloads that the core
	// treats as pass-through: it validates the envelope (signature, nonce,
	// fee) but defers interpretation to the governance/sidechain modules.
	CallGovernance
	CallSidechain
)

func (k CallKind) String() string {
	switch k {
	case CallTransfer:
		return "transfer"
	case CallStake:
		return "stake"
	case CallUnstake:
		return "unstake"
	case CallWithdrawUnbonded:
		return "withdraw_unbonded"
	case CallRegisterValidator:
		return "register_validator"
	case CallUnregisterValidator:
		return "unregister_validator"
	case CallProposeEarlyValidator:
		return "propose_early_validator"
	case CallVoteEarlyValidator:
		return "vote_early_validator"
	case CallGovernance:
		return "governance"
	case CallSidechain:
		return "sidechain"
	default:
		return "unknown"
	}
}

// Call is a tagged union over the transaction payload variants named in
// the data model. Only one of the typed fields is populated, matching
// Kind; Opaque carries the raw bytes for Governance/Sidechain variants.
type Call struct {
	Kind CallKind

	Transfer               *TransferCall
	Stake                  *StakeCall
	Unstake                *UnstakeCall
	RegisterValidator      *RegisterValidatorCall
	ProposeEarlyValidator  *EarlyValidatorCall
	VoteEarlyValidator     *EarlyValidatorCall

	Opaque []byte
}

type TransferCall struct {
	To     AccountID
	Amount Balance
}

type StakeCall struct {
	Amount Balance
}

type UnstakeCall struct {
	Amount Balance
}

type RegisterValidatorCall struct {
	Stake Balance
}

type EarlyValidatorCall struct {
	Candidate AccountID
}

// Transaction is the unsigned payload; Nonce must equal the sender's
// current on-chain nonce exactly (no gaps).
type Transaction struct {
	Sender    AccountID
	Nonce     uint64
	Call      Call
	Timestamp uint64
	Fee       Balance
}

// SignedTransaction wraps a Transaction with its signature. Hash is not
// signed; the executor fills it from the canonical hash of Tx if absent
// when the transaction is first observed.
type SignedTransaction struct {
	Tx   Transaction
	Sig  Signature
	Hash *Hash
}

// EnsureHash fills Hash from the canonical encoding of Tx if it is nil,
// returning the resulting hash either way.
func (st *SignedTransaction) EnsureHash(hasher func([]byte) Hash, enc func(Transaction) []byte) Hash {
	if st.Hash != nil {
		return *st.Hash
	}
	h := hasher(enc(st.Tx))
	st.Hash = &h
	return h
}
