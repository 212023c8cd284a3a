// format.go converts between the wire JSON shapes used by the RPC
// surface and the core types, grounded on the teacher's (deleted)
// FormatBlock/FormatTransaction helpers generalized from Ethereum's
// header/body/receipt/log shapes to Kratos's single block/transaction
// model.
package rpc

import (
	"fmt"
	"math/big"

	"github.com/kratoschain/kratos/core/types"
)

func formatHeader(h types.BlockHeader) map[string]interface{} {
	return map[string]interface{}{
		"number":            uint64(h.Number),
		"parent_hash":       EncodeHex(h.ParentHash[:]),
		"transactions_root": EncodeHex(h.TransactionsRoot[:]),
		"state_root":        EncodeHex(h.StateRoot[:]),
		"timestamp":         h.Timestamp,
		"epoch":             uint64(h.Epoch),
		"slot":              uint64(h.Slot),
		"author":            EncodeHex(h.Author[:]),
		"signature":         EncodeHex(h.Signature[:]),
	}
}

func formatBlock(b types.Block) map[string]interface{} {
	txs := make([]interface{}, 0, len(b.Transactions))
	for _, stx := range b.Transactions {
		txs = append(txs, formatTransaction(stx))
	}
	return map[string]interface{}{
		"header":       formatHeader(b.Header),
		"transactions": txs,
	}
}

func formatTransaction(stx types.SignedTransaction) map[string]interface{} {
	out := map[string]interface{}{
		"sender":    EncodeHex(stx.Tx.Sender[:]),
		"nonce":     stx.Tx.Nonce,
		"kind":      stx.Tx.Call.Kind.String(),
		"timestamp": stx.Tx.Timestamp,
		"fee":       stx.Tx.Fee.String(),
		"signature": EncodeHex(stx.Sig[:]),
	}
	if stx.Hash != nil {
		out["hash"] = EncodeHex(stx.Hash[:])
	}
	switch stx.Tx.Call.Kind {
	case types.CallTransfer:
		if c := stx.Tx.Call.Transfer; c != nil {
			out["to"] = EncodeHex(c.To[:])
			out["amount"] = c.Amount.String()
		}
	case types.CallStake:
		if c := stx.Tx.Call.Stake; c != nil {
			out["amount"] = c.Amount.String()
		}
	case types.CallUnstake:
		if c := stx.Tx.Call.Unstake; c != nil {
			out["amount"] = c.Amount.String()
		}
	case types.CallRegisterValidator:
		if c := stx.Tx.Call.RegisterValidator; c != nil {
			out["stake"] = c.Stake.String()
		}
	case types.CallProposeEarlyValidator, types.CallVoteEarlyValidator:
		candidate := stx.Tx.Call.ProposeEarlyValidator
		if candidate == nil {
			candidate = stx.Tx.Call.VoteEarlyValidator
		}
		if candidate != nil {
			out["candidate"] = EncodeHex(candidate.Candidate[:])
		}
	case types.CallGovernance, types.CallSidechain:
		out["opaque"] = EncodeHex(stx.Tx.Call.Opaque)
	}
	return out
}

// decodeSignedTransaction builds a SignedTransaction from the JSON object
// accepted by author_submitTransaction. Amount/fee fields are decimal
// strings of base units (spec.md's Balance has no native JSON numeric
// form precise enough for 12-decimal fixed point).
func decodeSignedTransaction(m map[string]interface{}) (types.SignedTransaction, error) {
	sender, err := DecodeAccountID(m["sender"])
	if err != nil {
		return types.SignedTransaction{}, fmt.Errorf("sender: %w", err)
	}
	nonce, err := paramUint64(m["nonce"])
	if err != nil {
		return types.SignedTransaction{}, fmt.Errorf("nonce: %w", err)
	}
	timestamp, err := paramUint64(m["timestamp"])
	if err != nil {
		return types.SignedTransaction{}, fmt.Errorf("timestamp: %w", err)
	}
	fee, err := decodeBalance(m["fee"])
	if err != nil {
		return types.SignedTransaction{}, fmt.Errorf("fee: %w", err)
	}
	sig, err := DecodeSignature(m["signature"])
	if err != nil {
		return types.SignedTransaction{}, fmt.Errorf("signature: %w", err)
	}
	kindStr, _ := m["kind"].(string)
	call, err := decodeCall(kindStr, m)
	if err != nil {
		return types.SignedTransaction{}, err
	}
	return types.SignedTransaction{
		Tx: types.Transaction{
			Sender:    sender,
			Nonce:     nonce,
			Call:      call,
			Timestamp: timestamp,
			Fee:       fee,
		},
		Sig: sig,
	}, nil
}

func decodeCall(kind string, m map[string]interface{}) (types.Call, error) {
	switch kind {
	case "transfer":
		to, err := DecodeAccountID(m["to"])
		if err != nil {
			return types.Call{}, fmt.Errorf("to: %w", err)
		}
		amount, err := decodeBalance(m["amount"])
		if err != nil {
			return types.Call{}, fmt.Errorf("amount: %w", err)
		}
		return types.Call{Kind: types.CallTransfer, Transfer: &types.TransferCall{To: to, Amount: amount}}, nil
	case "stake":
		amount, err := decodeBalance(m["amount"])
		if err != nil {
			return types.Call{}, fmt.Errorf("amount: %w", err)
		}
		return types.Call{Kind: types.CallStake, Stake: &types.StakeCall{Amount: amount}}, nil
	case "unstake":
		amount, err := decodeBalance(m["amount"])
		if err != nil {
			return types.Call{}, fmt.Errorf("amount: %w", err)
		}
		return types.Call{Kind: types.CallUnstake, Unstake: &types.UnstakeCall{Amount: amount}}, nil
	case "withdraw_unbonded":
		return types.Call{Kind: types.CallWithdrawUnbonded}, nil
	case "register_validator":
		stake, err := decodeBalance(m["stake"])
		if err != nil {
			return types.Call{}, fmt.Errorf("stake: %w", err)
		}
		return types.Call{Kind: types.CallRegisterValidator, RegisterValidator: &types.RegisterValidatorCall{Stake: stake}}, nil
	case "unregister_validator":
		return types.Call{Kind: types.CallUnregisterValidator}, nil
	case "propose_early_validator":
		candidate, err := DecodeAccountID(m["candidate"])
		if err != nil {
			return types.Call{}, fmt.Errorf("candidate: %w", err)
		}
		return types.Call{Kind: types.CallProposeEarlyValidator, ProposeEarlyValidator: &types.EarlyValidatorCall{Candidate: candidate}}, nil
	case "vote_early_validator":
		candidate, err := DecodeAccountID(m["candidate"])
		if err != nil {
			return types.Call{}, fmt.Errorf("candidate: %w", err)
		}
		return types.Call{Kind: types.CallVoteEarlyValidator, VoteEarlyValidator: &types.EarlyValidatorCall{Candidate: candidate}}, nil
	case "governance":
		opaque, err := decodeFlexibleBytes(m["opaque"])
		if err != nil {
			return types.Call{}, fmt.Errorf("opaque: %w", err)
		}
		return types.Call{Kind: types.CallGovernance, Opaque: opaque}, nil
	case "sidechain":
		opaque, err := decodeFlexibleBytes(m["opaque"])
		if err != nil {
			return types.Call{}, fmt.Errorf("opaque: %w", err)
		}
		return types.Call{Kind: types.CallSidechain, Opaque: opaque}, nil
	default:
		return types.Call{}, fmt.Errorf("rpc: unknown transaction kind %q", kind)
	}
}

func paramUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case float64:
		return uint64(t), nil
	case string:
		n := new(big.Int)
		if _, ok := n.SetString(t, 10); !ok {
			return 0, fmt.Errorf("rpc: invalid integer %q", t)
		}
		return n.Uint64(), nil
	default:
		return 0, fmt.Errorf("rpc: unsupported integer encoding %T", v)
	}
}

func decodeBalance(v interface{}) (types.Balance, error) {
	switch t := v.(type) {
	case string:
		n := new(big.Int)
		if _, ok := n.SetString(t, 10); !ok {
			return types.Balance{}, fmt.Errorf("rpc: invalid balance %q", t)
		}
		return types.BalanceFromBig(n)
	case float64:
		return types.NewBalance(uint64(t)), nil
	case nil:
		return types.ZeroBalance(), nil
	default:
		return types.Balance{}, fmt.Errorf("rpc: unsupported balance encoding %T", v)
	}
}
