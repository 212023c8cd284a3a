package txexec

import (
	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
	"github.com/kratoschain/kratos/state"
)

// DeferredKind tags which validator-set mutation a transaction requested.
// The executor validates and charges the fee for these calls (phase 1);
// the chain engine applies the actual ValidatorSet mutation afterward
// (phase 2), reusing the same write scope the block commit already holds.
type DeferredKind uint8

const (
	DeferredNone DeferredKind = iota
	DeferredRegisterValidator
	DeferredUnregisterValidator
	DeferredProposeEarlyValidator
	DeferredVoteEarlyValidator
)

// DeferredEffect is the phase-2 payload for a validator-set-mutating call.
type DeferredEffect struct {
	Kind      DeferredKind
	Sender    types.AccountID
	Stake     types.Balance
	Candidate types.AccountID
}

// Result is what the executor produces for one successfully-applied
// transaction: the fee collected (for the caller to fold into the block's
// fee-distribution pass) and an optional deferred validator-set effect.
type Result struct {
	Fee      types.Balance
	Deferred *DeferredEffect
}

// Apply validates and applies stx against ws, following the fixed check
// order from the component design: signature, sender existence, nonce,
// balance, call-specific validity. The first failing check aborts with no
// state change — the caller's Mutate wraps this so failure never leaves a
// partial effect.
func Apply(ws *state.WriteScope, stx types.SignedTransaction) (Result, error) {
	tx := stx.Tx

	txBytes := types.EncodeTransaction(tx)
	if !crypto.Verify(tx.Sender, types.DomainTx, txBytes, stx.Sig) {
		return Result{}, ErrInvalidSignature
	}

	if !ws.AccountExists(tx.Sender) {
		return Result{}, ErrUnknownSender
	}
	acc := ws.GetAccount(tx.Sender)

	if tx.Nonce != acc.Nonce {
		return Result{}, ErrBadNonce
	}

	required, err := requiredBalance(tx)
	if err != nil {
		return Result{}, err
	}
	if !acc.Balance.Gte(required) {
		return Result{}, ErrInsufficientFunds
	}

	deferred, err := applyCall(ws, tx, &acc)
	if err != nil {
		return Result{}, err
	}

	acc.Balance, err = acc.Balance.Sub(tx.Fee)
	if err != nil {
		return Result{}, ErrInsufficientFunds
	}
	acc.Nonce++
	ws.SetAccount(tx.Sender, acc)

	return Result{Fee: tx.Fee, Deferred: deferred}, nil
}

// requiredBalance returns fee + whatever amount the call itself consumes
// from the sender's spendable balance.
func requiredBalance(tx types.Transaction) (types.Balance, error) {
	amount := types.ZeroBalance()
	switch tx.Call.Kind {
	case types.CallTransfer:
		if tx.Call.Transfer == nil || tx.Call.Transfer.Amount.IsZero() {
			return types.Balance{}, ErrInvalidCall
		}
		amount = tx.Call.Transfer.Amount
	case types.CallStake:
		if tx.Call.Stake == nil || tx.Call.Stake.Amount.IsZero() {
			return types.Balance{}, ErrInvalidCall
		}
		amount = tx.Call.Stake.Amount
	case types.CallRegisterValidator:
		if tx.Call.RegisterValidator == nil {
			return types.Balance{}, ErrInvalidCall
		}
		if tx.Call.RegisterValidator.Stake.Cmp(types.KratToBalance(MinimumStakeKrat)) < 0 {
			return types.Balance{}, ErrInvalidCall
		}
		amount = tx.Call.RegisterValidator.Stake
	case types.CallUnstake, types.CallWithdrawUnbonded, types.CallUnregisterValidator:
		// No balance consumed up front; unstake/unregister move funds from
		// Staked into Unbonding, and withdraw only moves matured unbonds
		// into Balance — both validated in applyCall.
	case types.CallProposeEarlyValidator:
		if tx.Call.ProposeEarlyValidator == nil {
			return types.Balance{}, ErrInvalidCall
		}
	case types.CallVoteEarlyValidator:
		if tx.Call.VoteEarlyValidator == nil {
			return types.Balance{}, ErrInvalidCall
		}
	case types.CallGovernance, types.CallSidechain:
		// Opaque to the core; governance/sidechain modules validate their
		// own payload after the executor has charged the fee.
	default:
		return types.Balance{}, ErrInvalidCall
	}
	sum, err := amount.Add(tx.Fee)
	if err != nil {
		return types.Balance{}, ErrInvalidCall
	}
	return sum, nil
}

func applyCall(ws *state.WriteScope, tx types.Transaction, acc *types.Account) (*DeferredEffect, error) {
	switch tx.Call.Kind {
	case types.CallTransfer:
		return nil, applyTransfer(ws, tx, acc)
	case types.CallStake:
		newBalance, err := acc.Balance.Sub(tx.Call.Stake.Amount)
		if err != nil {
			return nil, ErrInsufficientFunds
		}
		acc.Balance = newBalance
		newStaked, err := acc.Staked.Add(tx.Call.Stake.Amount)
		if err != nil {
			return nil, ErrInvalidCall
		}
		acc.Staked = newStaked
		return nil, nil
	case types.CallUnstake:
		return nil, applyUnstake(tx, acc)
	case types.CallWithdrawUnbonded:
		return nil, applyWithdrawUnbonded(acc)
	case types.CallRegisterValidator:
		newBalance, err := acc.Balance.Sub(tx.Call.RegisterValidator.Stake)
		if err != nil {
			return nil, ErrInsufficientFunds
		}
		acc.Balance = newBalance
		newStaked, err := acc.Staked.Add(tx.Call.RegisterValidator.Stake)
		if err != nil {
			return nil, ErrInvalidCall
		}
		acc.Staked = newStaked
		return &DeferredEffect{Kind: DeferredRegisterValidator, Sender: tx.Sender, Stake: tx.Call.RegisterValidator.Stake}, nil
	case types.CallUnregisterValidator:
		return &DeferredEffect{Kind: DeferredUnregisterValidator, Sender: tx.Sender}, nil
	case types.CallProposeEarlyValidator:
		return &DeferredEffect{Kind: DeferredProposeEarlyValidator, Sender: tx.Sender, Candidate: tx.Call.ProposeEarlyValidator.Candidate}, nil
	case types.CallVoteEarlyValidator:
		return &DeferredEffect{Kind: DeferredVoteEarlyValidator, Sender: tx.Sender, Candidate: tx.Call.VoteEarlyValidator.Candidate}, nil
	case types.CallGovernance, types.CallSidechain:
		// Interpretation happens in the governance module via the deferred
		// effect path of the chain engine; the core executor's job ends at
		// fee collection for these opaque variants.
		return nil, nil
	default:
		return nil, ErrInvalidCall
	}
}

func applyTransfer(ws *state.WriteScope, tx types.Transaction, senderAcc *types.Account) error {
	to := tx.Call.Transfer.To
	amount := tx.Call.Transfer.Amount

	newSenderBalance, err := senderAcc.Balance.Sub(amount)
	if err != nil {
		return ErrInsufficientFunds
	}
	senderAcc.Balance = newSenderBalance

	recvAcc := ws.GetAccount(to)
	newRecvBalance, err := recvAcc.Balance.Add(amount)
	if err != nil {
		return ErrInvalidCall
	}
	recvAcc.Balance = newRecvBalance
	ws.SetAccount(to, recvAcc)
	return nil
}

func applyUnstake(tx types.Transaction, acc *types.Account) error {
	amount := tx.Call.Unstake.Amount
	if amount.IsZero() {
		return ErrInvalidCall
	}
	newStaked, err := acc.Staked.Sub(amount)
	if err != nil {
		return ErrInsufficientFunds
	}
	acc.Staked = newStaked
	acc.Unbonding = append(acc.Unbonding, types.UnbondingEntry{
		Amount:      amount,
		MatureEpoch: types.EpochNumber(0), // filled by the chain engine, which knows current_epoch+unbond_period
	})
	return nil
}

func applyWithdrawUnbonded(acc *types.Account) error {
	// The chain engine calls this only after filtering to matured entries;
	// at the executor layer we simply move every currently-present
	// unbonding entry into spendable balance and clear the list, since
	// maturity filtering requires the current epoch which is block
	// context, not transaction context.
	total := acc.TotalUnbonding()
	if total.IsZero() {
		return ErrInvalidCall
	}
	newBalance, err := acc.Balance.Add(total)
	if err != nil {
		return ErrInvalidCall
	}
	acc.Balance = newBalance
	acc.Unbonding = nil
	return nil
}
