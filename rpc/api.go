// api.go implements the transport-agnostic RPC surface named in spec.md
// §6: chain_*, state_*, author_*, finality_*, validator_*, and
// system_health. Grounded on the teacher's EthAPI dispatch shape
// generalized from the Ethereum JSON-RPC namespace (eth_getBlockByNumber,
// eth_getBalance, eth_sendRawTransaction, filter/log subscriptions) to
// Kratos's account/validator/finality surface — the filter/subscription
// machinery has no analog since spec.md names no subscription method.
// Dispatch itself is delegated to the kept MethodRegistry rather than a
// hand-rolled switch, so every call still goes through its middleware hook.
package rpc

import (
	"errors"
	"fmt"

	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
)

// RoundInfo is the read-only view of the in-progress finality round
// returned by finality_getRoundInfo.
type RoundInfo struct {
	Epoch        types.EpochNumber
	RoundNumber  uint64
	TargetNumber types.BlockNumber
	TargetHash   types.Hash
	Phase        string
}

// Backend is everything the RPC layer needs from the running node. It is
// satisfied structurally (no explicit "implements" declaration) by the
// node package's wiring of chain.Chain, txpool.Pool, and sync.Syncer.
type Backend interface {
	ChainName() string
	Head() types.Block
	GenesisBlock() types.Block
	GetBlock(hash types.Hash) (types.Block, bool)
	GetBlockByNumber(number types.BlockNumber) (types.Block, bool)
	IsSynced() bool
	PeerCount() int

	GetAccount(id types.AccountID) types.Account

	SubmitTransaction(stx types.SignedTransaction) (types.Hash, error)
	PendingTransactions() []types.SignedTransaction
	RemoveTransaction(hash types.Hash) bool

	LastFinalized() types.BlockNumber
	Justification(number types.BlockNumber) (types.FinalityJustification, bool)
	CurrentRound() (RoundInfo, bool)
	ActiveValidatorCount() int

	PendingCandidates() map[types.AccountID]types.EarlyCandidate
	CandidateVotes(candidate types.AccountID) ([]types.AccountID, bool)
	CanVote(id types.AccountID) bool
	EarlyVotingActive() bool
}

// errInvalidParams marks a handler error as a JSON-RPC invalid-params
// error rather than an internal one, so HandleRequest can pick the code.
type errInvalidParams struct{ err error }

func (e errInvalidParams) Error() string { return e.err.Error() }
func (e errInvalidParams) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return errInvalidParams{fmt.Errorf(format, args...)}
}

// KratosAPI dispatches JSON-RPC requests against a Backend, registering
// every method with the shared MethodRegistry.
type KratosAPI struct {
	backend  Backend
	registry *MethodRegistry
}

// NewKratosAPI creates an API bound to backend with every method registered.
func NewKratosAPI(backend Backend) *KratosAPI {
	api := &KratosAPI{backend: backend, registry: NewMethodRegistry()}
	for _, m := range api.methods() {
		if err := api.registry.Register(m); err != nil {
			panic(err) // programmer error: duplicate method name
		}
	}
	return api
}

func (api *KratosAPI) methods() []MethodInfo {
	return []MethodInfo{
		{Name: "chain_getInfo", Namespace: "chain", ParamCount: -1, Handler: api.chainGetInfo},
		{Name: "chain_getBlock", Namespace: "chain", ParamCount: -1, Handler: api.chainGetBlock},
		{Name: "chain_getHeader", Namespace: "chain", ParamCount: -1, Handler: api.chainGetHeader},
		{Name: "state_getAccount", Namespace: "state", ParamCount: 1, Handler: api.stateGetAccount},
		{Name: "state_getBalance", Namespace: "state", ParamCount: 1, Handler: api.stateGetBalance},
		{Name: "state_getNonce", Namespace: "state", ParamCount: 1, Handler: api.stateGetNonce},
		{Name: "author_submitTransaction", Namespace: "author", ParamCount: 1, Handler: api.authorSubmitTransaction},
		{Name: "author_pendingTransactions", Namespace: "author", ParamCount: -1, Handler: api.authorPendingTransactions},
		{Name: "author_removeTransaction", Namespace: "author", ParamCount: 1, Handler: api.authorRemoveTransaction},
		{Name: "finality_getStatus", Namespace: "finality", ParamCount: -1, Handler: api.finalityGetStatus},
		{Name: "finality_getLastFinalized", Namespace: "finality", ParamCount: -1, Handler: api.finalityGetLastFinalized},
		{Name: "finality_getJustification", Namespace: "finality", ParamCount: 1, Handler: api.finalityGetJustification},
		{Name: "finality_getRoundInfo", Namespace: "finality", ParamCount: -1, Handler: api.finalityGetRoundInfo},
		{Name: "validator_getEarlyVotingStatus", Namespace: "validator", ParamCount: -1, Handler: api.validatorGetEarlyVotingStatus},
		{Name: "validator_getPendingCandidates", Namespace: "validator", ParamCount: -1, Handler: api.validatorGetPendingCandidates},
		{Name: "validator_getCandidateVotes", Namespace: "validator", ParamCount: 1, Handler: api.validatorGetCandidateVotes},
		{Name: "validator_canVote", Namespace: "validator", ParamCount: 1, Handler: api.validatorCanVote},
		{Name: "system_health", Namespace: "system", ParamCount: -1, Handler: api.systemHealth},
	}
}

// HandleRequest runs req through the method registry (and its middleware
// chain) and converts the outcome into a JSON-RPC response envelope.
func (api *KratosAPI) HandleRequest(req *Request) *Response {
	result, err := api.registry.Call(req.Method, req.Params)
	if err == nil {
		return successResponse(req.ID, result)
	}
	switch {
	case errors.Is(err, ErrMethodNotFound):
		return errorResponse(req.ID, ErrCodeMethodNotFound, err.Error())
	case errors.Is(err, ErrInvalidParams):
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	default:
		var ip errInvalidParams
		if errors.As(err, &ip) {
			return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		return errorResponse(req.ID, ErrCodeInternal, err.Error())
	}
}

func (api *KratosAPI) chainGetInfo(params []interface{}) (interface{}, error) {
	head := api.backend.Head()
	genesis := api.backend.GenesisBlock()
	return map[string]interface{}{
		"chain_name":    api.backend.ChainName(),
		"height":        uint64(head.Header.Number),
		"best_hash":     EncodeHex(headHash(head)[:]),
		"genesis_hash":  EncodeHex(headHash(genesis)[:]),
		"current_epoch": uint64(head.Header.Epoch),
		"current_slot":  uint64(head.Header.Slot),
		"is_synced":     api.backend.IsSynced(),
	}, nil
}

// headHash recomputes a block's hash from its canonical header encoding.
func headHash(b types.Block) types.Hash {
	return b.Hash(blockHasher, types.EncodeBlockHeader)
}

func blockHasher(b []byte) types.Hash { return crypto.HashToHash(b) }

func (api *KratosAPI) chainGetBlock(params []interface{}) (interface{}, error) {
	block, err := api.resolveBlock(params)
	if err != nil {
		return nil, err
	}
	return formatBlock(block), nil
}

func (api *KratosAPI) chainGetHeader(params []interface{}) (interface{}, error) {
	block, err := api.resolveBlock(params)
	if err != nil {
		return nil, err
	}
	return formatHeader(block.Header), nil
}

func (api *KratosAPI) resolveBlock(params []interface{}) (types.Block, error) {
	if len(params) == 0 {
		return api.backend.Head(), nil
	}
	sel, err := ParseBlockSelector(params[0])
	if err != nil {
		return types.Block{}, invalidParams("%s", err)
	}
	switch {
	case sel.Latest:
		return api.backend.Head(), nil
	case sel.Hash != nil:
		b, ok := api.backend.GetBlock(*sel.Hash)
		if !ok {
			return types.Block{}, invalidParams("rpc: block not found")
		}
		return b, nil
	case sel.Number != nil:
		b, ok := api.backend.GetBlockByNumber(*sel.Number)
		if !ok {
			return types.Block{}, invalidParams("rpc: block not found")
		}
		return b, nil
	default:
		return types.Block{}, invalidParams("rpc: invalid block selector")
	}
}

func (api *KratosAPI) stateGetAccount(params []interface{}) (interface{}, error) {
	id, err := paramAccountID(params, 0)
	if err != nil {
		return nil, err
	}
	acc := api.backend.GetAccount(id)
	return map[string]interface{}{
		"balance": acc.Balance.String(),
		"staked":  acc.Staked.String(),
		"nonce":   acc.Nonce,
	}, nil
}

func (api *KratosAPI) stateGetBalance(params []interface{}) (interface{}, error) {
	id, err := paramAccountID(params, 0)
	if err != nil {
		return nil, err
	}
	return api.backend.GetAccount(id).Balance.String(), nil
}

func (api *KratosAPI) stateGetNonce(params []interface{}) (interface{}, error) {
	id, err := paramAccountID(params, 0)
	if err != nil {
		return nil, err
	}
	return api.backend.GetAccount(id).Nonce, nil
}

func (api *KratosAPI) authorSubmitTransaction(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, invalidParams("rpc: missing transaction")
	}
	m, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, invalidParams("rpc: transaction must be an object")
	}
	stx, err := decodeSignedTransaction(m)
	if err != nil {
		return nil, invalidParams("%s", err)
	}
	hash, err := api.backend.SubmitTransaction(stx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"hash": EncodeHex(hash[:])}, nil
}

func (api *KratosAPI) authorPendingTransactions(params []interface{}) (interface{}, error) {
	pending := api.backend.PendingTransactions()
	out := make([]interface{}, 0, len(pending))
	for _, stx := range pending {
		out = append(out, formatTransaction(stx))
	}
	return out, nil
}

func (api *KratosAPI) authorRemoveTransaction(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, invalidParams("rpc: missing hash")
	}
	b, err := decodeFlexibleBytes(params[0])
	if err != nil {
		return nil, invalidParams("%s", err)
	}
	var h types.Hash
	copy(h[:], b)
	return api.backend.RemoveTransaction(h), nil
}

func (api *KratosAPI) finalityGetStatus(params []interface{}) (interface{}, error) {
	round, active := api.backend.CurrentRound()
	return map[string]interface{}{
		"last_finalized":    uint64(api.backend.LastFinalized()),
		"active_validators": api.backend.ActiveValidatorCount(),
		"round_active":      active,
		"round":             round,
	}, nil
}

func (api *KratosAPI) finalityGetLastFinalized(params []interface{}) (interface{}, error) {
	return uint64(api.backend.LastFinalized()), nil
}

func (api *KratosAPI) finalityGetJustification(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, invalidParams("rpc: missing block number")
	}
	n, ok := params[0].(float64)
	if !ok {
		return nil, invalidParams("rpc: block number must be numeric")
	}
	j, ok := api.backend.Justification(types.BlockNumber(uint64(n)))
	if !ok {
		return nil, invalidParams("rpc: no justification for that block")
	}
	return j, nil
}

func (api *KratosAPI) finalityGetRoundInfo(params []interface{}) (interface{}, error) {
	round, active := api.backend.CurrentRound()
	if !active {
		return nil, nil
	}
	return round, nil
}

func (api *KratosAPI) validatorGetEarlyVotingStatus(params []interface{}) (interface{}, error) {
	return map[string]interface{}{"active": api.backend.EarlyVotingActive()}, nil
}

func (api *KratosAPI) validatorGetPendingCandidates(params []interface{}) (interface{}, error) {
	candidates := api.backend.PendingCandidates()
	out := make(map[string]interface{}, len(candidates))
	for id, c := range candidates {
		voters := make([]string, 0, len(c.Voters))
		for v := range c.Voters {
			voters = append(voters, EncodeHex(v[:]))
		}
		out[EncodeHex(id[:])] = map[string]interface{}{
			"proposer":   EncodeHex(c.Proposer[:]),
			"voters":     voters,
			"created_at": uint64(c.CreatedAt),
		}
	}
	return out, nil
}

func (api *KratosAPI) validatorGetCandidateVotes(params []interface{}) (interface{}, error) {
	id, err := paramAccountID(params, 0)
	if err != nil {
		return nil, err
	}
	voters, ok := api.backend.CandidateVotes(id)
	if !ok {
		return nil, invalidParams("rpc: no such pending candidate")
	}
	out := make([]string, 0, len(voters))
	for _, v := range voters {
		out = append(out, EncodeHex(v[:]))
	}
	return out, nil
}

func (api *KratosAPI) validatorCanVote(params []interface{}) (interface{}, error) {
	id, err := paramAccountID(params, 0)
	if err != nil {
		return nil, err
	}
	return api.backend.CanVote(id), nil
}

func (api *KratosAPI) systemHealth(params []interface{}) (interface{}, error) {
	peerCount := api.backend.PeerCount()
	return map[string]interface{}{
		"healthy":      true,
		"is_synced":    api.backend.IsSynced(),
		"has_peers":    peerCount > 0,
		"block_height": uint64(api.backend.Head().Header.Number),
		"peer_count":   peerCount,
	}, nil
}

func paramAccountID(params []interface{}, idx int) (types.AccountID, error) {
	if len(params) <= idx {
		return types.AccountID{}, invalidParams("rpc: missing account id parameter")
	}
	id, err := DecodeAccountID(params[idx])
	if err != nil {
		return types.AccountID{}, invalidParams("%s", err)
	}
	return id, nil
}

func successResponse(id []byte, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", Result: result, ID: id}
}

func errorResponse(id []byte, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", Error: &RPCError{Code: code, Message: message}, ID: id}
}
