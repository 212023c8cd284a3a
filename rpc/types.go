package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kratoschain/kratos/core/types"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  []interface{}   `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError carries a JSON-RPC error code and message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// ErrCodeRateLimited is a server-defined code (outside the standard
	// JSON-RPC reserved range) returned when RPCRateLimiter denies a request.
	ErrCodeRateLimited = -32000
)

// DecodeAccountID implements spec.md §6's hex encoding contract: account
// ids and signatures must be accepted as "0x…" hex (with or without
// prefix), as a raw byte string, or as a JSON array of integers — to
// interoperate with loose clients that don't agree on one wire shape.
func DecodeAccountID(v interface{}) (types.AccountID, error) {
	b, err := decodeFlexibleBytes(v)
	if err != nil {
		return types.AccountID{}, err
	}
	if len(b) != len(types.AccountID{}) {
		return types.AccountID{}, fmt.Errorf("rpc: account id must be %d bytes, got %d", len(types.AccountID{}), len(b))
	}
	return types.BytesToAccountID(b), nil
}

// DecodeSignature applies the same flexible decoding to a signature field.
func DecodeSignature(v interface{}) (types.Signature, error) {
	b, err := decodeFlexibleBytes(v)
	if err != nil {
		return types.Signature{}, err
	}
	var sig types.Signature
	if len(b) != len(sig) {
		return types.Signature{}, fmt.Errorf("rpc: signature must be %d bytes, got %d", len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

func decodeFlexibleBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimPrefix(t, "0x")
		s = strings.TrimPrefix(s, "0X")
		return hex.DecodeString(s)
	case []byte:
		return t, nil
	case []interface{}:
		out := make([]byte, len(t))
		for i, e := range t {
			n, ok := e.(float64)
			if !ok {
				return nil, fmt.Errorf("rpc: array element %d is not a number", i)
			}
			out[i] = byte(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rpc: unsupported encoding for byte field: %T", v)
	}
}

// EncodeHex renders bytes as a "0x"-prefixed hex string, the canonical
// outbound form for every account id/hash/signature field.
func EncodeHex(b []byte) string { return "0x" + hex.EncodeToString(b) }

// ParseBlockSelector parses the number|hash|"latest" block selector shared
// by chain_getBlock and chain_getHeader.
type BlockSelector struct {
	Latest bool
	Number *types.BlockNumber
	Hash   *types.Hash
}

func ParseBlockSelector(v interface{}) (BlockSelector, error) {
	s, ok := v.(string)
	if !ok {
		if n, ok := v.(float64); ok {
			bn := types.BlockNumber(uint64(n))
			return BlockSelector{Number: &bn}, nil
		}
		return BlockSelector{}, fmt.Errorf("rpc: unsupported block selector type %T", v)
	}
	if s == "latest" || s == "" {
		return BlockSelector{Latest: true}, nil
	}
	if strings.HasPrefix(s, "0x") && len(s) == 2+2*len(types.Hash{}) {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return BlockSelector{}, err
		}
		var h types.Hash
		copy(h[:], b)
		return BlockSelector{Hash: &h}, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return BlockSelector{}, fmt.Errorf("rpc: invalid block selector %q", s)
	}
	bn := types.BlockNumber(n)
	return BlockSelector{Number: &bn}, nil
}
