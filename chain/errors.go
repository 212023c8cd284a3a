package chain

import "github.com/cockroachdb/errors"

var (
	ErrNoGenesis        = errors.New("chain: genesis block not provided")
	ErrGenesisExists    = errors.New("chain: genesis already initialized")
	ErrBlockNotFound    = errors.New("chain: block not found")
	ErrUnknownParent    = errors.New("chain: unknown parent block")
	ErrNotNextNumber    = errors.New("chain: block number is not parent+1")
	ErrBadBlockSignature = errors.New("chain: block signature invalid")
	ErrWrongProducer    = errors.New("chain: block author is not the selected slot leader")
	ErrBadStateRoot     = errors.New("chain: computed state root does not match header")
	ErrBadTxRoot        = errors.New("chain: computed transactions root does not match header")
	ErrUnknownRound     = errors.New("chain: no round in flight for vote's target block number")
)
