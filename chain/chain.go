// Package chain ties the state store, transaction executor, and consensus
// core together into the block production/import/finalize pipeline:
// validating and applying a block's transactions under the exclusive
// (state, validators) write-lock order, computing the resulting state
// root, and driving the epoch-boundary VC/security-state/bootstrap-era
// sweep. Grounded on the teacher's core/blockchain.go (insertBlock's
// validate-then-execute-then-extend-canonical-chain shape) and
// consensus/block_producer.go (the producer side of the same pipeline),
// generalized from a re-execute-from-genesis EVM chain to a single
// mutable account/validator state.
package chain

import (
	"sort"
	"sync"
	"time"

	"github.com/kratoschain/kratos/consensus"
	"github.com/kratoschain/kratos/consensus/bootstrap"
	"github.com/kratoschain/kratos/consensus/finality"
	"github.com/kratoschain/kratos/consensus/leader"
	"github.com/kratoschain/kratos/consensus/security"
	"github.com/kratoschain/kratos/consensus/slashing"
	"github.com/kratoschain/kratos/consensus/vc"
	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
	"github.com/kratoschain/kratos/log"
	"github.com/kratoschain/kratos/state"
	"github.com/kratoschain/kratos/txexec"
)

// Chain is the node's single mutable view of the ledger: the state store,
// the validator set, and the bookkeeping the consensus core needs between
// blocks (VC accumulators, the security-state machine, in-flight finality
// rounds). Callers never acquire state.Store or consensus.ValidatorSet's
// locks directly; every cross-cutting mutation goes through Chain's
// methods, which preserve the fixed (state, validators) lock order.
type Chain struct {
	mu sync.RWMutex

	cfg        consensus.Config
	state      *state.Store
	validators *consensus.ValidatorSet
	security   *security.Machine

	vcAccum map[types.AccountID]*vc.Accumulator

	blocks  map[types.Hash]types.Block
	byNum   map[types.BlockNumber]types.Hash
	head    types.Block

	rounds        map[types.BlockNumber]*finality.Round
	currentRound  *finality.Round
	lastFinalized types.BlockNumber
	justifications map[types.BlockNumber]types.FinalityJustification
	roundStarted   map[types.BlockNumber]time.Time

	// pendingSlashEvents holds misbehavior evidence resolved since the last
	// block was drained, waiting to be embedded in the next produced block.
	pendingSlashEvents []types.SlashEvent

	metrics MetricsSink

	log *log.Logger
}

// MetricsSink receives point-in-time observations from the block pipeline.
// A nil sink (the default) is a no-op; node.New wires a concrete
// implementation backed by metrics.Registry.
type MetricsSink interface {
	// BlockImported is called once per block that extends the canonical
	// head.
	BlockImported()
	// RoundFinalized is called once per round that reaches a finality
	// justification, with its prevote-to-justification wall-clock duration.
	RoundFinalized(durationSeconds float64)
	// SlashApplied is called once per slash event applied during block
	// import.
	SlashApplied()
}

// SetMetricsSink installs the sink that ImportBlock/FinalizeRound report
// to. Safe to call once before the chain starts importing blocks.
func (c *Chain) SetMetricsSink(sink MetricsSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = sink
}

// New constructs a chain from a genesis block; the caller must have already
// populated the genesis accounts and validator set via the returned
// Chain's State()/Validators() accessors before the first non-genesis
// block is imported.
func New(cfg consensus.Config, genesis types.Block, st *state.Store, validators *consensus.ValidatorSet) *Chain {
	c := &Chain{
		cfg:        cfg,
		state:      st,
		validators: validators,
		security:   security.NewMachine(security.Thresholds{Normal: cfg.NormalThreshold, Degraded: cfg.DegradedThreshold, Restricted: cfg.RestrictedThreshold}),
		vcAccum:    make(map[types.AccountID]*vc.Accumulator),
		blocks:     make(map[types.Hash]types.Block),
		byNum:      make(map[types.BlockNumber]types.Hash),
		rounds:         make(map[types.BlockNumber]*finality.Round),
		justifications: make(map[types.BlockNumber]types.FinalityJustification),
		roundStarted:   make(map[types.BlockNumber]time.Time),
		log:            log.Default().Module("chain"),
	}
	hash := genesis.Hash(hashBytes, types.EncodeBlockHeader)
	c.blocks[hash] = genesis
	c.byNum[genesis.Header.Number] = hash
	c.head = genesis
	return c
}

func (c *Chain) State() *state.Store                 { return c.state }
func (c *Chain) Validators() *consensus.ValidatorSet { return c.validators }
func (c *Chain) Config() consensus.Config            { return c.cfg }

// SecurityState returns the current security-state-machine state.
func (c *Chain) SecurityState() security.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.security.Current()
}

// Head returns the current canonical head block.
func (c *Chain) Head() types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// GenesisBlock returns the chain's block at height 0.
func (c *Chain) GenesisBlock() types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash := c.byNum[0]
	return c.blocks[hash]
}

// GetBlock returns a block by hash.
func (c *Chain) GetBlock(hash types.Hash) (types.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[hash]
	return b, ok
}

// GetBlockByNumber returns the canonical block at a given height.
func (c *Chain) GetBlockByNumber(number types.BlockNumber) (types.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.byNum[number]
	if !ok {
		return types.Block{}, false
	}
	return c.blocks[hash], true
}

// ImportBlock validates and applies block, advancing the canonical head if
// it extends it. Per spec.md §4.4, import never leaves partial state: every
// check below runs before any state mutation, and the mutation itself runs
// inside state.Store.Mutate, which rolls back entirely on error.
func (c *Chain) ImportBlock(block types.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := block.Hash(hashBytes, types.EncodeBlockHeader)
	if _, ok := c.blocks[hash]; ok {
		return nil // idempotent re-import
	}

	parent, ok := c.blocks[block.Header.ParentHash]
	if !ok {
		return ErrUnknownParent
	}
	if block.Header.Number != parent.Header.Number+1 {
		return ErrNotNextNumber
	}

	now := uint64(time.Now().Unix())
	if err := consensus.ValidateTimestamp(parent.Header.Timestamp, block.Header.Timestamp, now, c.cfg.SecondsPerSlot, false); err != nil {
		return err
	}

	headerBytes := types.EncodeBlockHeader(block.Header)
	if !crypto.Verify(block.Header.Author, types.DomainBlock, headerBytes, block.Header.Signature) {
		return ErrBadBlockSignature
	}

	txRoot := computeTxRoot(block.Transactions)
	if txRoot != block.Header.TransactionsRoot {
		return ErrBadTxRoot
	}

	var deferredEffects []txexec.DeferredEffect
	var totalFee types.Balance = types.ZeroBalance()

	err := c.state.Mutate(func(ws *state.WriteScope) error {
		for _, stx := range block.Transactions {
			result, err := txexec.Apply(ws, stx)
			if err != nil {
				return err
			}
			if sum, addErr := totalFee.Add(result.Fee); addErr == nil {
				totalFee = sum
			}
			if result.Deferred != nil {
				deferredEffects = append(deferredEffects, *result.Deferred)
			}
		}

		var voters []types.AccountID
		if j, ok := c.justifications[c.lastFinalized]; ok {
			voters = make([]types.AccountID, 0, len(j.Signatures))
			for _, vs := range j.Signatures {
				voters = append(voters, vs.Voter)
			}
		}
		split := consensus.SplitFees(totalFee, voters)

		producer := ws.GetAccount(block.Header.Author)
		if sum, err := producer.Balance.Add(split.Producer); err == nil {
			producer.Balance = sum
		}
		ws.SetAccount(block.Header.Author, producer)

		for id, share := range split.PerVoter {
			acc := ws.GetAccount(id)
			if sum, err := acc.Balance.Add(share); err == nil {
				acc.Balance = sum
			}
			ws.SetAccount(id, acc)
		}

		c.applyDeferredEffects(ws, block.Header.Number, block.Header.Epoch, deferredEffects)
		return nil
	})
	if err != nil {
		return err
	}

	c.applySlashEvents(block.Header.Epoch, block.SlashEvents)

	gotStateRoot := c.state.ComputeStateRoot(block.Header.Number, c.cfg.ChainID, c.validators.All())
	if gotStateRoot != block.Header.StateRoot {
		return ErrBadStateRoot
	}

	previousEpoch := types.EpochOf(c.head.Header.Slot)
	c.blocks[hash] = block
	if block.Header.Number > c.head.Header.Number {
		c.byNum[block.Header.Number] = hash
		c.head = block
		c.log.Info("imported block", "number", uint64(block.Header.Number), "hash", hash.Hex(), "txs", len(block.Transactions))
		if c.metrics != nil {
			c.metrics.BlockImported()
		}
	}

	if block.Header.Epoch > previousEpoch {
		c.onEpochBoundary(block.Header.Epoch)
	}

	return nil
}

// applyDeferredEffects applies phase-2 validator-set mutations collected
// from the block's transactions, reusing the already-open write intent
// rather than re-acquiring any lock recursively (the reentrancy hazard
// spec.md §9 calls out).
func (c *Chain) applyDeferredEffects(ws *state.WriteScope, at types.BlockNumber, epoch types.EpochNumber, effects []txexec.DeferredEffect) {
	for _, eff := range effects {
		switch eff.Kind {
		case txexec.DeferredRegisterValidator:
			c.validators.Put(types.Validator{
				ID:          eff.Sender,
				Stake:       eff.Stake,
				Reputation:  100,
				Status:      types.StatusActive,
				JoinedEpoch: epoch,
			})
			c.vcAccum[eff.Sender] = vc.NewAccumulator(epoch)
		case txexec.DeferredUnregisterValidator:
			if v, ok := c.validators.Get(eff.Sender); ok {
				v.Status = types.StatusUnbonding
				c.validators.Put(v)
			}
		case txexec.DeferredProposeEarlyValidator:
			c.validators.ProposeEarlyCandidate(eff.Sender, eff.Candidate, at)
		case txexec.DeferredVoteEarlyValidator:
			c.validators.VoteEarlyCandidate(eff.Sender, eff.Candidate, epoch, func(admitted types.AccountID) {
				bootstrap.InitializeBootstrapVC(ws, admitted)
				c.vcAccum[admitted] = vc.NewAccumulator(epoch)
			})
		}
	}
}

// applySlashEvents applies every slash event embedded in an imported block
// to the offending validator's stake, pending unbonding entries, VC, and
// reputation. The penalty fields in each event are already fully resolved
// (see types.SlashEvent), so this is a pure, deterministic replay of a
// decision made once, not a re-derivation of severity from evidence.
func (c *Chain) applySlashEvents(epoch types.EpochNumber, events []types.SlashEvent) {
	for _, ev := range events {
		v, ok := c.validators.Get(ev.Validator)
		if !ok {
			continue
		}

		v.VC = slashing.ApplyVC(v.VC, slashing.Schedule{VCPenaltyBps: ev.VCPenaltyBps})

		base := v.Stake
		for _, u := range v.Unbonding {
			if sum, err := base.Add(u.Amount); err == nil {
				base = sum
			}
		}
		penalty := slashing.StakePenaltyAmount(base, ev.StakePenaltyBps)
		v.Stake, v.Unbonding = slashing.DebitProportional(v.Stake, v.Unbonding, penalty)

		v.Reputation = slashing.AdjustReputationSlash(v.Reputation)
		v.CriticalSlashCount++
		v.LastCriticalEpoch = epoch

		c.validators.Put(v)
		c.log.Info("applied slash event", "validator", ev.Validator.Hex(), "reason", ev.Reason, "stake_penalty_bps", ev.StakePenaltyBps)
		if c.metrics != nil {
			c.metrics.SlashApplied()
		}
	}
}

// onEpochBoundary runs the per-epoch sweep: VC window rotation/decay for
// every active validator, critical-slash-count decay, and security-state
// recomputation, grounded on the teacher's (since removed) epoch_boundary.go
// per-epoch validator sweep.
func (c *Chain) onEpochBoundary(epoch types.EpochNumber) {
	active := c.validators.Active()
	for _, v := range active {
		if acc, ok := c.vcAccum[v.ID]; ok {
			acc.AdvanceEpoch()
		}
		if v.CriticalSlashCount > 0 {
			// Advance the decay anchor by the periods consumed so later
			// boundaries do not decay the same elapsed epochs again.
			decayed := v.CriticalSlashCount - slashing.DecayCriticalCount(v.CriticalSlashCount, v.LastCriticalEpoch, epoch)
			v.CriticalSlashCount -= decayed
			v.LastCriticalEpoch += types.EpochNumber(decayed) * slashing.CriticalDecayPeriodEpochs
		}
		c.validators.Put(v)
	}

	inBootstrap := security.EpochInBootstrapEra(epoch, c.cfg.BootstrapEpochs)
	c.security.Evaluate(len(active), inBootstrap)
}

// SelectLeader resolves the slot leader for the next block given each
// active validator's VRF output for that slot.
func (c *Chain) SelectLeader(vrfOutputs map[types.AccountID]types.Hash, inBootstrap bool) (types.AccountID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return leader.SelectLeader(c.validators.Active(), vrfOutputs, inBootstrap)
}

// StartRound begins a new finality round targeting the given block,
// weighting each active validator by its current KRAT stake.
func (c *Chain) StartRound(epoch types.EpochNumber, roundNumber uint64, target types.Block) *finality.Round {
	c.mu.Lock()
	defer c.mu.Unlock()

	weights := make(map[types.AccountID]uint64, len(c.validators.Active()))
	for _, v := range c.validators.Active() {
		weights[v.ID] = uint64(v.Stake.KratFloat())
	}
	targetHash := target.Hash(hashBytes, types.EncodeBlockHeader)
	r := finality.NewRound(epoch, roundNumber, target.Header.Number, targetHash, weights)
	c.rounds[target.Header.Number] = r
	c.currentRound = r
	c.roundStarted[target.Header.Number] = time.Now()
	return r
}

// FinalizeRound commits a completed round's justification as the new
// last-finalized block, if its target is past the current finalized tip.
func (c *Chain) FinalizeRound(r *finality.Round) (types.FinalityJustification, bool) {
	j, ok := r.Justification()
	if !ok {
		return types.FinalityJustification{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.justifications[j.BlockNumber] = j
	if j.BlockNumber > c.lastFinalized {
		c.lastFinalized = j.BlockNumber
	}
	if c.currentRound == r {
		c.currentRound = nil
	}
	if started, ok := c.roundStarted[j.BlockNumber]; ok {
		if c.metrics != nil {
			c.metrics.RoundFinalized(time.Since(started).Seconds())
		}
		delete(c.roundStarted, j.BlockNumber)
	}
	return j, true
}

// SubmitVote ingests a finality vote into the round targeting its block
// number, if one is in flight. When the vote exposes an equivocation, the
// fully-resolved Critical slashing event is queued for embedding in the next
// produced block rather than applied on the spot, so the state transition it
// causes stays part of the deterministic block-import path every node
// replays identically, independent of which node's vote triggered detection.
func (c *Chain) SubmitVote(vote types.FinalityVote) (*types.EquivocationProof, error) {
	c.mu.Lock()
	round, ok := c.rounds[vote.TargetNumber]
	c.mu.Unlock()
	if !ok {
		return nil, ErrUnknownRound
	}

	proof, err := round.AddVote(vote)
	if proof != nil {
		sched := slashing.Schedules[slashing.SeverityCritical]
		c.mu.Lock()
		c.pendingSlashEvents = append(c.pendingSlashEvents, types.SlashEvent{
			Validator:       proof.Voter,
			Reason:          "finality equivocation",
			VCPenaltyBps:    sched.VCPenaltyBps,
			StakePenaltyBps: sched.StakePenaltyMaxBp,
		})
		c.mu.Unlock()
	}
	return proof, err
}

// DrainPendingSlashEvents returns and clears the slash events queued since
// the last drain, for the block producer to embed in the block it is about
// to build.
func (c *Chain) DrainPendingSlashEvents() []types.SlashEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.pendingSlashEvents
	c.pendingSlashEvents = nil
	return events
}

// LastFinalized returns the highest finalized block number.
func (c *Chain) LastFinalized() types.BlockNumber {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFinalized
}

// Justification returns the stored finality justification for a block
// number, if that block has been finalized.
func (c *Chain) Justification(number types.BlockNumber) (types.FinalityJustification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.justifications[number]
	return j, ok
}

// CurrentRound returns the in-progress finality round, if any.
func (c *Chain) CurrentRound() (*finality.Round, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentRound, c.currentRound != nil
}

// ActiveValidatorCount returns the number of currently active validators.
func (c *Chain) ActiveValidatorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.validators.Active())
}

func hashBytes(b []byte) types.Hash { return crypto.HashToHash(b) }

func computeTxRoot(txs []types.SignedTransaction) types.Hash {
	if len(txs) == 0 {
		return types.Hash{}
	}
	leaves := make([]types.Hash, 0, len(txs))
	for _, stx := range txs {
		h := stx.Hash
		if h == nil {
			hv := crypto.HashToHash(types.EncodeTransaction(stx.Tx))
			h = &hv
		}
		leaves = append(leaves, *h)
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Less(leaves[j]) })
	return crypto.MerkleRoot(leaves)
}

