package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kratoschain/kratos/chain"
	"github.com/kratoschain/kratos/consensus"
	"github.com/kratoschain/kratos/consensus/finality"
	"github.com/kratoschain/kratos/consensus/security"
	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
	"github.com/kratoschain/kratos/governance"
	"github.com/kratoschain/kratos/log"
	"github.com/kratoschain/kratos/metrics"
	"github.com/kratoschain/kratos/rpc"
	chainsync "github.com/kratoschain/kratos/sync"
	"github.com/kratoschain/kratos/txpool"
)

// Node is the top-level Kratos node: it owns the chain engine, mempool,
// block synchronizer, governance registry, and JSON-RPC server, and
// drives the startup/shutdown of its network listeners (RPC and /metrics)
// through the shared service registry.
type Node struct {
	config *Config

	chain      *chain.Chain
	txPool     *txpool.Pool
	syncer     *chainsync.Syncer
	governance *governance.Registry

	validatorKey *crypto.KeyPair

	rpcHandler *rpc.Server
	rpcServer  *http.Server

	metricsRegistry *metrics.Registry
	metricsExporter *metrics.PrometheusExporter
	metricsServer   *http.Server
	metricsSink     *chainMetricsSink
	metricsReporter *metrics.MetricsReporter

	services *ServiceRegistry
	events   *EventBus
	health    *HealthChecker

	log *log.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a new Node with the given configuration. It loads the
// genesis manifest and wires every subsystem, but starts no network
// services until Start is called.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.SetDefault(log.NewWithFormat(slogLevelFromString(config.LogLevel), config.LogFormat))

	if err := config.InitDataDir(); err != nil {
		return nil, fmt.Errorf("init datadir: %w", err)
	}

	manifest, err := chain.LoadManifest(config.ResolvePath(config.GenesisPath))
	if err != nil {
		return nil, fmt.Errorf("load genesis manifest: %w", err)
	}

	cfg := consensus.DefaultConfig()
	if manifest.ChainID != 0 {
		cfg.ChainID = manifest.ChainID
	}
	if manifest.SecondsPerSlot != 0 {
		cfg.SecondsPerSlot = manifest.SecondsPerSlot
	}
	if manifest.SlotsPerEpoch != 0 {
		cfg.SlotsPerEpoch = manifest.SlotsPerEpoch
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consensus config: %w", err)
	}

	genesis, st, validators, err := manifest.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build genesis: %w", err)
	}

	n := &Node{
		config:     config,
		chain:      chain.New(cfg, genesis, st, validators),
		txPool:     txpool.New(txpool.DefaultConfig()),
		governance: governance.NewRegistry(),
		services:   NewServiceRegistry(32),
		events:     NewEventBus(64),
		health:     NewHealthChecker(),
		log:        log.Default().Module("node"),
		stop:       make(chan struct{}),
	}
	n.syncer = chainsync.New(n.chain)

	if config.ValidatorKeyPath != "" {
		key, err := crypto.LoadOrCreateNodeKey(config.ResolvePath(config.ValidatorKeyPath))
		if err != nil {
			return nil, fmt.Errorf("load validator key: %w", err)
		}
		n.validatorKey = key
	}

	n.rpcHandler = rpc.NewServer(newNodeBackend(n))
	n.health.RegisterSubsystem("chain", chainHealthChecker{n.chain})
	n.health.RegisterSubsystem("txpool", txPoolHealthChecker{n.txPool})

	n.metricsRegistry = metrics.NewRegistry()
	n.metricsReporter = metrics.NewMetricsReporter(30 * time.Second)
	n.metricsReporter.RegisterBackend("log", logReportBackend{log: n.log})
	collector := metrics.NewMetricsCollector(metrics.CollectorConfig{EnableHistograms: true})
	n.metricsSink = newChainMetricsSink(n.metricsRegistry, collector, n.metricsReporter)
	n.chain.SetMetricsSink(n.metricsSink)
	n.metricsExporter = metrics.NewPrometheusExporter(n.metricsRegistry, metrics.DefaultPrometheusConfig())
	n.metricsExporter.RegisterCollector("chain", &chainStateCollector{c: n.chain, tp: n.txPool, sink: n.metricsSink})

	return n, nil
}

// rpcService adapts the RPC HTTP listener to the Service interface so its
// lifecycle is driven by ServiceRegistry rather than a bespoke goroutine.
type rpcService struct {
	n *Node
}

func (s rpcService) Name() string { return "rpc" }

func (s rpcService) Start() error {
	n := s.n
	n.rpcServer = &http.Server{
		Addr:    n.config.RPCAddr(),
		Handler: n.rpcHandler.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.rpcServer.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		go func() {
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.log.Error("rpc server error", "err", err)
			}
		}()
		return nil
	}
}

func (s rpcService) Stop() error {
	if s.n.rpcServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.n.rpcServer.Shutdown(ctx)
}

// metricsService adapts the /metrics HTTP listener to the Service
// interface, mirroring rpcService's bind-error-vs-background-serve split.
type metricsService struct {
	n *Node
}

func (s metricsService) Name() string { return "metrics" }

func (s metricsService) Start() error {
	n := s.n
	n.metricsServer = &http.Server{
		Addr:    n.config.MetricsAddr(),
		Handler: n.metricsExporter.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.metricsServer.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		go func() {
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.log.Error("metrics server error", "err", err)
			}
		}()
		return nil
	}
}

func (s metricsService) Stop() error {
	if s.n.metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.n.metricsServer.Shutdown(ctx)
}

// Start starts all node subsystems in priority order.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node already running")
	}

	n.log.Info("starting kratos node", "name", n.config.Name, "chain_id", n.chain.Config().ChainID)

	rpcSvc := rpcService{n}
	if err := n.services.Register(&ServiceDescriptor{Name: rpcSvc.Name(), Service: rpcSvc, Priority: 10}); err != nil {
		return fmt.Errorf("register rpc service: %w", err)
	}
	if n.config.Metrics {
		metricsSvc := metricsService{n}
		if err := n.services.Register(&ServiceDescriptor{Name: metricsSvc.Name(), Service: metricsSvc, Priority: 20}); err != nil {
			return fmt.Errorf("register metrics service: %w", err)
		}
	}
	if errs := n.services.Start(); len(errs) > 0 {
		return fmt.Errorf("start subsystems: %w", errors.Join(errs...))
	}

	n.metricsReporter.Start()
	n.events.PublishAsync(EventSyncStarted, nil)
	n.running = true
	n.log.Info("node started", "rpc_addr", n.config.RPCAddr())
	return nil
}

// Stop gracefully shuts down all subsystems in reverse priority order.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	n.log.Info("stopping kratos node")
	var stopErr error
	if errs := n.services.Stop(); len(errs) > 0 {
		stopErr = errors.Join(errs...)
	}
	n.metricsReporter.Stop()
	n.events.Close()

	n.running = false
	close(n.stop)
	n.log.Info("node stopped")
	return stopErr
}

// slogLevelFromString maps Config.LogLevel's string values onto slog's
// level scale.
func slogLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Chain returns the chain engine.
func (n *Node) Chain() *chain.Chain { return n.chain }

// TxPool returns the transaction pool.
func (n *Node) TxPool() *txpool.Pool { return n.txPool }

// Governance returns the governance registry.
func (n *Node) Governance() *governance.Registry { return n.governance }

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Health runs every registered subsystem health check and returns the
// aggregate report.
func (n *Node) Health() *HealthReport { return n.health.CheckAll() }

// chainHealthChecker reports degraded while the security-state machine is
// in the degraded state, and unhealthy once it is restricted or emergency.
type chainHealthChecker struct{ c *chain.Chain }

func (h chainHealthChecker) Check() *SubsystemHealth {
	status := StatusHealthy
	switch h.c.SecurityState().String() {
	case "restricted", "emergency":
		status = StatusUnhealthy
	case "degraded":
		status = StatusDegraded
	}
	return &SubsystemHealth{
		Name:      "chain",
		Status:    status,
		Message:   fmt.Sprintf("head=%d security=%s", uint64(h.c.Head().Header.Number), h.c.SecurityState().String()),
		LastCheck: time.Now().Unix(),
	}
}

// txPoolHealthChecker reports degraded once the pool is more than half full.
type txPoolHealthChecker struct{ p *txpool.Pool }

func (h txPoolHealthChecker) Check() *SubsystemHealth {
	status := StatusHealthy
	if h.p.Len()*2 > txpool.DefaultConfig().MaxTotal {
		status = StatusDegraded
	}
	return &SubsystemHealth{
		Name:      "txpool",
		Status:    status,
		Message:   fmt.Sprintf("%d pending", h.p.Len()),
		LastCheck: time.Now().Unix(),
	}
}

// nodeBackend adapts Node to rpc.Backend.
type nodeBackend struct {
	n *Node
}

func newNodeBackend(n *Node) *nodeBackend { return &nodeBackend{n: n} }

func (b *nodeBackend) ChainName() string { return b.n.config.Name }

func (b *nodeBackend) Head() types.Block { return b.n.chain.Head() }

func (b *nodeBackend) GenesisBlock() types.Block { return b.n.chain.GenesisBlock() }

func (b *nodeBackend) GetBlock(hash types.Hash) (types.Block, bool) {
	return b.n.chain.GetBlock(hash)
}

func (b *nodeBackend) GetBlockByNumber(number types.BlockNumber) (types.Block, bool) {
	return b.n.chain.GetBlockByNumber(number)
}

func (b *nodeBackend) IsSynced() bool {
	return b.n.syncer.BufferedCount() == 0
}

func (b *nodeBackend) PeerCount() int { return 0 }

func (b *nodeBackend) GetAccount(id types.AccountID) types.Account {
	return b.n.chain.State().GetAccount(id)
}

func (b *nodeBackend) SubmitTransaction(stx types.SignedTransaction) (types.Hash, error) {
	acc := b.n.chain.State().GetAccount(stx.Tx.Sender)
	hash := stx.EnsureHash(hashTx, types.EncodeTransaction)
	if err := b.n.txPool.Add(stx, acc.Nonce, hashTx, types.EncodeTransaction); err != nil {
		return types.Hash{}, err
	}
	b.n.metricsSink.MarkSubmittedTx()
	b.n.events.PublishAsync(EventTxPoolAdd, hash)
	return hash, nil
}

func (b *nodeBackend) PendingTransactions() []types.SignedTransaction {
	return b.n.txPool.SelectWithState(b.n.chain.State(), b.n.txPool.Len())
}

func (b *nodeBackend) RemoveTransaction(hash types.Hash) bool {
	if !b.n.txPool.Has(hash) {
		return false
	}
	b.n.txPool.Remove(hash)
	return true
}

func (b *nodeBackend) LastFinalized() types.BlockNumber { return b.n.chain.LastFinalized() }

func (b *nodeBackend) Justification(number types.BlockNumber) (types.FinalityJustification, bool) {
	return b.n.chain.Justification(number)
}

func (b *nodeBackend) CurrentRound() (rpc.RoundInfo, bool) {
	r, ok := b.n.chain.CurrentRound()
	if !ok {
		return rpc.RoundInfo{}, false
	}
	return roundInfoFromRound(r), true
}

func (b *nodeBackend) ActiveValidatorCount() int { return b.n.chain.ActiveValidatorCount() }

func (b *nodeBackend) PendingCandidates() map[types.AccountID]types.EarlyCandidate {
	return b.n.chain.Validators().PendingCandidates()
}

func (b *nodeBackend) CandidateVotes(candidate types.AccountID) ([]types.AccountID, bool) {
	candidates := b.n.chain.Validators().PendingCandidates()
	c, ok := candidates[candidate]
	if !ok {
		return nil, false
	}
	voters := make([]types.AccountID, 0, len(c.Voters))
	for v := range c.Voters {
		voters = append(voters, v)
	}
	return voters, true
}

func (b *nodeBackend) CanVote(id types.AccountID) bool {
	_, active := b.n.chain.Validators().Get(id)
	return active
}

func (b *nodeBackend) EarlyVotingActive() bool {
	epoch := types.EpochOf(b.n.chain.Head().Header.Slot)
	return security.EpochInBootstrapEra(epoch, b.n.chain.Config().BootstrapEpochs)
}

func roundInfoFromRound(r *finality.Round) rpc.RoundInfo {
	return rpc.RoundInfo{
		Epoch:        r.Epoch,
		RoundNumber:  r.RoundNumber,
		TargetNumber: r.TargetNumber,
		TargetHash:   r.TargetHash,
		Phase:        r.Phase().String(),
	}
}

func hashTx(b []byte) types.Hash { return crypto.HashToHash(b) }
