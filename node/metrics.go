package node

import (
	"github.com/kratoschain/kratos/chain"
	"github.com/kratoschain/kratos/consensus/security"
	"github.com/kratoschain/kratos/log"
	metricspkg "github.com/kratoschain/kratos/metrics"
	"github.com/kratoschain/kratos/txpool"
)

// chainMetricsSink adapts metrics.Registry to chain.MetricsSink: counters
// and histograms for the block pipeline, exported over /metrics via
// metrics.PrometheusExporter. It also feeds a MetricsCollector so the round
// duration distribution can be queried by percentile rather than only as a
// cumulative histogram, and a MetricsReporter so the same figures get pushed
// to a log backend between /metrics scrapes.
type chainMetricsSink struct {
	blocksImported *metricspkg.Counter
	roundDuration  *metricspkg.Histogram
	slashesApplied *metricspkg.Counter
	txRate         *metricspkg.Meter

	collector *metricspkg.MetricsCollector
	reporter  *metricspkg.MetricsReporter
}

func newChainMetricsSink(reg *metricspkg.Registry, collector *metricspkg.MetricsCollector, reporter *metricspkg.MetricsReporter) *chainMetricsSink {
	return &chainMetricsSink{
		blocksImported: reg.Counter("chain.blocks_imported"),
		roundDuration:  reg.Histogram("chain.round_duration_seconds"),
		slashesApplied: reg.Counter("chain.slashing_events"),
		txRate:         metricspkg.NewMeter(),
		collector:      collector,
		reporter:       reporter,
	}
}

// MarkSubmittedTx records one transaction entering the mempool, feeding the
// 1/5/15-minute EWMA ingestion rates; chainStateCollector surfaces the
// 1-minute rate.
func (s *chainMetricsSink) MarkSubmittedTx() { s.txRate.Mark(1) }

func (s *chainMetricsSink) BlockImported() {
	s.blocksImported.Inc()
	s.reporter.RecordMetric("chain.blocks_imported_total", float64(s.blocksImported.Value()))
}

func (s *chainMetricsSink) RoundFinalized(durationSeconds float64) {
	s.roundDuration.Observe(durationSeconds)
	s.collector.RecordHistogram("chain.round_duration_seconds", durationSeconds)
	s.reporter.RecordMetric("chain.round_duration_p99_seconds", s.collector.HistogramPercentile("chain.round_duration_seconds", 99))
}

func (s *chainMetricsSink) SlashApplied() {
	s.slashesApplied.Inc()
	s.reporter.RecordMetric("chain.slashing_events_total", float64(s.slashesApplied.Value()))
}

// RoundDurationP99 returns the 99th percentile round duration observed so
// far, in seconds. Returns 0 before the first round finalizes.
func (s *chainMetricsSink) RoundDurationP99() float64 {
	return s.collector.HistogramPercentile("chain.round_duration_seconds", 99)
}

// chainStateCollector reports live gauges (head number, active validator
// count, pending mempool depth, security state) as a
// metrics.CustomCollector, scraped on every /metrics request rather than
// polled on a timer.
type chainStateCollector struct {
	c     *chain.Chain
	tp    *txpool.Pool
	sink  *chainMetricsSink
}

func (cc *chainStateCollector) Collect() []metricspkg.MetricLine {
	return []metricspkg.MetricLine{
		{Name: "chain.head_number", Value: float64(cc.c.Head().Header.Number)},
		{Name: "chain.last_finalized", Value: float64(cc.c.LastFinalized())},
		{Name: "chain.active_validators", Value: float64(cc.c.ActiveValidatorCount())},
		{Name: "chain.security_state", Value: float64(securityStateValue(cc.c.SecurityState()))},
		{Name: "txpool.pending", Value: float64(cc.tp.Len())},
		{Name: "txpool.submit_rate1", Value: cc.sink.txRate.Rate1()},
		{Name: "chain.round_duration_p99_seconds", Value: cc.sink.RoundDurationP99()},
	}
}

// logReportBackend adapts metrics.ReportBackend to the node's structured
// logger, used by MetricsReporter to push a metric snapshot between
// /metrics scrapes.
type logReportBackend struct {
	log *log.Logger
}

func (b logReportBackend) Report(snapshot map[string]float64) error {
	fields := make([]interface{}, 0, len(snapshot)*2)
	for name, value := range snapshot {
		fields = append(fields, name, value)
	}
	b.log.Info("metrics snapshot", fields...)
	return nil
}

// securityStateValue maps the security-state machine's named states to an
// ordinal scale (0=normal ... 3=emergency) suitable for a gauge.
func securityStateValue(s security.State) int {
	switch s.String() {
	case "normal":
		return 0
	case "degraded":
		return 1
	case "restricted":
		return 2
	case "emergency":
		return 3
	default:
		return -1
	}
}
