package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter serves metrics in Prometheus exposition format at the
// /metrics HTTP endpoint, built on github.com/prometheus/client_golang
// rather than a hand-rolled text writer. It exposes a Registry's counters,
// gauges, and histograms alongside the standard Go runtime/process
// collectors, and accepts custom collectors for subsystem-specific metrics
// (chain height, validator set size, round phase, ...).

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Namespace is an optional prefix prepended to the names of the
	// Registry's metrics (e.g. "kratos" turns "chain.height" into
	// "kratos_chain_height"). Lines from custom collectors are exported
	// without it.
	Namespace string
	// EnableRuntime controls whether the standard Go runtime and process
	// collectors (goroutines, memory, GC, open fds, ...) are registered.
	EnableRuntime bool
	// Path is the HTTP path to serve metrics on (default "/metrics").
	Path string
}

// DefaultPrometheusConfig returns a config with sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "kratos",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// CustomCollector is an interface for registering arbitrary metric producers
// that are called during each scrape.
type CustomCollector interface {
	// Collect returns a set of metric data points for the current scrape.
	Collect() []MetricLine
}

// MetricLine represents a single metric data point with optional labels.
type MetricLine struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// PrometheusExporter wires a Registry and any registered CustomCollectors
// into a prometheus.Registry, and serves it over HTTP via promhttp.
type PrometheusExporter struct {
	mu     sync.Mutex
	config PrometheusConfig
	promRegistry *prometheus.Registry
	custom       *customCollectorSet
}

// NewPrometheusExporter creates a new exporter that reads from the given
// registry. Registration happens once, at construction time: the
// underlying prometheus.Registry scrapes live values out of registry and
// custom on every request via their Collect methods, so new counters/gauges
// added to registry after construction are still picked up.
func NewPrometheusExporter(registry *Registry, config PrometheusConfig) *PrometheusExporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}

	promReg := prometheus.NewRegistry()
	custom := &customCollectorSet{collectors: make(map[string]CustomCollector)}

	promReg.MustRegister(&registryCollector{registry: registry, namespace: config.Namespace})
	promReg.MustRegister(custom)
	if config.EnableRuntime {
		promReg.MustRegister(collectors.NewGoCollector())
		promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return &PrometheusExporter{
		config:       config,
		promRegistry: promReg,
		custom:       custom,
	}
}

// RegisterCollector adds a named custom collector. If a collector with the
// same name exists, it is replaced.
func (pe *PrometheusExporter) RegisterCollector(name string, c CustomCollector) {
	pe.custom.register(name, c)
}

// UnregisterCollector removes a previously registered custom collector.
func (pe *PrometheusExporter) UnregisterCollector(name string) {
	pe.custom.unregister(name)
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (pe *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pe.config.Path, promhttp.HandlerFor(pe.promRegistry, promhttp.HandlerOpts{}))
	return mux
}

// registryCollector adapts a Registry's counters/gauges/histograms to
// prometheus.Collector, scraping live values on every Collect call rather
// than snapshotting at registration time.
type registryCollector struct {
	registry  *Registry
	namespace string
}

func (rc *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	// Unchecked collector: metric set is dynamic (Registry creates metrics
	// on first access), so descriptors aren't known up front.
}

func (rc *registryCollector) Collect(ch chan<- prometheus.Metric) {
	rc.registry.mu.RLock()
	defer rc.registry.mu.RUnlock()

	for name, c := range rc.registry.counters {
		desc := prometheus.NewDesc(rc.promName(name), name+" (counter)", nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(c.Value()))
	}
	for name, g := range rc.registry.gauges {
		desc := prometheus.NewDesc(rc.promName(name), name+" (gauge)", nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(g.Value()))
	}
	for name, h := range rc.registry.histograms {
		countDesc := prometheus.NewDesc(rc.promName(name)+"_count", name+" observation count", nil, nil)
		sumDesc := prometheus.NewDesc(rc.promName(name)+"_sum", name+" observation sum", nil, nil)
		ch <- prometheus.MustNewConstMetric(countDesc, prometheus.CounterValue, float64(h.Count()))
		ch <- prometheus.MustNewConstMetric(sumDesc, prometheus.CounterValue, h.Sum())
		if h.Count() > 0 {
			meanDesc := prometheus.NewDesc(rc.promName(name)+"_mean", name+" observation mean", nil, nil)
			ch <- prometheus.MustNewConstMetric(meanDesc, prometheus.GaugeValue, h.Mean())
		}
	}
}

// promName converts a dot-separated metric name to Prometheus format: dots
// become underscores, and the namespace prefix is prepended.
func (rc *registryCollector) promName(name string) string {
	sanitized := strings.ReplaceAll(name, ".", "_")
	sanitized = strings.ReplaceAll(sanitized, "-", "_")
	if rc.namespace != "" {
		return rc.namespace + "_" + sanitized
	}
	return sanitized
}

// customCollectorSet adapts the legacy CustomCollector interface (a bare
// slice of MetricLine, used by subsystems that don't want a client_golang
// import of their own) to prometheus.Collector.
type customCollectorSet struct {
	mu         sync.RWMutex
	collectors map[string]CustomCollector
}

func (cs *customCollectorSet) register(name string, c CustomCollector) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.collectors[name] = c
}

func (cs *customCollectorSet) unregister(name string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.collectors, name)
}

func (cs *customCollectorSet) Describe(ch chan<- *prometheus.Desc) {}

func (cs *customCollectorSet) Collect(ch chan<- prometheus.Metric) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for _, c := range cs.collectors {
		for _, line := range c.Collect() {
			labelNames := make([]string, 0, len(line.Labels))
			labelValues := make([]string, 0, len(line.Labels))
			for k, v := range line.Labels {
				labelNames = append(labelNames, k)
				labelValues = append(labelValues, v)
			}
			name := strings.ReplaceAll(strings.ReplaceAll(line.Name, ".", "_"), "-", "_")
			desc := prometheus.NewDesc(name, line.Name, labelNames, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, line.Value, labelValues...)
		}
	}
}
