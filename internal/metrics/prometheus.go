package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with Prometheus instruments.
// Collectors are created and registered lazily on first use.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	inserts        *prometheus.CounterVec
	polls          *prometheus.CounterVec
	pollLatency    prometheus.Histogram
	returns        *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	verifies       *prometheus.CounterVec
	verifyLatency  prometheus.Histogram
	activeWorkers  prometheus.Gauge

	storeWrites       prometheus.Histogram
	storeReads        prometheus.Histogram
	storeCommits      prometheus.Histogram
	storeCommitOps    prometheus.Counter
	storeBytesWritten prometheus.Counter
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector registering with reg
// (prometheus.DefaultRegisterer if nil) under namespace ("rescue" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rescue"
	}
	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.inserts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "inserts_total",
			Help:      "Insert outcomes (inserted, already_known, error).",
		}, []string{"result"})
		p.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "polls_total",
			Help:      "Poll calls by whether a candidate was leased.",
		}, []string{"found"})
		p.pollLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "poll_latency_seconds",
			Help:      "Latency of Poll calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		})
		p.returns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "returns_total",
			Help:      "Return outcomes by result and reported verdict.",
		}, []string{"result", "succeeded"})
		p.protocolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "protocol_errors_total",
			Help:      "Store replies outside the script contract, by operation.",
		}, []string{"op"})
		p.verifies = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "verifications_total",
			Help:      "Verifier calls by outcome.",
		}, []string{"matched"})
		p.verifyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "verify_latency_seconds",
			Help:      "Latency of verifier calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		})
		p.activeWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of running workers.",
		})
		p.storeWrites = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "write_latency_seconds",
			Help:      "Latency of single-key writes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		})
		p.storeReads = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "read_latency_seconds",
			Help:      "Latency of single-key reads in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		})
		p.storeCommits = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "commit_latency_seconds",
			Help:      "Latency of batch commits in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		})
		p.storeCommitOps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "committed_ops_total",
			Help:      "Operations committed in batches.",
		})
		p.storeBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "written_bytes_total",
			Help:      "Bytes committed to the store.",
		})

		p.reg.MustRegister(
			p.inserts, p.polls, p.pollLatency, p.returns, p.protocolErrors,
			p.verifies, p.verifyLatency, p.activeWorkers,
			p.storeWrites, p.storeReads, p.storeCommits, p.storeCommitOps, p.storeBytesWritten,
		)
	})
}

// RecordInsert implements Collector.
func (p *PrometheusCollector) RecordInsert(result string) {
	p.ensureRegistered()
	p.inserts.WithLabelValues(result).Inc()
}

// RecordPoll implements Collector.
func (p *PrometheusCollector) RecordPoll(found bool, elapsed time.Duration) {
	p.ensureRegistered()
	p.polls.WithLabelValues(strconv.FormatBool(found)).Inc()
	p.pollLatency.Observe(elapsed.Seconds())
}

// RecordReturn implements Collector.
func (p *PrometheusCollector) RecordReturn(result string, succeeded bool) {
	p.ensureRegistered()
	p.returns.WithLabelValues(result, strconv.FormatBool(succeeded)).Inc()
}

// RecordProtocolError implements Collector.
func (p *PrometheusCollector) RecordProtocolError(op string) {
	p.ensureRegistered()
	p.protocolErrors.WithLabelValues(op).Inc()
}

// RecordVerify implements Collector.
func (p *PrometheusCollector) RecordVerify(matched bool, elapsed time.Duration) {
	p.ensureRegistered()
	p.verifies.WithLabelValues(strconv.FormatBool(matched)).Inc()
	p.verifyLatency.Observe(elapsed.Seconds())
}

// SetActiveWorkers implements Collector.
func (p *PrometheusCollector) SetActiveWorkers(n int) {
	p.ensureRegistered()
	p.activeWorkers.Set(float64(n))
}

// ObserveWrite implements the storage hook.
func (p *PrometheusCollector) ObserveWrite(elapsed time.Duration, bytes int) {
	p.ensureRegistered()
	p.storeWrites.Observe(elapsed.Seconds())
	p.storeBytesWritten.Add(float64(bytes))
}

// ObserveRead implements the storage hook.
func (p *PrometheusCollector) ObserveRead(elapsed time.Duration, _ int) {
	p.ensureRegistered()
	p.storeReads.Observe(elapsed.Seconds())
}

// ObserveBatchCommit implements the storage hook.
func (p *PrometheusCollector) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	p.ensureRegistered()
	p.storeCommits.Observe(elapsed.Seconds())
	p.storeCommitOps.Add(float64(numOps))
	p.storeBytesWritten.Add(float64(bytes))
}
