package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	settlementCounter        *prometheus.CounterVec
	commissionFailureCounter prometheus.Counter
	pendingBacklogGauge      *prometheus.GaugeVec
	idempotencyCounter       *prometheus.CounterVec
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Settlement outcomes by transaction kind",
		}, []string{"kind", "result"})

		commissionFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commission_computation_failures_total",
			Help: "Commission computations absorbed during activation settlement",
		})

		pendingBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pending_transactions",
			Help: "Pending ledger transactions awaiting admin action",
		}, []string{"kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			commissionFailureCounter,
			pendingBacklogGauge,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlement(kind, result string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(kind, result).Inc()
}

func IncrementCommissionFailure() {
	if commissionFailureCounter == nil {
		return
	}
	commissionFailureCounter.Inc()
}

func SetPendingBacklog(kind string, count int) {
	if pendingBacklogGauge == nil {
		return
	}
	pendingBacklogGauge.WithLabelValues(kind).Set(float64(count))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
