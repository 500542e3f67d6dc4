package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	balanceRefreshCounter *prometheus.CounterVec
	withdrawalCounter     *prometheus.CounterVec
	droppedDebitCounter   prometheus.Counter
	doubleCountCounter    prometheus.Counter
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		balanceRefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_refresh_total",
			Help: "Balance refresh pipeline outcomes",
		}, []string{"result"})

		withdrawalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "withdrawal_submissions_total",
			Help: "Withdrawal submission outcomes",
		}, []string{"result"})

		droppedDebitCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_dropped_debits_total",
			Help: "Debits with no merchant entry and no platform fallback",
		})

		doubleCountCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_double_count_suspects_total",
			Help: "Legacy debits that mirror a migrated withdrawal",
		})

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
			balanceRefreshCounter,
			withdrawalCounter,
			droppedDebitCounter,
			doubleCountCounter,
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

func IncrementBalanceRefresh(result string) {
	if balanceRefreshCounter == nil {
		return
	}
	balanceRefreshCounter.WithLabelValues(result).Inc()
}

func IncrementWithdrawalSubmission(result string) {
	if withdrawalCounter == nil {
		return
	}
	withdrawalCounter.WithLabelValues(result).Inc()
}

func AddDroppedDebits(count int) {
	if droppedDebitCounter == nil {
		return
	}
	droppedDebitCounter.Add(float64(count))
}

func IncrementDoubleCountSuspect() {
	if doubleCountCounter == nil {
		return
	}
	doubleCountCounter.Inc()
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
