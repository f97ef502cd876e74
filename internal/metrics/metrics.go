package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VerifyCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "verify_calls_total",
		Help:      "Total calls made to the verification service.",
	})
	VerifyRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "verify_retries_total",
		Help:      "Total verification attempts that were retried after a transport error.",
	})
	VerifyShortCircuits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "verify_short_circuits_total",
		Help:      "Total addresses classified invalid locally without a network call.",
	})
	VerifyExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "verify_exhausted_total",
		Help:      "Total addresses classified unverifiable after exhausting retries.",
	})
	RowsMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "rows_merged_total",
		Help:      "Total output rows produced by the result merger.",
	})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "jobs_completed_total",
		Help:      "Total validation runs that reached completed.",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulk_verify",
		Name:      "jobs_failed_total",
		Help:      "Total validation runs that ended in error.",
	})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(
		VerifyCalls, VerifyRetries, VerifyShortCircuits, VerifyExhausted,
		RowsMerged, JobsCompleted, JobsFailed,
	)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
