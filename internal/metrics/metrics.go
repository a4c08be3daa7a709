package metrics

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bskylink_cache_hits_total",
		Help: "Post views served from the response cache",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bskylink_cache_misses_total",
		Help: "Post views that required an upstream fill",
	})
	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_cache_evictions_total",
		Help: "Entries dropped from the response cache",
	}, []string{"reason"})
	CoalescedFills = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bskylink_cache_coalesced_fills_total",
		Help: "Cache fills that joined an in-flight fill for the same key",
	})
	SessionExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_session_exchanges_total",
		Help: "Session create/refresh calls by outcome",
	}, []string{"kind", "result"})
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_upstream_requests_total",
		Help: "Upstream XRPC requests by endpoint and status code",
	}, []string{"endpoint", "code"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bskylink_http_request_duration_seconds",
		Help:    "Inbound request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_command_runs_total",
		Help: "CLI subcommand invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bskylink_command_errors_total",
		Help: "CLI subcommands that returned an error",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(CacheHits, CacheMisses, CacheEvictions, CoalescedFills,
		SessionExchanges, UpstreamRequests, APIRetries, RequestDuration,
		CommandRuns, CommandErrors)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// IncSessionExchange counts a createSession/refreshSession outcome.
func IncSessionExchange(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SessionExchanges.WithLabelValues(kind, result).Inc()
}

// IncUpstream counts an upstream response; code 0 means transport failure.
func IncUpstream(endpoint string, code int) {
	UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// IncEviction counts a cache removal by reason.
func IncEviction(reason string) { CacheEvictions.WithLabelValues(reason).Inc() }

// ObserveRequest records an inbound request duration.
func ObserveRequest(route string, code int, start time.Time) {
	RequestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
