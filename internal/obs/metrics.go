package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctiondesk_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctiondesk_access_decisions_total",
			Help: "Admin access decisions by kind.",
		},
		[]string{"decision"},
	)

	initOnce sync.Once
)

// knownPaths bounds the label cardinality of the path label.
var knownPaths = map[string]struct{}{
	"/":                      {},
	"/metrics":               {},
	"/healthz":               {},
	"/readyz":                {},
	"/v1/info":               {},
	"/register":              {},
	"/login":                 {},
	"/admin/access-requests": {},
	"/admin/approve-access":  {},
	"/admin/deny-access":     {},
	"/teams":                 {},
	"/players":               {},
	"/settings":              {},
	"/export":                {},
	"/import":                {},
	"/reset":                 {},
}

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, loginsTotal, accessDecisionsTotal)
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CanonicalPath strips the query string and folds unknown paths into "/other".
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if _, ok := knownPaths[p]; ok {
		return p
	}
	return "/other"
}

// ObserveLogin counts a login attempt; result is e.g. "ok", "unauthorized", "forbidden".
func ObserveLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// ObserveAccessDecision counts an admin approve/deny.
func ObserveAccessDecision(decision string) {
	accessDecisionsTotal.WithLabelValues(decision).Inc()
}

// Instrument records in-flight, count and latency per method/path/status.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
