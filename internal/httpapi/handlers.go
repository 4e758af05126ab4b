package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"auctiondesk.app/internal/access"
	"auctiondesk.app/internal/audit"
	"auctiondesk.app/internal/docstore"
	"auctiondesk.app/internal/obs"
	"auctiondesk.app/internal/tenant"
)

const serviceName = "auctiondesk-api"

// ReadyProbe pings the document store.
type ReadyProbe struct {
	Store docstore.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Options carries the dependencies and limits of the API.
type Options struct {
	Access       *access.Service
	Tenants      *tenant.Service
	Audit        *audit.Logger
	Logger       *zap.Logger
	Ready        ReadyProbe
	Version      string
	CORSOrigins  []string
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
	// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	access  *access.Service
	tenants *tenant.Service
	auditor *audit.Logger
	logger  *zap.Logger

	corsOrigins  []string
	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
	trusted      []netip.Prefix
}

func New(opts Options) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   opts.Ready,
		version:      opts.Version,
		access:       opts.Access,
		tenants:      opts.Tenants,
		auditor:      opts.Audit,
		logger:       opts.Logger,
		corsOrigins:  opts.CORSOrigins,
		rateBurst:    opts.RateBurst,
		ratePerSec:   opts.RatePerSec,
		maxBodyBytes: opts.MaxBodyBytes,
		trusted:      opts.TrustedProxies,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.auditor == nil {
		a.auditor = audit.New(a.logger)
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 5
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 8 << 20
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// credentials endpoints share one limiter
	limit := RateLimit(a.rateBurst, a.ratePerSec, a.trusted)
	a.mux.Handle("POST /register", limit(http.HandlerFunc(a.handleRegister)))
	a.mux.Handle("POST /login", limit(http.HandlerFunc(a.handleLogin)))

	a.mux.Handle("GET /admin/access-requests", a.withSession(http.HandlerFunc(a.handleAccessRequests)))
	a.mux.Handle("POST /admin/approve-access", a.withSession(a.handleDecision(access.DecisionApprove)))
	a.mux.Handle("POST /admin/deny-access", a.withSession(a.handleDecision(access.DecisionDeny)))

	for _, kind := range tenant.Kinds {
		a.mux.Handle("GET /"+string(kind), a.withSession(a.handleGetDocument(kind)))
		a.mux.Handle("POST /"+string(kind), a.withSession(a.handleSaveDocument(kind)))
	}
	a.mux.Handle("GET /export", a.withSession(http.HandlerFunc(a.handleExport)))
	a.mux.Handle("POST /import", a.withSession(http.HandlerFunc(a.handleImport)))
	a.mux.Handle("POST /reset", a.withSession(http.HandlerFunc(a.handleReset)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler wraps the mux in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = SecurityHeaders(h)
	h = CORS(h, a.corsOrigins)
	h = obs.Instrument(h)
	h = Recover(a.logger)(h)
	h = Logging(a.logger)(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		a.logger.Warn("Readiness check failed", zap.String("request_id", requestIDFrom(r)), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
