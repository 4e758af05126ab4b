package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/metrics":                   "/metrics",
		"/teams":                     "/teams",
		"/teams/":                    "/teams",
		"/teams?email=a@x.com":       "/teams",
		"/admin/access-requests?x=1": "/admin/access-requests",
		"/admin/approve-access":      "/admin/approve-access",
		"/wp-login.php":              "/other",
		"/players/123":               "/other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	Init()
	Init()

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/settings", "418"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/settings?email=a@x.com", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/settings", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("approve"))
	ObserveAccessDecision("approve")
	if got := testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("approve")); got-before != 1 {
		t.Fatalf("unexpected decision counter delta: %v", got-before)
	}
	ObserveLogin("ok")
	if got := testutil.ToFloat64(loginsTotal.WithLabelValues("ok")); got < 1 {
		t.Fatalf("expected login counter to be incremented")
	}
}
