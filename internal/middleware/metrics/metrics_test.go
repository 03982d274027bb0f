package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/monitoring/charts/{kind}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/monitoring/charts/{kind}", "202"))
	for _, kind := range []string{"condition", "type"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitoring/charts/"+kind, nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("code=%d", rec.Code)
		}
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/monitoring/charts/{kind}", "202"))
	if after-before != 2 {
		t.Fatalf("counter delta=%v want 2", after-before)
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Fatalf("got %q", got)
	}
}
