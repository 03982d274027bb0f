package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	applog "asetmon/internal/log"
)

func TestHandlerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(applog.NewText(&buf, slog.LevelInfo, applog.ComponentHTTP), func(*http.Request) string { return "10.1.1.1" })

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		applog.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitoring", nil))

	if !validRequestID.MatchString(seen) {
		t.Fatalf("request id %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q, context %q", rec.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id="+seen) || !strings.Contains(out, "status_code=418") ||
		!strings.Contains(out, "bytes=0") {
		t.Fatalf("unexpected log output %q", out)
	}
	if !strings.Contains(out, "client_ip=10.1.1.1") {
		t.Fatalf("client ip missing from %q", out)
	}
}

func TestHandlerKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(applog.Discard(), nil)
	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-1234")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "upstream-1234" {
		t.Fatalf("got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" {
		t.Fatal("malformed request id should be replaced")
	}
}

func TestHandlerLogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(NewMiddleware(applog.NewText(&buf, slog.LevelInfo, applog.ComponentHTTP), nil).Handler)
	r.Get("/monitoring/charts/{kind}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/monitoring/charts/type", nil))

	out := buf.String()
	if !strings.Contains(out, "route=/monitoring/charts/{kind}") || !strings.Contains(out, "bytes=2") {
		t.Fatalf("unexpected log output %q", out)
	}
}
