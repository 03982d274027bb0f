// Package trace assigns request IDs and writes one access log line per request.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	applog "asetmon/internal/log"
)

type ctxKey struct{}

// HeaderRequestID carries the request ID in and out.
const HeaderRequestID = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_\-]{8,64}$`)

type Middleware struct {
	logger    *applog.Logger
	access    *applog.StructuredLogger
	extractIP func(*http.Request) string
}

// NewMiddleware builds the tracing middleware. extractIP may be nil.
func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		logger:    logger,
		access:    applog.NewStructuredLogger(logger),
		extractIP: extractIP,
	}
}

// Handler keeps a well-formed incoming X-Request-ID or mints a new one,
// stores a request-scoped logger in the context and logs completion with
// the matched route pattern.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		reqLogger := m.logger.With(applog.FieldRequestID, id, applog.FieldClientIP, clientIP)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, reqLogger)
		r = r.WithContext(ctx)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		m.access.LogHTTPEnd(ctx, r, route, status, ww.BytesWritten(), time.Since(start).Milliseconds(), clientIP)
	})
}

// NewRequestID returns a random request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestID returns the request ID stored by Handler, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
