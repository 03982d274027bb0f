package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asetmon/internal/auth"
	"asetmon/internal/core"
	"asetmon/internal/importer"
	applog "asetmon/internal/log"
	"asetmon/internal/middleware/metrics"
	"asetmon/internal/middleware/ratelimit"
	"asetmon/internal/middleware/security"
	"asetmon/internal/middleware/trace"
	"asetmon/internal/sheets"
	appweb "asetmon/web"
)

// Authenticator checks credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (core.Identity, error)
}

// Importer parses and commits spreadsheets.
type Importer interface {
	Preview(ctx context.Context, src sheets.RowSource) (*importer.Batch, error)
	Commit(ctx context.Context, batch *importer.Batch, source string, actor core.Identity) (core.ImportRecord, error)
}

// Reporter builds monitoring reports.
type Reporter interface {
	Build(ctx context.Context, f core.Filter) (core.Report, error)
	LastImport(ctx context.Context) (*core.ImportRecord, error)
}

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP server. GoogleSheet may be nil.
type Deps struct {
	Logger         *applog.Logger
	Auth           Authenticator
	Sessions       *auth.SessionStore
	Imports        Importer
	Reports        Reporter
	Store          Pinger
	GoogleSheet    sheets.RowSource
	Detector       *security.Detector
	LoginLimiter   *ratelimit.Limiter
	UploadLimiter  *ratelimit.Limiter
	UploadMaxBytes int64
	PreviewRows    int
	CookieSecure   bool
}

type Server struct {
	http.Server
	deps      Deps
	logger    *applog.Logger
	templates map[string]*template.Template

	shutdownOnce sync.Once
}

// NewServer parses templates and wires routes, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Detector == nil {
		deps.Detector = security.NewDetector()
	}
	if deps.UploadMaxBytes <= 0 {
		deps.UploadMaxBytes = 10 << 20
	}
	if deps.PreviewRows <= 0 {
		deps.PreviewRows = importer.DefaultPreviewRows
	}

	tpls, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:      deps,
		logger:    deps.Logger.WithComponent(applog.ComponentHTTP),
		templates: tpls,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(s.deps.Logger, s.deps.Detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r.Use(tracer.Handler)
	r.Use(metrics.Middleware)
	r.Use(s.deps.Detector.Middleware)
	r.Use(headers.Handler)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/login", s.handleLoginForm)
		login := r.With()
		if s.deps.LoginLimiter != nil {
			login = r.With(s.deps.LoginLimiter.Middleware(s.deps.Detector.ExtractClientIP, s.renderRateLimited))
		}
		login.Post("/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.requireSession)
		r.Use(s.csrfProtect)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/master-data", http.StatusSeeOther)
		})
		r.Post("/logout", s.handleLogout)

		r.Route("/master-data", func(r chi.Router) {
			r.Get("/", s.handleMasterData)
			uploads := r.With()
			if s.deps.UploadLimiter != nil {
				uploads = r.With(s.deps.UploadLimiter.Middleware(s.sessionKey, s.renderRateLimited))
			}
			uploads.Post("/upload", s.handleUpload)
			uploads.Post("/sheets", s.handleSheetsImport)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/cancel", s.handleCancel)
		})

		r.Route("/monitoring", func(r chi.Router) {
			r.Get("/", s.handleMonitoring)
			r.Get("/export.csv", s.handleExport)
			r.Get("/charts/condition", s.handleConditionChart)
			r.Get("/charts/type", s.handleTypeChart)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Halaman tidak ditemukan", http.StatusNotFound)
	})
	return r
}

// Shutdown stops the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
