package http

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"asetmon/internal/auth"
	"asetmon/internal/core"
	applog "asetmon/internal/log"
)

const (
	msgBadCredentials = "Username / Password salah"
	msgStoreDown      = "Database tidak dapat dihubungi"
	msgCSRF           = "Sesi formulir tidak valid. Muat ulang halaman lalu coba lagi."
	msgTooLarge       = "Ukuran file melebihi batas"
	msgRateLimited    = "Terlalu banyak permintaan. Coba lagi nanti."
)

type sessionKeyType struct{}

var sessionContextKey sessionKeyType

func sessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return sess
}

func (s *Server) currentSession(r *http.Request) (*auth.Session, bool) {
	c, err := r.Cookie(auth.CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.deps.Sessions.Get(c.Value)
}

// requireSession redirects to /login unless the request carries a live
// session cookie.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// csrfProtect checks the csrf_token form field (or X-CSRF-Token header) of
// every state-changing request against the session token. The body is
// always parsed first, multipart bodies under the upload size cap.
func (s *Server) csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		sess := sessionFrom(r.Context())

		if err := s.parseForm(w, r); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.renderMasterError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
				return
			}
			http.Error(w, "Formulir tidak valid", http.StatusBadRequest)
			return
		}
		token := r.Header.Get("X-CSRF-Token")
		if token == "" {
			token = r.PostFormValue("csrf_token")
		}
		if sess == nil || !sess.ValidCSRF(token) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
				"CSRF token mismatch", applog.FieldPath, r.URL.Path)
			http.Error(w, msgCSRF, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		limit := s.deps.UploadMaxBytes + (1 << 20)
		if r.ContentLength > limit {
			return &http.MaxBytesError{Limit: limit}
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		return r.ParseMultipartForm(1 << 20)
	}
	return r.ParseForm()
}

func (s *Server) sessionKey(r *http.Request) string {
	if sess := sessionFrom(r.Context()); sess != nil {
		return sess.Identity.Username
	}
	return s.deps.Detector.ExtractClientIP(r)
}

func (s *Server) renderRateLimited(w http.ResponseWriter, r *http.Request) {
	http.Error(w, msgRateLimited, http.StatusTooManyRequests)
}

type loginView struct {
	Username string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/master-data", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", page{Title: "Login", Data: loginView{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulir tidak valid", http.StatusBadRequest)
		return
	}
	username := cleanInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	clientIP := s.deps.Detector.ExtractClientIP(r)
	logger := applog.FromContext(r.Context())

	ident, err := s.deps.Auth.Authenticate(r.Context(), username, password)
	applog.NewStructuredLogger(logger).LogLogin(r.Context(), username, clientIP, err)
	if err != nil {
		status, msg := http.StatusInternalServerError, "Terjadi kesalahan"
		switch {
		case errors.Is(err, core.ErrAuthFailure):
			status, msg = http.StatusUnauthorized, msgBadCredentials
		case errors.Is(err, core.ErrStoreUnavailable):
			status, msg = http.StatusServiceUnavailable, msgStoreDown
		}
		s.render(w, r, status, "login.html", page{Title: "Login", Error: msg, Data: loginView{Username: username}})
		return
	}

	// A fresh session id on every login.
	if old, ok := s.currentSession(r); ok {
		s.deps.Sessions.Delete(old.ID)
	}
	sess, err := s.deps.Sessions.Create(ident)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create session", applog.FieldError, err)
		http.Error(w, "Terjadi kesalahan", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.deps.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/master-data", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess != nil {
		s.deps.Sessions.Delete(sess.ID)
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(),
			"User logged out", applog.FieldOperation, applog.OpLogout)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) basePage(r *http.Request, title, active string) page {
	p := page{Title: title, Active: active}
	if sess := sessionFrom(r.Context()); sess != nil {
		id := sess.Identity
		p.User = &id
		p.CSRF = sess.CSRFToken
	}
	return p
}
