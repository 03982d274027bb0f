// Package auth checks credentials against the users table and keeps
// server-side login sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"asetmon/internal/core"
	applog "asetmon/internal/log"
)

var loginAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "asetmon_login_attempts_total",
		Help: "Login attempts by result",
	},
	[]string{"result"},
)

// Login attempt results.
const (
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultUnavailable = "unavailable"
)

// UserFinder looks up credentials rows by exact username.
type UserFinder interface {
	FindUsers(ctx context.Context, username string) ([]core.User, error)
}

type Authenticator struct {
	users  UserFinder
	logger *applog.Logger
}

func NewAuthenticator(users UserFinder, logger *applog.Logger) *Authenticator {
	return &Authenticator{users: users, logger: logger.WithComponent(applog.ComponentAuth)}
}

// Authenticate succeeds when exactly one row has this username and its
// password matches. Store failures are reported as core.ErrStoreUnavailable,
// never as a credential mismatch.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (core.Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		loginAttempts.WithLabelValues(resultFailure).Inc()
		return core.Identity{}, core.ErrAuthFailure
	}

	users, err := a.users.FindUsers(ctx, username)
	if err != nil {
		loginAttempts.WithLabelValues(resultUnavailable).Inc()
		if errors.Is(err, core.ErrStoreUnavailable) {
			return core.Identity{}, err
		}
		return core.Identity{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	var matched []core.User
	for _, u := range users {
		// MySQL collations may match case-insensitively.
		if u.Username != username {
			continue
		}
		ok, legacy := passwordMatches(u.Password, password)
		if !ok {
			continue
		}
		if legacy {
			a.logger.WarnContext(ctx, "User has a plaintext password; rehash with asetctl user passwd",
				applog.FieldUsername, u.Username)
		}
		matched = append(matched, u)
	}
	if len(matched) != 1 {
		if len(matched) > 1 {
			a.logger.WarnContext(ctx, "Ambiguous credentials rows", applog.FieldUsername, username, "matches", len(matched))
		}
		loginAttempts.WithLabelValues(resultFailure).Inc()
		return core.Identity{}, core.ErrAuthFailure
	}

	loginAttempts.WithLabelValues(resultSuccess).Inc()
	u := matched[0]
	return core.Identity{Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}, nil
}

// HashPassword returns a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// passwordMatches compares given against stored. Values that are not bcrypt
// hashes are compared as legacy plaintext, in constant time.
func passwordMatches(stored, given string) (ok bool, legacy bool) {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil, false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1, true
}
