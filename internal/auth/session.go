package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"asetmon/internal/core"
	"asetmon/internal/importer"
)

// CookieName is the session cookie.
const CookieName = "asetmon_session"

// PendingImport is a parsed upload awaiting confirmation.
type PendingImport struct {
	Token     string
	Source    string
	Batch     *importer.Batch
	CreatedAt time.Time
}

// Session is a logged-in user. It is shared between concurrent requests of
// the same browser, so mutable state is guarded.
type Session struct {
	ID        string
	CSRFToken string
	Identity  core.Identity
	CreatedAt time.Time
	ExpiresAt time.Time

	mu      sync.Mutex
	pending *PendingImport
}

// SetPending replaces the pending import.
func (s *Session) SetPending(p *PendingImport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

// Pending returns the pending import, or nil.
func (s *Session) Pending() *PendingImport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TakePending removes and returns the pending import if token matches,
// so a batch can only be committed once.
func (s *Session) TakePending(token string) (*PendingImport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || subtle.ConstantTimeCompare([]byte(s.pending.Token), []byte(token)) != 1 {
		return nil, false
	}
	p := s.pending
	s.pending = nil
	return p, true
}

// ClearPending drops any pending import.
func (s *Session) ClearPending() {
	s.SetPending(nil)
}

// ValidCSRF reports whether token matches the session's CSRF token.
func (s *Session) ValidCSRF(token string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(token)) == 1
}

// SessionStore keeps sessions in a bounded LRU with expiry. When full, the
// least recently used session is evicted.
type SessionStore struct {
	cache *expirable.LRU[string, *Session]
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache: expirable.NewLRU[string, *Session](maxSessions, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create starts a session for id.
func (st *SessionStore) Create(id core.Identity) (*Session, error) {
	sid, err := NewToken()
	if err != nil {
		return nil, err
	}
	csrf, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := st.now()
	s := &Session{
		ID:        sid,
		CSRFToken: csrf,
		Identity:  id,
		CreatedAt: now,
		ExpiresAt: now.Add(st.ttl),
	}
	st.cache.Add(sid, s)
	return s, nil
}

// Get returns a live session.
func (st *SessionStore) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	if !st.now().Before(s.ExpiresAt) {
		st.cache.Remove(id)
		return nil, false
	}
	return s, true
}

func (st *SessionStore) Delete(id string) {
	st.cache.Remove(id)
}

func (st *SessionStore) Len() int {
	return st.cache.Len()
}

func (st *SessionStore) TTL() time.Duration {
	return st.ttl
}

// NewToken returns 32 random bytes, base64url encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
