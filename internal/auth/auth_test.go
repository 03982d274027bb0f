package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"asetmon/internal/core"
	"asetmon/internal/importer"
	applog "asetmon/internal/log"
)

type fakeUsers struct {
	rows map[string][]core.User
	err  error
}

func (f *fakeUsers) FindUsers(_ context.Context, username string) ([]core.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[username], nil
}

func hash(t *testing.T, pw string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestAuthenticate(t *testing.T) {
	users := &fakeUsers{rows: map[string][]core.User{
		"admin":  {{Username: "admin", Password: hash(t, "rahasia"), DisplayName: "Administrator", Role: "admin"}},
		"legacy": {{Username: "legacy", Password: "plain123", DisplayName: "Operator Lama", Role: "operator"}},
		"twin": {
			{Username: "twin", Password: "same", DisplayName: "A"},
			{Username: "twin", Password: "same", DisplayName: "B"},
		},
		"split": {
			{Username: "split", Password: "one", DisplayName: "One"},
			{Username: "split", Password: "two", DisplayName: "Two"},
		},
	}}
	a := NewAuthenticator(users, applog.Discard())
	ctx := context.Background()

	id, err := a.Authenticate(ctx, "admin", "rahasia")
	require.NoError(t, err)
	require.Equal(t, core.Identity{Username: "admin", DisplayName: "Administrator", Role: "admin"}, id)

	id, err = a.Authenticate(ctx, "legacy", "plain123")
	require.NoError(t, err)
	require.Equal(t, "Operator Lama", id.DisplayName)

	id, err = a.Authenticate(ctx, "split", "two")
	require.NoError(t, err)
	require.Equal(t, "Two", id.DisplayName)

	cases := []struct{ user, pass string }{
		{"admin", "salah"},
		{"admin", ""},
		{"", "rahasia"},
		{"   ", "x"},
		{"nobody", "rahasia"},
		{"Admin", "rahasia"},
		{"twin", "same"},
	}
	for _, c := range cases {
		_, err := a.Authenticate(ctx, c.user, c.pass)
		require.ErrorIs(t, err, core.ErrAuthFailure, "%q/%q", c.user, c.pass)
	}
}

func TestAuthenticateStoreUnavailable(t *testing.T) {
	a := NewAuthenticator(&fakeUsers{err: errors.New("dial tcp: connection refused")}, applog.Discard())
	_, err := a.Authenticate(context.Background(), "admin", "rahasia")
	require.ErrorIs(t, err, core.ErrStoreUnavailable)
	require.NotErrorIs(t, err, core.ErrAuthFailure)
}

func TestAuthenticateCountsResults(t *testing.T) {
	users := &fakeUsers{rows: map[string][]core.User{
		"admin": {{Username: "admin", Password: hash(t, "rahasia"), DisplayName: "Administrator"}},
	}}
	a := NewAuthenticator(users, applog.Discard())
	down := NewAuthenticator(&fakeUsers{err: core.ErrStoreUnavailable}, applog.Discard())
	ctx := context.Background()

	count := func(result string) float64 {
		return testutil.ToFloat64(loginAttempts.WithLabelValues(result))
	}
	success, failure, unavailable := count("success"), count("failure"), count("unavailable")

	_, _ = a.Authenticate(ctx, "admin", "rahasia")
	_, _ = a.Authenticate(ctx, "admin", "salah")
	_, _ = a.Authenticate(ctx, "", "")
	_, _ = down.Authenticate(ctx, "admin", "rahasia")

	require.Equal(t, success+1, count("success"))
	require.Equal(t, failure+2, count("failure"))
	require.Equal(t, unavailable+1, count("unavailable"))
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("rahasia")
	require.NoError(t, err)
	require.True(t, IsHashed(h))

	ok, legacy := passwordMatches(h, "rahasia")
	require.True(t, ok)
	require.False(t, legacy)

	ok, _ = passwordMatches(h, "salah")
	require.False(t, ok)

	_, err = HashPassword("")
	require.Error(t, err)
}

func TestSessionStore(t *testing.T) {
	st := NewSessionStore(10, time.Hour)
	s, err := st.Create(core.Identity{Username: "admin"})
	require.NoError(t, err)
	require.Len(t, s.ID, 43)
	require.NotEqual(t, s.ID, s.CSRFToken)

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, 1, st.Len())

	_, ok = st.Get("")
	require.False(t, ok)
	_, ok = st.Get("unknown")
	require.False(t, ok)

	st.Delete(s.ID)
	_, ok = st.Get(s.ID)
	require.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	st := NewSessionStore(10, time.Hour)
	base := time.Now()
	st.now = func() time.Time { return base }

	s, err := st.Create(core.Identity{Username: "admin"})
	require.NoError(t, err)

	st.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, ok := st.Get(s.ID)
	require.True(t, ok)

	st.now = func() time.Time { return base.Add(time.Hour) }
	_, ok = st.Get(s.ID)
	require.False(t, ok)
	require.Zero(t, st.Len())
}

func TestSessionStoreEvictsOldest(t *testing.T) {
	st := NewSessionStore(2, time.Hour)
	first, _ := st.Create(core.Identity{Username: "a"})
	_, _ = st.Create(core.Identity{Username: "b"})
	_, _ = st.Create(core.Identity{Username: "c"})

	_, ok := st.Get(first.ID)
	require.False(t, ok)
	require.Equal(t, 2, st.Len())
}

func TestSessionPendingImport(t *testing.T) {
	s := &Session{CSRFToken: "csrf"}
	require.Nil(t, s.Pending())

	p := &PendingImport{Token: "tok", Batch: &importer.Batch{}}
	s.SetPending(p)
	require.Same(t, p, s.Pending())

	_, ok := s.TakePending("wrong")
	require.False(t, ok)
	got, ok := s.TakePending("tok")
	require.True(t, ok)
	require.Same(t, p, got)

	_, ok = s.TakePending("tok")
	require.False(t, ok, "a batch can only be taken once")

	s.SetPending(p)
	s.ClearPending()
	require.Nil(t, s.Pending())
}

func TestSessionCSRF(t *testing.T) {
	s := &Session{CSRFToken: "abc"}
	require.True(t, s.ValidCSRF("abc"))
	require.False(t, s.ValidCSRF("abd"))
	require.False(t, s.ValidCSRF(""))
}
