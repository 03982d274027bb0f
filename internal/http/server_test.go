package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"asetmon/internal/auth"
	"asetmon/internal/core"
	applog "asetmon/internal/log"
	"asetmon/internal/middleware/ratelimit"
	"asetmon/internal/middleware/security"
	"asetmon/internal/services"
	"asetmon/internal/sheets/memory"
)

type memStore struct {
	mu      sync.Mutex
	assets  []core.Asset
	last    *core.ImportRecord
	pingErr error
	failErr error
}

func (m *memStore) ReplaceAssets(_ context.Context, assets []core.Asset, rec core.ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.assets = make([]core.Asset, len(assets))
	for i, a := range assets {
		a.ID = int64(i + 1)
		m.assets[i] = a
	}
	m.last = &rec
	return nil
}

func (m *memStore) ListAssets(context.Context) ([]core.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Asset(nil), m.assets...), nil
}

func (m *memStore) LastImport(context.Context) (*core.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

type fakeAuth struct {
	ident core.Identity
	err   error
}

func (f fakeAuth) Authenticate(_ context.Context, username, password string) (core.Identity, error) {
	if f.err != nil {
		return core.Identity{}, f.err
	}
	if username != f.ident.Username || password != "rahasia" {
		return core.Identity{}, core.ErrAuthFailure
	}
	return f.ident, nil
}

type testEnv struct {
	srv      *Server
	store    *memStore
	sessions *auth.SessionStore
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	store := &memStore{}
	logger := applog.Discard()
	reports := services.NewReportService(store, time.Minute, logger)
	imports := services.NewImportService(store, reports, logger)
	sessions := auth.NewSessionStore(100, time.Hour)

	deps := Deps{
		Logger:   logger,
		Auth:     fakeAuth{ident: core.Identity{Username: "admin", DisplayName: "Administrator", Role: "admin"}},
		Sessions: sessions,
		Imports:  imports,
		Reports:  reports,
		Store:    store,
		Detector: security.NewDetector(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := NewServer(":0", deps)
	require.NoError(t, err)
	return &testEnv{srv: srv, store: store, sessions: sessions}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T) *auth.Session {
	t.Helper()
	sess, err := e.sessions.Create(core.Identity{Username: "admin", DisplayName: "Administrator", Role: "admin"})
	require.NoError(t, err)
	return sess
}

func withSession(req *http.Request, sess *auth.Session) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: sess.ID})
	return req
}

func formPost(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func assetRows() [][]interface{} {
	return [][]interface{}{
		{"DAFTAR ASET KPH"},
		{"Nama Aset*", "Nomor Aset*", "Tanggal Perolehan*", "Nilai Perolehan*", "Kondisi Aset*", "Alamat", "Jenis Aset", "KPH", "Sub KPH", "Luas"},
		{"Gedung Kantor", "A-001", "2015", "Rp 1.000", "Baik", "Jl. Merdeka", "Bangunan", "KPH Bandung", "Sub A", "120"},
		{"Lahan Hutan", "A-002", "2010", "2.000", "Baik", "", "Tanah", "KPH Garut", "Sub B", "5"},
		{"Pos Jaga", "A-003", "tidak tahu", "", "Rusak", "", "Bangunan", "KPH Garut", "Sub B", ""},
	}
}

func uploadRequest(t *testing.T, sess *auth.Session, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf_token", sess.CSRFToken))
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/master-data/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withSession(req, sess)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	env.store.pingErr = core.ErrStoreUnavailable
	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/", "/master-data", "/monitoring", "/monitoring/export.csv"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusSeeOther, rr.Code, path)
		require.Equal(t, "/login", rr.Header().Get("Location"), path)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `name="password"`)

	rr = env.do(formPost("/login", url.Values{"username": {"admin"}, "password": {"salah"}}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "Username / Password salah")

	rr = env.do(formPost("/login", url.Values{"username": {"admin"}, "password": {"rahasia"}}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/master-data", rr.Header().Get("Location"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, auth.CookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/master-data", nil)
	req.AddCookie(cookies[0])
	rr = env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Administrator")
}

func TestLoginStoreUnavailable(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Auth = fakeAuth{err: core.ErrStoreUnavailable}
	})
	rr := env.do(formPost("/login", url.Values{"username": {"admin"}, "password": {"rahasia"}}))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "Database tidak dapat dihubungi")
}

func TestLoginRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{Name: "login_test", Requests: 1, Window: time.Minute})
	defer limiter.Stop()
	env := newTestEnv(t, func(d *Deps) { d.LoginLimiter = limiter })

	rr := env.do(formPost("/login", url.Values{"username": {"admin"}, "password": {"salah"}}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = env.do(formPost("/login", url.Values{"username": {"admin"}, "password": {"rahasia"}}))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(withSession(formPost("/logout", url.Values{"csrf_token": {sess.CSRFToken}}), sess))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))

	_, ok := env.sessions.Get(sess.ID)
	require.False(t, ok)
}

func TestPostWithoutCSRFIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(withSession(formPost("/logout", url.Values{"csrf_token": {"wrong"}}), sess))
	require.Equal(t, http.StatusForbidden, rr.Code)

	_, ok := env.sessions.Get(sess.ID)
	require.True(t, ok)
}

func TestUploadRejectsNonXLSX(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.csv", []byte("a,b,c\n")))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), ".xlsx")
	require.Nil(t, sess.Pending())
}

func TestUploadRejectsUnreadableWorkbook(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.xlsx", []byte("not a zip")))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Nil(t, sess.Pending())
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.UploadMaxBytes = 1024 })
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.xlsx", bytes.Repeat([]byte("x"), 3<<20)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestUploadWithCSRFHeader(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.UploadMaxBytes = 1024 })
	sess := env.login(t)

	req := uploadRequest(t, sess, "aset.xlsx", bytes.Repeat([]byte("x"), 3<<20))
	req.Header.Set("X-CSRF-Token", sess.CSRFToken)
	rr := env.do(req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Nil(t, sess.Pending())

	env = newTestEnv(t, nil)
	sess = env.login(t)
	req = uploadRequest(t, sess, "aset.xlsx", workbook(t, assetRows()))
	req.Header.Set("X-CSRF-Token", sess.CSRFToken)
	rr = env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, sess.Pending())
}

func TestUploadPreviewConfirmAndMonitor(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.xlsx", workbook(t, assetRows())))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "Gedung Kantor")
	require.Contains(t, body, "3 baris")
	require.Contains(t, body, "Rp 3,000")
	require.Contains(t, body, "tanggal tidak dapat dibaca")
	require.Empty(t, env.store.assets, "preview must not write")

	pending := sess.Pending()
	require.NotNil(t, pending)

	confirm := url.Values{"csrf_token": {sess.CSRFToken}, "token": {pending.Token}}
	rr = env.do(withSession(formPost("/master-data/confirm", confirm), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Data berhasil disimpan: 3 baris aset.")
	require.Len(t, env.store.assets, 3)
	require.Equal(t, []int64{1000, 2000, 0}, []int64{env.store.assets[0].Value, env.store.assets[1].Value, env.store.assets[2].Value})
	require.Nil(t, env.store.assets[2].Year)
	require.Equal(t, "admin", env.store.last.ImportedBy)

	// The preview is single use.
	rr = env.do(withSession(formPost("/master-data/confirm", confirm), sess))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(withSession(httptest.NewRequest(http.MethodGet, "/monitoring", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	body = rr.Body.String()
	require.Contains(t, body, "Rp 3,000")
	require.Contains(t, body, "KPH Garut")
	require.Contains(t, body, "/monitoring/charts/condition")

	rr = env.do(withSession(httptest.NewRequest(http.MethodGet, "/monitoring?kph=KPH+Garut", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Rp 2,000")

	rr = env.do(withSession(httptest.NewRequest(http.MethodGet, "/monitoring?kph=KPH+Tidak+Ada", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Tidak ada aset yang cocok")
}

func TestConfirmFailureKeepsPreview(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.xlsx", workbook(t, assetRows())))
	require.Equal(t, http.StatusOK, rr.Code)
	pending := sess.Pending()
	require.NotNil(t, pending)

	env.store.failErr = core.ErrStoreUnavailable
	confirm := url.Values{"csrf_token": {sess.CSRFToken}, "token": {pending.Token}}
	rr = env.do(withSession(formPost("/master-data/confirm", confirm), sess))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "Database tidak dapat dihubungi")
	require.NotNil(t, sess.Pending())
}

func TestCancelDropsPreview(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(uploadRequest(t, sess, "aset.xlsx", workbook(t, assetRows())))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, sess.Pending())

	rr = env.do(withSession(formPost("/master-data/cancel", url.Values{"csrf_token": {sess.CSRFToken}}), sess))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Nil(t, sess.Pending())
}

func TestSheetsImport(t *testing.T) {
	rows := [][]string{
		{"judul"},
		{"Nama Aset*", "Nilai Perolehan*"},
		{"Gedung", "5000"},
	}
	env := newTestEnv(t, func(d *Deps) { d.GoogleSheet = memory.New("sheets:test", rows) })
	sess := env.login(t)

	rr := env.do(withSession(formPost("/master-data/sheets", url.Values{"csrf_token": {sess.CSRFToken}}), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "sheets:test", sess.Pending().Source)

	env2 := newTestEnv(t, nil)
	sess2 := env2.login(t)
	rr = env2.do(withSession(formPost("/master-data/sheets", url.Values{"csrf_token": {sess2.CSRFToken}}), sess2))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMonitoringNoData(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.login(t)

	rr := env.do(withSession(httptest.NewRequest(http.MethodGet, "/monitoring", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Belum ada data aset di database. Upload dulu di menu Master Data.")
}

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	require.NoError(t, env.store.ReplaceAssets(context.Background(), []core.Asset{
		{Name: "Gedung", Number: "A-1", Year: core.IntPtr(2015), Value: 100, Condition: "Baik", Type: "Bangunan", Region: "KPH Bandung"},
		{Name: "Lahan", Number: "A-2", Value: 300, Condition: "Rusak", Type: "Tanah", Region: "KPH Garut"},
	}, core.ImportRecord{ID: "seed"}))
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env)
	sess := env.login(t)

	rr := env.do(withSession(httptest.NewRequest(http.MethodGet, "/monitoring/export.csv?jenis=Tanah", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "monitoring_aset.csv")

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "id,nama_aset,nomor_aset,tahun,nilai,kondisi,alamat,jenis_aset,kph,sub_kph,luas", lines[0])
	require.Equal(t, "2,Lahan,A-2,,300,Rusak,,Tanah,KPH Garut,,0", lines[1])
}

func TestChartPages(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env)
	sess := env.login(t)

	for _, path := range []string{"/monitoring/charts/condition", "/monitoring/charts/type"} {
		rr := env.do(withSession(httptest.NewRequest(http.MethodGet, path, nil), sess))
		require.Equal(t, http.StatusOK, rr.Code, path)
		require.Equal(t, security.ChartCSP, rr.Header().Get("Content-Security-Policy"), path)
		require.Contains(t, rr.Body.String(), "echarts", path)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
