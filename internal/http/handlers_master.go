package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"asetmon/internal/auth"
	"asetmon/internal/core"
	"asetmon/internal/importer"
	applog "asetmon/internal/log"
	"asetmon/internal/sheets"
	"asetmon/internal/sheets/xlsx"
)

// maxShownWarnings caps the warnings listed on the preview page.
const maxShownWarnings = 50

type masterView struct {
	MaxMB         int64
	SheetsEnabled bool
	LastImport    *core.ImportRecord
	Pending       *pendingView
}

type pendingView struct {
	Token        string
	Source       string
	Rows         int
	TotalValue   int64
	Preview      []core.Asset
	Warnings     []importer.Warning
	WarningCount int
	MoreWarnings int
	Ignored      []string
	Missing      []string
}

func (s *Server) masterView(r *http.Request) masterView {
	v := masterView{
		MaxMB:         s.deps.UploadMaxBytes >> 20,
		SheetsEnabled: s.deps.GoogleSheet != nil,
	}
	if last, err := s.deps.Reports.LastImport(r.Context()); err == nil {
		v.LastImport = last
	} else {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to read last import", applog.FieldError, err)
	}
	if sess := sessionFrom(r.Context()); sess != nil {
		if p := sess.Pending(); p != nil {
			v.Pending = s.pendingView(p)
		}
	}
	return v
}

func (s *Server) pendingView(p *auth.PendingImport) *pendingView {
	b := p.Batch
	v := &pendingView{
		Token:        p.Token,
		Source:       p.Source,
		Rows:         len(b.Assets),
		TotalValue:   b.TotalValue(),
		Preview:      b.Preview(s.deps.PreviewRows),
		Warnings:     b.Warnings,
		WarningCount: len(b.Warnings),
		Ignored:      b.IgnoredColumns,
		Missing:      b.MissingColumns,
	}
	if len(v.Warnings) > maxShownWarnings {
		v.MoreWarnings = len(v.Warnings) - maxShownWarnings
		v.Warnings = v.Warnings[:maxShownWarnings]
	}
	return v
}

func (s *Server) renderMaster(w http.ResponseWriter, r *http.Request, status int, errMsg, notice string) {
	p := s.basePage(r, "Master Data", "master")
	p.Error, p.Notice = errMsg, notice
	p.Data = s.masterView(r)
	s.render(w, r, status, "master_data.html", p)
}

func (s *Server) renderMasterError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.renderMaster(w, r, status, msg, "")
}

func (s *Server) handleMasterData(w http.ResponseWriter, r *http.Request) {
	s.renderMaster(w, r, http.StatusOK, "", "")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderMasterError(w, r, http.StatusBadRequest, "Pilih file Excel (.xlsx) untuk diupload.")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		s.renderMasterError(w, r, http.StatusUnprocessableEntity, "File harus berformat .xlsx")
		return
	}
	if header.Size > s.deps.UploadMaxBytes {
		s.renderMasterError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}

	name := cleanInput(filepath.Base(header.Filename))
	s.preview(w, r, xlsx.New(file, name), name)
}

func (s *Server) handleSheetsImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.GoogleSheet == nil {
		http.NotFound(w, r)
		return
	}
	s.preview(w, r, s.deps.GoogleSheet, sheets.SourceName(s.deps.GoogleSheet, "google-sheets"))
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request, src sheets.RowSource, source string) {
	sess := sessionFrom(r.Context())
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentImport)

	batch, err := s.deps.Imports.Preview(r.Context(), src)
	if err != nil {
		logger.WarnContext(r.Context(), "Spreadsheet rejected",
			applog.FieldSource, source, applog.FieldError, err)
		switch {
		case errors.Is(err, importer.ErrNoKnownColumns):
			s.renderMasterError(w, r, http.StatusUnprocessableEntity,
				"Header tidak dikenali. Pastikan baris kedua berisi header kolom aset.")
		case errors.Is(err, importer.ErrDuplicateHeader):
			s.renderMasterError(w, r, http.StatusUnprocessableEntity, "Header kolom ganda: "+err.Error())
		case errors.Is(err, sheets.ErrUnreadable):
			s.renderMasterError(w, r, http.StatusUnprocessableEntity, "File tidak dapat dibaca sebagai spreadsheet.")
		default:
			s.renderMasterError(w, r, http.StatusBadGateway, "Gagal membaca spreadsheet.")
		}
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create import token", applog.FieldError, err)
		http.Error(w, "Terjadi kesalahan", http.StatusInternalServerError)
		return
	}
	sess.SetPending(&auth.PendingImport{
		Token:     token,
		Source:    source,
		Batch:     batch,
		CreatedAt: time.Now(),
	})
	logger.InfoContext(r.Context(), "Import preview ready",
		applog.FieldOperation, applog.OpPreview,
		applog.FieldSource, source,
		applog.FieldRows, len(batch.Assets),
		applog.FieldWarnings, len(batch.Warnings))
	s.renderMaster(w, r, http.StatusOK, "", "")
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	pending, ok := sess.TakePending(r.PostFormValue("token"))
	if !ok {
		s.renderMasterError(w, r, http.StatusConflict, "Pratinjau sudah tidak berlaku. Upload ulang file.")
		return
	}

	rec, err := s.deps.Imports.Commit(r.Context(), pending.Batch, pending.Source, sess.Identity)
	if err != nil {
		// The old table survived, so the same preview can be confirmed again.
		sess.SetPending(pending)
		applog.FromContext(r.Context()).WithComponent(applog.ComponentImport).ErrorContext(r.Context(),
			"Import commit failed", applog.FieldSource, pending.Source, applog.FieldError, err)
		if errors.Is(err, core.ErrStoreUnavailable) {
			s.renderMasterError(w, r, http.StatusServiceUnavailable, msgStoreDown)
			return
		}
		s.renderMasterError(w, r, http.StatusInternalServerError, "Gagal menyimpan data. Data lama tidak berubah.")
		return
	}
	s.renderMaster(w, r, http.StatusOK, "", "Data berhasil disimpan: "+strconv.Itoa(rec.Rows)+" baris aset.")
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).ClearPending()
	http.Redirect(w, r, "/master-data", http.StatusSeeOther)
}
