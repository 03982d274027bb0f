package http

import (
	"net/http"
	"strings"

	"asetmon/internal/charts"
	"asetmon/internal/core"
	"asetmon/internal/export"
	applog "asetmon/internal/log"
	"asetmon/internal/middleware/security"
)

type monitoringView struct {
	Report            core.Report
	AllRegions        string
	SelectedTypes     map[string]bool
	NoData            bool
	NoMatch           bool
	ConditionChartURL string
	TypeChartURL      string
	ExportURL         string
}

// buildReport loads the report for the request filter, writing a 503 page
// when the store cannot be read.
func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (core.Report, bool) {
	f := ParseFilter(r.URL.Query())
	report, err := s.deps.Reports.Build(r.Context(), f)
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentReport).ErrorContext(r.Context(),
			"Report build failed", applog.FieldError, err)
		p := s.basePage(r, "Monitoring", "monitoring")
		p.Error = msgStoreDown
		p.Data = monitoringView{AllRegions: core.AllRegions, NoData: true}
		s.render(w, r, http.StatusServiceUnavailable, "monitoring.html", p)
		return core.Report{}, false
	}
	return report, true
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	query := EncodeFilter(report.Filter)
	selected := make(map[string]bool, len(report.Filter.Types))
	for _, t := range report.Filter.Types {
		selected[t] = true
	}

	p := s.basePage(r, "Monitoring", "monitoring")
	p.Data = monitoringView{
		Report:            report,
		AllRegions:        core.AllRegions,
		SelectedTypes:     selected,
		NoData:            report.State == core.StateNoData,
		NoMatch:           report.State == core.StateNoMatch,
		ConditionChartURL: withQuery("/monitoring/charts/condition", query),
		TypeChartURL:      withQuery("/monitoring/charts/type", query),
		ExportURL:         withQuery("/monitoring/export.csv", query),
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentReport).DebugContext(r.Context(), "Report built",
		applog.FieldRegion, report.Filter.Region,
		applog.FieldTypes, strings.Join(report.Filter.Types, ","),
		applog.FieldRows, report.Summary.Count,
		"state", report.State.String())
	s.render(w, r, http.StatusOK, "monitoring.html", p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	if err := export.WriteCSV(w, report.Assets); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed", applog.FieldError, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentReport).InfoContext(r.Context(), "Assets exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldRows, len(report.Assets))
}

func (s *Server) handleConditionChart(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	s.writeChart(w, r, func() error {
		return charts.RenderConditionByType(w, report.Summary, filterCaption(report.Filter))
	})
}

func (s *Server) handleTypeChart(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	s.writeChart(w, r, func() error {
		return charts.RenderTypeShare(w, report.Summary, filterCaption(report.Filter))
	})
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, render func() error) {
	w.Header().Set("Content-Security-Policy", security.ChartCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render(); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentReport).ErrorContext(r.Context(),
			"Chart render failed", applog.FieldError, err, applog.FieldPath, r.URL.Path)
	}
}

func filterCaption(f core.Filter) string {
	region := f.Region
	if f.AllRegionsSelected() {
		region = "Semua KPH"
	}
	if len(f.Types) == 0 {
		return region
	}
	return region + " · " + strings.Join(f.Types, ", ")
}

func withQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}
