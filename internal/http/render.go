package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asetmon/internal/core"
	applog "asetmon/internal/log"
	appweb "asetmon/web"
)

var pages = []string{"login.html", "master_data.html", "monitoring.html"}

var templateFuncs = template.FuncMap{
	"rupiah": core.FormatRupiah,
	"year":   formatYear,
	"area":   formatArea,
	"label":  formatLabel,
	"join":   strings.Join,
	"datetime": func(t time.Time) string {
		return t.Local().Format("02-01-2006 15:04")
	},
}

// page is the data every template receives.
type page struct {
	Title  string
	Active string
	User   *core.Identity
	CSRF   string
	Error  string
	Notice string
	Data   any
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(appweb.TemplatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := s.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(),
			"Template execution failed", applog.FieldError, err, "template", name)
		http.Error(w, "Terjadi kesalahan saat menampilkan halaman", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatYear(y *int) string {
	if y == nil {
		return "-"
	}
	return strconv.Itoa(*y)
}

func formatArea(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}

func formatLabel(s string) string {
	if s == "" {
		return "(kosong)"
	}
	return s
}
