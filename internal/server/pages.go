package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/truthinlistings/dashboard/internal/bulk"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"humanize": report.Humanize,
	"percent":  report.Percent,
	"cell":     bulk.CellValue,
	// css marks a value computed here, never user input, as safe in a
	// style attribute.
	"css": func(s string) template.CSS { return template.CSS(s) },
	"signed": func(f float64) string {
		return fmt.Sprintf("%+.1f", f)
	},
	"score": func(p *float64) string {
		if p == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f%%", *p*100)
	},
}

// Each page shares the layout and the report partial and defines its own
// "content" block, so every page gets its own template set.
var pageNames = []string{"analyze", "bulk", "history", "compare", "print"}

func parsePages() (map[string]*template.Template, error) {
	base, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS,
		"templates/layout.html", "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		set, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning templates for %s: %w", name, err)
		}
		if _, err := set.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = set
	}
	return pages, nil
}

// page is the data every layout-wrapped page receives.
type page struct {
	Title string
	View  string
	Data  any
}

// execute renders the named entry template of a page set.
func (s *Server) execute(name, entry string, data any) ([]byte, error) {
	set, ok := s.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// render writes a full page. Rendering happens before the status line so a
// template failure can still become a 500.
func (s *Server) render(w http.ResponseWriter, status int, name, title string, data any) {
	view := name
	if name == "compare" {
		view = "history"
	}
	body, err := s.execute(name, "layout", page{Title: title, View: view, Data: data})
	if err != nil {
		s.logger.Error("rendering page", logging.Field{Key: "page", Value: name}, logging.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
