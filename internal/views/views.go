// Package views renders the server-side HTML pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"anomidate/internal/models"
)

//go:embed templates static
var files embed.FS

type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Page is the data every template receives. Data holds the page specific part.
type Page struct {
	Title       string
	SiteName    string
	User        *models.User
	Operator    *models.Operator
	Flash       *Flash
	UnreadCount int
	Data        any
}

var funcs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"fmtTimePtr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"derefInt": func(v *int) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(*v)
	},
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

type Renderer struct {
	pages    map[string]*template.Template
	siteName string
}

// New parses the layout once and clones it for every page so each page can
// define its own "content" block.
func New(siteName string) (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcs).ParseFS(files, "templates/layout/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	names, err := fs.Glob(files, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(names)), siteName: siteName}
	for _, name := range names {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning layout: %w", err)
		}
		if _, err := t.ParseFS(files, name); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return r, nil
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render executes the page into a buffer first so a template error never
// leaves a half written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("unknown template", "component", "views", "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if page.SiteName == "" {
		page.SiteName = r.siteName
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", page); err != nil {
		slog.Error("rendering template", "component", "views", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Static serves the embedded CSS and JavaScript.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
