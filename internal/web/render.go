package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutTemplate = "templates/layout.html"

// Page is the view model every template receives.
type Page struct {
	Title    string
	BasePath string
	User     *account.User
	Flashes  []session.Flash
	// Form holds submitted values to fill the form again
	Form   map[string]string
	Errors validation.FieldErrors
	Data   any
	// ChatURL is set when the chat widget is shown
	ChatURL string
}

func (p *Page) Value(field string) string {
	if p.Form == nil {
		return ""
	}
	return p.Form[field]
}

func (p *Page) Error(field string) string {
	if p.Errors == nil {
		return ""
	}
	return p.Errors[field]
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer(basePath string) (*Renderer, error) {
	funcs := template.FuncMap{
		"path": func(p string) string {
			return basePath + p
		},
		"roleLabel": func(r account.Role) string {
			return r.Label()
		},
		"initials": initials,
		"truncate": func(s string, n int) string {
			runes := []rune(s)
			if len(runes) <= n {
				return s
			}
			return string(runes[:n]) + "…"
		},
	}

	pageFiles, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, pageFile := range pageFiles {
		if pageFile == layoutTemplate {
			continue
		}
		name := strings.TrimSuffix(path.Base(pageFile), ".html")
		t, err := template.New(path.Base(layoutTemplate)).Funcs(funcs).ParseFS(templatesFS, layoutTemplate, pageFile)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render executes the named page into w. Nothing is written on error.
func (rn *Renderer) Render(w io.Writer, name string, page *Page) error {
	t, ok := rn.pages[name]
	if !ok {
		return fmt.Errorf("unknown page template: %s", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

func (rn *Renderer) Has(name string) bool {
	_, ok := rn.pages[name]
	return ok
}

func initials(u *account.User) string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range []string{u.Nombres, u.Apellidos} {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static is always embedded
		panic(err)
	}
	return sub
}
