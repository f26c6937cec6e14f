// Package htmlview renders controller view models as HTML pages. Every page
// shares one layout carrying the auth bar.
package htmlview

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/alphabot-ai/inkpost/internal/admin"
	"github.com/alphabot-ai/inkpost/internal/auth"
	"github.com/alphabot-ai/inkpost/internal/dashboard"
	"github.com/alphabot-ai/inkpost/internal/feed"
	"github.com/alphabot-ai/inkpost/internal/viewer"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data handed to the layout.
type Page struct {
	Lang  string
	Title string
	Auth  auth.View
	Body  any
}

type Renderer struct {
	lang      string
	feed      *template.Template
	story     *template.Template
	dashboard *template.Template
	admin     *template.Template
}

// New parses the embedded templates. lang goes into the html lang attribute.
func New(lang string) (*Renderer, error) {
	funcs := template.FuncMap{
		"inc": func(n int) int { return n + 1 },
		"dec": func(n int) int { return n - 1 },
	}
	layout, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}
	makePage := func(name string) (*template.Template, error) {
		content, err := templateFS.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, err
		}
		t, err := template.New(name).Funcs(funcs).Parse(string(layout))
		if err != nil {
			return nil, err
		}
		if t, err = t.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		return t, nil
	}

	r := &Renderer{lang: lang}
	if r.lang == "" {
		r.lang = "en"
	}
	for name, dst := range map[string]**template.Template{
		"feed":      &r.feed,
		"story":     &r.story,
		"dashboard": &r.dashboard,
		"admin":     &r.admin,
	} {
		t, err := makePage(name)
		if err != nil {
			return nil, err
		}
		*dst = t
	}
	return r, nil
}

func (r *Renderer) render(w io.Writer, t *template.Template, title string, a auth.View, body any) error {
	return t.ExecuteTemplate(w, "layout", Page{Lang: r.lang, Title: title, Auth: a, Body: body})
}

func (r *Renderer) Feed(w io.Writer, a auth.View, v feed.View) error {
	return r.render(w, r.feed, "", a, v)
}

func (r *Renderer) Story(w io.Writer, a auth.View, v viewer.View) error {
	return r.render(w, r.story, v.Title, a, v)
}

func (r *Renderer) Dashboard(w io.Writer, a auth.View, v dashboard.View) error {
	return r.render(w, r.dashboard, "Dashboard", a, v)
}

func (r *Renderer) Admin(w io.Writer, a auth.View, v admin.View) error {
	return r.render(w, r.admin, "Admin", a, v)
}
