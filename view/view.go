// Package view renders the embedded HTML templates of the dashboard.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/receipt"
)

//go:embed templates/*.html
var files embed.FS

var (
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	langResolver = func(r *http.Request) string { return i18n.LangFrom(r.Context()) }
)

// SetLangResolver allows the host app to provide a custom language resolver.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// Funcs returns the standard func map including i18n and simple helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := i18n.DefaultLang
	if r != nil {
		lang = langResolver(r)
	}
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"year": func() int { return time.Now().Year() },
		"fcfa": receipt.FormatFCFA,
		"typeLabel": func(t models.InvoiceType) string {
			return i18n.T(lang, t.LabelCode())
		},
		"invoiceTypes": models.InvoiceTypes,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"clock": func(t time.Time) string { return t.Format("15:04") },
		// active reports whether item is the section being shown.
		"active": func(item gate.NavItem, current string) bool {
			return !item.Logout && item.ID == current
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// parse builds the page template once: the layout plus the page, or the
// page alone when it is a full document.
func parse(name string) (*template.Template, error) {
	tplCache.RLock()
	t, ok := tplCache.m[name]
	tplCache.RUnlock()
	if ok {
		return t, nil
	}
	content, err := files.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("view: %s: %w", name, err)
	}
	root := "layout.html"
	paths := []string{"templates/layout.html", "templates/partials.html", "templates/" + name}
	if bytes.Contains(bytes.ToLower(content), []byte("<!doctype")) {
		root = name
		paths = []string{"templates/" + name}
	}
	t, err = template.New(root).Funcs(Funcs(nil)).ParseFS(files, paths...)
	if err != nil {
		return nil, err
	}
	tplCache.Lock()
	tplCache.m[name] = t
	tplCache.Unlock()
	return t, nil
}

// Render executes template name with shared funcs bound to the request.
// The page is buffered so a template error never leaves a half-written body.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	base, err := parse(name)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(r))
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Lang"]; !ok {
		data["Lang"] = langResolver(r)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// Title joins the page title with the product name.
func Title(parts ...string) string {
	parts = append(parts, "Mboa Care")
	return strings.Join(parts, " · ")
}
