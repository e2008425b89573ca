// Package web holds the page templates and static assets, embedded into
// the server binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ParseTemplates parses every page and partial. Partials are addressed by
// file name, e.g. "balance.html".
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// Static returns the assets rooted so that "style.css" is served at
// /static/style.css.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
