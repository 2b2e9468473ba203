// Package webui embeds the HTML views served to browsers.
package webui

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render writes a named view. Data is template-specific.
func Render(w io.Writer, name string, data any) error {
	return tmpl.ExecuteTemplate(w, name, data)
}

// ErrorData feeds the error view.
type ErrorData struct {
	Code    int
	Message string
}
