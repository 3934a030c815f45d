// Package web renders the device protocol's HTML responses.  It is a
// pure view layer: a record snapshot in, a document out.  html/template
// escapes every record field, so untrusted ids and names can never break
// out of the markup.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/mfields-dev/cardgate/internal/cardgate/types"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Renderer struct {
	list *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templatesFS, "templates/records.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{list: t}, nil
}

func (r *Renderer) RenderList(records []types.Record) (string, error) {
	var b strings.Builder
	if err := r.list.Execute(&b, struct {
		Records []types.Record
	}{Records: records}); err != nil {
		return "", fmt.Errorf("render record list: %w", err)
	}
	return b.String(), nil
}
