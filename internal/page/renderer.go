package page

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// Renderer serves the operator preview page: paste a PR description, see the
// retitled version rendered before letting the webhook loose on a repo.
type Renderer struct {
	templates *template.Template
	repo      string
}

func NewRenderer(repo string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Renderer{
		templates: tmpl,
		repo:      repo,
	}, nil
}

func (r *Renderer) StaticHandler() http.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	return http.FileServer(http.FS(sub))
}

type previewData struct {
	Repo          string
	HasResult     bool
	Original      string
	Rewritten     string
	Count         int
	TextChanged   bool
	OriginalHTML  template.HTML
	RewrittenHTML template.HTML
}

// RenderForm shows the empty paste-a-description form.
func (r *Renderer) RenderForm(w io.Writer) error {
	return r.templates.ExecuteTemplate(w, "preview.html", previewData{Repo: r.repo})
}

// RenderPreview shows the original and rewritten body side by side.
func (r *Renderer) RenderPreview(w io.Writer, original, rewritten string, count int) error {
	return r.templates.ExecuteTemplate(w, "preview.html", previewData{
		Repo:          r.repo,
		HasResult:     true,
		Original:      original,
		Rewritten:     rewritten,
		Count:         count,
		TextChanged:   original != rewritten,
		OriginalHTML:  renderMarkdown(original),
		RewrittenHTML: renderMarkdown(rewritten),
	})
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}
