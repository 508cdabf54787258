package botcomment

import (
	"bytes"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"text/template"
)

//go:embed templates/*.md.tmpl
var templateFS embed.FS

// Data is what the comment templates can refer to.
type Data struct {
	User     string
	Repo     string
	Number   int
	IssueKey string
	// DeletedIssueKey is an issue removed because it was in the wrong project.
	DeletedIssueKey    string
	HasSignedAgreement bool
	ProjectName        string
	ProjectPage        string
}

type templateData struct {
	Data
	BrowseURL  string
	ProcessURL string
}

// Renderer writes comment bodies.
type Renderer struct {
	browseURL string
	publicURL string
	tmpl      *template.Template
}

// NewRenderer parses the embedded templates. browseURL is the Jira issue link base
// ("https://jira/browse/"), publicURL the externally visible address of this service.
func NewRenderer(browseURL, publicURL string) (*Renderer, error) {
	tmpl, err := template.New("comments").Option("missingkey=error").ParseFS(templateFS, "templates/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse comment templates: %w", err)
	}
	if !strings.HasSuffix(browseURL, "/") {
		browseURL += "/"
	}
	return &Renderer{
		browseURL: browseURL,
		publicURL: strings.TrimRight(publicURL, "/"),
		tmpl:      tmpl,
	}, nil
}

// Welcome is the comment for a community pull request.
func (r *Renderer) Welcome(d Data) (string, error) {
	return r.render("welcome.md.tmpl", d)
}

// Contractor is the comment for a pull request by a contractor.
func (r *Renderer) Contractor(d Data) (string, error) {
	return r.render("contractor.md.tmpl", d)
}

// CoreCommitter is the comment for a pull request by a core committer.
func (r *Renderer) CoreCommitter(d Data) (string, error) {
	return r.render("committer.md.tmpl", d)
}

// Blended is the comment for a Blended project pull request.
func (r *Renderer) Blended(d Data) (string, error) {
	return r.render("blended.md.tmpl", d)
}

// ProcessURL is the link that creates an OSPR issue for a contractor PR.
func (r *Renderer) ProcessURL(repo string, number int) string {
	return fmt.Sprintf("%s/github/process_pr?repo=%s&number=%d", r.publicURL, url.QueryEscape(repo), number)
}

func (r *Renderer) render(name string, d Data) (string, error) {
	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, name, templateData{
		Data:       d,
		BrowseURL:  r.browseURL,
		ProcessURL: r.ProcessURL(d.Repo, d.Number),
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Join assembles comment sections into one body.
func Join(sections ...string) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// WithOKToTest appends the Jenkins marker to a non-empty body.
func WithOKToTest(body string) string {
	if body == "" {
		return body
	}
	return body + "\n" + OKToTestMarker
}
