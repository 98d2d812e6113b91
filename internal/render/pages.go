package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/ppiankov/factstudy/internal/model"
)

//go:embed templates/*
var templateFS embed.FS

// Template function helpers.
var templateFuncs = template.FuncMap{
	"verdictClass": VerdictClass,
	"inc": func(i int) int {
		return i + 1
	},
}

// Pages renders complete study pages around claim fragments
type Pages struct {
	claimTmpl  *template.Template
	surveyTmpl *template.Template
	errorTmpl  *template.Template
	style      template.CSS
}

// Nav describes the participant's position in the page sequence
type Nav struct {
	ParticipantID string
	Page          int // 0-based position in the sequence
	Pages         int
	CanPrev       bool
	CanNext       bool
}

// ClaimPageData contains all data for rendering a claim page
type ClaimPageData struct {
	Nav       Nav
	View      *model.ClaimView
	SurveyURL string
	Preview   bool // Rendered outside the participant flow; navigation hidden
}

// SurveyPageData contains all data for rendering the pre or post survey page
type SurveyPageData struct {
	Nav       Nav
	Title     string
	SurveyURL string
}

// ErrorData contains data for rendering error pages
type ErrorData struct {
	Code    int
	Title   string
	Message string
}

type pageData struct {
	Style         template.CSS
	Nav           Nav
	SurveyURL     string
	Title         string
	Preview       bool
	View          *model.ClaimView
	Justification template.HTML
	Sources       template.HTML
	Error         *ErrorData
}

// NewPages parses the page templates and renders the stylesheet once
func NewPages(theme model.Theme, highlightClass string) (*Pages, error) {
	css, err := Stylesheet(theme, highlightClass)
	if err != nil {
		return nil, err
	}

	claimTmpl, err := parsePage("claim.html")
	if err != nil {
		return nil, err
	}

	surveyTmpl, err := parsePage("survey.html")
	if err != nil {
		return nil, err
	}

	errorTmpl, err := parsePage("error.html")
	if err != nil {
		return nil, err
	}

	return &Pages{
		claimTmpl:  claimTmpl,
		surveyTmpl: surveyTmpl,
		errorTmpl:  errorTmpl,
		style:      template.CSS(css),
	}, nil
}

func parsePage(name string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}

	return tmpl, nil
}

// RenderClaim renders a claim page. The view's fragments are trusted markup
// produced by Renderer; every other field is escaped by the template.
func (p *Pages) RenderClaim(w io.Writer, data *ClaimPageData) error {
	pd := pageData{
		Style:         p.style,
		Nav:           data.Nav,
		SurveyURL:     data.SurveyURL,
		Title:         "Claim",
		Preview:       data.Preview,
		View:          data.View,
		Justification: template.HTML(data.View.Justification), //nolint:gosec // built from escaped spans
		Sources:       template.HTML(data.View.Sources),       //nolint:gosec // built from escaped spans
	}

	if err := p.claimTmpl.ExecuteTemplate(w, "layout", pd); err != nil {
		return fmt.Errorf("execute claim template: %w", err)
	}

	return nil
}

// RenderSurvey renders the pre or post survey page
func (p *Pages) RenderSurvey(w io.Writer, data *SurveyPageData) error {
	pd := pageData{
		Style:     p.style,
		Nav:       data.Nav,
		SurveyURL: data.SurveyURL,
		Title:     data.Title,
	}

	if err := p.surveyTmpl.ExecuteTemplate(w, "layout", pd); err != nil {
		return fmt.Errorf("execute survey template: %w", err)
	}

	return nil
}

// RenderError renders an error page
func (p *Pages) RenderError(w io.Writer, data *ErrorData) error {
	pd := pageData{
		Style: p.style,
		Title: data.Title,
		Error: data,
	}

	if err := p.errorTmpl.ExecuteTemplate(w, "layout", pd); err != nil {
		return fmt.Errorf("execute error template: %w", err)
	}

	return nil
}

// VerdictClass maps a verdict label to its CSS modifier
func VerdictClass(verdict string) string {
	switch strings.ToLower(strings.TrimSpace(verdict)) {
	case "supported", "supports", "true":
		return "verdict-supported"
	case "refuted", "refutes", "false":
		return "verdict-refuted"
	default:
		return "verdict-other"
	}
}
