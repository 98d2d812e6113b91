package render

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"

	"github.com/ppiankov/factstudy/internal/model"
)

var styleTmpl = template.Must(template.New("style.css").ParseFS(templateFS, "templates/style.css"))

var (
	// cssToken accepts colours, lengths and identifiers; anything that could
	// close a declaration or the style element is rejected.
	cssToken   = regexp.MustCompile(`^[#%(),.\w\s-]*$`)
	classToken = regexp.MustCompile(`^[A-Za-z][\w-]*$`)
)

type styleData struct {
	model.Theme
	HighlightClass string
}

// Stylesheet renders the page stylesheet from theme tokens
func Stylesheet(theme model.Theme, highlightClass string) (string, error) {
	if err := checkTheme(theme, highlightClass); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := styleTmpl.Execute(&buf, styleData{Theme: theme, HighlightClass: highlightClass}); err != nil {
		return "", fmt.Errorf("execute stylesheet template: %w", err)
	}

	return buf.String(), nil
}

func checkTheme(theme model.Theme, highlightClass string) error {
	tokens := []struct{ name, value string }{
		{"background", theme.Background},
		{"secondary_background", theme.SecondaryBackground},
		{"text", theme.Text},
		{"link", theme.Link},
		{"secondary_link", theme.SecondaryLink},
		{"citation_background", theme.CitationBackground},
		{"citation_border", theme.CitationBorder},
		{"citation_hover_background", theme.CitationHoverBackground},
		{"citation_hover_border", theme.CitationHoverBorder},
		{"tooltip_background", theme.TooltipBackground},
		{"tooltip_border", theme.TooltipBorder},
		{"tooltip_header", theme.TooltipHeader},
		{"tooltip_max_width", theme.TooltipMaxWidth},
		{"verdict_supported", theme.VerdictSupported},
		{"verdict_refuted", theme.VerdictRefuted},
		{"verdict_other", theme.VerdictOther},
		{"side_margin", theme.SideMargin},
		{"card_padding", theme.CardPadding},
	}

	for _, tok := range tokens {
		if !cssToken.MatchString(tok.value) {
			return fmt.Errorf("theme.%s: invalid css value %q", tok.name, tok.value)
		}
	}
	if !classToken.MatchString(highlightClass) {
		return fmt.Errorf("invalid highlight class %q", highlightClass)
	}

	return nil
}
