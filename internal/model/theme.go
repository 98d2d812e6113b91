package model

// Theme holds the colour and spacing tokens used to build the study stylesheet
type Theme struct {
	Background          string `yaml:"background" mapstructure:"background"`
	SecondaryBackground string `yaml:"secondary_background" mapstructure:"secondary_background"`
	Text                string `yaml:"text" mapstructure:"text"`
	Link                string `yaml:"link" mapstructure:"link"`
	SecondaryLink       string `yaml:"secondary_link" mapstructure:"secondary_link"`

	CitationBackground      string `yaml:"citation_background" mapstructure:"citation_background"`
	CitationBorder          string `yaml:"citation_border" mapstructure:"citation_border"`
	CitationHoverBackground string `yaml:"citation_hover_background" mapstructure:"citation_hover_background"`
	CitationHoverBorder     string `yaml:"citation_hover_border" mapstructure:"citation_hover_border"`
	TooltipBackground       string `yaml:"tooltip_background" mapstructure:"tooltip_background"`
	TooltipBorder           string `yaml:"tooltip_border" mapstructure:"tooltip_border"`
	TooltipHeader           string `yaml:"tooltip_header" mapstructure:"tooltip_header"`
	TooltipMaxWidth         string `yaml:"tooltip_max_width" mapstructure:"tooltip_max_width"`

	VerdictSupported string `yaml:"verdict_supported" mapstructure:"verdict_supported"`
	VerdictRefuted   string `yaml:"verdict_refuted" mapstructure:"verdict_refuted"`
	VerdictOther     string `yaml:"verdict_other" mapstructure:"verdict_other"`

	SideMargin  string `yaml:"side_margin" mapstructure:"side_margin"`
	CardPadding string `yaml:"card_padding" mapstructure:"card_padding"`
}

// DefaultTheme mirrors the light theme the study was designed against
func DefaultTheme() Theme {
	return Theme{
		Background:          "#ffffff",
		SecondaryBackground: "#f0f2f6",
		Text:                "#31333f",
		Link:                "#0068c9",
		SecondaryLink:       "#6c757d",

		CitationBackground:      "#e7f3ff",
		CitationBorder:          "#b3d9ff",
		CitationHoverBackground: "#cce7ff",
		CitationHoverBorder:     "#66b3ff",
		TooltipBackground:       "#2c3e50",
		TooltipBorder:           "#34495e",
		TooltipHeader:           "#3498db",
		TooltipMaxWidth:         "400px",

		VerdictSupported: "#2e7d32",
		VerdictRefuted:   "#c62828",
		VerdictOther:     "#6c757d",

		SideMargin:  "40px",
		CardPadding: "1.5rem",
	}
}
