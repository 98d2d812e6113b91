package model

import "time"

// ClaimView is the rendered output for one claim page
// It is cached as JSON, so every field must round-trip
type ClaimView struct {
	ClaimIndex int             `json:"claim_index"`
	Group      ExperimentGroup `json:"group"`
	Claim      string          `json:"claim"`
	Verdict    string          `json:"verdict"`
	RenderedAt time.Time       `json:"rendered_at"`

	Justification string `json:"justification_html"` // Markup for the justification block
	Sources       string `json:"sources_html"`       // Markup for the evidence cards

	Sentences int      `json:"sentences,omitempty"`       // Justification sentences after marker stripping
	Rows      int      `json:"attribution_rows,omitempty"` // Attribution matrix rows
	Warnings  []string `json:"warnings,omitempty"`
}

// Truncated reports whether justification sentences were dropped for lack of attribution rows
func (v *ClaimView) Truncated() bool {
	return v.Group == GroupCitations && v.Sentences > v.Rows
}
