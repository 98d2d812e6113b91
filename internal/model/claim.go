package model

// ClaimRecord is one fact-checked claim as produced by the upstream pipeline
type ClaimRecord struct {
	Claim              string   `json:"claim"`
	Verdict            string   `json:"verdict"`
	Justification      string   `json:"justification"`
	ContextSources     []string `json:"context_sources"`     // Fragments the model actually used, in paragraph order
	EvidenceParagraphs []string `json:"evidence_paragraphs"` // One excerpt per referenced evidence document
	EvidenceURLs       []string `json:"evidence_urls"`
	PageIndices        []int    `json:"page_indices"` // 1-based search result index per paragraph
}

// AttributionMatrix holds one row per justification sentence and one column per context source
type AttributionMatrix [][]float64

// Rows returns the number of sentence rows
func (m AttributionMatrix) Rows() int {
	return len(m)
}

// SearchInfo describes one evidence web page
type SearchInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExperimentGroup selects how citations are presented to a participant
type ExperimentGroup int

const (
	GroupPlain       ExperimentGroup = 1 // Plain paragraphs, no citation markup
	GroupCitations   ExperimentGroup = 2 // Sentence-level citations with hover tooltips
	GroupInteractive ExperimentGroup = 3 // Reserved
)

func (g ExperimentGroup) String() string {
	switch g {
	case GroupPlain:
		return "plain"
	case GroupCitations:
		return "citations"
	case GroupInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}
