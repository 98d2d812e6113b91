package model

// Evidence is one evidence document shown as a card under the justification
type Evidence struct {
	Paragraph string `json:"paragraph"`        // Excerpt used by the fact-checker
	Title     string `json:"title"`            // Page title from the search infos
	URL       string `json:"url"`              // Page URL from the search infos
	Domain    string `json:"domain,omitempty"` // Host without "www."
	PageIndex int    `json:"page_index"`       // 1-based search result index
}

// Issue is a problem found while checking a claim's result files
type Issue struct {
	ClaimIndex int           `json:"claim_index"`
	Kind       IssueKind     `json:"kind"`
	Severity   IssueSeverity `json:"severity"`
	Message    string        `json:"message"`
}

// IssueKind classifies an input problem
type IssueKind string

const (
	IssueShape       IssueKind = "input_shape" // Lengths or orderings that break rendering
	IssueLookupMiss  IssueKind = "lookup_miss" // A fragment or page that cannot be found
	IssueResource    IssueKind = "resource"    // Missing or malformed file
	IssueTruncation  IssueKind = "truncation"  // Sentence/attribution row count mismatch
	IssueUnsupported IssueKind = "unsupported" // Configuration the renderer refuses
)

// IssueSeverity indicates whether an issue stops rendering
type IssueSeverity string

const (
	SeverityWarning  IssueSeverity = "warning"
	SeverityCritical IssueSeverity = "critical"
)
