package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/factstudy/internal/model"
)

// ErrPageIndex is returned when a paragraph's page index has no search info entry
var ErrPageIndex = errors.New("evidence page index out of range")

// PageText rebuilds the flat text of a saved evidence page.
// The first line is a header and is dropped; the remaining lines are trimmed
// and joined with single spaces.
func PageText(raw string) string {
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	lines := strings.Split(raw, "\n")
	if len(lines) <= 1 {
		return ""
	}

	body := lines[1:]
	for i, line := range body {
		body[i] = strings.TrimSpace(line)
	}

	return strings.Join(body, " ")
}

// BuildEvidence pairs each evidence paragraph with the search info of its page.
// Page indices are 1-based into infos.
func BuildEvidence(record model.ClaimRecord, infos []model.SearchInfo) ([]model.Evidence, error) {
	if len(record.PageIndices) != len(record.EvidenceParagraphs) {
		return nil, fmt.Errorf("%w: %d page indices for %d paragraphs", ErrPageIndex, len(record.PageIndices), len(record.EvidenceParagraphs))
	}

	evidence := make([]model.Evidence, 0, len(record.EvidenceParagraphs))
	for i, paragraph := range record.EvidenceParagraphs {
		pageIdx := record.PageIndices[i]
		if pageIdx < 1 || pageIdx > len(infos) {
			return nil, fmt.Errorf("%w: paragraph %d has page %d, %d search infos", ErrPageIndex, i, pageIdx, len(infos))
		}

		info := infos[pageIdx-1]
		link := info.URL
		if link == "" && i < len(record.EvidenceURLs) {
			link = record.EvidenceURLs[i]
		}

		evidence = append(evidence, model.Evidence{
			Paragraph: paragraph,
			Title:     info.Title,
			URL:       link,
			Domain:    DomainName(link),
			PageIndex: pageIdx,
		})
	}

	return evidence, nil
}

// DomainName returns the host of rawURL without a leading "www."
func DomainName(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(parsed.Host, "www.")
}

// SafeURL returns rawURL if it is an absolute http(s) URL and "#" otherwise,
// so evidence links can never carry javascript: or data: payloads.
func SafeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "#"
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "#"
	}

	return parsed.String()
}
