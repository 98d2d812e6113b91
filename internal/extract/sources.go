package extract

import (
	"fmt"
	"strings"
)

// SourceMaps cross-references context sources and the evidence paragraphs containing them
type SourceMaps struct {
	SourceToParagraph  []int         // Indexed by 0-based source index
	ParagraphToSources map[int][]int // 0-based paragraph index -> 0-based source indices, ascending
}

// Paragraph returns the paragraph containing source i
func (m SourceMaps) Paragraph(source int) int {
	return m.SourceToParagraph[source]
}

// Sources returns the sources contained in paragraph p, in source order
func (m SourceMaps) Sources(paragraph int) []int {
	return m.ParagraphToSources[paragraph]
}

// SourceNotFoundError reports a context source that is not contained in any
// paragraph at or after the scan position reached by the previous sources
type SourceNotFoundError struct {
	Index  int    // 0-based source index
	Source string // Source text
	From   int    // First paragraph that was searched
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("context source [%d] not found in evidence paragraphs from index %d on: %q", e.Index+1, e.From, preview(e.Source))
}

// BuildSourceMaps assigns every context source to the first paragraph containing it.
// Sources must appear in the same relative order as their paragraphs: the scan
// position never moves backwards, and a source missing from every remaining
// paragraph is an error rather than a wrap-around.
func BuildSourceMaps(sources []string, paragraphs []string) (SourceMaps, error) {
	maps := SourceMaps{
		SourceToParagraph:  make([]int, len(sources)),
		ParagraphToSources: make(map[int][]int),
	}

	j := 0
	for i, src := range sources {
		from := j
		for j < len(paragraphs) && !strings.Contains(paragraphs[j], src) {
			j++
		}

		if j == len(paragraphs) {
			return SourceMaps{}, &SourceNotFoundError{Index: i, Source: src, From: from}
		}

		maps.SourceToParagraph[i] = j
		maps.ParagraphToSources[j] = append(maps.ParagraphToSources[j], i)
	}

	return maps, nil
}
