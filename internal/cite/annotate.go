package cite

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factstudy/internal/model"
)

// SentenceSplitter splits text into sentences
type SentenceSplitter interface {
	Tokenize(text string) []string
}

// Annotation is a justification with citation markers injected
type Annotation struct {
	Text          string   // Sentences joined as "sentence [k][k]. "
	Sentences     []string // Cleaned sentences that received a row, trailing "." removed
	Citations     [][]int  // 1-based citations per sentence
	SentenceCount int      // Sentences produced by the splitter
	RowCount      int      // Rows in the attribution matrix
}

// Mismatch reports whether sentence and row counts differ.
// Sentences past the last row are dropped from Text.
func (a Annotation) Mismatch() bool {
	return a.SentenceCount != a.RowCount
}

// Dropped returns how many sentences had no attribution row
func (a Annotation) Dropped() int {
	return max(0, a.SentenceCount-a.RowCount)
}

// Annotator injects citation markers into justifications
type Annotator struct {
	splitter SentenceSplitter
	selector Selector
}

// NewAnnotator creates an annotator
func NewAnnotator(splitter SentenceSplitter, selector Selector) *Annotator {
	return &Annotator{
		splitter: splitter,
		selector: selector,
	}
}

// Annotate strips existing markers from justification, splits it into sentences
// and pairs sentence i with row i of matrix.
func (a *Annotator) Annotate(justification string, matrix model.AttributionMatrix) (Annotation, error) {
	sents := a.splitter.Tokenize(StripMarkers(justification))

	ann := Annotation{
		SentenceCount: len(sents),
		RowCount:      matrix.Rows(),
	}

	n := min(len(sents), matrix.Rows())
	ann.Sentences = make([]string, 0, n)
	ann.Citations = make([][]int, 0, n)

	var b strings.Builder
	for i := 0; i < n; i++ {
		picked, err := a.selector.Select(matrix[i])
		if err != nil {
			return Annotation{}, fmt.Errorf("attribution row %d: %w", i, err)
		}

		citations := make([]int, len(picked))
		for j, src := range picked {
			citations[j] = src + 1
		}

		sentence := strings.TrimSuffix(sents[i], ".")
		b.WriteString(sentence)
		if len(citations) > 0 {
			b.WriteByte(' ')
			b.WriteString(FormatMarkers(citations))
		}
		b.WriteString(". ")

		ann.Sentences = append(ann.Sentences, sentence)
		ann.Citations = append(ann.Citations, citations)
	}

	ann.Text = b.String()
	return ann, nil
}
