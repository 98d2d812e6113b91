package extract

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// ErrSentenceNotLocated is returned when a tokenized sentence cannot be found in its source text
var ErrSentenceNotLocated = errors.New("sentence not located in text")

// Span is the [Start, End) byte range of a sentence within its source text
type Span struct {
	Start int
	End   int
}

// Tokenizer splits text into sentences with the Punkt algorithm
type Tokenizer struct {
	mu    sync.Mutex
	punkt *sentences.DefaultSentenceTokenizer
}

// NewTokenizer loads the English Punkt parameters
func NewTokenizer() (*Tokenizer, error) {
	punkt, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}

	return &Tokenizer{punkt: punkt}, nil
}

// Tokenize splits text into trimmed, non-empty sentences in document order.
// Identical input always yields identical output.
func (t *Tokenizer) Tokenize(text string) []string {
	t.mu.Lock()
	sents := t.punkt.Tokenize(text)
	t.mu.Unlock()

	out := make([]string, 0, len(sents))
	for _, s := range sents {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

// Locate recovers the byte span of every sentence in text.
// Each search starts where the previous sentence ended, so repeated sentence
// text maps to successive occurrences instead of collapsing onto the first one.
func Locate(text string, sents []string) ([]Span, error) {
	spans := make([]Span, 0, len(sents))
	cursor := 0

	for i, s := range sents {
		idx := strings.Index(text[cursor:], s)
		if idx < 0 {
			return nil, fmt.Errorf("%w: sentence %d %q", ErrSentenceNotLocated, i, preview(s))
		}

		start := cursor + idx
		spans = append(spans, Span{Start: start, End: start + len(s)})
		cursor = start + len(s)
	}

	return spans, nil
}

// preview shortens s for error messages
func preview(s string) string {
	const limit = 60

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "..."
}
