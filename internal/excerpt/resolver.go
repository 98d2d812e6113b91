package excerpt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/factstudy/internal/extract"
)

// ErrFragmentNotFound is returned when a cited fragment does not occur in its evidence page
var ErrFragmentNotFound = errors.New("fragment not found in evidence page")

// SentenceSplitter splits text into sentences
type SentenceSplitter interface {
	Tokenize(text string) []string
}

// Window is a fragment with its surrounding context, as raw page text.
// Pre + Fragment + Post is a contiguous substring of the page.
type Window struct {
	Pre      string
	Fragment string
	Post     string
}

// Text returns the unescaped window
func (w Window) Text() string {
	return w.Pre + w.Fragment + w.Post
}

// Tooltip returns the escaped window with the fragment wrapped in a highlight span
func (w Window) Tooltip(highlightClass string) string {
	var b strings.Builder
	b.WriteString("... ")
	b.WriteString(Escape(w.Pre))
	b.WriteString("<span class='")
	b.WriteString(Escape(highlightClass))
	b.WriteString("'>")
	b.WriteString(Escape(w.Fragment))
	b.WriteString("</span>")
	b.WriteString(Escape(w.Post))
	b.WriteString(" ...")
	return b.String()
}

// Resolver expands a fragment to whole sentences plus a fixed number of
// neighbouring sentences on each side
type Resolver struct {
	splitter SentenceSplitter
	before   int
	after    int
}

// NewResolver creates a resolver; negative context counts are treated as zero
func NewResolver(splitter SentenceSplitter, before, after int) *Resolver {
	return &Resolver{
		splitter: splitter,
		before:   max(0, before),
		after:    max(0, after),
	}
}

// Resolve locates the first occurrence of fragment in page and returns the window
// of sentences around it, clamped to the document bounds.
func (r *Resolver) Resolve(fragment, page string) (Window, error) {
	if fragment == "" {
		return Window{}, fmt.Errorf("%w: empty fragment", ErrFragmentNotFound)
	}

	fragStart := strings.Index(page, fragment)
	if fragStart < 0 {
		return Window{}, fmt.Errorf("%w: %q", ErrFragmentNotFound, shorten(fragment))
	}
	fragEnd := fragStart + len(fragment)

	spans, err := extract.Locate(page, r.splitter.Tokenize(page))
	if err != nil {
		return Window{}, fmt.Errorf("locate page sentences: %w", err)
	}

	winStart, winEnd := 0, len(page)
	if len(spans) > 0 {
		first, last := containing(spans, fragStart, fragEnd)
		winStart = spans[max(0, first-r.before)].Start
		winEnd = spans[min(len(spans)-1, last+r.after)].End
	}

	winStart = min(winStart, fragStart)
	winEnd = max(winEnd, fragEnd)

	return Window{
		Pre:      page[winStart:fragStart],
		Fragment: fragment,
		Post:     page[fragEnd:winEnd],
	}, nil
}

// containing returns the index of the last sentence starting at or before start
// and of the first sentence ending at or after end. Without such a sentence the
// first or last sentence of the document is used.
func containing(spans []extract.Span, start, end int) (int, int) {
	first := 0
	for i, sp := range spans {
		if sp.Start > start {
			break
		}
		first = i
	}

	last := len(spans) - 1
	for i, sp := range spans {
		if sp.End >= end {
			last = i
			break
		}
	}

	return first, max(first, last)
}

func shorten(s string) string {
	const limit = 60

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "..."
}
