// Package render builds the justification and evidence markup for a claim page.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/factstudy/internal/cite"
	"github.com/ppiankov/factstudy/internal/excerpt"
	"github.com/ppiankov/factstudy/internal/extract"
	"github.com/ppiankov/factstudy/internal/model"
)

var (
	// ErrUnsupportedGroup is returned for an experiment group that exists but has no renderer
	ErrUnsupportedGroup = errors.New("experiment group not supported")
	// ErrUnknownGroup is returned for experiment group values outside the study design
	ErrUnknownGroup = errors.New("unknown experiment group")
	// ErrCitationRange is returned when a citation points past the context sources
	ErrCitationRange = errors.New("citation out of range")
	// ErrMissingTooltip is returned when a cited source has no resolved evidence window
	ErrMissingTooltip = errors.New("missing tooltip for citation")
)

// Input is everything needed to render one claim
type Input struct {
	Record     model.ClaimRecord
	Evidence   []model.Evidence // One per evidence paragraph
	Maps       extract.SourceMaps
	Annotation cite.Annotation // Used by the citations group
	Tooltips   map[int]string  // 1-based source index -> escaped tooltip markup
}

// Fragments are the two rendered blocks of a claim page
type Fragments struct {
	Justification string
	Sources       string
}

// Renderer renders claim fragments for an experiment group
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render dispatches on group. GroupInteractive yields ErrUnsupportedGroup and any
// value outside the study design yields ErrUnknownGroup, never an empty result.
func (r *Renderer) Render(group model.ExperimentGroup, in Input) (Fragments, error) {
	if err := CheckGroup(group); err != nil {
		return Fragments{}, err
	}

	if len(in.Evidence) != len(in.Record.EvidenceParagraphs) {
		return Fragments{}, fmt.Errorf("%d evidence entries for %d paragraphs", len(in.Evidence), len(in.Record.EvidenceParagraphs))
	}

	if group == model.GroupPlain {
		return r.renderPlain(in), nil
	}
	return r.renderCitations(in)
}

// CheckGroup reports whether group can be rendered
func CheckGroup(group model.ExperimentGroup) error {
	switch group {
	case model.GroupPlain, model.GroupCitations:
		return nil
	case model.GroupInteractive:
		return fmt.Errorf("%w: %d (%s)", ErrUnsupportedGroup, group, group)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownGroup, group)
	}
}

func (r *Renderer) renderPlain(in Input) Fragments {
	var sources strings.Builder
	for _, ev := range in.Evidence {
		writeCard(&sources, ev, excerpt.Escape(ev.Paragraph))
	}

	return Fragments{
		Justification: excerpt.Escape(cite.StripMarkers(in.Record.Justification)),
		Sources:       sources.String(),
	}
}

func (r *Renderer) renderCitations(in Input) (Fragments, error) {
	nSources := len(in.Record.ContextSources)
	for i, cites := range in.Annotation.Citations {
		for _, k := range cites {
			if k < 1 || k > nSources {
				return Fragments{}, fmt.Errorf("%w: sentence %d cites [%d], %d context sources", ErrCitationRange, i, k, nSources)
			}
			if _, ok := in.Tooltips[k]; !ok {
				return Fragments{}, fmt.Errorf("%w: [%d]", ErrMissingTooltip, k)
			}
		}
	}

	seen := make(map[int]int)
	body := cite.ReplaceMarkers(excerpt.Escape(in.Annotation.Text), func(k int) string {
		seen[k]++
		return citationAnchor(k, seen[k], in.Tooltips[k])
	})

	var justification strings.Builder
	justification.WriteString("<span class='citation-container'>")
	justification.WriteString(body)
	justification.WriteString("</span>")

	var sources strings.Builder
	for p, ev := range in.Evidence {
		writeCard(&sources, ev, numberedSources(in.Record.ContextSources, in.Maps.Sources(p), ev.Paragraph))
	}

	return Fragments{
		Justification: justification.String(),
		Sources:       sources.String(),
	}, nil
}

// citationAnchor renders one hoverable citation. Repeat citations of the same
// source get suffixed ids so every id on the page stays unique.
func citationAnchor(k, occurrence int, tooltip string) string {
	id := "citation-" + strconv.Itoa(k)
	if occurrence > 1 {
		id += "-" + strconv.Itoa(occurrence)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<a class='citation' id='%s' href='#source-%d'>[%d]", id, k, k)
	b.WriteString("<div class='tooltip'>")
	fmt.Fprintf(&b, "<div class='tooltip-header'>Evidence [%d]:</div>", k)
	b.WriteString(`<div class='tooltip-content'>"`)
	b.WriteString(tooltip)
	b.WriteString(`"</div></div></a>`)
	return b.String()
}

// numberedSources lists the context sources of one paragraph with their anchors.
// A paragraph that contains no source is shown in full.
func numberedSources(sources []string, idxs []int, paragraph string) string {
	if len(idxs) == 0 {
		return excerpt.Escape(paragraph)
	}

	var b strings.Builder
	for _, i := range idxs {
		fmt.Fprintf(&b, "<span id='source-%d'><sup>[%d]</sup> %s </span>", i+1, i+1, excerpt.Escape(sources[i]))
	}
	return b.String()
}

func writeCard(b *strings.Builder, ev model.Evidence, content string) {
	href := excerpt.Escape(extract.SafeURL(ev.URL))
	title := ev.Title
	if title == "" {
		title = ev.Domain
	}

	b.WriteString("<div class='evidence-card'>")
	fmt.Fprintf(b, "<div class='evidence-title'><a href='%s' target='_blank' rel='noopener noreferrer'>%s</a></div>", href, excerpt.Escape(title))
	if ev.Domain != "" {
		fmt.Fprintf(b, "<div class='evidence-domain'>%s</div>", excerpt.Escape(ev.Domain))
	}
	fmt.Fprintf(b, "<div class='evidence-content'>... %s ...</div>", content)
	fmt.Fprintf(b, "<div class='source-url'><a href='%s' target='_blank' rel='noopener noreferrer'>%s</a></div>", href, excerpt.Escape(ev.URL))
	b.WriteString("<div class='back-link'><a href='#justification'>Back to Justification</a></div>")
	b.WriteString("</div>")
}
