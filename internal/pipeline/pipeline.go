// Package pipeline runs the per-claim render pass: load, tokenize, cite,
// resolve evidence windows and render.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factstudy/internal/cache"
	"github.com/ppiankov/factstudy/internal/cite"
	"github.com/ppiankov/factstudy/internal/excerpt"
	"github.com/ppiankov/factstudy/internal/extract"
	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/render"
	"github.com/ppiankov/factstudy/internal/results"
)

// Log field constants.
const (
	logFieldClaim = "claim"
	logFieldGroup = "group"
)

// Pipeline orchestrates the complete render of one claim page
type Pipeline struct {
	store     *results.Store
	tokenizer *extract.Tokenizer
	annotator *cite.Annotator
	resolver  *excerpt.Resolver
	renderer  *render.Renderer
	cache     cache.Cache
	cacheTTL  time.Duration
	highlight string
	variant   string // Fingerprint of the settings that change rendered output
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration.
// A nil cache disables view caching.
func NewPipeline(cfg *model.Config, store *results.Store, c cache.Cache, logger *zerolog.Logger) (*Pipeline, error) {
	tokenizer, err := extract.NewTokenizer()
	if err != nil {
		return nil, err
	}

	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	selector := cite.Selector{
		MinAbs:       cfg.Citation.MinAbsThreshold,
		MaxRatio:     cfg.Citation.MaxRatioThreshold,
		MaxCitations: cfg.Citation.MaxCitations,
	}

	return &Pipeline{
		store:     store,
		tokenizer: tokenizer,
		annotator: cite.NewAnnotator(tokenizer, selector),
		resolver:  excerpt.NewResolver(tokenizer, cfg.Excerpt.SentencesBefore, cfg.Excerpt.SentencesAfter),
		renderer:  render.NewRenderer(),
		cache:     c,
		cacheTTL:  cfg.Cache.MemoryTTL,
		highlight: cfg.Excerpt.HighlightClass,
		variant: fmt.Sprintf("%v/%v/%d/%d/%d/%s",
			selector.MinAbs, selector.MaxRatio, selector.MaxCitations,
			cfg.Excerpt.SentencesBefore, cfg.Excerpt.SentencesAfter, cfg.Excerpt.HighlightClass),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Store returns the results store the pipeline reads from
func (p *Pipeline) Store() *results.Store {
	return p.store
}

// RenderClaim renders claim idx for an experiment group
func (p *Pipeline) RenderClaim(ctx context.Context, idx int, group model.ExperimentGroup) (*model.ClaimView, error) {
	start := time.Now()
	defer func() {
		RenderLatency.WithLabelValues(group.String()).Observe(time.Since(start).Seconds())
		p.reportCache()
	}()

	view, err := p.renderClaim(ctx, idx, group)
	if err != nil {
		kind := ErrorKind(err)
		RenderErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, err
	}

	return view, nil
}

// reportCache copies the cache counters into the cache gauges
func (p *Pipeline) reportCache() {
	stats, ok := p.cache.(cache.StatsReporter)
	if !ok {
		return
	}

	hits, misses := stats.Stats()
	CacheLookups.WithLabelValues(CacheHit).Set(float64(hits))
	CacheLookups.WithLabelValues(CacheMiss).Set(float64(misses))
	CacheItems.Set(float64(stats.Len()))
}

func (p *Pipeline) renderClaim(ctx context.Context, idx int, group model.ExperimentGroup) (*model.ClaimView, error) {
	// 1. Reject groups without a renderer before touching any file
	if err := render.CheckGroup(group); err != nil {
		return nil, err
	}

	key := cache.Key("view", p.store.Dir(), strconv.Itoa(idx), strconv.Itoa(int(group)), p.variant)
	var cached model.ClaimView
	if cache.GetJSON(p.cache, key, &cached) {
		ViewCacheTotal.WithLabelValues(CacheHit).Inc()
		return &cached, nil
	}
	ViewCacheTotal.WithLabelValues(CacheMiss).Inc()

	// 2. Load the claim record and its search infos
	record, err := p.store.Claim(idx)
	if err != nil {
		return nil, err
	}

	infos, err := p.store.SearchInfos(idx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Cross-reference sources, paragraphs and pages
	evidence, err := extract.BuildEvidence(record, infos)
	if err != nil {
		return nil, fmt.Errorf("claim %d: %w", idx, err)
	}

	maps, err := extract.BuildSourceMaps(record.ContextSources, record.EvidenceParagraphs)
	if err != nil {
		return nil, fmt.Errorf("claim %d: %w", idx, err)
	}

	view := &model.ClaimView{
		ClaimIndex: idx,
		Group:      group,
		Claim:      record.Claim,
		Verdict:    record.Verdict,
	}

	in := render.Input{
		Record:   record,
		Evidence: evidence,
		Maps:     maps,
	}

	// 4. Citations: annotate the justification and resolve a tooltip per cited source
	if group == model.GroupCitations {
		if err := p.annotate(ctx, idx, record, maps, &in, view); err != nil {
			return nil, err
		}
	}

	// 5. Render
	frags, err := p.renderer.Render(group, in)
	if err != nil {
		return nil, fmt.Errorf("claim %d: %w", idx, err)
	}

	view.Justification = frags.Justification
	view.Sources = frags.Sources
	view.RenderedAt = p.now().UTC()

	if err := cache.SetJSON(p.cache, key, view, p.cacheTTL); err != nil {
		p.logger.Warn().Err(err).Int(logFieldClaim, idx).Msg("Failed to cache rendered claim")
	}

	return view, nil
}

func (p *Pipeline) annotate(ctx context.Context, idx int, record model.ClaimRecord, maps extract.SourceMaps, in *render.Input, view *model.ClaimView) error {
	matrix, err := p.store.Attributions(idx)
	if err != nil {
		return err
	}

	ann, err := p.annotator.Annotate(record.Justification, matrix)
	if err != nil {
		return fmt.Errorf("claim %d: %w", idx, err)
	}

	view.Sentences = ann.SentenceCount
	view.Rows = ann.RowCount

	if ann.Mismatch() {
		AnnotationMismatchTotal.Inc()
		p.logger.Warn().
			Int(logFieldClaim, idx).
			Int("sentences", ann.SentenceCount).
			Int("rows", ann.RowCount).
			Msg("Justification sentence count differs from attribution rows")
		view.Warnings = append(view.Warnings, fmt.Sprintf(
			"%d justification sentences, %d attribution rows; %d sentences not shown",
			ann.SentenceCount, ann.RowCount, ann.Dropped()))
	}

	tooltips, err := p.tooltips(ctx, idx, record, maps, ann.Citations)
	if err != nil {
		return err
	}

	in.Annotation = ann
	in.Tooltips = tooltips
	return nil
}

// tooltips resolves the evidence window of every cited source. Citations
// outside the context sources are left for the renderer to reject.
func (p *Pipeline) tooltips(ctx context.Context, idx int, record model.ClaimRecord, maps extract.SourceMaps, citations [][]int) (map[int]string, error) {
	var cited []int
	for _, cs := range citations {
		for _, k := range cs {
			if k >= 1 && k <= len(record.ContextSources) && !slices.Contains(cited, k) {
				cited = append(cited, k)
			}
		}
	}
	slices.Sort(cited)

	tooltips := make(map[int]string, len(cited))
	for _, k := range cited {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		source := record.ContextSources[k-1]
		page := record.PageIndices[maps.Paragraph(k-1)]

		text, err := p.store.PageText(idx, page)
		if err != nil {
			return nil, err
		}

		window, err := p.resolver.Resolve(source, text)
		if err != nil {
			return nil, fmt.Errorf("claim %d source [%d] in page %d: %w", idx, k, page, err)
		}

		tooltips[k] = window.Tooltip(p.highlight)
	}

	return tooltips, nil
}
