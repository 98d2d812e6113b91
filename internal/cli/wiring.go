package cli

import (
	"github.com/rs/zerolog"

	"github.com/ppiankov/factstudy/internal/cache"
	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/pipeline"
	"github.com/ppiankov/factstudy/internal/results"
)

// newStore opens the results directory described by cfg
func newStore(cfg *model.Config) (*results.Store, cache.Cache) {
	c := cache.New(cfg.Cache)
	return results.NewStore(cfg.Results, c, cfg.Cache.DiskTTL), c
}

// newPipeline wires the store, cache and logger into a render pipeline
func newPipeline(cfg *model.Config, logger *zerolog.Logger) (*pipeline.Pipeline, error) {
	store, c := newStore(cfg)
	return pipeline.NewPipeline(cfg, store, c, logger)
}
