// Package app assembles the vocabulary pipeline from configuration. Both the
// worker manager and the CLI build their handlers from the same Components.
package app

import (
	"context"
	"fmt"

	"vocabulary-workers/internal/common/cache"
	"vocabulary-workers/internal/common/concepts"
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/decs"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/mesh"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
	resolveterms "vocabulary-workers/internal/workers/vocabulary/resolve-terms"
)

// Components holds everything a handler needs. Fallback always yields concepts
// and backs the extract-search-concepts job. Extractor is what the pipeline
// calls: Fallback, or the bare model when the heuristic is disabled so that
// model failures surface to the pipeline.
type Components struct {
	Config    *config.Config
	Registry  *frameworks.Registry
	Fallback  *concepts.FallbackExtractor
	Extractor concepts.Extractor
	Backends  []vocabulary.Client
	Cache     cache.Cache

	hasModel bool
	closers  []func() error
	logger   logger.Logger
}

// Build wires the cache, the vocabulary backends and the concept extractors.
// Only a misconfigured backend list is fatal; an unreachable Redis or an
// unusable model degrade to the in-process cache and the heuristic.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	c := &Components{
		Config:   cfg,
		Registry: frameworks.Default(),
		logger:   log,
	}

	c.Cache = c.buildCache(ctx)

	for _, name := range cfg.Pipeline.Backends {
		client, err := c.buildBackend(name)
		if err != nil {
			return nil, err
		}
		c.Backends = append(c.Backends, client)
	}

	c.buildExtractors()

	log.Info("pipeline components ready", map[string]interface{}{
		"backends":          cfg.Pipeline.Backends,
		"cacheBackend":      cfg.Pipeline.CacheBackend,
		"heuristicFallback": cfg.Pipeline.HeuristicFallback,
		"llm":               c.hasModel,
	})
	return c, nil
}

func (c *Components) buildCache(ctx context.Context) cache.Cache {
	switch c.Config.Pipeline.CacheBackend {
	case config.CacheNone:
		return nil
	case config.CacheRedis:
		rc, err := cache.DialRedis(ctx, c.Config.Database.Redis)
		if err != nil {
			c.logger.WithError(err).Warn("redis unavailable, using in-process term cache", map[string]interface{}{
				"address": c.Config.Database.Redis.Address,
			})
			return cache.NewMemoryCache()
		}
		c.closers = append(c.closers, rc.Close)
		return rc
	default:
		return cache.NewMemoryCache()
	}
}

func (c *Components) buildBackend(name string) (vocabulary.Client, error) {
	var client vocabulary.Client
	switch name {
	case models.SourceMeSH:
		client = mesh.NewClient(c.Config.APIs.MeSH, c.logger)
	case models.SourceDeCS:
		client = decs.NewClient(c.Config.APIs.DeCS, c.logger)
	default:
		return nil, fmt.Errorf("unsupported vocabulary backend %q", name)
	}

	if c.Cache != nil {
		client = vocabulary.NewCachedClient(client, c.Cache, c.Config.Pipeline.CacheTTL, c.logger)
	}
	return vocabulary.NewInstrumentedClient(client), nil
}

func (c *Components) buildExtractors() {
	var primary concepts.Extractor
	if c.Config.APIs.LLM.BaseURL != "" {
		model, err := concepts.NewOpenAIModel(c.Config.APIs.LLM)
		if err != nil {
			c.logger.WithError(err).Warn("llm model unavailable, extracting with the heuristic only", nil)
		} else {
			primary = concepts.NewLLMExtractor(model, c.Registry, config.GetDuration(c.Config.APIs.LLM.Timeout), c.logger)
			c.hasModel = true
		}
	}

	c.Fallback = concepts.NewFallbackExtractor(primary, concepts.NewHeuristicExtractor(), c.logger)

	switch {
	case c.Config.Pipeline.HeuristicFallback:
		c.Extractor = c.Fallback
	case primary != nil:
		c.Extractor = primary
	}
}

// NewPipeline builds the orchestrator over these components.
func (c *Components) NewPipeline(log logger.Logger, opts ...resolveterms.Option) (*resolveterms.Pipeline, error) {
	opts = append([]resolveterms.Option{resolveterms.WithRegistry(c.Registry)}, opts...)
	return resolveterms.NewPipeline(resolveterms.NewConfig(c.Config), c.Extractor, c.Backends, log, opts...)
}

// Backend returns the configured client named name.
func (c *Components) Backend(name string) (vocabulary.Client, bool) {
	for _, b := range c.Backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

func (c *Components) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
