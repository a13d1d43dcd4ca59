package vocabulary

import (
	"context"
	"encoding/json"
	"time"

	"vocabulary-workers/internal/common/cache"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/models"
)

// CachedClient serves repeated lookups from a shared cache. Cache failures are
// logged and bypassed, never returned.
type CachedClient struct {
	next   Client
	cache  cache.Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedClient(next Client, c cache.Cache, ttl time.Duration, log logger.Logger) *CachedClient {
	return &CachedClient{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"backend": next.Name(), "component": "vocabulary-cache"}),
	}
}

func (c *CachedClient) Name() string        { return c.next.Name() }
func (c *CachedClient) Languages() []string { return c.next.Languages() }

func (c *CachedClient) Search(ctx context.Context, term, lang string) (*Result, error) {
	key := CacheKey(c.next.Name(), lang, term)
	start := time.Now()

	if raw, found, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	} else if found {
		var terms []models.VocabularyTerm
		if err := json.Unmarshal(raw, &terms); err == nil {
			for i := range terms {
				terms[i].SourceConcept = term
			}
			return &Result{
				Terms:  terms,
				Method: MethodCache,
				Cached: true,
				Calls: []models.TraceEntry{{
					Stage:       "search",
					Backend:     c.next.Name(),
					Concept:     term,
					Language:    lang,
					Method:      MethodCache,
					ResultCount: len(terms),
					DurationMs:  models.Elapsed(start),
					Cached:      true,
				}},
			}, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	}

	res, err := c.next.Search(ctx, term, lang)
	if err != nil {
		return res, err
	}

	terms := res.Terms
	if terms == nil {
		terms = []models.VocabularyTerm{}
	}
	if raw, err := json.Marshal(terms); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return res, nil
}
