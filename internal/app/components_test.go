package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocabulary-workers/internal/common/cache"
	"vocabulary-workers/internal/common/concepts"
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "development"},
		APIs: config.APIsConfig{
			MeSH: config.MeSHConfig{BaseURL: "http://127.0.0.1:1", RetMax: 10, Timeout: 1000},
			DeCS: config.DeCSConfig{BaseURL: "http://127.0.0.1:1", Languages: []string{"en", "pt"}, Timeout: 1000},
		},
		Pipeline: config.PipelineConfig{
			Backends:          []string{models.SourceMeSH, models.SourceDeCS},
			Parallelism:       1,
			DedupPolicy:       config.DedupFirstSeen,
			CacheTTL:          time.Hour,
			CacheBackend:      config.CacheMemory,
			HeuristicFallback: true,
		},
	}
}

func TestBuild_Defaults(t *testing.T) {
	c, err := Build(context.Background(), testConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer c.Close()

	require.Len(t, c.Backends, 2)
	assert.Equal(t, models.SourceMeSH, c.Backends[0].Name())
	assert.IsType(t, &vocabulary.InstrumentedClient{}, c.Backends[0])
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)

	decsClient, ok := c.Backend(models.SourceDeCS)
	require.True(t, ok)
	assert.Equal(t, []string{"en", "pt"}, decsClient.Languages())

	assert.Same(t, c.Fallback, c.Extractor)

	p, err := c.NewPipeline(logger.NewTestLogger(t))
	require.NoError(t, err)
	defer p.Release()
	assert.Same(t, c.Registry, p.Registry())
}

func TestBuild_NoCacheNoHeuristic(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.CacheBackend = config.CacheNone
	cfg.Pipeline.HeuristicFallback = false

	c, err := Build(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Nil(t, c.Cache)
	assert.IsType(t, &vocabulary.InstrumentedClient{}, c.Backends[0])
	assert.Nil(t, c.Extractor)
	assert.NotNil(t, c.Fallback)

	cfg.APIs.LLM = config.LLMConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "test-model", Timeout: 1000}
	c, err = Build(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &concepts.LLMExtractor{}, c.Extractor)
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Pipeline.CacheBackend = config.CacheRedis
	cfg.Database.Redis = config.RedisConfig{Address: mr.Addr()}

	c, err := Build(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisCache{}, c.Cache)
	assert.NoError(t, c.Close())

	cfg.Database.Redis.Address = "127.0.0.1:1"
	c, err = Build(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
}

func TestBuild_UnsupportedBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Backends = []string{"umls"}

	_, err := Build(context.Background(), cfg, logger.NewTestLogger(t))
	assert.ErrorContains(t, err, "umls")
}

func TestBuild_CacheHitsAreCounted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"decsws_response": {"tree_id": "C23.888", "record_list": {"record": [
			{"decs_code": "9910", "descriptor_list": {"descriptor": {"@lang": "en", "#text": "Body Weight"}}}
		]}}}]`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.APIs.DeCS.BaseURL = srv.URL
	c, err := Build(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer c.Close()

	decsClient, ok := c.Backend(models.SourceDeCS)
	require.True(t, ok)

	hitCounter := metrics.VocabularySearches.WithLabelValues(models.SourceDeCS, metrics.OutcomeHit)
	cachedCounter := metrics.VocabularySearches.WithLabelValues(models.SourceDeCS, metrics.OutcomeCached)
	hitsBefore := testutil.ToFloat64(hitCounter)
	cachedBefore := testutil.ToFloat64(cachedCounter)

	for i := 0; i < 3; i++ {
		res, err := decsClient.Search(context.Background(), "body weight", "en")
		require.NoError(t, err)
		require.Len(t, res.Terms, 1)
		assert.Equal(t, i > 0, res.Cached)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(hitCounter)-hitsBefore)
	assert.Equal(t, 2.0, testutil.ToFloat64(cachedCounter)-cachedBefore)
}
