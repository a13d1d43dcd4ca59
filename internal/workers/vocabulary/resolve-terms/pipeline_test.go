// internal/workers/vocabulary/resolve-terms/pipeline_test.go
package resolveterms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocabulary-workers/internal/common/concepts"
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

// ==========================
// Test doubles
// ==========================

type fakeBackend struct {
	name  string
	langs []string
	terms map[string][]models.VocabularyTerm // keyed by normalized concept
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) Name() string        { return f.name }
func (f *fakeBackend) Languages() []string { return f.langs }

func (f *fakeBackend) Search(ctx context.Context, term, lang string) (*vocabulary.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lang+":"+term)
	f.mu.Unlock()

	res := &vocabulary.Result{Method: "fake", Terms: []models.VocabularyTerm{}}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return res, vocabulary.ClassifyError(f.name, ctx.Err())
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		res.Calls = []models.TraceEntry{{Stage: "search", Backend: f.name, Error: f.err.Error()}}
		return res, f.err
	}

	for _, t := range f.terms[vocabulary.NormalizeTerm(term)] {
		t.Source = f.name
		t.SourceConcept = term
		t.SourceLanguage = lang
		res.Terms = append(res.Terms, t)
	}
	res.Calls = []models.TraceEntry{{Stage: "search", Backend: f.name, ResultCount: len(res.Terms)}}
	return res, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type staticExtractor map[string][]string

func (s staticExtractor) Extract(_ context.Context, req concepts.Request) (map[string][]string, error) {
	out := make(map[string][]string, len(req.Elements))
	for code := range req.Elements {
		out[code] = s[code]
	}
	return out, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, concepts.Request) (map[string][]string, error) {
	return nil, concepts.ErrLLMTimeout
}

func term(id string, score int) models.VocabularyTerm {
	return models.VocabularyTerm{
		ID:             id,
		DisplayTerms:   map[string]string{"en": id},
		TreeNumbers:    []string{},
		RelevanceScore: score,
	}
}

func newTestPipeline(t *testing.T, cfg *Config, ex concepts.Extractor, backends ...vocabulary.Client) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, ex, backends, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func testConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

var picoInput = &Input{
	FrameworkType: "PICO",
	FullQuestion:  "Does a low-carb diet help obese adults lose weight compared to a low-fat diet?",
	FrameworkElements: map[string]string{
		"P": "obese adults",
		"I": "low-carb diet",
		"O": "weight loss",
	},
}

func picoBackend() *fakeBackend {
	return &fakeBackend{
		name:  models.SourceMeSH,
		langs: []string{"en"},
		terms: map[string][]models.VocabularyTerm{
			"obesity":        {term("D009765", 95), term("D050177", 65), term("D000001", 40)},
			"adult":          {term("D000328", 95), term("D009765", 70)},
			"diet":           {term("D004032", 95)},
			"low carb":       {term("D061908", 95), term("D004032", 80)},
			"weight loss":    {term("D015431", 95), term("D009765", 55)},
			"body weight":    {term("D001835", 90), term("D015431", 60)},
			"unrelated term": {term("D999999", 12)},
		},
	}
}

var picoConcepts = staticExtractor{
	"P": {"obesity", "adult"},
	"I": {"low carb", "diet"},
	"O": {"weight loss", "body weight", "unrelated term"},
}

// ==========================
// Resolve
// ==========================

func TestResolve_ElementResultsAreFilteredDedupedAndSorted(t *testing.T) {
	p := newTestPipeline(t, testConfig(), picoConcepts, picoBackend())

	out, err := p.Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	assert.Equal(t, []string{"P", "I", "O"}, elementCodes(out.Results), "slot order")
	assert.Equal(t, "Population", out.Results[0].ElementName)

	for _, res := range out.Results {
		seen := map[string]bool{}
		for i, tm := range res.Terms {
			assert.GreaterOrEqual(t, tm.RelevanceScore, models.InclusionThreshold)
			assert.False(t, seen[tm.ID], "duplicate %s in %s", tm.ID, res.ElementCode)
			seen[tm.ID] = true
			if i > 0 {
				assert.GreaterOrEqual(t, res.Terms[i-1].RelevanceScore, tm.RelevanceScore)
			}
		}
	}

	// P: D009765 found by "obesity" (95) and again by "adult" (70); first wins.
	assert.Equal(t, []string{"D009765", "D000328", "D050177"}, termIDs(out.Results[0].Terms))
	assert.Equal(t, 95, out.Results[0].Terms[0].RelevanceScore)
	assert.Equal(t, "obesity", out.Results[0].Terms[0].SourceConcept)

	assertUniqueSorted(t, out.AllUniqueTerms)
	assert.NotContains(t, termIDs(out.AllUniqueTerms), "D000001")
	assert.NotContains(t, termIDs(out.AllUniqueTerms), "D999999")
	assert.Len(t, out.AllUniqueTerms, 7)
}

func TestResolve_DedupPolicy(t *testing.T) {
	backend := &fakeBackend{
		name:  models.SourceDeCS,
		langs: []string{"en"},
		terms: map[string][]models.VocabularyTerm{
			"a": {term("X", 60)},
			"b": {term("X", 90)},
		},
	}
	ex := staticExtractor{"P": {"a"}, "O": {"b"}}
	in := &Input{FrameworkType: "PICO", FrameworkElements: map[string]string{"P": "a", "O": "b"}}

	tests := []struct {
		policy string
		want   int
	}{
		{config.DedupFirstSeen, 60},
		{config.DedupMaxScore, 90},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			cfg := testConfig()
			cfg.DedupPolicy = tt.policy
			out, err := newTestPipeline(t, cfg, ex, backend).Resolve(context.Background(), in)
			require.NoError(t, err)

			require.Len(t, out.AllUniqueTerms, 1)
			assert.Equal(t, tt.want, out.AllUniqueTerms[0].RelevanceScore)
			// element lists keep their own instance regardless of policy
			assert.Equal(t, 60, out.Results[0].Terms[0].RelevanceScore)
			assert.Equal(t, 90, out.Results[1].Terms[0].RelevanceScore)
		})
	}
}

func TestResolve_SearchesEveryLanguage(t *testing.T) {
	backend := &fakeBackend{name: models.SourceDeCS, langs: []string{"en", "pt", "es"}}
	p := newTestPipeline(t, testConfig(), staticExtractor{"P": {"obesity", "adult"}}, backend)

	_, err := p.Resolve(context.Background(), &Input{
		FrameworkType:     "PICO",
		FrameworkElements: map[string]string{"P": "obese adults"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"en:obesity", "pt:obesity", "es:obesity", "en:adult", "pt:adult", "es:adult"}, backend.calls)
}

func TestResolve_ParallelMatchesSequential(t *testing.T) {
	seqCfg := testConfig()
	seqCfg.IncludeDebug = false
	parCfg := testConfig()
	parCfg.IncludeDebug = false
	parCfg.Parallelism = 3

	seq, err := newTestPipeline(t, seqCfg, picoConcepts, picoBackend()).Resolve(context.Background(), picoInput)
	require.NoError(t, err)
	par, err := newTestPipeline(t, parCfg, picoConcepts, picoBackend()).Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	assert.Equal(t, seq.Results, par.Results)
	assert.Equal(t, seq.AllUniqueTerms, par.AllUniqueTerms)
}

func TestResolve_ExtractionOfflineFallsBackToHeuristic(t *testing.T) {
	backend := &fakeBackend{
		name:  models.SourceMeSH,
		langs: []string{"en"},
		terms: map[string][]models.VocabularyTerm{
			"obesity":     {term("D009765", 95)},
			"weight loss": {term("D015431", 95)},
		},
	}
	ex := concepts.NewFallbackExtractor(failingExtractor{}, concepts.NewHeuristicExtractor(), logger.NewTestLogger(t))
	p := newTestPipeline(t, testConfig(), ex, backend)

	out, err := p.Resolve(context.Background(), &Input{
		FrameworkType: "PICO",
		FrameworkElements: map[string]string{
			"P": "obese adults",
			"I": "low-carb diet",
			"C": "low-fat diet",
			"O": "weight loss",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Debug)

	assert.Equal(t, concepts.PathHeuristic, out.Debug.ExtractionPath)
	assert.Equal(t, []string{"C", "I", "O", "P"}, out.Debug.FallbackElements)
	for code, list := range out.Debug.ExtractedConcepts {
		assert.GreaterOrEqual(t, len(list), concepts.MinConcepts, code)
		assert.LessOrEqual(t, len(list), concepts.MaxConcepts, code)
	}

	byCode := resultsByCode(out.Results)
	assert.NotEmpty(t, byCode["P"].Terms)
	assert.NotEmpty(t, byCode["O"].Terms)
	assert.Contains(t, strings.Join(out.Debug.Warnings, "\n"), "LLM_TIMEOUT")
}

func TestResolve_ExtractorErrorSearchesOriginalText(t *testing.T) {
	backend := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}}
	p := newTestPipeline(t, testConfig(), failingExtractor{}, backend)

	out, err := p.Resolve(context.Background(), &Input{
		FrameworkType:     "PICO",
		FrameworkElements: map[string]string{"P": "  obese adults ", "O": "weight loss"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en:obese adults", "en:weight loss"}, backend.calls)
	assert.Equal(t, PathOriginalText, out.Debug.ExtractionPath)
	assert.Equal(t, []string{"P", "O"}, out.Debug.FallbackElements)
}

func TestResolve_NilExtractorSearchesOriginalText(t *testing.T) {
	backend := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}}
	p := newTestPipeline(t, testConfig(), nil, backend)

	_, err := p.Resolve(context.Background(), &Input{
		FrameworkType:     "PEO",
		FrameworkElements: map[string]string{"E": "shift work"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"en:shift work"}, backend.calls)
}

func TestResolve_TotalOutageReturnsEmptyResults(t *testing.T) {
	down := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}, err: vocabulary.ClassifyError("mesh", errors.New("connection refused"))}
	p := newTestPipeline(t, testConfig(), picoConcepts, down)

	out, err := p.Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	for _, res := range out.Results {
		assert.NotNil(t, res.Terms)
		assert.Empty(t, res.Terms)
	}
	assert.NotNil(t, out.AllUniqueTerms)
	assert.Empty(t, out.AllUniqueTerms)

	warnings := strings.Join(out.Debug.Warnings, "\n")
	assert.Contains(t, warnings, "VOCABULARY_SEARCH_FAILED")
	assert.Contains(t, warnings, "ALL_BACKENDS_UNAVAILABLE")
	assert.False(t, out.Debug.Partial)
}

func TestResolve_OneBackendDownOtherStillAnswers(t *testing.T) {
	down := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}, err: errors.New("status 503")}
	up := picoBackend()
	up.name = models.SourceDeCS
	p := newTestPipeline(t, testConfig(), picoConcepts, down, up)

	out, err := p.Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	assert.Len(t, out.AllUniqueTerms, 7)
	assert.NotContains(t, strings.Join(out.Debug.Warnings, "\n"), "ALL_BACKENDS_UNAVAILABLE")
}

func TestResolve_DeadlineReturnsPartialResult(t *testing.T) {
	slow := picoBackend()
	slow.delay = 40 * time.Millisecond

	cfg := testConfig()
	cfg.Deadline = 100 * time.Millisecond
	p := newTestPipeline(t, cfg, picoConcepts, slow)

	start := time.Now()
	out, err := p.Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, out.Debug.Partial)
	assert.Less(t, slow.callCount(), 7, "search stopped early")
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "P", out.Results[0].ElementCode)
	assert.NotEmpty(t, out.AllUniqueTerms, "terms found before the deadline are kept")
	assertUniqueSorted(t, out.AllUniqueTerms)
}

func TestResolve_CallerCancellationIsPartialNotError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, testConfig(), picoConcepts, picoBackend())
	out, err := p.Resolve(ctx, picoInput)
	require.NoError(t, err)
	assert.True(t, out.Debug.Partial)
	assert.Empty(t, out.AllUniqueTerms)
}

func TestResolve_SPIDERKeepsCompoundCode(t *testing.T) {
	backend := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}}
	p := newTestPipeline(t, testConfig(), nil, backend)

	out, err := p.Resolve(context.Background(), &Input{
		FrameworkType: "SPIDER",
		FrameworkElements: map[string]string{
			"S":  "nurses",
			"PI": "experiences of night shifts",
			"P":  "should be dropped",
			"I":  "should be dropped too",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"S", "PI"}, elementCodes(out.Results))
	assert.Equal(t, "Phenomenon of Interest", out.Results[1].ElementName)
	assert.Equal(t, []string{"I", "P"}, out.Debug.DroppedElements)
}

func TestResolve_UnknownFrameworkPassesThrough(t *testing.T) {
	backend := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}}
	p := newTestPipeline(t, testConfig(), nil, backend)

	out, err := p.Resolve(context.Background(), &Input{
		FrameworkType:     "MADEUP",
		FrameworkElements: map[string]string{"Z": "zeta", "A": "alpha"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "Z"}, elementCodes(out.Results))
	assert.True(t, out.Debug.UnknownFramework)
	assert.Empty(t, out.Results[0].ElementName)
	assert.Contains(t, strings.Join(out.Debug.Warnings, "\n"), "UNKNOWN_FRAMEWORK")
}

func TestResolve_BlankElementsAreSkipped(t *testing.T) {
	backend := &fakeBackend{name: models.SourceMeSH, langs: []string{"en"}}
	p := newTestPipeline(t, testConfig(), nil, backend)

	out, err := p.Resolve(context.Background(), &Input{
		FrameworkType:     "PICO",
		FrameworkElements: map[string]string{"P": "adults", "C": "   "},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"P"}, elementCodes(out.Results))
	assert.Contains(t, out.Debug.DroppedElements, "C")
}

func TestResolve_ProductionOmitsDebug(t *testing.T) {
	cfg := testConfig()
	cfg.IncludeDebug = false
	out, err := newTestPipeline(t, cfg, picoConcepts, picoBackend()).Resolve(context.Background(), picoInput)
	require.NoError(t, err)
	assert.Nil(t, out.Debug)
}

func TestResolve_DebugTracesCalls(t *testing.T) {
	out, err := newTestPipeline(t, testConfig(), picoConcepts, picoBackend()).Resolve(context.Background(), picoInput)
	require.NoError(t, err)

	stages := map[string]int{}
	for _, c := range out.Debug.Calls {
		stages[c.Stage]++
		if c.Stage == "search" {
			assert.NotEmpty(t, c.ElementCode)
			assert.NotEmpty(t, c.Concept)
			assert.Equal(t, "en", c.Language)
		}
	}
	assert.Equal(t, 7, stages["search"])
	for _, s := range []string{"validate", "extract", "aggregate"} {
		assert.Equal(t, 1, stages[s], s)
	}
	assert.NotEmpty(t, out.Debug.RequestID)
}

func TestResolve_InvalidInput(t *testing.T) {
	p := newTestPipeline(t, testConfig(), nil, picoBackend())

	tests := []struct {
		name string
		in   *Input
	}{
		{"nil request", nil},
		{"missing elements", &Input{FrameworkType: "PICO"}},
		{"blank framework", &Input{FrameworkType: "  ", FrameworkElements: map[string]string{"P": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Resolve(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestNewPipeline_RequiresBackend(t *testing.T) {
	_, err := NewPipeline(testConfig(), nil, nil, logger.NewNoOpLogger())
	assert.ErrorIs(t, err, ErrNoBackends)
}

// ==========================
// Helpers
// ==========================

func elementCodes(results []models.ElementResult) []string {
	codes := make([]string, len(results))
	for i, r := range results {
		codes[i] = r.ElementCode
	}
	return codes
}

func termIDs(terms []models.VocabularyTerm) []string {
	ids := make([]string, len(terms))
	for i, t := range terms {
		ids[i] = t.ID
	}
	return ids
}

func resultsByCode(results []models.ElementResult) map[string]models.ElementResult {
	out := make(map[string]models.ElementResult, len(results))
	for _, r := range results {
		out[r.ElementCode] = r
	}
	return out
}

func assertUniqueSorted(t *testing.T, terms []models.VocabularyTerm) {
	t.Helper()
	seen := map[string]bool{}
	for i, tm := range terms {
		assert.False(t, seen[tm.ID], "duplicate id %s", tm.ID)
		seen[tm.ID] = true
		assert.GreaterOrEqual(t, tm.RelevanceScore, models.InclusionThreshold)
		if i > 0 {
			assert.GreaterOrEqual(t, terms[i-1].RelevanceScore, tm.RelevanceScore)
		}
	}
}
