// internal/workers/vocabulary/resolve-terms/pipeline.go
package resolveterms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"vocabulary-workers/internal/common/concepts"
	apperrors "vocabulary-workers/internal/common/errors"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
	"vocabulary-workers/internal/common/observability"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

// PathOriginalText is reported when no extractor produced concepts and each
// element is searched with its own text.
const PathOriginalText = "original-text"

var ErrNoBackends = errors.New("at least one vocabulary backend is required")

type reportingExtractor interface {
	ExtractWithReport(ctx context.Context, req concepts.Request) (map[string][]string, concepts.Report)
}

// Pipeline resolves framework elements into controlled-vocabulary terms:
// validate, extract concepts, search every backend per concept and language,
// then aggregate. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	config    *Config
	registry  *frameworks.Registry
	extractor concepts.Extractor
	backends  []vocabulary.Client
	pool      *ants.Pool
	obs       *observability.Observability
	logger    logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithObservability attaches spans and stage histograms.
func WithObservability(obs *observability.Observability) Option {
	return func(p *Pipeline) error {
		p.obs = obs
		return nil
	}
}

// WithRegistry replaces the embedded framework registry.
func WithRegistry(reg *frameworks.Registry) Option {
	return func(p *Pipeline) error {
		if reg != nil {
			p.registry = reg
		}
		return nil
	}
}

// NewPipeline builds a pipeline. A nil extractor means every element is searched
// with its original text. When config.Parallelism > 1 elements run on a shared pool.
func NewPipeline(cfg *Config, extractor concepts.Extractor, backends []vocabulary.Client, log logger.Logger, opts ...Option) (*Pipeline, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	if cfg == nil {
		cfg = LoadConfig()
	}

	p := &Pipeline{
		config:    cfg,
		registry:  frameworks.Default(),
		extractor: extractor,
		backends:  backends,
		obs:       observability.NewNoop(),
		logger:    log.With(map[string]interface{}{"component": "resolve-pipeline"}),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if cfg.Parallelism > 1 {
		pool, err := ants.NewPool(cfg.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("create element pool: %w", err)
		}
		p.pool = pool
	}
	return p, nil
}

// Release frees the element pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Registry exposes the framework registry in use.
func (p *Pipeline) Registry() *frameworks.Registry {
	return p.registry
}

// request is the per-call state threaded through the stages.
type request struct {
	id       string
	input    *Input
	elements map[string]string
	codes    []string
	trace    *models.Trace
	logger   logger.Logger
}

// elementOutcome is what one element search produced.
type elementOutcome struct {
	result   models.ElementResult
	calls    int
	failures int
	partial  bool
}

// Resolve runs the whole pipeline. The only error it returns wraps ErrInvalidInput;
// backend and extraction failures are absorbed and show up as fewer terms. When ctx
// or the configured deadline expires, the terms collected so far are returned and
// the debug block is marked partial.
func (p *Pipeline) Resolve(ctx context.Context, in *Input) (*Output, error) {
	start := time.Now()
	if err := checkInput(in); err != nil {
		return nil, err
	}

	if p.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Deadline)
		defer cancel()
	}

	id := uuid.NewString()
	req := &request{
		id:    id,
		input: in,
		trace: models.NewTrace(id, in.FrameworkType),
	}
	req.logger = p.logger.With(map[string]interface{}{
		"requestId": req.id,
		"framework": in.FrameworkType,
	})

	ctx, span := p.obs.StartSpan(ctx, "vocabulary.resolve",
		attribute.String("request.id", req.id),
		attribute.String("framework", in.FrameworkType),
	)
	defer span.End()

	p.validate(ctx, req)
	conceptsByCode := p.extract(ctx, req)
	outcomes := p.searchAll(ctx, req, conceptsByCode)

	aggStart := time.Now()
	raw := make([]models.ElementResult, 0, len(outcomes))
	calls, failures, partial := 0, 0, false
	for _, o := range outcomes {
		if o == nil {
			partial = true
			continue
		}
		raw = append(raw, o.result)
		calls += o.calls
		failures += o.failures
		partial = partial || o.partial
	}
	results, unique := Aggregate(raw, p.config.DedupPolicy)
	p.stageDone(ctx, req, "aggregate", aggStart, len(unique))

	if calls > 0 && failures == calls {
		allDown := apperrors.NewAllBackendsUnavailableError(failures)
		req.logger.Warn("no vocabulary backend answered", map[string]interface{}{
			"failedCalls": failures,
		})
		req.trace.Warn(fmt.Sprintf("%s: %s", allDown.Code, allDown.Details))
	}
	if partial {
		req.logger.Warn("deadline reached, returning partial result", map[string]interface{}{
			"elementsDone": len(raw),
			"elements":     len(req.codes),
		})
		req.trace.Update(func(d *models.DebugInfo) { d.Partial = true })
	}

	out := &Output{
		Results:        results,
		AllUniqueTerms: unique,
		ProcessTimeMs:  models.Elapsed(start),
	}
	if p.config.IncludeDebug {
		out.Debug = req.trace.Snapshot()
	}

	status := "completed"
	if partial {
		status = "partial"
	}
	p.obs.RecordJobProcessed(ctx, status)
	p.obs.RecordJobDuration(ctx, time.Since(start), status)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	metrics.PipelineUniqueTerms.Observe(float64(len(unique)))
	span.SetAttributes(
		attribute.Int("terms.unique", len(unique)),
		attribute.Bool("partial", partial),
	)

	req.logger.Info("vocabulary terms resolved", map[string]interface{}{
		"elements":      len(results),
		"uniqueTerms":   len(unique),
		"searchCalls":   calls,
		"failedCalls":   failures,
		"partial":       partial,
		"processTimeMs": out.ProcessTimeMs,
	})
	return out, nil
}

// validate filters the elements against the framework schema and drops blanks.
func (p *Pipeline) validate(ctx context.Context, req *request) {
	start := time.Now()
	framework := req.input.FrameworkType

	elements, dropped, err := p.registry.ValidElements(framework, req.input.FrameworkElements)
	if errors.Is(err, frameworks.ErrUnknownFramework) {
		unknown := apperrors.NewUnknownFrameworkError(framework)
		req.logger.Warn("unknown framework, elements passed through unfiltered", map[string]interface{}{
			"elements": len(elements),
		})
		req.trace.Warn(fmt.Sprintf("%s: %s", unknown.Code, unknown.Details))
		req.trace.Update(func(d *models.DebugInfo) { d.UnknownFramework = true })
	}
	if len(dropped) > 0 {
		req.logger.Warn("dropping elements not declared by framework", map[string]interface{}{
			"dropped": dropped,
		})
	}

	var blank []string
	for code, text := range elements {
		if strings.TrimSpace(text) == "" {
			blank = append(blank, code)
			delete(elements, code)
		}
	}
	if len(blank) > 0 {
		sort.Strings(blank)
		req.logger.Warn("skipping blank elements", map[string]interface{}{"codes": blank})
		req.trace.Warn("blank elements skipped: " + strings.Join(blank, ", "))
	}

	req.elements = elements
	req.codes = p.registry.OrderedCodes(framework, elements)
	req.trace.Update(func(d *models.DebugInfo) {
		d.DroppedElements = append(dropped, blank...)
	})
	p.stageDone(ctx, req, "validate", start, len(req.codes))
}

// extract produces concepts for every kept element. Codes the extractor left
// without concepts are searched with their original text.
func (p *Pipeline) extract(ctx context.Context, req *request) map[string][]string {
	start := time.Now()
	out := make(map[string][]string, len(req.elements))
	if len(req.elements) == 0 {
		p.stageDone(ctx, req, "extract", start, 0)
		return out
	}

	creq := concepts.Request{
		Elements:     req.elements,
		FullQuestion: req.input.FullQuestion,
		Framework:    req.input.FrameworkType,
	}

	var (
		extracted map[string][]string
		path      string
		fallback  []string
		err       error
	)
	switch ex := p.extractor.(type) {
	case nil:
		err = concepts.ErrExtractionFailed
	case reportingExtractor:
		var report concepts.Report
		extracted, report = ex.ExtractWithReport(ctx, creq)
		path, fallback = report.Path, report.FallbackCodes
		if report.Err != nil {
			failed := apperrors.NewConceptExtractionFailedError(report.Err)
			if errors.Is(report.Err, concepts.ErrLLMTimeout) {
				failed = apperrors.NewLLMTimeoutError()
			}
			req.trace.Warn(fmt.Sprintf("%s: %v", failed.Code, report.Err))
		}
	default:
		extracted, err = ex.Extract(ctx, creq)
		path = concepts.PathLLM
	}

	if err != nil {
		req.logger.Warn("concept extraction failed, searching original element text", map[string]interface{}{
			"error": err.Error(),
		})
		req.trace.Warn(fmt.Sprintf("%s: %v", apperrors.ErrCodeConceptExtractionFailed, err))
		extracted, path, fallback = nil, PathOriginalText, append([]string(nil), req.codes...)
	}

	total := 0
	for _, code := range req.codes {
		list := extracted[code]
		if len(list) == 0 {
			list = []string{strings.TrimSpace(req.elements[code])}
		}
		out[code] = list
		total += len(list)
	}

	req.trace.Update(func(d *models.DebugInfo) {
		d.ExtractionPath = path
		d.FallbackElements = fallback
		d.ExtractedConcepts = out
	})
	p.stageDone(ctx, req, "extract", start, total)
	return out
}

// searchAll searches every element, sequentially or on the pool. Outcomes are
// slotted by element index so aggregation sees the same order either way; a nil
// slot means the element never started before the deadline.
func (p *Pipeline) searchAll(ctx context.Context, req *request, conceptsByCode map[string][]string) []*elementOutcome {
	start := time.Now()
	outcomes := make([]*elementOutcome, len(req.codes))

	if p.pool == nil {
		for i, code := range req.codes {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = p.searchElement(ctx, req, code, conceptsByCode[code])
		}
	} else {
		var wg sync.WaitGroup
		for i, code := range req.codes {
			i, code := i, code
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				if ctx.Err() != nil {
					return
				}
				outcomes[i] = p.searchElement(ctx, req, code, conceptsByCode[code])
			})
			if err != nil {
				wg.Done()
				req.logger.Error("element search could not be scheduled", map[string]interface{}{
					"code":  code,
					"error": err.Error(),
				})
			}
		}
		wg.Wait()
	}

	count := 0
	for _, o := range outcomes {
		if o != nil {
			count += len(o.result.Terms)
		}
	}
	p.stageDone(ctx, req, "search", start, count)
	return outcomes
}

// searchElement runs concept x backend x language lookups for one element.
// Included terms are collected in lookup order; Aggregate dedups and sorts them.
func (p *Pipeline) searchElement(ctx context.Context, req *request, code string, conceptList []string) *elementOutcome {
	ctx, span := p.obs.StartSpan(ctx, "vocabulary.element", attribute.String("element.code", code))
	defer span.End()

	text := req.elements[code]
	out := &elementOutcome{result: models.ElementResult{
		ElementCode:  code,
		OriginalText: text,
		Concepts:     conceptList,
		Terms:        []models.VocabularyTerm{},
	}}
	if schema, ok := p.registry.Lookup(req.input.FrameworkType); ok {
		out.result.ElementName = schema.ElementName(code)
	}

	for _, concept := range conceptList {
		for _, backend := range p.backends {
			for _, lang := range backend.Languages() {
				if ctx.Err() != nil {
					out.partial = true
					return out
				}

				out.calls++
				res, err := backend.Search(ctx, concept, lang)
				p.recordCalls(req, code, concept, lang, res)
				if err != nil {
					if ctx.Err() != nil {
						out.partial = true
						return out
					}
					out.failures++
					failed := apperrors.NewVocabularySearchFailedError(backend.Name(), concept, err)
					req.logger.Warn("vocabulary search failed, continuing", map[string]interface{}{
						"code":    code,
						"backend": backend.Name(),
						"concept": concept,
						"lang":    lang,
						"error":   err.Error(),
					})
					req.trace.Warn(fmt.Sprintf("%s: %v", failed.Code, failed.Details))
					continue
				}
				if res != nil {
					out.result.Terms = append(out.result.Terms, vocabulary.FilterIncluded(res.Terms)...)
				}
			}
		}
	}
	return out
}

func (p *Pipeline) recordCalls(req *request, code, concept, lang string, res *vocabulary.Result) {
	if res == nil {
		return
	}
	for _, call := range res.Calls {
		call.ElementCode = code
		if call.Concept == "" {
			call.Concept = concept
		}
		if call.Language == "" {
			call.Language = lang
		}
		req.trace.Record(call)
	}
}

func (p *Pipeline) stageDone(ctx context.Context, req *request, stage string, start time.Time, count int) {
	p.obs.RecordStage(ctx, stage, time.Since(start))
	req.trace.Record(models.TraceEntry{
		Stage:       stage,
		ResultCount: count,
		DurationMs:  models.Elapsed(start),
	})
}
