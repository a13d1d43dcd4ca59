package concepts

import (
	"context"
	"sort"

	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
)

// Extraction paths reported in Report.Path.
const (
	PathLLM       = "llm"
	PathHeuristic = "heuristic"
	PathMixed     = "mixed"
)

// Report describes how a batch was produced.
type Report struct {
	Path          string
	FallbackCodes []string
	// Err is the primary extractor failure that forced the whole batch onto the heuristic.
	Err error
}

// FallbackExtractor guarantees MinConcepts..MaxConcepts concepts for every input code.
// A failed primary call sends the whole batch to the heuristic; a short or missing
// code is topped up from the heuristic on its own.
type FallbackExtractor struct {
	primary   Extractor
	heuristic *HeuristicExtractor
	logger    logger.Logger
}

// NewFallbackExtractor accepts a nil primary, in which case only the heuristic runs.
func NewFallbackExtractor(primary Extractor, heuristic *HeuristicExtractor, log logger.Logger) *FallbackExtractor {
	if heuristic == nil {
		heuristic = NewHeuristicExtractor()
	}
	return &FallbackExtractor{
		primary:   primary,
		heuristic: heuristic,
		logger:    log.With(map[string]interface{}{"component": "concept-extractor"}),
	}
}

func (f *FallbackExtractor) Extract(ctx context.Context, req Request) (map[string][]string, error) {
	out, _ := f.ExtractWithReport(ctx, req)
	return out, nil
}

func (f *FallbackExtractor) ExtractWithReport(ctx context.Context, req Request) (map[string][]string, Report) {
	out := make(map[string][]string, len(req.Elements))
	if len(req.Elements) == 0 {
		return out, Report{Path: PathLLM}
	}

	var primary map[string][]string
	var report Report
	if f.primary == nil {
		report.Err = ErrExtractionFailed
	} else {
		var err error
		primary, err = f.primary.Extract(ctx, req)
		if err != nil {
			report.Err = err
			f.logger.Warn("concept extraction failed, using keyword heuristic", map[string]interface{}{
				"framework": req.Framework,
				"error":     err.Error(),
			})
		}
	}

	for code, text := range req.Elements {
		concepts := cleanConcepts(primary[code])
		if report.Err == nil && len(concepts) >= MinConcepts {
			out[code] = capConcepts(concepts)
			continue
		}

		if report.Err == nil {
			f.logger.Warn("too few concepts from model, topping up", map[string]interface{}{
				"code":     code,
				"returned": len(concepts),
			})
		}
		report.FallbackCodes = append(report.FallbackCodes, code)

		merged := cleanConcepts(append(concepts, f.heuristic.ConceptsFor(text)...))
		out[code] = capConcepts(merged)
	}
	sort.Strings(report.FallbackCodes)

	switch {
	case len(report.FallbackCodes) == 0:
		report.Path = PathLLM
	case len(report.FallbackCodes) == len(req.Elements):
		report.Path = PathHeuristic
	default:
		report.Path = PathMixed
	}
	metrics.ConceptExtractions.WithLabelValues(report.Path).Inc()

	return out, report
}
