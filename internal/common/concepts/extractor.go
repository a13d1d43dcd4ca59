// Package concepts turns framework element text into short vocabulary-searchable
// concepts, using a language model with a deterministic keyword fallback.
package concepts

import (
	"context"
	"errors"
	"strings"

	"vocabulary-workers/internal/common/vocabulary"
)

const (
	MinConcepts = 5
	MaxConcepts = 7
)

var (
	ErrExtractionFailed = errors.New("CONCEPT_EXTRACTION_FAILED")
	ErrLLMTimeout       = errors.New("LLM_TIMEOUT")
)

// Request is one batch: all elements of a single research question.
type Request struct {
	Elements     map[string]string
	FullQuestion string
	Framework    string
}

// Extractor returns concepts keyed by element code.
type Extractor interface {
	Extract(ctx context.Context, req Request) (map[string][]string, error)
}

// cleanConcepts trims, drops empties and removes case-insensitive duplicates, keeping order.
func cleanConcepts(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.Join(strings.Fields(c), " ")
		key := vocabulary.NormalizeTerm(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// capConcepts truncates to MaxConcepts.
func capConcepts(in []string) []string {
	if len(in) > MaxConcepts {
		return in[:MaxConcepts]
	}
	return in
}
