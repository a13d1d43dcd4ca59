// internal/workers/vocabulary/resolve-terms/aggregate.go
package resolveterms

import (
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

// Aggregate cleans per-element results and builds the global unique list.
//
// Each element keeps only included terms, deduplicated by id and sorted by score.
// The global list is keyed by id in element order. With config.DedupFirstSeen the
// first instance wins; with config.DedupMaxScore the highest score wins and ties go
// to the first instance. The input is not modified, so repeated runs are identical.
func Aggregate(results []models.ElementResult, policy string) ([]models.ElementResult, []models.VocabularyTerm) {
	cleaned := make([]models.ElementResult, len(results))
	var all []models.VocabularyTerm

	for i, res := range results {
		res.Terms = dedupTerms(vocabulary.FilterIncluded(res.Terms), policy)
		vocabulary.SortByScore(res.Terms)
		if res.Concepts != nil {
			res.Concepts = append([]string(nil), res.Concepts...)
		}
		cleaned[i] = res
		all = append(all, res.Terms...)
	}

	unique := dedupTerms(all, policy)
	vocabulary.SortByScore(unique)
	return cleaned, unique
}

// dedupTerms returns a new slice with one term per id, in first-seen position.
func dedupTerms(terms []models.VocabularyTerm, policy string) []models.VocabularyTerm {
	out := make([]models.VocabularyTerm, 0, len(terms))
	index := make(map[string]int, len(terms))

	for _, t := range terms {
		pos, seen := index[t.ID]
		if !seen {
			index[t.ID] = len(out)
			out = append(out, t)
			continue
		}
		if policy == config.DedupMaxScore && t.RelevanceScore > out[pos].RelevanceScore {
			out[pos] = t
		}
	}
	return out
}
