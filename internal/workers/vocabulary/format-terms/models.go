// internal/workers/vocabulary/format-terms/models.go
package formatterms

import "vocabulary-workers/internal/models"

// Input is the output of resolve-vocabulary-terms, optionally narrowed to the
// high-relevance tier.
type Input struct {
	Results           []models.ElementResult  `json:"results"`
	AllUniqueTerms    []models.VocabularyTerm `json:"allUniqueTerms"`
	HighRelevanceOnly bool                    `json:"highRelevanceOnly,omitempty"`
}

type Output struct {
	FormattedTerms string `json:"formattedTerms"`
	Count          int    `json:"count"`
}
