// internal/models/vocabulary.go
package models

const (
	// InclusionThreshold is the minimum score a term needs to appear in any result list.
	InclusionThreshold = 50
	// HighRelevanceThreshold marks terms that consumers surface expanded by default.
	HighRelevanceThreshold = 95
)

const (
	SourceMeSH = "mesh"
	SourceDeCS = "decs"
)

// VocabularyTerm is one controlled-vocabulary descriptor returned by a backend.
// DisplayTerms, Definitions and Synonyms are keyed by language code (en, pt, es, fr).
type VocabularyTerm struct {
	ID             string              `json:"id"`
	Source         string              `json:"source"`
	DisplayTerms   map[string]string   `json:"displayTerms"`
	Definitions    map[string]string   `json:"definitions,omitempty"`
	Synonyms       map[string][]string `json:"synonyms,omitempty"`
	TreeNumbers    []string            `json:"treeNumbers"`
	RelevanceScore int                 `json:"relevanceScore"`
	SourceLanguage string              `json:"sourceLanguage"`
	SourceConcept  string              `json:"sourceConcept"`
}

// DisplayLanguages is the preference order used when a single label is needed.
var DisplayLanguages = []string{"en", "pt", "es", "fr"}

// PreferredTerm returns the display term in the first available preferred language.
func (t VocabularyTerm) PreferredTerm() string {
	for _, lang := range DisplayLanguages {
		if v := t.DisplayTerms[lang]; v != "" {
			return v
		}
	}
	return ""
}

// PreferredDefinition mirrors PreferredTerm for definitions.
func (t VocabularyTerm) PreferredDefinition() string {
	for _, lang := range DisplayLanguages {
		if v := t.Definitions[lang]; v != "" {
			return v
		}
	}
	return ""
}

// IsHighRelevance reports whether the term belongs to the expanded-by-default tier.
func (t VocabularyTerm) IsHighRelevance() bool {
	return t.RelevanceScore >= HighRelevanceThreshold
}

// ElementResult holds the terms found for one framework element, sorted by score.
type ElementResult struct {
	ElementCode  string           `json:"elementCode"`
	ElementName  string           `json:"elementName,omitempty"`
	OriginalText string           `json:"originalText"`
	Concepts     []string         `json:"concepts,omitempty"`
	Terms        []VocabularyTerm `json:"terms"`
}

// PipelineResult is the full response of one resolution request.
type PipelineResult struct {
	Results        []ElementResult  `json:"results"`
	AllUniqueTerms []VocabularyTerm `json:"allUniqueTerms"`
	ProcessTimeMs  int64            `json:"processTimeMs"`
	Debug          *DebugInfo       `json:"debug,omitempty"`
}
