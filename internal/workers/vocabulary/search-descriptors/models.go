// internal/workers/vocabulary/search-descriptors/models.go
package searchdescriptors

import "vocabulary-workers/internal/models"

type Input struct {
	Term     string `json:"term"`
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

type Output struct {
	Terms    []models.VocabularyTerm `json:"terms"`
	Backend  string                  `json:"backend"`
	Language string                  `json:"language"`
	Method   string                  `json:"method"`
	Cached   bool                    `json:"cached"`
}
