package vocabulary

import (
	"math"
	"sort"

	"vocabulary-workers/internal/models"
)

const (
	meshTopScore     = 95.0
	meshStep         = 0.3
	decsTopScore     = 95.0
	decsBooleanScore = 90.0
	decsStep         = 2.0
)

// positionScore is round(top - step*index) clamped to 0..100.
func positionScore(top, step float64, index int) int {
	s := int(math.Round(top - step*float64(index)))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// MeSHScore scores the k-th id returned by esearch (0-indexed).
func MeSHScore(k int) int {
	return positionScore(meshTopScore, meshStep, k)
}

// DeCSScore scores the i-th descriptor. Boolean fallback results start 5 points lower.
func DeCSScore(i int, boolean bool) int {
	if boolean {
		return positionScore(decsBooleanScore, decsStep, i)
	}
	return positionScore(decsTopScore, decsStep, i)
}

// Included reports whether a term passes the inclusion threshold.
func Included(t models.VocabularyTerm) bool {
	return t.RelevanceScore >= models.InclusionThreshold
}

// FilterIncluded returns the terms at or above the inclusion threshold, order preserved.
func FilterIncluded(terms []models.VocabularyTerm) []models.VocabularyTerm {
	out := make([]models.VocabularyTerm, 0, len(terms))
	for _, t := range terms {
		if Included(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortByScore sorts descending by score. Equal scores keep their insertion order.
func SortByScore(terms []models.VocabularyTerm) {
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].RelevanceScore > terms[j].RelevanceScore
	})
}
