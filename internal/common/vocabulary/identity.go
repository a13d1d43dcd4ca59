package vocabulary

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTerm folds a concept for comparison: NFKC, lower case, single spaces.
func NormalizeTerm(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SyntheticID builds an identity for descriptors without a vocabulary id. The
// language is part of the id, so equal concepts found in different languages stay distinct.
func SyntheticID(backend, lang, concept string, ordinal int) string {
	return fmt.Sprintf("syn:%s:%s:%s:%d", backend, lang, NormalizeTerm(concept), ordinal)
}

// CacheKey is the cache key of one (backend, language, term) lookup.
func CacheKey(backend, lang, term string) string {
	return fmt.Sprintf("vocab:%s:%s:%s", backend, lang, NormalizeTerm(term))
}
