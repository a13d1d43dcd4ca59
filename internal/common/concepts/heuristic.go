package concepts

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// HeuristicExtractor is the offline extractor: original text first, then
// keyword-table terms, then generic padding up to MinConcepts, capped at MaxConcepts.
type HeuristicExtractor struct {
	rules   []compiledRule
	generic []string
}

type compiledRule struct {
	patterns [][]string
	terms    []string
}

func NewHeuristicExtractor() *HeuristicExtractor {
	rules := make([]compiledRule, 0, len(keywordTable))
	for _, r := range keywordTable {
		cr := compiledRule{terms: r.terms}
		for _, p := range r.patterns {
			cr.patterns = append(cr.patterns, tokenize(p))
		}
		rules = append(rules, cr)
	}
	return &HeuristicExtractor{rules: rules, generic: genericConcepts}
}

// Extract never fails.
func (h *HeuristicExtractor) Extract(_ context.Context, req Request) (map[string][]string, error) {
	out := make(map[string][]string, len(req.Elements))
	for code, text := range req.Elements {
		out[code] = h.ConceptsFor(text)
	}
	return out, nil
}

// ConceptsFor derives 5..7 concepts from one element text.
func (h *HeuristicExtractor) ConceptsFor(text string) []string {
	candidates := []string{text}
	candidates = append(candidates, h.MatchedTerms(text)...)

	concepts := cleanConcepts(candidates)
	for _, g := range h.generic {
		if len(concepts) >= MinConcepts {
			break
		}
		concepts = cleanConcepts(append(concepts, g))
	}
	return capConcepts(concepts)
}

// MatchedTerms returns the table terms whose patterns occur in text, in table order.
func (h *HeuristicExtractor) MatchedTerms(text string) []string {
	tokens := tokenize(text)
	var terms []string
	for _, r := range h.rules {
		for _, p := range r.patterns {
			if containsPhrase(tokens, p) {
				terms = append(terms, r.terms...)
				break
			}
		}
	}
	return terms
}

// tokenize folds with NFKC, lower-cases and splits on anything but letters and digits.
func tokenize(s string) []string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase matches phrase as consecutive whole tokens. The last token also
// matches a simple plural ("adults" for "adult").
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		ok := true
		for j, p := range phrase {
			tok := tokens[i+j]
			if tok == p {
				continue
			}
			if j == len(phrase)-1 && (tok == p+"s" || tok == p+"es") {
				continue
			}
			ok = false
			break
		}
		if ok {
			return true
		}
	}
	return false
}
