// internal/workers/vocabulary/format-terms/handler_test.go
package formatterms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/models"
)

func vt(id, en, def string, score int) models.VocabularyTerm {
	t := models.VocabularyTerm{
		ID:             id,
		Source:         models.SourceMeSH,
		DisplayTerms:   map[string]string{"en": en},
		RelevanceScore: score,
	}
	if def != "" {
		t.Definitions = map[string]string{"en": def}
	}
	return t
}

func TestFormatTerms(t *testing.T) {
	obesity := vt("D009765", "Obesity", "A status with body weight that is grossly above the acceptable or desirable weight.", 95)
	adult := vt("D000328", "Adult", "", 95)
	diet := vt("D034861", "Diet, Carbohydrate-Restricted", "", 92)
	orphan := vt("D015430", "Weight Gain", "", 60)

	results := []models.ElementResult{
		{ElementCode: "P", ElementName: "Population", Terms: []models.VocabularyTerm{obesity, adult}},
		{ElementCode: "I", Terms: []models.VocabularyTerm{diet, obesity}},
	}

	out := FormatTerms(results, []models.VocabularyTerm{obesity, adult, diet, orphan})

	want := "Population: Obesity — A status with body weight that is grossly above the acceptable or desirable weight.\n" +
		"Population: Adult\n" +
		"I: Diet, Carbohydrate-Restricted\n" +
		"Weight Gain"
	assert.Equal(t, want, out)
}

func TestFormatTerms_LanguageFallback(t *testing.T) {
	term := models.VocabularyTerm{
		ID:           "3917",
		Source:       models.SourceDeCS,
		DisplayTerms: map[string]string{"es": "Diabetes Mellitus", "pt": "Diabetes Melito"},
		Definitions:  map[string]string{"es": "Grupo heterogéneo de trastornos."},
	}
	out := FormatTerms([]models.ElementResult{{ElementCode: "P", ElementName: "Population", Terms: []models.VocabularyTerm{term}}},
		[]models.VocabularyTerm{term})
	assert.Equal(t, "Population: Diabetes Melito — Grupo heterogéneo de trastornos.", out)
}

func TestFormatTerms_Empty(t *testing.T) {
	assert.Equal(t, "", FormatTerms(nil, nil))
	assert.Equal(t, "", FormatTerms([]models.ElementResult{{ElementCode: "P"}}, []models.VocabularyTerm{}))
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	high := vt("D009765", "Obesity", "", 95)
	low := vt("D015430", "Weight Gain", "", 60)
	results := []models.ElementResult{{ElementCode: "O", ElementName: "Outcome", Terms: []models.VocabularyTerm{high, low}}}

	all := h.Execute(context.Background(), &Input{Results: results, AllUniqueTerms: []models.VocabularyTerm{high, low}})
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, "Outcome: Obesity\nOutcome: Weight Gain", all.FormattedTerms)

	tier := h.Execute(context.Background(), &Input{Results: results, AllUniqueTerms: []models.VocabularyTerm{high, low}, HighRelevanceOnly: true})
	assert.Equal(t, 1, tier.Count)
	assert.Equal(t, "Outcome: Obesity", tier.FormattedTerms)

	none := h.Execute(context.Background(), &Input{AllUniqueTerms: []models.VocabularyTerm{}})
	assert.Equal(t, 0, none.Count)
}

func TestParseInput(t *testing.T) {
	in, err := parseInput([]byte(`{"results":[],"allUniqueTerms":[{"id":"D1","relevanceScore":95}],"processTimeMs":12}`))
	require.NoError(t, err)
	assert.Len(t, in.AllUniqueTerms, 1)

	_, err = parseInput([]byte(`{"results":[]}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = parseInput([]byte(`[`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
