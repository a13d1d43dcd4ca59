// internal/workers/vocabulary/resolve-terms/aggregate_test.go
package resolveterms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/models"
)

func sampleResults() []models.ElementResult {
	return []models.ElementResult{
		{
			ElementCode:  "P",
			OriginalText: "obese adults",
			Concepts:     []string{"obesity", "adult"},
			Terms:        []models.VocabularyTerm{term("A", 65), term("B", 95), term("A", 90), term("LOW", 49)},
		},
		{
			ElementCode:  "O",
			OriginalText: "weight loss",
			Terms:        []models.VocabularyTerm{term("C", 95), term("B", 50), term("D", 95)},
		},
	}
}

func TestAggregate_FirstSeen(t *testing.T) {
	results, unique := Aggregate(sampleResults(), config.DedupFirstSeen)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"B", "A"}, termIDs(results[0].Terms))
	assert.Equal(t, 65, results[0].Terms[1].RelevanceScore, "first instance of A kept")
	assert.Equal(t, []string{"C", "D", "B"}, termIDs(results[1].Terms))

	assert.Equal(t, []string{"B", "C", "D", "A"}, termIDs(unique))
	assert.Equal(t, 95, unique[0].RelevanceScore, "B from P seen before B from O")
}

func TestAggregate_MaxScore(t *testing.T) {
	results, unique := Aggregate(sampleResults(), config.DedupMaxScore)

	assert.Equal(t, []string{"B", "A"}, termIDs(results[0].Terms))
	assert.Equal(t, 90, results[0].Terms[1].RelevanceScore)
	assert.Equal(t, []string{"B", "C", "D", "A"}, termIDs(unique))
	assert.Equal(t, 90, unique[3].RelevanceScore)
}

func TestAggregate_IsIdempotent(t *testing.T) {
	for _, policy := range []string{config.DedupFirstSeen, config.DedupMaxScore} {
		t.Run(policy, func(t *testing.T) {
			input := sampleResults()

			r1, u1 := Aggregate(input, policy)
			r2, u2 := Aggregate(input, policy)
			first, err := json.Marshal(models.PipelineResult{Results: r1, AllUniqueTerms: u1})
			require.NoError(t, err)
			second, err := json.Marshal(models.PipelineResult{Results: r2, AllUniqueTerms: u2})
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))

			r3, u3 := Aggregate(r1, policy)
			assert.Equal(t, r1, r3, "aggregating an aggregate changes nothing")
			assert.Equal(t, u1, u3)

			assert.Equal(t, sampleResults(), input, "input untouched")
		})
	}
}

func TestAggregate_Empty(t *testing.T) {
	results, unique := Aggregate(nil, config.DedupFirstSeen)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.NotNil(t, unique)
	assert.Empty(t, unique)
}
