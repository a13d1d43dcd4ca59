package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_ResolveRequest(t *testing.T) {
	tests := []struct {
		name      string
		doc       map[string]interface{}
		wantValid bool
		badField  string
	}{
		{
			name: "valid request",
			doc: map[string]interface{}{
				"frameworkType":     "PICO",
				"fullQuestion":      "Is a low-carb diet better than low-fat for obese adults?",
				"frameworkElements": map[string]interface{}{"P": "obese adults", "I": "low-carb diet"},
			},
			wantValid: true,
		},
		{
			name: "extra process variables tolerated",
			doc: map[string]interface{}{
				"frameworkType":     "SPIDER",
				"frameworkElements": map[string]interface{}{"PI": "experiences"},
				"processInstanceId": "abc",
			},
			wantValid: true,
		},
		{
			name:      "missing frameworkType",
			doc:       map[string]interface{}{"frameworkElements": map[string]interface{}{}},
			wantValid: false,
		},
		{
			name: "blank frameworkType",
			doc: map[string]interface{}{
				"frameworkType":     "   ",
				"frameworkElements": map[string]interface{}{},
			},
			wantValid: false,
			badField:  "frameworkType",
		},
		{
			name: "elements not an object",
			doc: map[string]interface{}{
				"frameworkType":     "PICO",
				"frameworkElements": []interface{}{"obese adults"},
			},
			wantValid: false,
			badField:  "frameworkElements",
		},
		{
			name: "element value not a string",
			doc: map[string]interface{}{
				"frameworkType":     "PICO",
				"frameworkElements": map[string]interface{}{"P": 42},
			},
			wantValid: false,
			badField:  "frameworkElements",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateDocument(ResolveRequestLoader(), tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
			if tt.badField != "" {
				assert.True(t, result.HasErrors(tt.badField), result.GetErrorMessages())
			}
		})
	}
}

func TestValidateJSON_Malformed(t *testing.T) {
	result, err := ValidateJSON(ResolveRequestLoader(), []byte(`{"frameworkType":`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "MALFORMED_JSON", result.Errors[0].Code)
}

func TestValidateSearchRequest(t *testing.T) {
	result, err := ValidateSearchRequest(map[string]interface{}{"term": "obesity", "backend": "umls"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("backend"))
}
