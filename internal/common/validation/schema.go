package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ResolveRequestSchema is the accepted shape of a term resolution request. Extra
// properties are tolerated because Zeebe jobs carry unrelated process variables.
const ResolveRequestSchema = `{
  "type": "object",
  "required": ["frameworkElements", "frameworkType"],
  "properties": {
    "frameworkElements": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "frameworkType": {"type": "string", "pattern": "\\S"},
    "fullQuestion": {"type": "string"}
  }
}`

// SearchRequestSchema is the shape accepted by the single-term search job.
const SearchRequestSchema = `{
  "type": "object",
  "required": ["term", "backend"],
  "properties": {
    "term": {"type": "string", "pattern": "\\S"},
    "backend": {"type": "string", "enum": ["mesh", "decs"]},
    "language": {"type": "string"}
  }
}`

var (
	resolveRequestLoader = gojsonschema.NewStringLoader(ResolveRequestSchema)
	searchRequestLoader  = gojsonschema.NewStringLoader(SearchRequestSchema)
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateDocument validates a Go value (maps, slices, scalars) against a JSON schema loader.
func ValidateDocument(schema gojsonschema.JSONLoader, doc interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateSearchRequest checks the variables of a single-term search job.
func ValidateSearchRequest(doc interface{}) (*ValidationResult, error) {
	return ValidateDocument(searchRequestLoader, doc)
}

// ValidateJSON decodes raw JSON and validates it against schema. Malformed JSON is
// reported as an invalid result, not an error.
func ValidateJSON(schema gojsonschema.JSONLoader, raw []byte) (*ValidationResult, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "MALFORMED_JSON"}},
		}, nil
	}
	return ValidateDocument(schema, doc)
}

// ResolveRequestLoader exposes the compiled resolve request schema for ValidateJSON.
func ResolveRequestLoader() gojsonschema.JSONLoader {
	return resolveRequestLoader
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
