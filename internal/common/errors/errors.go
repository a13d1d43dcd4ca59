// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Fatal: caller error, rejected immediately.
	ErrCodeInvalidInputShape ErrorCode = "INVALID_INPUT_SHAPE"

	// Non-fatal: absorbed by the pipeline and surfaced as reduced result quality.
	ErrCodeUnknownFramework        ErrorCode = "UNKNOWN_FRAMEWORK"
	ErrCodeConceptExtractionFailed ErrorCode = "CONCEPT_EXTRACTION_FAILED"
	ErrCodeVocabularySearchFailed  ErrorCode = "VOCABULARY_SEARCH_FAILED"
	ErrCodeAllBackendsUnavailable  ErrorCode = "ALL_BACKENDS_UNAVAILABLE"

	ErrCodeLLMTimeout        ErrorCode = "LLM_TIMEOUT"
	ErrCodeVocabularyTimeout ErrorCode = "VOCABULARY_TIMEOUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsFatal reports whether the error must be returned to the caller instead of absorbed.
func (e *StandardError) IsFatal() bool {
	return e.Code == ErrCodeInvalidInputShape
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidInputShapeError creates a non-retryable caller error.
func NewInvalidInputShapeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInputShape,
		Message:   "Malformed resolution request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownFrameworkError is informational; filtering degrades to pass-through.
func NewUnknownFrameworkError(framework string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownFramework,
		Message:   "Framework has no registered slot schema",
		Details:   fmt.Sprintf("framework: %s", framework),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConceptExtractionFailedError marks an LLM extraction failure that triggered the heuristic.
func NewConceptExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConceptExtractionFailed,
		Message:   "Concept extraction failed, heuristic fallback used",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVocabularySearchFailedError records a single failed concept lookup.
func NewVocabularySearchFailedError(backend, term string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVocabularySearchFailed,
		Message:   "Vocabulary search failed",
		Details:   fmt.Sprintf("backend: %s, term: %s, error: %s", backend, term, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"backend": backend, "term": term},
		Timestamp: time.Now().UTC(),
	}
}

// NewAllBackendsUnavailableError is attached to debug output when every lookup failed.
func NewAllBackendsUnavailableError(failures int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllBackendsUnavailable,
		Message:   "No vocabulary backend answered",
		Details:   fmt.Sprintf("failedCalls: %d", failures),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM concept extraction timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVocabularyTimeoutError creates a retryable timeout for a vocabulary backend.
func NewVocabularyTimeoutError(backend string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVocabularyTimeout,
		Message:   "Vocabulary service timeout",
		Details:   fmt.Sprintf("backend: %s", backend),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (same as internal).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInputShape:       "INVALID_INPUT_SHAPE",
	ErrCodeUnknownFramework:        "UNKNOWN_FRAMEWORK",
	ErrCodeConceptExtractionFailed: "CONCEPT_EXTRACTION_FAILED",
	ErrCodeVocabularySearchFailed:  "VOCABULARY_SEARCH_FAILED",
	ErrCodeAllBackendsUnavailable:  "ALL_BACKENDS_UNAVAILABLE",
	ErrCodeLLMTimeout:              "LLM_TIMEOUT",
	ErrCodeVocabularyTimeout:       "VOCABULARY_TIMEOUT",
}

// GetRetryCount returns the recommended retry count for a job failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeVocabularySearchFailed,
		ErrCodeAllBackendsUnavailable,
		ErrCodeConceptExtractionFailed:
		return 3

	case ErrCodeVocabularyTimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "FRAMEWORK"):
		return "FRAMEWORK"
	case strings.Contains(codeStr, "CONCEPT") || strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "VOCABULARY") || strings.Contains(codeStr, "BACKENDS"):
		return "VOCABULARY"
	default:
		return "OTHER"
	}
}
