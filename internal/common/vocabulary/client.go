// Package vocabulary defines the contract shared by the controlled-vocabulary
// backends (MeSH, DeCS) together with scoring, identity and caching helpers.
package vocabulary

import (
	"context"
	"errors"
	"fmt"

	"vocabulary-workers/internal/models"
)

var (
	// ErrSearchFailed wraps transport, status and decoding failures of a backend.
	ErrSearchFailed = errors.New("VOCABULARY_SEARCH_FAILED")
	// ErrSearchTimeout is returned when a backend call exceeds its timeout.
	ErrSearchTimeout = errors.New("VOCABULARY_TIMEOUT")
)

// Search methods reported in Result.Method.
const (
	MethodSummary = "esearch+esummary"
	MethodWords   = "search-by-words"
	MethodBoolean = "search-boolean"
	MethodCache   = "cache"
)

// Result is what one Search call produced. Calls is populated even when an
// error is returned so the caller can trace what was attempted.
type Result struct {
	Terms  []models.VocabularyTerm
	Calls  []models.TraceEntry
	Method string
	Cached bool
}

// Client is implemented by every vocabulary backend.
type Client interface {
	// Name is the backend identifier (models.SourceMeSH, models.SourceDeCS).
	Name() string
	// Languages lists the query languages the backend should be searched in.
	Languages() []string
	// Search looks up a single term in a single language.
	Search(ctx context.Context, term, lang string) (*Result, error)
}

// ClassifyError wraps err with ErrSearchTimeout for deadline and network timeouts
// and with ErrSearchFailed otherwise. Already classified errors pass through.
func ClassifyError(backend string, err error) error {
	if err == nil || errors.Is(err, ErrSearchFailed) || errors.Is(err, ErrSearchTimeout) {
		return err
	}
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrSearchTimeout, backend, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrSearchFailed, backend, err)
}
