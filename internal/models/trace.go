// internal/models/trace.go
package models

import (
	"sync"
	"time"
)

// TraceEntry records one upstream call or pipeline stage.
type TraceEntry struct {
	Stage       string `json:"stage"`
	Backend     string `json:"backend,omitempty"`
	ElementCode string `json:"elementCode,omitempty"`
	Concept     string `json:"concept,omitempty"`
	Language    string `json:"language,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Method      string `json:"method,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`
	ResultCount int    `json:"resultCount"`
	DurationMs  int64  `json:"durationMs"`
	Cached      bool   `json:"cached,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DebugInfo is the diagnostic block attached to non-production responses.
// Consumers must not rely on it for correctness.
type DebugInfo struct {
	RequestID         string              `json:"requestId"`
	Framework         string              `json:"framework"`
	UnknownFramework  bool                `json:"unknownFramework,omitempty"`
	DroppedElements   []string            `json:"droppedElements,omitempty"`
	ExtractionPath    string              `json:"extractionPath"`
	FallbackElements  []string            `json:"fallbackElements,omitempty"`
	ExtractedConcepts map[string][]string `json:"extractedConcepts,omitempty"`
	Partial           bool                `json:"partial,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
	Calls             []TraceEntry        `json:"calls"`
}

// Trace accumulates debug data for a single request. It is safe for concurrent use.
type Trace struct {
	mu   sync.Mutex
	info DebugInfo
}

func NewTrace(requestID, framework string) *Trace {
	return &Trace{info: DebugInfo{RequestID: requestID, Framework: framework, Calls: []TraceEntry{}}}
}

func (t *Trace) Record(entry TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info.Calls = append(t.info.Calls, entry)
}

func (t *Trace) Warn(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info.Warnings = append(t.info.Warnings, msg)
}

// Update applies fn to the debug info under the trace lock.
func (t *Trace) Update(fn func(*DebugInfo)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.info)
}

// Snapshot returns a copy of the collected debug info.
func (t *Trace) Snapshot() *DebugInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.info
	out.Calls = append([]TraceEntry(nil), t.info.Calls...)
	out.Warnings = append([]string(nil), t.info.Warnings...)
	out.DroppedElements = append([]string(nil), t.info.DroppedElements...)
	out.FallbackElements = append([]string(nil), t.info.FallbackElements...)
	if t.info.ExtractedConcepts != nil {
		out.ExtractedConcepts = make(map[string][]string, len(t.info.ExtractedConcepts))
		for k, v := range t.info.ExtractedConcepts {
			out.ExtractedConcepts[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// Elapsed is a small helper for DurationMs fields.
func Elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
