// internal/workers/vocabulary/resolve-terms/http.go
package resolveterms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"vocabulary-workers/internal/common/errors"
)

// Route is where the REST surface of the resolver is mounted.
const Route = "/api/v1/vocabulary/terms"

const maxBodyBytes = 1 << 20

// HTTPHandler serves POST Route. Backend outages still answer 200 with empty
// term lists; only a malformed request is rejected with 400.
type HTTPHandler struct {
	handler *Handler
}

func NewHTTPHandler(h *Handler) *HTTPHandler {
	return &HTTPHandler{handler: h}
}

func (s *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed",
		})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errors.NewInvalidInputShapeError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.handler.config.Timeout)
	defer cancel()

	output, err := s.handler.Execute(ctx, raw)
	if err != nil {
		stdErr := toStandardError(err)
		s.handler.logger.Warn("rejecting resolve request", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		writeJSON(w, http.StatusBadRequest, stdErr)
		return
	}

	writeJSON(w, http.StatusOK, output)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
