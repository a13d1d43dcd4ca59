// internal/workers/vocabulary/resolve-terms/models.go
package resolveterms

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vocabulary-workers/internal/common/validation"
	"vocabulary-workers/internal/models"
)

// ErrInvalidInput is the only error Resolve returns; everything else degrades the result.
var ErrInvalidInput = errors.New("INVALID_INPUT_SHAPE")

type Input = models.ResolveRequest

type Output = models.PipelineResult

// DecodeInput validates raw JSON against the request schema and decodes it.
func DecodeInput(raw []byte) (*Input, error) {
	result, err := validation.ValidateJSON(validation.ResolveRequestLoader(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(result.GetErrorMessages(), "; "))
	}

	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &in, nil
}

func checkInput(in *Input) error {
	switch {
	case in == nil:
		return fmt.Errorf("%w: empty request", ErrInvalidInput)
	case in.FrameworkElements == nil:
		return fmt.Errorf("%w: frameworkElements is required", ErrInvalidInput)
	case strings.TrimSpace(in.FrameworkType) == "":
		return fmt.Errorf("%w: frameworkType is required", ErrInvalidInput)
	}
	return nil
}
