// internal/workers/vocabulary/extract-concepts/handler.go
package extractconcepts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vocabulary-workers/internal/common/concepts"
	"vocabulary-workers/internal/common/errors"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
	"vocabulary-workers/internal/common/validation"
)

const (
	TaskType = "extract-search-concepts"
)

var ErrInvalidInput = stderrors.New("INVALID_INPUT_SHAPE")

// Handler exposes concept extraction as its own job so a process can inspect or
// edit concepts before searching.
type Handler struct {
	config       *Config
	extractor    *concepts.FallbackExtractor
	registry     *frameworks.Registry
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, extractor *concepts.FallbackExtractor, registry *frameworks.Registry, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	if registry == nil {
		registry = frameworks.Default()
	}
	return &Handler{
		config:       config,
		extractor:    extractor,
		registry:     registry,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput([]byte(job.Variables))
	if err != nil {
		metrics.ObserveJob(TaskType, string(errors.ErrCodeInvalidInputShape), time.Since(startTime).Seconds())
		h.errorHandler.HandleJobError(context.Background(), client, job, errors.NewInvalidInputShapeError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output := h.Execute(ctx, input)
	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", time.Since(startTime).Seconds())
}

func parseInput(raw []byte) (*Input, error) {
	result, err := validation.ValidateJSON(validation.ResolveRequestLoader(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &input, nil
}

// Execute never fails: the fallback extractor always yields concepts.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	elements, dropped, err := h.registry.ValidElements(input.FrameworkType, input.FrameworkElements)
	if err != nil {
		h.logger.Warn("unknown framework, extracting for every element", map[string]interface{}{
			"framework": input.FrameworkType,
		})
	}
	for code, text := range elements {
		if strings.TrimSpace(text) == "" {
			delete(elements, code)
			dropped = append(dropped, code)
		}
	}
	sort.Strings(dropped)

	extracted, report := h.extractor.ExtractWithReport(ctx, concepts.Request{
		Elements:     elements,
		FullQuestion: input.FullQuestion,
		Framework:    input.FrameworkType,
	})

	h.logger.Info("concepts extracted", map[string]interface{}{
		"elements": len(extracted),
		"path":     report.Path,
		"fallback": report.FallbackCodes,
	})

	return &Output{
		Concepts:         extracted,
		ExtractionPath:   report.Path,
		FallbackElements: nonNil(report.FallbackCodes),
		DroppedElements:  nonNil(dropped),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
