// internal/workers/vocabulary/format-terms/handler.go
package formatterms

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vocabulary-workers/internal/common/errors"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
	"vocabulary-workers/internal/models"
)

const (
	TaskType = "format-vocabulary-terms"
)

var ErrInvalidInput = stderrors.New("INVALID_INPUT_SHAPE")

const definitionSeparator = " — "

type Handler struct {
	config       *Config
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
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
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.AllUniqueTerms == nil {
		return nil, fmt.Errorf("%w: allUniqueTerms is required", ErrInvalidInput)
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	terms := input.AllUniqueTerms
	if input.HighRelevanceOnly {
		terms = highRelevance(terms)
	}

	text := FormatTerms(input.Results, terms)
	count := 0
	if text != "" {
		count = strings.Count(text, "\n") + 1
	}

	h.logger.Debug("terms formatted", map[string]interface{}{
		"lines":             count,
		"highRelevanceOnly": input.HighRelevanceOnly,
	})

	return &Output{FormattedTerms: text, Count: count}
}

// FormatTerms renders allUniqueTerms one per line as "<element>: <term>", with
// definitionSeparator and the definition appended when one exists. Results are
// walked in element order so each term is labelled with the first element that
// produced it. Terms missing from every element are appended unlabelled.
func FormatTerms(results []models.ElementResult, allUniqueTerms []models.VocabularyTerm) string {
	unique := make(map[string]models.VocabularyTerm, len(allUniqueTerms))
	for _, t := range allUniqueTerms {
		if _, ok := unique[t.ID]; !ok {
			unique[t.ID] = t
		}
	}

	emitted := make(map[string]bool, len(unique))
	lines := make([]string, 0, len(unique))

	for _, r := range results {
		label := r.ElementName
		if label == "" {
			label = r.ElementCode
		}
		for _, t := range r.Terms {
			canonical, ok := unique[t.ID]
			if !ok || emitted[t.ID] {
				continue
			}
			emitted[t.ID] = true
			lines = append(lines, label+": "+formatTerm(canonical))
		}
	}

	for _, t := range allUniqueTerms {
		if emitted[t.ID] {
			continue
		}
		emitted[t.ID] = true
		lines = append(lines, formatTerm(t))
	}

	return strings.Join(lines, "\n")
}

func formatTerm(t models.VocabularyTerm) string {
	name := t.PreferredTerm()
	if name == "" {
		name = t.ID
	}
	if def := strings.TrimSpace(t.PreferredDefinition()); def != "" {
		return name + definitionSeparator + def
	}
	return name
}

func highRelevance(terms []models.VocabularyTerm) []models.VocabularyTerm {
	out := make([]models.VocabularyTerm, 0, len(terms))
	for _, t := range terms {
		if t.IsHighRelevance() {
			out = append(out, t)
		}
	}
	return out
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
