// internal/workers/vocabulary/search-descriptors/handler.go
package searchdescriptors

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
	"vocabulary-workers/internal/common/validation"
	"vocabulary-workers/internal/common/vocabulary"
)

const (
	TaskType = "search-vocabulary-terms"
)

var ErrInvalidInput = stderrors.New("INVALID_INPUT_SHAPE")

// Handler looks up one term in one backend and language. Unlike the resolver it
// reports backend failures to the engine so the job can be retried.
type Handler struct {
	config       *Config
	backends     map[string]vocabulary.Client
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, backends []vocabulary.Client, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	byName := make(map[string]vocabulary.Client, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}
	return &Handler{
		config:       config,
		backends:     byName,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, []byte(job.Variables))
	if err != nil {
		stdErr := toStandardError(err)
		metrics.ObserveJob(TaskType, string(stdErr.Code), time.Since(startTime).Seconds())
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, raw []byte) (*Output, error) {
	input, err := h.parseInput(raw)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(raw []byte) (*Input, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	result, err := validation.ValidateSearchRequest(doc)
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

// Execute runs the lookup. The language defaults to the backend's first language.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	backend, ok := h.backends[input.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q is not enabled", ErrInvalidInput, input.Backend)
	}

	lang := strings.ToLower(strings.TrimSpace(input.Language))
	if lang == "" {
		if langs := backend.Languages(); len(langs) > 0 {
			lang = langs[0]
		}
	}

	res, err := backend.Search(ctx, strings.TrimSpace(input.Term), lang)
	if err != nil {
		return nil, &searchError{backend: backend.Name(), term: input.Term, err: vocabulary.ClassifyError(backend.Name(), err)}
	}

	terms := vocabulary.FilterIncluded(res.Terms)
	vocabulary.SortByScore(terms)

	h.logger.Info("vocabulary search completed", map[string]interface{}{
		"backend": backend.Name(),
		"lang":    lang,
		"method":  res.Method,
		"cached":  res.Cached,
		"terms":   len(terms),
	})

	return &Output{
		Terms:    terms,
		Backend:  backend.Name(),
		Language: lang,
		Method:   res.Method,
		Cached:   res.Cached,
	}, nil
}

// searchError keeps the backend and term next to a failed lookup.
type searchError struct {
	backend string
	term    string
	err     error
}

func (e *searchError) Error() string { return e.err.Error() }
func (e *searchError) Unwrap() error { return e.err }

func toStandardError(err error) *errors.StandardError {
	var se *searchError
	switch {
	case stderrors.Is(err, ErrInvalidInput):
		return errors.NewInvalidInputShapeError(err.Error())
	case stderrors.As(err, &se) && stderrors.Is(err, vocabulary.ErrSearchTimeout):
		stdErr := errors.NewVocabularyTimeoutError(se.backend)
		stdErr.Details = err.Error()
		return stdErr
	case stderrors.As(err, &se):
		return errors.NewVocabularySearchFailedError(se.backend, se.term, se.err)
	default:
		return errors.Normalize(err)
	}
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
