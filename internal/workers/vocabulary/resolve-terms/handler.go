// internal/workers/vocabulary/resolve-terms/handler.go
package resolveterms

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vocabulary-workers/internal/common/errors"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/metrics"
)

const (
	TaskType = "resolve-vocabulary-terms"
)

type Handler struct {
	config       *Config
	pipeline     *Pipeline
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, pipeline *Pipeline, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		pipeline:     pipeline,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, []byte(job.Variables))
	if err != nil {
		stdErr := toStandardError(err)
		metrics.ObserveJob(TaskType, string(stdErr.Code), time.Since(startTime).Seconds())
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", time.Since(startTime).Seconds())
}

// Execute decodes raw job variables or a REST body and resolves them.
func (h *Handler) Execute(ctx context.Context, raw []byte) (*Output, error) {
	input, err := DecodeInput(raw)
	if err != nil {
		return nil, err
	}
	return h.pipeline.Resolve(ctx, input)
}

func toStandardError(err error) *errors.StandardError {
	if stderrors.Is(err, ErrInvalidInput) {
		return errors.NewInvalidInputShapeError(err.Error())
	}
	return errors.Normalize(err)
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

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
