package concepts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
)

// LLMExtractor asks a chat model for all elements of a request in one call.
// It never retries; the fallback decorator handles failures.
type LLMExtractor struct {
	model    llms.Model
	registry *frameworks.Registry
	timeout  time.Duration
	logger   logger.Logger
}

// NewOpenAIModel builds a langchaingo model for an OpenAI-compatible endpoint.
func NewOpenAIModel(cfg config.LLMConfig) (llms.Model, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	return openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
}

func NewLLMExtractor(model llms.Model, registry *frameworks.Registry, timeout time.Duration, log logger.Logger) *LLMExtractor {
	return &LLMExtractor{
		model:    model,
		registry: registry,
		timeout:  timeout,
		logger:   log.With(map[string]interface{}{"component": "llm-extractor"}),
	}
}

// Extract returns whatever valid concepts the model produced. Codes may be missing
// or short; callers enforce the 5..7 bound.
func (e *LLMExtractor) Extract(ctx context.Context, req Request) (map[string][]string, error) {
	codes := e.registry.OrderedCodes(req.Framework, req.Elements)
	if len(codes) == 0 {
		return map[string][]string{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(e.registry, req.Framework, codes))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(req, codes))},
		},
	}

	start := time.Now()
	response, err := e.model.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrExtractionFailed)
	}

	out, err := parseConcepts(response.Choices[0].Content, codes)
	if err != nil {
		e.logger.Warn("unparseable model response", map[string]interface{}{
			"error":    err.Error(),
			"response": response.Choices[0].Content,
		})
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	e.logger.Debug("llm extraction complete", map[string]interface{}{
		"framework":  req.Framework,
		"codes":      len(codes),
		"returned":   len(out),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out, nil
}

// parseConcepts decodes {"CODE": ["..."]} keeping only requested codes. A single
// wrapper object such as {"concepts": {...}} is unwrapped.
func parseConcepts(raw string, codes []string) (map[string][]string, error) {
	text := repairJSON(stripFences(raw))

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}

	if len(obj) == 1 {
		for k, v := range obj {
			if wanted[k] {
				break
			}
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(v, &inner); err == nil {
				obj = inner
			}
		}
	}

	out := make(map[string][]string, len(codes))
	for code, v := range obj {
		if !wanted[code] {
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err != nil {
			var single string
			if err := json.Unmarshal(v, &single); err != nil {
				continue
			}
			list = []string{single}
		}
		if cleaned := cleanConcepts(list); len(cleaned) > 0 {
			out[code] = cleaned
		}
	}
	return out, nil
}
