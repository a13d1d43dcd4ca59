package concepts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
)

// fakeModel implements llms.Model with a canned reply or error.
type fakeModel struct {
	reply    string
	err      error
	block    bool
	calls    int
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = messages
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

var scenarioA = Request{
	Framework:    "PICO",
	FullQuestion: "In obese adults, is a low-carb diet more effective than a low-fat diet for weight loss?",
	Elements: map[string]string{
		"P": "obese adults",
		"I": "low-carb diet",
		"C": "low-fat diet",
		"O": "weight loss",
	},
}

func newLLM(t *testing.T, m llms.Model, timeout time.Duration) *LLMExtractor {
	return NewLLMExtractor(m, frameworks.Default(), timeout, logger.NewTestLogger(t))
}

func assertBounded(t *testing.T, out map[string][]string, req Request) {
	t.Helper()
	require.Len(t, out, len(req.Elements))
	for code := range req.Elements {
		n := len(out[code])
		assert.GreaterOrEqual(t, n, MinConcepts, "code %s: %v", code, out[code])
		assert.LessOrEqual(t, n, MaxConcepts, "code %s: %v", code, out[code])
	}
}

func TestLLMExtractor_ParsesFencedRepairedJSON(t *testing.T) {
	model := &fakeModel{reply: "```json\n{P\": [\"obesity\", \"adult\", \"Obesity\"], I: [\"diet, carbohydrate-restricted\"],}\n```"}
	out, err := newLLM(t, model, time.Second).Extract(context.Background(), scenarioA)
	require.NoError(t, err)

	assert.Equal(t, []string{"obesity", "adult"}, out["P"])
	assert.Equal(t, []string{"diet, carbohydrate-restricted"}, out["I"])
	assert.NotContains(t, out, "C")
	assert.Equal(t, 1, model.calls)

	require.Len(t, model.messages, 2)
	system := model.messages[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "PICO")
	assert.Contains(t, system, "- P: Population")
	assert.Contains(t, system, "English")
}

func TestLLMExtractor_Errors(t *testing.T) {
	_, err := newLLM(t, &fakeModel{err: errors.New("401 unauthorized")}, time.Second).Extract(context.Background(), scenarioA)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	_, err = newLLM(t, &fakeModel{reply: "I cannot help with that."}, time.Second).Extract(context.Background(), scenarioA)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	_, err = newLLM(t, &fakeModel{block: true}, 30*time.Millisecond).Extract(context.Background(), scenarioA)
	assert.ErrorIs(t, err, ErrLLMTimeout)
}

func TestLLMExtractor_SPIDERPromptKeepsCompoundCode(t *testing.T) {
	model := &fakeModel{reply: `{"PI": ["patient experience", "perception", "attitude to health", "telemedicine", "qualitative research"]}`}
	req := Request{Framework: "SPIDER", Elements: map[string]string{"PI": "experiences of video consultations"}}

	out, err := newLLM(t, model, time.Second).Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, out["PI"], 5)

	system := model.messages[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "- PI: Phenomenon of Interest")
}

func TestLLMExtractor_UnwrapsSingleWrapper(t *testing.T) {
	out, err := parseConcepts(`{"concepts": {"P": ["a", "b"]}}`, []string{"P"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out["P"])
}

func TestFallback_ModelOfflineUsesHeuristicForAll(t *testing.T) {
	f := NewFallbackExtractor(newLLM(t, &fakeModel{err: errors.New("dial tcp: connection refused")}, time.Second), nil, logger.NewTestLogger(t))

	out, report := f.ExtractWithReport(context.Background(), scenarioA)
	assertBounded(t, out, scenarioA)

	assert.Equal(t, PathHeuristic, report.Path)
	assert.Equal(t, []string{"C", "I", "O", "P"}, report.FallbackCodes)
	assert.Error(t, report.Err)

	assert.Contains(t, out["P"], "obesity")
	assert.Contains(t, out["O"], "weight loss")
	assert.Equal(t, "obese adults", out["P"][0], "original text leads")
}

func TestFallback_TopsUpShortCodes(t *testing.T) {
	reply := `{"P": ["obesity", "adult", "overweight", "body mass index", "obesity, morbid", "young adult", "middle aged", "weight gain"], "I": ["low carbohydrate diet"]}`
	f := NewFallbackExtractor(newLLM(t, &fakeModel{reply: reply}, time.Second), NewHeuristicExtractor(), logger.NewNoOpLogger())

	out, report := f.ExtractWithReport(context.Background(), scenarioA)
	assertBounded(t, out, scenarioA)

	assert.Equal(t, PathMixed, report.Path)
	assert.Equal(t, []string{"C", "I", "O"}, report.FallbackCodes)
	assert.NoError(t, report.Err)

	assert.Len(t, out["P"], MaxConcepts, "truncated to the cap")
	assert.Equal(t, "obesity", out["P"][0])
	assert.Equal(t, "low carbohydrate diet", out["I"][0], "model concepts kept ahead of heuristic ones")
}

func TestFallback_AllFromModel(t *testing.T) {
	reply := `{"P":["a1","a2","a3","a4","a5"],"I":["b1","b2","b3","b4","b5","b6"],"C":["c1","c2","c3","c4","c5"],"O":["d1","d2","d3","d4","d5","d6","d7"]}`
	f := NewFallbackExtractor(newLLM(t, &fakeModel{reply: reply}, time.Second), nil, logger.NewNoOpLogger())

	out, report := f.ExtractWithReport(context.Background(), scenarioA)
	assertBounded(t, out, scenarioA)
	assert.Equal(t, PathLLM, report.Path)
	assert.Empty(t, report.FallbackCodes)
}

func TestFallback_NilPrimary(t *testing.T) {
	f := NewFallbackExtractor(nil, nil, logger.NewNoOpLogger())
	out, err := f.Extract(context.Background(), scenarioA)
	require.NoError(t, err)
	assertBounded(t, out, scenarioA)
}

func TestHeuristic_BoundsForArbitraryText(t *testing.T) {
	h := NewHeuristicExtractor()
	inputs := []string{
		"",
		"x",
		"obese adults",
		"Older adults with type 2 diabetes and hypertension using a smartphone app for online appointment scheduling in primary care",
		"crianças com asma",
		"ＯＢＥＳＥ　ADULTS",
		strings.Repeat("nurse led education ", 30),
	}
	for _, in := range inputs {
		got := h.ConceptsFor(in)
		assert.GreaterOrEqual(t, len(got), MinConcepts, "%q -> %v", in, got)
		assert.LessOrEqual(t, len(got), MaxConcepts, "%q -> %v", in, got)

		seen := map[string]bool{}
		for _, c := range got {
			key := strings.ToLower(c)
			assert.False(t, seen[key], "duplicate %q in %v", c, got)
			seen[key] = true
		}
	}
}

func TestHeuristic_Matching(t *testing.T) {
	h := NewHeuristicExtractor()

	assert.Contains(t, h.MatchedTerms("ONLINE support groups"), "telemedicine")
	assert.Contains(t, h.MatchedTerms("low-carb diet"), "diet, carbohydrate-restricted")
	assert.Contains(t, h.MatchedTerms("obese adults"), "adult", "plural matches")
	assert.Contains(t, h.MatchedTerms("ＯＢＥＳＥ adults"), "obesity", "NFKC folding")
	assert.NotContains(t, h.MatchedTerms("happy people"), "mobile applications", "app must match a whole word")
	assert.Empty(t, h.MatchedTerms("zzz qqq"))
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{P: ["a"]}`, `{"P": ["a"]}`},
		{`{P": ["a"], I": ["b"]}`, `{"P": ["a"], "I": ["b"]}`},
		{`{"P": ["a", "b",], }`, `{"P": ["a", "b"] }`},
		{`{"P": ["x, y: z"]}`, `{"P": ["x, y: z"]}`},
		{`{"P": [1, true]}`, `{"P": [1, true]}`},
	}
	for _, tt := range tests {
		got := repairJSON(tt.in)
		assert.Equal(t, tt.want, got)
		var v interface{}
		assert.NoError(t, json.Unmarshal([]byte(got), &v), got)
	}
}

func TestNewOpenAIModel_AgainstCompatibleEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		content := `{"O": ["weight loss", "weight reduction programs", "body weight", "diet, reducing", "treatment outcome"]}`
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	model, err := NewOpenAIModel(config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	req := Request{Framework: "PICO", Elements: map[string]string{"O": "weight loss"}}
	out, err := newLLM(t, model, 5*time.Second).Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "weight loss", out["O"][0])
	assert.Len(t, out["O"], 5)
}
