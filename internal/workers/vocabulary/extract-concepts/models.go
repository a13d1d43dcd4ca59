// internal/workers/vocabulary/extract-concepts/models.go
package extractconcepts

type Input struct {
	FrameworkElements map[string]string `json:"frameworkElements"`
	FullQuestion      string            `json:"fullQuestion"`
	FrameworkType     string            `json:"frameworkType"`
}

type Output struct {
	Concepts         map[string][]string `json:"concepts"`
	ExtractionPath   string              `json:"extractionPath"`
	FallbackElements []string            `json:"fallbackElements"`
	DroppedElements  []string            `json:"droppedElements"`
}
