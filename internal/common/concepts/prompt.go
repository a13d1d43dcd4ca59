package concepts

import (
	"encoding/json"
	"fmt"
	"strings"

	"vocabulary-workers/internal/common/frameworks"
)

const systemPromptTemplate = `You extract search concepts for health-science literature searches.
The research question is structured with the %s framework.

Each element code is a distinct, non-overlapping category:
%s
Rules:
1. Respect the meaning of each code exactly as listed above. Compound codes are one category, never a combination of single-letter codes.
2. Decompose compound phrases into atomic concepts.
3. Rewrite modern or technical phrases as terms plausible in a controlled vocabulary such as MeSH or DeCS (for example "mobile app scheduling" becomes "mobile applications", "appointments and schedules").
4. Write every concept in English, even when the input is in Portuguese or Spanish.
5. Return between %d and %d concepts for every code, and exactly one array per input code.

Respond with a single JSON object mapping each code to an array of strings, for example {"P": ["concept", "..."]}. Do not add commentary.`

// buildSystemPrompt describes the slots of the requested codes in slot order.
func buildSystemPrompt(reg *frameworks.Registry, framework string, codes []string) string {
	name := strings.TrimSpace(framework)
	schema, known := frameworks.Schema{}, false
	if reg != nil {
		schema, known = reg.Lookup(framework)
	}
	if known {
		name = schema.Name()
	}

	var slots strings.Builder
	for _, code := range codes {
		label := code
		if known {
			if el := schema.ElementName(code); el != "" {
				label = el
			}
		}
		fmt.Fprintf(&slots, "- %s: %s\n", code, label)
	}

	return fmt.Sprintf(systemPromptTemplate, name, slots.String(), MinConcepts, MaxConcepts)
}

// buildUserPrompt carries the question and the element texts as JSON.
func buildUserPrompt(req Request, codes []string) string {
	ordered := make([]struct {
		Code string `json:"code"`
		Text string `json:"text"`
	}, 0, len(codes))
	for _, code := range codes {
		ordered = append(ordered, struct {
			Code string `json:"code"`
			Text string `json:"text"`
		}{code, req.Elements[code]})
	}
	elements, _ := json.MarshalIndent(ordered, "", "  ")

	var b strings.Builder
	if q := strings.TrimSpace(req.FullQuestion); q != "" {
		fmt.Fprintf(&b, "Research question: %s\n\n", q)
	}
	fmt.Fprintf(&b, "Elements:\n%s\n", elements)
	return b.String()
}
