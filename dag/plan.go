package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iterai/iterai-go/dag/model"
)

const planPrompt = `Before answering, create a concise structured plan for how you'll approach this task.

Task: %s

Requirements:
- Be brief and to-the-point
- Focus only on essential steps
- Avoid verbose explanations or justifications
- Provide only the plan, not the actual output`

const stepsPrompt = `
You are converting a free-form plan into structured steps.
Return STRICT JSON only, no code fences, no commentary, exactly this schema:
{"steps": [{"order": 1, "text": "..."}]}

Input plan:
%s
`

// GeneratePlan asks the backend for a free-form plan for the task described
// by userPrompt, without producing the final answer.
func GeneratePlan(ctx context.Context, gen model.Generator, modelName, userPrompt, systemPrompt string) (string, error) {
	text, err := gen.Generate(ctx, modelName, fmt.Sprintf(planPrompt, userPrompt), systemPrompt)
	if err != nil {
		return "", &GenerateError{Model: modelName, Op: "plan", Err: err}
	}
	return text, nil
}

// GenerateSteps converts a free-form plan into an ordered list of Steps.
//
// The backend is asked for strict JSON. When the payload parses, each item is
// coerced individually and bad items are discarded without failing the batch.
// When the payload does not parse at all, a line-based heuristic parser takes
// over. If both paths yield zero steps, a single fallback step is built from
// the plan text, so the result is never empty. Orders are renumbered 1..N.
//
// The boolean result reports whether the strict JSON path succeeded; a false
// value means the heuristic or fallback path produced the steps.
func GenerateSteps(ctx context.Context, gen model.Generator, modelName, planText, systemPrompt string) ([]Step, bool, error) {
	raw, err := gen.Generate(ctx, modelName, fmt.Sprintf(stepsPrompt, planText), systemPrompt)
	if err != nil {
		return nil, false, &GenerateError{Model: modelName, Op: "steps", Err: err}
	}

	text := stripCodeFences(raw)

	steps, parsed := parseSteps(text)
	if !parsed {
		steps = parseStepsHeuristic(text)
	}

	if len(steps) == 0 {
		fallback := strings.TrimSpace(planText)
		if fallback == "" {
			fallback = "Plan"
		}
		steps = []Step{{Order: 1, Text: fallback}}
	}

	return normalizeSteps(steps), parsed, nil
}

// stripCodeFences removes an enclosing ``` fence, including a language tag on
// the opening line, from a model response.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.Trim(s, "`")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return strings.TrimSpace(s)
}

// parseSteps attempts the strict JSON path. Items with an uncoercible order
// or a blank text are discarded individually. The boolean reports whether
// the payload itself was parseable; a parseable payload with zero usable
// items still counts as parsed.
func parseSteps(text string) ([]Step, bool) {
	var payload struct {
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}

	var steps []Step
	for _, item := range payload.Steps {
		var raw struct {
			Order interface{} `json:"order"`
			Text  string      `json:"text"`
		}
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		order, ok := coerceOrder(raw.Order)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(raw.Text)
		if trimmed == "" {
			continue
		}
		steps = append(steps, Step{Order: order, Text: trimmed})
	}
	return steps, true
}

// coerceOrder accepts an order given as a JSON number or as a string of
// digits; anything else marks the item as uncoercible.
func coerceOrder(v interface{}) (int, bool) {
	switch o := v.(type) {
	case float64:
		return int(o), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(o)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// stepSeparators are tried in order when stripping a leading enumerator from
// a plan line. Longer separators come first so "1. Foo" is not split at ".".
var stepSeparators = []string{". ", ") ", ".", ")", " - ", " -", "- ", "-"}

// parseStepsHeuristic parses plan lines of the form "<n><sep> <text>". Lines
// without a numeric enumerator get the next sequential order.
func parseStepsHeuristic(text string) []Step {
	var steps []Step
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		order := 0
		rest := ""
		numbered := false
		for _, sep := range stepSeparators {
			left, right, found := strings.Cut(line, sep)
			if !found {
				continue
			}
			if n, ok := parseDigits(strings.TrimSpace(left)); ok {
				order = n
				rest = strings.TrimSpace(right)
				numbered = true
				break
			}
		}
		if !numbered {
			order = len(steps) + 1
			rest = line
		}
		steps = append(steps, Step{Order: order, Text: rest})
	}
	return steps
}

// parseDigits parses a non-empty all-digit string.
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
