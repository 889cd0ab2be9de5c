package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Step is one atomic, ordered item within a plan.
//
// Within a plan, orders are a contiguous ascending sequence starting at 1;
// normalizeSteps enforces this regardless of the order values a model
// returns. Plans are replaced wholesale, never patched step by step.
type Step struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// normalizeSteps sorts steps by their original order, then renumbers them
// 1..N. The renumbering is authoritative; the original order values only
// determine the sort.
func normalizeSteps(steps []Step) []Step {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	for i := range steps {
		steps[i].Order = i + 1
	}
	return steps
}

// RenderPlan renders a plan as "{order}. {text}" lines joined by newline.
// This is the canonical textual form used for plan diffing and comparison
// prompts.
func RenderPlan(steps []Step) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s", s.Order, s.Text)
	}
	return strings.Join(lines, "\n")
}
