package dag

import (
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/iterai/iterai-go/dag/model"
)

const comparePlansPrompt = `Compare these two plans and explain the key differences in approach, ordering, and content.

Plan A:
%s

Plan B:
%s

Provide a concise analysis of what changed and why it might matter.`

// UnifiedDiff returns a unified diff of the line-level changes from a to b.
// The inputs are labeled generically as A and B. Equal inputs produce an
// empty string. The function is pure and deterministic.
func UnifiedDiff(a, b string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "A",
		ToFile:   "B",
		Context:  3,
	})
	if err != nil {
		// GetUnifiedDiffString only fails on writer errors, which cannot
		// happen with the internal buffer.
		return ""
	}
	return text
}

// ComparePlans diffs two plans textually: each plan is rendered as
// "{order}. {text}" lines and the renderings are diffed with UnifiedDiff.
func ComparePlans(a, b []Step) string {
	return UnifiedDiff(RenderPlan(a), RenderPlan(b))
}

// ComparePlansSemantic asks the generation backend for a free-text analysis
// of the differences between two plans. Unlike ComparePlans the result is
// not deterministic.
func ComparePlansSemantic(ctx context.Context, gen model.Generator, modelName string, a, b []Step) (string, error) {
	prompt := fmt.Sprintf(comparePlansPrompt, RenderPlan(a), RenderPlan(b))
	text, err := gen.Generate(ctx, modelName, prompt, "")
	if err != nil {
		return "", &GenerateError{Model: modelName, Op: "plan_compare", Err: err}
	}
	return text, nil
}
