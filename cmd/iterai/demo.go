package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iterai/iterai-go/dag"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

func newDemoCmd() *cobra.Command {
	var (
		userPrompt   string
		systemPrompt string
		planCompare  string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the demonstration workflow: create, refine, synthesize, evaluate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userPrompt == "" {
				return fmt.Errorf("--user-prompt is required")
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			metrics, registry := newMetrics()
			engine, cfg, err := newEngine(logger, metrics)
			if err != nil {
				return err
			}
			defer func() {
				_ = engine.Close()
			}()

			if planCompare == "" {
				planCompare = cfg.GetString("diff.plan_comparison", "simple")
			}

			return runDemo(cmd.Context(), engine, cfg, logger, registry, userPrompt, systemPrompt, planCompare)
		},
	}

	cmd.Flags().StringVar(&userPrompt, "user-prompt", "", "initial prompt for content generation")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "system prompt (default from config)")
	cmd.Flags().StringVar(&planCompare, "plan-compare", "", "plan comparison mode: simple or semantic")
	return cmd
}

func runDemo(ctx context.Context, engine *dag.Engine, cfg *dag.Config, logger *zap.Logger, registry *prometheus.Registry, userPrompt, systemPrompt, planCompare string) error {
	logger.Info("starting demonstration workflow", zap.String("prompt", userPrompt))

	root, err := engine.CreateRoot(ctx, userPrompt, flagModel, systemPrompt)
	if err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	logger.Info("root node created",
		zap.String("node_id", root.ID.String()),
		zap.Int("plan_steps", len(root.Plan)))

	refined, err := engine.Refine(ctx, root, "Make this more concise and impactful.", flagModel, systemPrompt)
	if err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	logger.Info("refinement created", zap.String("node_id", refined.ID.String()))

	altRefined, err := engine.Refine(ctx, root, "Make this more detailed and technical.", flagModel, systemPrompt)
	if err != nil {
		return fmt.Errorf("alternative refine: %w", err)
	}
	logger.Info("alternative refinement created", zap.String("node_id", altRefined.ID.String()))

	var planDiff string
	if planCompare == "semantic" {
		compareModel := flagModel
		if compareModel == "" {
			compareModel = cfg.DefaultModel()
		}
		planDiff, err = refined.DiffPlanSemantic(ctx, engine.Graph().Generator(), compareModel, altRefined)
		if err != nil {
			return fmt.Errorf("compare plans: %w", err)
		}
	} else {
		planDiff = colorizeDiff(refined.DiffPlan(altRefined), cfg.GetBool("diff.colorize", true))
	}

	synthesized, err := engine.Synthesize(ctx, []*dag.Node{refined, altRefined},
		"Combine the clarity of the first with the depth of the second.", flagModel, systemPrompt)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	logger.Info("synthesis created", zap.String("node_id", synthesized.ID.String()))

	all := []*dag.Node{root, refined, altRefined, synthesized}
	if err := engine.EvaluateAll(ctx, all, ""); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	logger.Info("evaluation complete")

	fmt.Println(headerStyle.Render("WORKFLOW SUMMARY"))
	fmt.Printf("\nOriginal prompt: %s\n\n", userPrompt)
	printNode("Root", root, cfg)
	printNode("Refined", refined, cfg)
	printNode("Alternative", altRefined, cfg)
	fmt.Printf("Plan comparison (%s mode):\n%s\n\n", planCompare, planDiff)
	printNode("Synthesized", synthesized, cfg)

	if flagVerbose {
		printMetrics(logger, registry)
	}
	return nil
}

func printNode(label string, n *dag.Node, cfg *dag.Config) {
	fmt.Printf("%s (%s):\n", headerStyle.Render(label), n.ID)
	fmt.Printf("  Plan steps: %d\n", len(n.Plan))
	fmt.Printf("  Output: %s\n", n.Output)
	if n.Score != nil {
		fmt.Printf("  Score: %s\n", scoreStyle.Render(fmt.Sprintf("%.2f", *n.Score)))
	} else {
		fmt.Println("  Score: unscored")
	}
	if n.Diff != "" {
		fmt.Printf("  Diff:\n%s\n", indent(colorizeDiff(n.Diff, cfg.GetBool("diff.colorize", true)), "    "))
	}
	fmt.Println()
}

// colorizeDiff styles unified diff lines for terminal display.
func colorizeDiff(diff string, colorize bool) string {
	if !colorize || diff == "" {
		return diff
	}

	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = headerStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = addedStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removedStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func printMetrics(logger *zap.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				logger.Debug("metric", zap.String("name", mf.GetName()), zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				logger.Debug("metric", zap.String("name", mf.GetName()), zap.Float64("value", m.GetGauge().GetValue()))
			}
		}
	}
}
