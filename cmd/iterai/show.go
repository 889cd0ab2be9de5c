package main

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iterai/iterai-go/dag"
)

func newShowCmd() *cobra.Command {
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "show [node-id]",
		Short: "Show the stored graph, or one node in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			metrics, _ := newMetrics()
			engine, cfg, err := newEngine(logger, metrics)
			if err != nil {
				return err
			}
			defer func() {
				_ = engine.Close()
			}()

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid node id %q: %w", args[0], err)
				}
				node, err := engine.Graph().Get(id)
				if err != nil {
					return err
				}
				printNodeDetail(node, cfg, showDiff)
				return nil
			}

			nodes := engine.Graph().Nodes()
			sort.Slice(nodes, func(i, j int) bool {
				return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
			})

			if len(nodes) == 0 {
				fmt.Println("Graph is empty.")
				return nil
			}
			for _, n := range nodes {
				score := "unscored"
				if n.Score != nil {
					score = fmt.Sprintf("%.2f", *n.Score)
				}
				fmt.Printf("%s  %-9s  parents=%d  score=%s  %s\n",
					n.ID, n.Type, len(n.ParentIDs), score, truncate(n.UserPrompt, 60))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDiff, "diff", false, "include the node's diff against its parents")
	return cmd
}

func printNodeDetail(n *dag.Node, cfg *dag.Config, showDiff bool) {
	fmt.Printf("%s %s\n", headerStyle.Render("Node"), n.ID)
	fmt.Printf("Type: %s\n", n.Type)
	fmt.Printf("Model: %s\n", n.Model)
	fmt.Printf("Created: %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("User prompt: %s\n", n.UserPrompt)
	if n.Score != nil {
		fmt.Printf("Score: %s\n", scoreStyle.Render(fmt.Sprintf("%.2f", *n.Score)))
	}
	if len(n.ParentIDs) > 0 {
		fmt.Println("Parents:")
		for _, pid := range n.ParentIDs {
			fmt.Printf("  %s\n", pid)
		}
	}
	if len(n.Children) > 0 {
		fmt.Println("Children:")
		for _, cid := range n.Children {
			fmt.Printf("  %s\n", cid)
		}
	}
	if len(n.Plan) > 0 {
		fmt.Printf("Plan:\n%s\n", indent(dag.RenderPlan(n.Plan), "  "))
	}
	fmt.Printf("Output:\n%s\n", indent(n.Output, "  "))
	if showDiff && n.Diff != "" {
		fmt.Printf("Diff:\n%s\n", indent(colorizeDiff(n.Diff, cfg.GetBool("diff.colorize", true)), "  "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
