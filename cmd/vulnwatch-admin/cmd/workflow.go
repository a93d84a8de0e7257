package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/api/pkg/domain/workflow"
)

var flagWorkflowConfig string

func init() {
	workflowCmd.PersistentFlags().StringVar(&flagWorkflowConfig, "config", "", "Workflow configuration YAML (default: built-in transition set)")

	workflowCmd.AddCommand(workflowGraphCmd)
	workflowCmd.AddCommand(workflowCheckCmd)
}

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect the finding workflow configuration",
}

var workflowGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the transition graph with role gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveWorkflowConfig()
		if err != nil {
			return err
		}

		edges := make([]workflow.Edge, len(cfg.Edges))
		copy(edges, cfg.Edges)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].From != edges[j].From {
				return edges[i].From < edges[j].From
			}
			return edges[i].To < edges[j].To
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FROM\tTO\tREQUIRED ROLE")
		for _, e := range edges {
			role := string(e.RequiredRole)
			if role == "" {
				role = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.From, e.To, role)
		}
		w.Flush()

		fmt.Printf("\n%d transitions\n", len(edges))
		return nil
	},
}

var workflowCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a workflow configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagWorkflowConfig == "" {
			return fmt.Errorf("--config is required")
		}

		cfg, err := workflow.LoadConfig(flagWorkflowConfig)
		if err != nil {
			return err
		}

		fmt.Printf("%s: valid (%d edges, %d states)\n",
			flagWorkflowConfig, len(cfg.Edges), len(cfg.States))
		return nil
	},
}

func resolveWorkflowConfig() (*workflow.Config, error) {
	if flagWorkflowConfig == "" {
		return workflow.DefaultConfig(), nil
	}
	return workflow.LoadConfig(flagWorkflowConfig)
}
