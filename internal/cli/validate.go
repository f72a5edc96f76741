package cli

import (
	"fmt"

	"github.com/replyflow/core/internal/core/flow"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.json|->",
		Short: "Check a flow graph for structural errors and cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd, args[0])
			if err != nil {
				return err
			}
			if err := flow.Validate(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
			return nil
		},
	}
}

func loadGraph(cmd *cobra.Command, path string) (*flow.Graph, error) {
	b, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return flow.Deserialize(b)
}
