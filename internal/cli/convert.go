package cli

import (
	"encoding/json"
	"fmt"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between flat automations and flow graphs",
	}
	cmd.AddCommand(newToGraphCmd(), newFromGraphCmd())
	return cmd
}

func newToGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "to-graph <automation.json|->",
		Short: "Lay out a flat automation as a flow graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAutomation(cmd, args[0])
			if err != nil {
				return err
			}
			automation.Normalize(&a)
			if err := automation.Validate(a); err != nil {
				return err
			}
			b, err := flow.Serialize(automation.ToGraph(a))
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), b)
		},
	}
}

func newFromGraphCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "from-graph <graph.json|->",
		Short: "Merge a flow graph into a flat automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd, args[0])
			if err != nil {
				return err
			}
			base := automation.Automation{Channel: automation.ChannelDM, Active: true}
			if basePath != "" {
				if base, err = loadAutomation(cmd, basePath); err != nil {
					return err
				}
			}
			a, diags := automation.FromGraph(g, base)
			for _, d := range diags {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", d.String())
			}
			return writeJSON(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "automation JSON to merge into")
	return cmd
}

func loadAutomation(cmd *cobra.Command, path string) (automation.Automation, error) {
	var a automation.Automation
	b, err := readInput(cmd, path)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("decode automation: %w", err)
	}
	return a, nil
}
