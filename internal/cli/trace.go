package cli

import (
	"fmt"
	"math/rand/v2"

	"github.com/replyflow/core/internal/core/flow"
	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	var text string
	var seed uint64
	cmd := &cobra.Command{
		Use:   "trace <graph.json|->",
		Short: "Show the nodes a message would visit in a flow graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd, args[0])
			if err != nil {
				return err
			}
			if err := flow.Validate(g); err != nil {
				return err
			}
			steps := flow.Walk(g, text, rand.New(rand.NewPCG(seed, seed)))
			out := cmd.OutOrStdout()
			for i, s := range steps {
				fmt.Fprintf(out, "%d. %s %s", i+1, s.Node.Kind, s.Node.ID)
				if s.Branch != "" {
					fmt.Fprintf(out, " -> %s", s.Branch)
				}
				if msg := nodeMessage(s.Node); msg != "" {
					fmt.Fprintf(out, "  %q", msg)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "incoming message text")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for random conditions")
	return cmd
}

func nodeMessage(n flow.Node) string {
	switch d := n.Data.(type) {
	case flow.AutoresponderData:
		return d.Message
	case flow.ButtonData:
		return d.Message
	case flow.InstagramMessageData:
		return d.Message
	case flow.ActionData:
		return d.ActionMessage
	}
	return ""
}
