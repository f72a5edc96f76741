package cli

import (
	"encoding/json"
	"fmt"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/matching"
	"github.com/spf13/cobra"
)

func newMatchCmd() *cobra.Command {
	var ev matching.Event
	var eventType string
	cmd := &cobra.Command{
		Use:   "match <automations.json|->",
		Short: "Dry-run matching of one event against a list of automations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var autos []automation.Automation
			if err := json.Unmarshal(b, &autos); err != nil {
				return fmt.Errorf("decode automations: %w", err)
			}
			for i := range autos {
				automation.Normalize(&autos[i])
			}

			ev.Type = matching.EventType(eventType)
			if ev.Type != matching.EventComment && ev.Type != matching.EventDM {
				return fmt.Errorf("--type must be comment or dm")
			}
			a, err := matching.Match(ev, autos)
			if err != nil {
				return err
			}
			if a == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "matched %s (%s, %s)\n", a.ID, a.Channel, a.Scope)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", string(matching.EventComment), "event type: comment or dm")
	cmd.Flags().StringVar(&ev.Text, "text", "", "comment or message text")
	cmd.Flags().StringVar(&ev.PostID, "post", "", "post id of a comment")
	return cmd
}
