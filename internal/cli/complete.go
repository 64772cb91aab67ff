package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/store"
)

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <checkout-id>",
		Short: "Mark a checked-out checkout as completed",
		Long: `Mark data entry for a checkout as finished. The completed record
is queued for upload; after a successful push it leaves this device's
work list but stays in the local mirror as history.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckout(rootOpts, cmd, args[0], func(ctx context.Context, st *store.Store, settings store.Settings, c *checkout.Checkout) error {
				// Completed data only has somewhere to go with a team code;
				// refusing here beats queueing an upload that can never run.
				if settings.Code == "" {
					return NewExitError(ExitCommandError,
						"no team code configured; set team_code in the agent config")
				}
				if err := c.Complete(settings.Name, time.Now().UnixMilli()); err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("cannot complete checkout %d", c.ID), err)
				}
				if err := st.WriteClaim(ctx, *c); err != nil {
					return WrapExitError(ExitFailure, "failed to record completion", err)
				}
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(fmt.Sprintf("completed checkout %d (team %d)", c.ID, c.Team.Number))
			})
		},
	}
	return cmd
}
