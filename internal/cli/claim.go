package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/store"
)

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <checkout-id>",
		Short: "Claim an available checkout for this device",
		Long: `Claim an available checkout. The claim is recorded locally and
queued for upload; the next sync cycle announces it to the team.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckout(rootOpts, cmd, args[0], func(ctx context.Context, st *store.Store, settings store.Settings, c *checkout.Checkout) error {
				if err := c.Claim(settings.Name, time.Now().UnixMilli()); err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("cannot claim checkout %d", c.ID), err)
				}
				if err := st.WriteClaim(ctx, *c); err != nil {
					return WrapExitError(ExitFailure, "failed to record claim", err)
				}
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(fmt.Sprintf("claimed checkout %d (team %d) as %q", c.ID, c.Team.Number, settings.Name))
			})
		},
	}
	return cmd
}

// withCheckout opens the store, resolves the checkout by ID under its
// per-record lock, and runs fn.
func withCheckout(rootOpts *RootOptions, cmd *cobra.Command, arg string, fn func(context.Context, *store.Store, store.Settings, *checkout.Checkout) error) error {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid checkout id %q", arg), err)
	}

	st, err := store.Open(rootOpts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	settings, _, err := st.LoadSettings(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load settings", err)
	}
	if settings.Name == "" {
		return NewExitError(ExitCommandError, "device name is not configured; set device_name in the agent config")
	}

	unlock := st.Lock(id)
	defer unlock()

	c, err := st.Get(ctx, store.Checkouts, id)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("checkout %d not found", id), err)
	}
	return fn(ctx, st, settings, &c)
}
