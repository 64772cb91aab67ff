package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/hub"
)

// HubOptions holds flags for the hub command.
type HubOptions struct {
	*RootOptions
	Listen   string
	TeamCode string
}

// NewHubCommand creates the hub command.
func NewHubCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HubOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Serve the team hub",
		Long: `Serve the team-side sync endpoint that scouting devices push to
and pull from.

Example:
  robluscouter hub --db ./hub.db --listen :9527 --team-code 2708-secret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := hub.OpenStore(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open hub database", err)
			}
			slog.Info("hub database ready", "path", opts.Database)

			srv := hub.NewServer(st, opts.TeamCode)
			if err := srv.Run(opts.Listen); err != nil {
				return WrapExitError(ExitFailure, "hub server error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", ":9527", "listen address")
	cmd.Flags().StringVar(&opts.TeamCode, "team-code", "", "shared team code (required)")
	_ = cmd.MarkFlagRequired("team-code")

	return cmd
}
