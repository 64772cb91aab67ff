package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/store"
)

// StatusData is the status command's output payload.
type StatusData struct {
	Device      string `json:"device"`
	Event       string `json:"event"`
	Checkouts   int    `json:"checkouts"`
	MyCheckouts int    `json:"my_checkouts"`
	Pending     int    `json:"pending"`
	TeamVersion int64  `json:"team_version"`
	PeerSync    int64  `json:"last_peer_sync"`
}

func (d StatusData) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Device:       %s\n", orUnset(d.Device))
	fmt.Fprintf(&b, "Event:        %s\n", orUnset(d.Event))
	fmt.Fprintf(&b, "Checkouts:    %d\n", d.Checkouts)
	fmt.Fprintf(&b, "My checkouts: %d\n", d.MyCheckouts)
	fmt.Fprintf(&b, "Pending:      %d\n", d.Pending)
	fmt.Fprintf(&b, "Team version: %d", d.TeamVersion)
	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show local sync state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			cursor, err := st.LoadCursor(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load cursor", err)
			}

			data := StatusData{
				Device:      settings.Name,
				Event:       cursor.EventName,
				TeamVersion: cursor.TeamVersion,
				PeerSync:    cursor.LastPeerSync,
			}
			for _, c := range []struct {
				col store.Collection
				dst *int
			}{
				{store.Checkouts, &data.Checkouts},
				{store.MyCheckouts, &data.MyCheckouts},
				{store.Pending, &data.Pending},
			} {
				items, err := st.List(ctx, c.col)
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("failed to list %s", c.col), err)
				}
				*c.dst = len(items)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(data)
		},
	}
	return cmd
}
