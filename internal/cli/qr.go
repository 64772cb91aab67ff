package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

// NewExportQRCommand creates the export-qr command.
func NewExportQRCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-qr <checkout-id>",
		Short: "Encode a checkout as a QR payload",
		Long: `Encode a checkout for offline handoff. The printed payload is what
a QR code would carry; gallery images and field data are stripped to
fit camera capacity.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckout(rootOpts, cmd, args[0], func(ctx context.Context, st *store.Store, settings store.Settings, c *checkout.Checkout) error {
				payload, err := transport.EncodeQR(*c)
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("failed to encode checkout %d", c.ID), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), payload)
				return nil
			})
		},
	}
	return cmd
}

// NewImportQRCommand creates the import-qr command.
func NewImportQRCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-qr [payload]",
		Short: "Import a scanned QR payload",
		Long: `Merge a checkout received via QR scan into the local store. The
payload is taken from the argument, or from --file, or from stdin.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args, file)
			if err != nil {
				return err
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

			rec := reconcile.New(st, assign.New(st))
			res, err := rec.ImportQR(ctx, payload, settings)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to import payload", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(fmt.Sprintf("imported %d checkout(s)", res.Written))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "read the payload from a file instead of an argument")

	return cmd
}

func readPayload(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) == 1:
		return strings.TrimSpace(args[0]), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read payload file", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read payload from stdin", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}
