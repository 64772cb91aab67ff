package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/syncer"
	"github.com/widavies/RobluScouter/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Peer      string
	ServePeer string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background sync agent",
		Long: `Run the periodic sync loop against the team hub.

The agent pings the hub, mirrors team metadata, uploads completed
scouting data, pulls new checkouts, and auto-assigns work for this
device's slot. With --peer it syncs against another device instead of
the hub; with --serve-peer it also answers sync requests from paired
devices.

Example:
  robluscouter run --db ./scouter.db --config ./agent.yaml
  robluscouter run --peer 10.0.0.7:9528 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Peer, "peer", "", "sync against a peer device at host:port instead of the hub")
	cmd.Flags().StringVar(&opts.ServePeer, "serve-peer", "", "listen address for answering peer sync requests (host:port)")

	return cmd
}

func runAgent(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := LoadAgentConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	interval, err := cfg.Interval(syncer.DefaultInterval)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	slog.Info("opening record store", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	settings, firstLaunch, err := st.LoadSettings(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	settings = cfg.Apply(settings)
	if err := st.SaveSettings(ctx, settings); err != nil {
		return WrapExitError(ExitCommandError, "failed to save settings", err)
	}
	if firstLaunch {
		slog.Info("first launch, settings initialized", "device", settings.Name)
	}

	var tr transport.Transport
	mode := reconcile.ModeNetwork
	if opts.Peer != "" {
		tr = transport.NewPeer(opts.Peer, settings.Name)
		mode = reconcile.ModePeer
		slog.Info("syncing against peer", "addr", opts.Peer)
	} else {
		tr = transport.NewHTTP(settings.ServerAddr, settings.Code, settings.Name)
		slog.Info("syncing against hub", "addr", settings.ServerAddr)
	}

	rec := reconcile.New(st, assign.New(st))
	s := syncer.New(st, tr, rec,
		syncer.WithMode(mode),
		syncer.WithInterval(interval),
	)

	if opts.ServePeer != "" {
		ln, err := net.Listen("tcp", opts.ServePeer)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for peers", err)
		}
		slog.Info("answering peer sync requests", "addr", ln.Addr())
		go syncer.ServePeers(ctx, ln, syncer.NewPeerHost(st, rec))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Sync agent started. Press Ctrl-C to stop.")
	s.Loop(ctx)
	slog.Info("sync agent stopped")
	return nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM, rooted at
// the command's context so tests can cancel externally.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
