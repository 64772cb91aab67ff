package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

// PeerHost answers the peer protocol from this device's record store, so a
// paired device running the agent with --peer can sync against it. Team
// metadata and event state are served from the cursor this device last
// mirrored; pushed batches merge through the reconciler like any other
// peer arrival.
type PeerHost struct {
	store      *store.Store
	reconciler *reconcile.Reconciler
}

var _ transport.Host = (*PeerHost)(nil)

// NewPeerHost builds a host over the store and reconciler.
func NewPeerHost(st *store.Store, rec *reconcile.Reconciler) *PeerHost {
	return &PeerHost{store: st, reconciler: rec}
}

// EventActive reports whether this device currently mirrors an event.
func (h *PeerHost) EventActive(ctx context.Context) (bool, error) {
	cursor, err := h.store.LoadCursor(ctx)
	if err != nil {
		return false, fmt.Errorf("peer host: %w", err)
	}
	return cursor.EventName != "", nil
}

// Team serves the mirrored team metadata when newer than sinceVersion.
func (h *PeerHost) Team(ctx context.Context, sinceVersion int64) (transport.TeamInfo, bool, error) {
	cursor, err := h.store.LoadCursor(ctx)
	if err != nil {
		return transport.TeamInfo{}, false, fmt.Errorf("peer host: %w", err)
	}
	if cursor.TeamVersion <= sinceVersion {
		return transport.TeamInfo{}, false, nil
	}

	info := transport.TeamInfo{
		Number:      cursor.TeamNumber,
		EventName:   cursor.EventName,
		SyncVersion: cursor.TeamVersion,
	}
	form, ok, err := h.store.LoadForm(ctx)
	if err != nil {
		return transport.TeamInfo{}, false, fmt.Errorf("peer host: %w", err)
	}
	if ok {
		b, err := json.Marshal(form)
		if err != nil {
			return transport.TeamInfo{}, false, fmt.Errorf("peer host: encode form: %w", err)
		}
		info.Form = b
	}
	return info, true, nil
}

// AcceptCheckouts merges a batch pushed by a peer.
func (h *PeerHost) AcceptCheckouts(ctx context.Context, from string, batch []transport.RemoteCheckout) error {
	if len(batch) == 0 {
		return nil
	}
	settings, _, err := h.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("peer host: %w", err)
	}
	cursor, err := h.store.LoadCursor(ctx)
	if err != nil {
		return fmt.Errorf("peer host: %w", err)
	}
	if _, err := h.reconciler.Reconcile(ctx, batch, reconcile.ModePeer, settings, &cursor); err != nil {
		return fmt.Errorf("peer host: accept from %s: %w", from, err)
	}
	if err := h.store.SaveCursor(ctx, cursor); err != nil {
		return fmt.Errorf("peer host: %w", err)
	}
	slog.Info("accepted peer batch", "from", from, "count", len(batch))
	return nil
}

// CheckoutsSince serves this device's unsynced edits claimed or completed
// after since. Peers sync by timestamp, so the transition time stands in
// for a sync version.
func (h *PeerHost) CheckoutsSince(ctx context.Context, since int64) ([]transport.RemoteCheckout, error) {
	pending, err := h.store.List(ctx, store.Pending)
	if err != nil {
		return nil, fmt.Errorf("peer host: %w", err)
	}

	out := []transport.RemoteCheckout{}
	for _, c := range pending {
		if c.OwnedSince <= since {
			continue
		}
		content, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("peer host: encode %d: %w", c.ID, err)
		}
		out = append(out, transport.RemoteCheckout{ID: c.ID, Content: content, SyncVersion: c.OwnedSince})
	}
	return out, nil
}

// ServePeers accepts connections on ln and answers each with h until ctx
// is cancelled. Connection-level failures end that connection only.
func ServePeers(ctx context.Context, ln net.Listener, h transport.Host) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("peer accept failed", "error", err)
			}
			return
		}
		go func() {
			if err := transport.Serve(ctx, conn, h); err != nil {
				slog.Debug("peer connection closed", "error", err)
			}
		}()
	}
}
