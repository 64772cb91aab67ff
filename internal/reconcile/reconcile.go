// Package reconcile merges checkout batches arriving from any transport
// into the local record store. Remote state always wins: each incoming
// checkout replaces the local mirror record wholesale, so two devices that
// exchange batches converge without field-level merging.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/notify"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

// ErrEmptyBatch rejects a reconcile call with nothing to merge. Callers
// must not treat "pulled nothing" as a batch.
var ErrEmptyBatch = errors.New("reconcile: empty batch")

// Mode identifies the transport a batch arrived on. It decides which sync
// cursor field advances and whether the user is notified.
type Mode int

const (
	// ModeNetwork batches carry hub-assigned versions; the per-ID version
	// map advances and the user is notified of foreign edits.
	ModeNetwork Mode = iota
	// ModePeer batches advance the peer timestamp; foreign edits notify.
	ModePeer
	// ModeQR imports advance no cursor and never notify. A scanned code
	// is an explicit user action, not a background arrival.
	ModeQR
)

func (m Mode) String() string {
	switch m {
	case ModeNetwork:
		return "network"
	case ModePeer:
		return "peer"
	case ModeQR:
		return "qr"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Result summarizes one reconcile pass.
type Result struct {
	// Written counts checkouts merged into the store.
	Written int
	// Skipped counts items dropped for decode failures.
	Skipped int
	// Notified reports whether an aggregate notification was emitted.
	Notified bool
}

// Reconciler merges batches and drives post-merge auto-assignment.
type Reconciler struct {
	store    *store.Store
	assigner *assign.Engine
	notifier notify.Notifier
	now      func() int64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source used for the peer sync timestamp.
func WithClock(now func() int64) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithNotifier replaces the default log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// New creates a reconciler over the store and assignment engine.
func New(st *store.Store, assigner *assign.Engine, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    st,
		assigner: assigner,
		notifier: notify.LogNotifier{},
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile merges batch into the checkouts mirror, advances cursor for
// the given mode, runs auto-assignment over exactly the merged delta, and
// emits at most one notification.
//
// An item that fails to decode is logged and skipped; the rest of the
// batch still lands. An empty batch is an argument error and writes
// nothing.
func (r *Reconciler) Reconcile(ctx context.Context, batch []transport.RemoteCheckout, mode Mode, settings store.Settings, cursor *store.Cursor) (Result, error) {
	if len(batch) == 0 {
		return Result{}, ErrEmptyBatch
	}

	var res Result
	var delta []checkout.Checkout
	foreign := 0

	for _, item := range batch {
		var c checkout.Checkout
		if err := json.Unmarshal(item.Content, &c); err != nil {
			slog.Warn("skipping undecodable checkout",
				"id", item.ID,
				"mode", mode.String(),
				"error", err,
			)
			res.Skipped++
			continue
		}
		if c.ID == 0 {
			c.ID = item.ID
		}

		// Last write wins: the incoming record replaces the mirror copy
		// regardless of local state.
		if err := r.store.Put(ctx, store.Checkouts, c); err != nil {
			return res, fmt.Errorf("reconcile: write checkout %d: %w", c.ID, err)
		}
		res.Written++
		delta = append(delta, c)

		if c.OwnerTag != settings.Name {
			foreign++
		}

		if mode == ModeNetwork && cursor != nil {
			cursor.Versions()[c.ID] = item.SyncVersion
		}
	}

	if mode == ModePeer && cursor != nil && res.Written > 0 {
		cursor.LastPeerSync = r.now()
	}

	if len(delta) > 0 {
		if err := r.assigner.Run(ctx, delta, settings, true, nil); err != nil {
			return res, fmt.Errorf("reconcile: auto-assign: %w", err)
		}
	}

	// Foreign ownership decides whether to notify; the notification itself
	// summarizes the whole merged batch.
	if foreign > 0 && mode != ModeQR {
		r.notifier.Notify(notify.NewEvent(
			"Checkouts updated",
			fmt.Sprintf("%d checkout(s) were updated", res.Written),
			res.Written,
		))
		res.Notified = true
	}

	slog.Debug("reconciled batch",
		"mode", mode.String(),
		"written", res.Written,
		"skipped", res.Skipped,
		"foreign", foreign,
	)
	return res, nil
}

// ImportQR decodes a scanned QR payload and merges it as a single-item
// batch. The encoded checkout already lost its galleries and field data
// at export time.
func (r *Reconciler) ImportQR(ctx context.Context, payload string, settings store.Settings) (Result, error) {
	c, err := transport.DecodeQR(payload)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}
	content, err := json.Marshal(c)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: re-encode checkout %d: %w", c.ID, err)
	}
	return r.Reconcile(ctx, []transport.RemoteCheckout{{ID: c.ID, Content: content}}, ModeQR, settings, nil)
}
