// Package syncer drives the periodic sync cycle: connectivity probe, event
// check, team metadata pull, pending upload, checkout pull, reconcile,
// cursor persist. One cycle runs at a time; ticks that fire mid-cycle are
// dropped.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/notify"
	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

const (
	// DefaultInterval is the cycle cadence.
	DefaultInterval = 10 * time.Second
	// DefaultCooldown suppresses re-uploads after a successful push until
	// new pending work appears.
	DefaultCooldown = 30 * time.Second
	// defaultCallTimeout bounds each transport call.
	defaultCallTimeout = 20 * time.Second
)

// Syncer owns the background sync loop for one transport.
type Syncer struct {
	store      *store.Store
	transport  transport.Transport
	reconciler *reconcile.Reconciler
	notifier   notify.Notifier

	mode        reconcile.Mode
	interval    time.Duration
	cooldown    time.Duration
	callTimeout time.Duration
	now         func() int64

	busy atomic.Bool

	// lastUploaded remembers the IDs of the last successful push so a new
	// pending arrival can bypass the upload cooldown.
	lastUploaded map[int]struct{}
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithInterval overrides the cycle cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

// WithCooldown overrides the post-upload cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Syncer) { s.cooldown = d }
}

// WithClock overrides the time source.
func WithClock(now func() int64) Option {
	return func(s *Syncer) { s.now = now }
}

// WithNotifier replaces the default log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Syncer) { s.notifier = n }
}

// WithMode sets the cursor/notification mode for pulled batches. Defaults
// to network; peer syncers use reconcile.ModePeer.
func WithMode(m reconcile.Mode) Option {
	return func(s *Syncer) { s.mode = m }
}

// WithCallTimeout bounds each individual transport call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.callTimeout = d }
}

// New builds a syncer over a store, transport, and reconciler.
func New(st *store.Store, tr transport.Transport, rec *reconcile.Reconciler, opts ...Option) *Syncer {
	s := &Syncer{
		store:        st,
		transport:    tr,
		reconciler:   rec,
		notifier:     notify.LogNotifier{},
		mode:         reconcile.ModeNetwork,
		interval:     DefaultInterval,
		cooldown:     DefaultCooldown,
		callTimeout:  defaultCallTimeout,
		now:          func() int64 { return time.Now().UnixMilli() },
		lastUploaded: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loop runs cycles on the configured interval until ctx is cancelled. The
// first cycle starts immediately. A tick that fires while a cycle is
// in flight is dropped, never queued.
func (s *Syncer) Loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		slog.Debug("sync cycle still in flight, dropping tick")
		return
	}
	defer s.busy.Store(false)

	if err := s.RunCycle(ctx); err != nil {
		if IsDeferred(err) {
			slog.Debug("sync deferred", "error", err)
		} else {
			slog.Warn("sync cycle failed", "error", err)
		}
	}
}

// RunCycle performs one end-to-end sync cycle.
func (s *Syncer) RunCycle(ctx context.Context) error {
	settings, _, err := s.store.LoadSettings(ctx)
	if err != nil {
		return newSyncError(CodeStorage, "load settings", err)
	}
	if settings.SyncDisabled {
		slog.Debug("sync disabled, skipping cycle")
		return nil
	}

	cursor, err := s.store.LoadCursor(ctx)
	if err != nil {
		return newSyncError(CodeStorage, "load cursor", err)
	}

	if err := s.call(ctx, s.transport.Ping); err != nil {
		return newSyncError(CodeTransport, "ping", err)
	}

	active, err := callValue(ctx, s, s.transport.IsEventActive)
	if err != nil {
		return newSyncError(CodeTransport, "event check", err)
	}
	if !active {
		// Explicit server signal that the event ended. Wipe local
		// checkout state; the next active event starts clean.
		return s.resetLocalState(ctx, &cursor, "event no longer active")
	}

	if err := s.pullTeamMetadata(ctx, &cursor); err != nil {
		return err
	}

	if err := s.uploadPending(ctx, settings, &cursor); err != nil {
		return err
	}

	if err := s.pullCheckouts(ctx, settings, &cursor); err != nil {
		return err
	}

	if err := s.store.SaveCursor(ctx, cursor); err != nil {
		return newSyncError(CodeStorage, "save cursor", err)
	}
	return nil
}

func (s *Syncer) resetLocalState(ctx context.Context, cursor *store.Cursor, reason string) error {
	slog.Warn("resetting local checkout state", "reason", reason, "event", cursor.EventName)
	if err := s.store.ClearAllCheckouts(ctx); err != nil {
		return newSyncError(CodeStorage, "clear checkouts", err)
	}
	cursor.Reset()
	if err := s.store.SaveCursor(ctx, *cursor); err != nil {
		return newSyncError(CodeStorage, "save cursor", err)
	}
	s.lastUploaded = make(map[int]struct{})
	return nil
}

func (s *Syncer) pullTeamMetadata(ctx context.Context, cursor *store.Cursor) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	info, changed, err := s.transport.PullTeam(cctx, cursor.TeamVersion)
	cancel()
	if err != nil {
		return newSyncError(CodeTransport, "pull team", err)
	}
	if !changed {
		return nil
	}

	// An event rollover invalidates every local checkout; they belong to
	// the old event's ID space.
	if cursor.EventName != "" && info.EventName != cursor.EventName {
		if err := s.resetLocalState(ctx, cursor, "event changed"); err != nil {
			return err
		}
	}

	if len(info.Form) > 0 {
		var form checkout.Form
		if err := json.Unmarshal(info.Form, &form); err != nil {
			slog.Warn("skipping undecodable form", "error", err)
		} else if err := s.store.SaveForm(ctx, form); err != nil {
			return newSyncError(CodeStorage, "save form", err)
		}
	}

	cursor.EventName = info.EventName
	cursor.TeamVersion = info.SyncVersion
	cursor.TeamNumber = info.Number
	slog.Info("team metadata updated",
		"event", info.EventName,
		"team", info.Number,
		"version", info.SyncVersion,
	)
	return nil
}

func (s *Syncer) uploadPending(ctx context.Context, settings store.Settings, cursor *store.Cursor) error {
	pending, err := s.store.List(ctx, store.Pending)
	if err != nil {
		return newSyncError(CodeStorage, "list pending", err)
	}
	if len(pending) == 0 {
		return nil
	}

	// The cooldown only holds back a batch the remote already has. Any
	// pending ID the last push did not cover is new work and goes out
	// immediately.
	newWork := false
	for _, c := range pending {
		if _, ok := s.lastUploaded[c.ID]; !ok {
			newWork = true
			break
		}
	}
	if !newWork && s.now() < cursor.UploadCooldownUntil {
		slog.Debug("upload cooldown active, deferring push",
			"until", cursor.UploadCooldownUntil,
			"pending", len(pending),
		)
		return nil
	}

	batch := make([]transport.RemoteCheckout, 0, len(pending))
	for _, c := range pending {
		packaged := c.Clone()
		if packaged.Status == checkout.StatusCompleted {
			packaged.StampEdits(settings.Name, s.now())
		}
		if s.mode == reconcile.ModeNetwork {
			s.inlineGalleries(ctx, &packaged)
		}
		content, err := json.Marshal(packaged)
		if err != nil {
			return newSyncError(CodeDecode, "package pending", fmt.Errorf("checkout %d: %w", c.ID, err))
		}
		batch = append(batch, transport.RemoteCheckout{ID: c.ID, Content: content})
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err = s.transport.PushCheckouts(cctx, batch)
	cancel()
	if err != nil {
		// At-least-once: pending stays untouched, the whole batch retries
		// next cycle.
		return newSyncError(CodeTransport, "push pending", err)
	}

	// FinishUpload skips any pending row rewritten since the snapshot (a
	// transition landed mid-push). Leaving those IDs out of lastUploaded
	// makes them count as new work, so the cooldown never holds them back.
	finished, err := s.store.FinishUpload(ctx, pending)
	if err != nil {
		return newSyncError(CodeStorage, "finish upload", err)
	}

	cursor.UploadCooldownUntil = s.now() + s.cooldown.Milliseconds()
	s.lastUploaded = make(map[int]struct{}, len(finished))
	for _, id := range finished {
		s.lastUploaded[id] = struct{}{}
	}

	s.notifier.Notify(notify.NewEvent(
		"Scouting data uploaded",
		fmt.Sprintf("%d checkout(s) uploaded to the team", len(pending)),
		len(pending),
	))
	slog.Info("uploaded pending checkouts", "count", len(pending))
	return nil
}

// inlineGalleries loads referenced picture bytes into gallery payloads so
// the batch carries the images. The store copy keeps IDs only; this runs
// on a clone. A missing picture is logged and the reference kept.
func (s *Syncer) inlineGalleries(ctx context.Context, c *checkout.Checkout) {
	for ti := range c.Team.Tabs {
		metrics := c.Team.Tabs[ti].Metrics
		for mi := range metrics {
			g, ok := metrics[mi].Value.(checkout.GalleryValue)
			if !ok {
				continue
			}
			g.Images = g.Images[:0]
			for _, id := range g.PictureIDs {
				data, err := s.store.LoadPicture(ctx, id)
				if err != nil {
					slog.Warn("gallery picture missing, uploading without it",
						"checkout", c.ID, "picture", id, "error", err)
					continue
				}
				g.Images = append(g.Images, data)
			}
			metrics[mi].Value = g
		}
	}
}

func (s *Syncer) pullCheckouts(ctx context.Context, settings store.Settings, cursor *store.Cursor) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	batch, err := s.transport.PullCheckouts(cctx, *cursor)
	cancel()
	if err != nil {
		return newSyncError(CodeTransport, "pull checkouts", err)
	}
	if len(batch) == 0 {
		return nil
	}

	if _, err := s.reconciler.Reconcile(ctx, batch, s.mode, settings, cursor); err != nil {
		if errors.Is(err, reconcile.ErrEmptyBatch) {
			return newSyncError(CodeInvalidArgument, "reconcile", err)
		}
		return newSyncError(CodeStorage, "reconcile", err)
	}
	return nil
}

func (s *Syncer) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return fn(cctx)
}

func callValue[T any](ctx context.Context, s *Syncer, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return fn(cctx)
}
