// Package assign implements auto-assignment: claiming and releasing
// checkouts for this device based on its configured alliance slot.
//
// The engine scans a candidate list (normally the delta a reconcile just
// wrote, so the scan is bounded by batch size rather than event size),
// releases stale claims that no longer match the device's slot, and claims
// available checkouts that do. Every claim and release writes through the
// full checkouts/my_checkouts/pending triple so the local UI and the next
// upload cycle agree.
package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/store"
)

// Engine assigns and releases checkouts against the record store.
type Engine struct {
	store *store.Store

	// now returns the current millisecond epoch; overridable for tests.
	now func() int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an assignment engine over the record store.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one assignment pass.
//
// candidates is the set of checkouts to consider; nil means "whatever the
// caller just merged" is unknown, and the engine falls back to scanning the
// whole checkouts collection - except in disabled mode, where the release
// pass runs over the supplied candidates only and a nil list is a no-op.
//
// allowRelease enables the un-assignment pass for claims whose alliance
// slot no longer matches this device. A release blocked by user-entered
// data is an intentional no-op (logged, never an error).
//
// done, if non-nil, is always called before Run returns, on every path,
// so synchronous callers are never left waiting.
func (e *Engine) Run(ctx context.Context, candidates []checkout.Checkout, settings store.Settings, allowRelease bool, done func()) error {
	if done != nil {
		defer done()
	}

	mode := settings.AssignmentMode

	// Disabled mode still clears stale ownership, but only over what the
	// caller handed us - never a full-dataset load - and never claims.
	if mode == store.AssignDisabled {
		if !allowRelease || len(candidates) == 0 {
			return nil
		}
		for _, c := range candidates {
			if err := e.maybeRelease(ctx, c, settings); err != nil {
				return err
			}
		}
		slog.Debug("auto-assignment disabled, release pass only", "candidates", len(candidates))
		return nil
	}

	if len(candidates) == 0 {
		full, err := e.store.List(ctx, store.Checkouts)
		if err != nil {
			return fmt.Errorf("auto-assign: load checkouts: %w", err)
		}
		candidates = full
	}
	if len(candidates) == 0 {
		slog.Debug("no checkouts found, auto-assignment is a no-op")
		return nil
	}

	claimed := 0
	for _, c := range candidates {
		if allowRelease {
			if err := e.maybeRelease(ctx, c, settings); err != nil {
				return err
			}
		}

		tab := c.FirstTab()

		// Pit devices claim every available pit checkout regardless of
		// alliance position.
		if c.Status == checkout.StatusAvailable && mode == store.AssignPit &&
			strings.EqualFold(tab.Title, "PIT") {
			if err := e.claim(ctx, c, settings); err != nil {
				return err
			}
			claimed++
			continue
		}

		if c.Status != checkout.StatusAvailable || tab.AlliancePosition == checkout.PositionUndefined {
			continue
		}

		if tab.AlliancePosition == mode {
			if err := e.claim(ctx, c, settings); err != nil {
				return err
			}
			claimed++
		}
	}

	if claimed > 0 {
		slog.Info("auto-assignment claimed checkouts", "count", claimed, "mode", mode)
	}
	return nil
}

// maybeRelease un-assigns a checkout this device holds whose slot no
// longer matches the configured mode. Refusals from the release guard are
// absorbed: user-entered data always wins over slot bookkeeping.
func (e *Engine) maybeRelease(ctx context.Context, c checkout.Checkout, settings store.Settings) error {
	if c.Status != checkout.StatusCheckedOut ||
		c.OwnerTag != settings.Name ||
		c.FirstTab().AlliancePosition == settings.AssignmentMode {
		return nil
	}

	unlock := e.store.Lock(c.ID)
	defer unlock()

	if err := c.Release(); err != nil {
		if errors.Is(err, checkout.ErrReleaseRefused) {
			slog.Debug("release refused, checkout has user-entered data", "id", c.ID)
			return nil
		}
		return fmt.Errorf("auto-assign: %w", err)
	}

	if err := e.store.WriteRelease(ctx, c); err != nil {
		return fmt.Errorf("auto-assign: release %d: %w", c.ID, err)
	}

	slog.Info("released checkout, slot no longer matches",
		"id", c.ID,
		"team", c.Team.Number,
		"mode", settings.AssignmentMode,
	)
	return nil
}

func (e *Engine) claim(ctx context.Context, c checkout.Checkout, settings store.Settings) error {
	unlock := e.store.Lock(c.ID)
	defer unlock()

	if err := c.Claim(settings.Name, e.now()); err != nil {
		return fmt.Errorf("auto-assign: %w", err)
	}

	if err := e.store.WriteClaim(ctx, c); err != nil {
		return fmt.Errorf("auto-assign: claim %d: %w", c.ID, err)
	}

	slog.Info("claimed checkout",
		"id", c.ID,
		"team", c.Team.Number,
		"owner", settings.Name,
	)
	return nil
}
