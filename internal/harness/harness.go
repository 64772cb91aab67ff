// Package harness runs end-to-end sync scenarios: a real record store, a
// real reconciler and syncer, and a scripted transport, driven one cycle
// per step with a frozen clock. Store state after each step is snapshotted
// and compared against golden files.
package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/notify"
	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/syncer"
	"github.com/widavies/RobluScouter/internal/testutil"
)

// Scenario is a named sequence of sync steps for one device.
type Scenario struct {
	Name string
	// Device is the owner name stamped on claims.
	Device string
	// AssignmentMode is the device's auto-assignment slot.
	AssignmentMode int
	Steps          []Step
}

// Step scripts the remote before one sync cycle runs.
type Step struct {
	Name string
	// Apply mutates the environment (enqueue pulls, flip event state,
	// seed local records) before the cycle. May be nil.
	Apply func(t *testing.T, env *Env)
}

// Env is the live environment a step can manipulate.
type Env struct {
	Store     *store.Store
	Transport *testutil.FakeTransport
	Clock     *testutil.Clock
	Syncer    *syncer.Syncer

	notifications []notify.Event
}

// Notify implements notify.Notifier, capturing events per step.
func (e *Env) Notify(ev notify.Event) {
	e.notifications = append(e.notifications, ev)
}

func (e *Env) drainNotifications() []notify.Event {
	out := e.notifications
	e.notifications = nil
	return out
}

// Run executes the scenario and returns one snapshot per step.
func Run(t *testing.T, sc *Scenario) []StepSnapshot {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env := &Env{
		Store:     st,
		Transport: &testutil.FakeTransport{},
		Clock:     testutil.NewClock(1000),
	}

	ctx := context.Background()
	settings := store.DefaultSettings()
	settings.Name = sc.Device
	settings.AssignmentMode = sc.AssignmentMode
	require.NoError(t, st.SaveSettings(ctx, settings))

	rec := reconcile.New(st,
		assign.New(st, assign.WithClock(env.Clock.Now)),
		reconcile.WithClock(env.Clock.Now),
		reconcile.WithNotifier(env),
	)
	env.Syncer = syncer.New(st, env.Transport, rec,
		syncer.WithClock(env.Clock.Now),
		syncer.WithNotifier(env),
	)

	snapshots := make([]StepSnapshot, 0, len(sc.Steps))
	for _, step := range sc.Steps {
		if step.Apply != nil {
			step.Apply(t, env)
		}
		require.NoError(t, env.Syncer.RunCycle(ctx), "step %q", step.Name)
		snapshots = append(snapshots, snapshotStep(t, ctx, env, step.Name))
	}
	return snapshots
}
