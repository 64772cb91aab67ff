package assign

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scouter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, WithClock(func() int64 { return 5000 })), st
}

func matchCheckout(id, pos int) checkout.Checkout {
	return checkout.Checkout{
		ID:     id,
		Status: checkout.StatusAvailable,
		Team: checkout.Team{
			Number: 100 + id,
			Tabs:   []checkout.Tab{{Title: "Quals 1", AlliancePosition: pos}},
		},
	}
}

func pitCheckout(id int) checkout.Checkout {
	return checkout.Checkout{
		ID:     id,
		Status: checkout.StatusAvailable,
		Team: checkout.Team{
			Number: 100 + id,
			Tabs:   []checkout.Tab{{Title: "pit", AlliancePosition: checkout.PositionUndefined}},
		},
	}
}

func TestRun_ClaimsMatchingSlot(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 1}
	c := matchCheckout(5, 1)
	require.NoError(t, st.Put(ctx, store.Checkouts, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	for _, col := range []store.Collection{store.Checkouts, store.MyCheckouts, store.Pending} {
		got, err := st.Get(ctx, col, 5)
		require.NoError(t, err, "claimed checkout missing from %s", col)
		assert.Equal(t, checkout.StatusCheckedOut, got.Status)
		assert.Equal(t, "Tablet Red 1", got.OwnerTag)
		assert.Equal(t, int64(5000), got.OwnedSince)
	}
}

func TestRun_SkipsMismatchedSlot(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 1}
	c := matchCheckout(5, 4)
	require.NoError(t, st.Put(ctx, store.Checkouts, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	got, err := st.Get(ctx, store.Checkouts, 5)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusAvailable, got.Status)
}

func TestRun_SkipsUndefinedPosition(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "x", AssignmentMode: 2}
	c := matchCheckout(6, checkout.PositionUndefined)
	require.NoError(t, st.Put(ctx, store.Checkouts, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	got, err := st.Get(ctx, store.Checkouts, 6)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusAvailable, got.Status)
}

func TestRun_PitModeClaimsRegardlessOfPosition(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Pit Crew", AssignmentMode: store.AssignPit}
	c := pitCheckout(9)
	require.NoError(t, st.Put(ctx, store.Checkouts, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	got, err := st.Get(ctx, store.MyCheckouts, 9)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCheckedOut, got.Status)
	assert.Equal(t, "Pit Crew", got.OwnerTag)
}

func TestRun_NilCandidatesFallsBackToFullScan(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Blue 2", AssignmentMode: 5}
	require.NoError(t, st.Put(ctx, store.Checkouts, matchCheckout(1, 5)))
	require.NoError(t, st.Put(ctx, store.Checkouts, matchCheckout(2, 6)))

	require.NoError(t, e.Run(ctx, nil, settings, true, nil))

	got, err := st.Get(ctx, store.MyCheckouts, 1)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCheckedOut, got.Status)

	_, err = st.Get(ctx, store.MyCheckouts, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_DisabledMode_NilCandidatesIsNoOp(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, store.Checkouts, matchCheckout(1, 1)))

	settings := store.Settings{Name: "x", AssignmentMode: store.AssignDisabled}
	require.NoError(t, e.Run(ctx, nil, settings, true, nil))

	got, err := st.Get(ctx, store.Checkouts, 1)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusAvailable, got.Status, "disabled mode must never claim")
}

func TestRun_DisabledMode_ReleasePassStillRuns(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: store.AssignDisabled}

	c := matchCheckout(3, 1)
	require.NoError(t, c.Claim("Tablet Red 1", 100))
	require.NoError(t, st.WriteClaim(ctx, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	_, err := st.Get(ctx, store.MyCheckouts, 3)
	assert.ErrorIs(t, err, store.ErrNotFound, "stale claim should be released in disabled mode")

	got, err := st.Get(ctx, store.Checkouts, 3)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusAvailable, got.Status)
}

func TestRun_ReleaseGuardBlocksModifiedData(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 2}

	c := matchCheckout(4, 1)
	c.Team.Tabs[0].Metrics = []checkout.Metric{
		{ID: 1, Modified: true, Value: checkout.CounterValue{Value: 3}},
	}
	require.NoError(t, c.Claim("Tablet Red 1", 100))
	require.NoError(t, st.WriteClaim(ctx, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, true, nil))

	got, err := st.Get(ctx, store.MyCheckouts, 4)
	require.NoError(t, err, "modified checkout must survive the release pass")
	assert.Equal(t, checkout.StatusCheckedOut, got.Status)
}

func TestRun_NoReleaseWhenDisallowed(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 2}

	c := matchCheckout(4, 1)
	require.NoError(t, c.Claim("Tablet Red 1", 100))
	require.NoError(t, st.WriteClaim(ctx, c))

	require.NoError(t, e.Run(ctx, []checkout.Checkout{c}, settings, false, nil))

	got, err := st.Get(ctx, store.MyCheckouts, 4)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCheckedOut, got.Status)
}

func TestRun_DoneAlwaysCalled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	calls := 0
	done := func() { calls++ }

	// Zero-op paths still signal completion.
	require.NoError(t, e.Run(ctx, nil, store.Settings{AssignmentMode: store.AssignDisabled}, true, done))
	require.NoError(t, e.Run(ctx, nil, store.Settings{AssignmentMode: 1}, true, done))
	assert.Equal(t, 2, calls)
}

func TestRun_Idempotent(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 1}
	c := matchCheckout(5, 1)
	require.NoError(t, st.Put(ctx, store.Checkouts, c))

	require.NoError(t, e.Run(ctx, nil, settings, true, nil))
	first, err := st.Get(ctx, store.MyCheckouts, 5)
	require.NoError(t, err)

	// Second pass over the now-claimed dataset changes nothing.
	require.NoError(t, e.Run(ctx, nil, settings, true, nil))
	second, err := st.Get(ctx, store.MyCheckouts, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
