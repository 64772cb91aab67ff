package reconcile

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/notify"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

type capturingNotifier struct {
	events []notify.Event
}

func (n *capturingNotifier) Notify(e notify.Event) { n.events = append(n.events, e) }

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store, *capturingNotifier) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scouter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	n := &capturingNotifier{}
	clock := func() int64 { return 7777 }
	r := New(st,
		assign.New(st, assign.WithClock(clock)),
		WithClock(clock),
		WithNotifier(n),
	)
	return r, st, n
}

func remote(t *testing.T, c checkout.Checkout, version int64) transport.RemoteCheckout {
	t.Helper()
	content, err := json.Marshal(c)
	require.NoError(t, err)
	return transport.RemoteCheckout{ID: c.ID, Content: content, SyncVersion: version}
}

func sampleCheckout(id int, owner string) checkout.Checkout {
	c := checkout.Checkout{
		ID:     id,
		Status: checkout.StatusAvailable,
		Team: checkout.Team{
			Number: 100 + id,
			Tabs:   []checkout.Tab{{Title: "Quals 1", AlliancePosition: 2}},
		},
	}
	if owner != "" {
		c.Status = checkout.StatusCheckedOut
		c.OwnerTag = owner
		c.OwnedSince = 1000
	}
	return c
}

func TestReconcile_EmptyBatchRejected(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, nil, ModeNetwork, store.Settings{Name: "x"}, &store.Cursor{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	got, err := st.List(ctx, store.Checkouts)
	require.NoError(t, err)
	assert.Empty(t, got, "rejected batch must not write")
}

func TestReconcile_LastWriteWins(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	ctx := context.Background()

	local := sampleCheckout(5, "Tablet Red 1")
	require.NoError(t, st.Put(ctx, store.Checkouts, local))

	incoming := sampleCheckout(5, "Tablet Blue 2")
	cursor := store.Cursor{}
	res, err := r.Reconcile(ctx, []transport.RemoteCheckout{remote(t, incoming, 3)},
		ModeNetwork, store.Settings{Name: "Tablet Red 1"}, &cursor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	got, err := st.Get(ctx, store.Checkouts, 5)
	require.NoError(t, err)
	assert.Equal(t, "Tablet Blue 2", got.OwnerTag, "remote record replaces local mirror")
}

func TestReconcile_DecodeFailureSkipsItemOnly(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	ctx := context.Background()

	good := remote(t, sampleCheckout(1, ""), 1)
	bad := transport.RemoteCheckout{ID: 2, Content: json.RawMessage(`{"status": "banana"`)}

	res, err := r.Reconcile(ctx, []transport.RemoteCheckout{bad, good},
		ModeNetwork, store.Settings{Name: "x"}, &store.Cursor{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Skipped)

	_, err = st.Get(ctx, store.Checkouts, 1)
	assert.NoError(t, err, "good item must land despite the bad one")
	_, err = st.Get(ctx, store.Checkouts, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReconcile_NetworkAdvancesVersionMap(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	ctx := context.Background()

	cursor := store.Cursor{}
	batch := []transport.RemoteCheckout{
		remote(t, sampleCheckout(1, ""), 10),
		remote(t, sampleCheckout(2, ""), 12),
	}
	_, err := r.Reconcile(ctx, batch, ModeNetwork, store.Settings{Name: "x"}, &cursor)
	require.NoError(t, err)

	assert.Equal(t, int64(10), cursor.CheckoutVersions[1])
	assert.Equal(t, int64(12), cursor.CheckoutVersions[2])
	assert.Zero(t, cursor.LastPeerSync, "network mode must not touch the peer timestamp")
}

func TestReconcile_PeerAdvancesTimestamp(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	ctx := context.Background()

	cursor := store.Cursor{}
	_, err := r.Reconcile(ctx, []transport.RemoteCheckout{remote(t, sampleCheckout(1, ""), 0)},
		ModePeer, store.Settings{Name: "x"}, &cursor)
	require.NoError(t, err)

	assert.Equal(t, int64(7777), cursor.LastPeerSync)
	assert.Empty(t, cursor.CheckoutVersions, "peer mode must not touch the version map")
}

func TestReconcile_QRUpdatesNothingAndNeverNotifies(t *testing.T) {
	r, st, n := newTestReconciler(t)
	ctx := context.Background()

	cursor := store.Cursor{}
	res, err := r.Reconcile(ctx, []transport.RemoteCheckout{remote(t, sampleCheckout(1, "Someone Else"), 5)},
		ModeQR, store.Settings{Name: "Tablet Red 1"}, &cursor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.False(t, res.Notified)

	assert.Empty(t, cursor.CheckoutVersions)
	assert.Zero(t, cursor.LastPeerSync)
	assert.Empty(t, n.events)

	_, err = st.Get(ctx, store.Checkouts, 1)
	assert.NoError(t, err)
}

func TestReconcile_OneAggregateNotificationPerBatch(t *testing.T) {
	r, _, n := newTestReconciler(t)
	ctx := context.Background()

	batch := []transport.RemoteCheckout{
		remote(t, sampleCheckout(1, "Tablet Blue 2"), 1),
		remote(t, sampleCheckout(2, "Tablet Blue 3"), 2),
		remote(t, sampleCheckout(3, "Tablet Red 1"), 3),
	}
	res, err := r.Reconcile(ctx, batch, ModeNetwork, store.Settings{Name: "Tablet Red 1"}, &store.Cursor{})
	require.NoError(t, err)

	assert.True(t, res.Notified)
	require.Len(t, n.events, 1, "a batch emits at most one notification")
	assert.Equal(t, 3, n.events[0].Count, "the notification summarizes the whole merged batch")
	assert.NotEmpty(t, n.events[0].ID)
}

func TestReconcile_OwnEditsDoNotNotify(t *testing.T) {
	r, _, n := newTestReconciler(t)
	ctx := context.Background()

	batch := []transport.RemoteCheckout{remote(t, sampleCheckout(1, "Tablet Red 1"), 1)}
	res, err := r.Reconcile(ctx, batch, ModeNetwork, store.Settings{Name: "Tablet Red 1"}, &store.Cursor{})
	require.NoError(t, err)

	assert.False(t, res.Notified)
	assert.Empty(t, n.events)
}

func TestReconcile_AutoAssignsOverDelta(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	ctx := context.Background()

	// A checkout outside the batch must not be touched even though it
	// matches the device's slot.
	outside := sampleCheckout(9, "")
	require.NoError(t, st.Put(ctx, store.Checkouts, outside))

	settings := store.Settings{Name: "Tablet Red 1", AssignmentMode: 2}
	batch := []transport.RemoteCheckout{remote(t, sampleCheckout(1, ""), 1)}
	_, err := r.Reconcile(ctx, batch, ModeNetwork, settings, &store.Cursor{})
	require.NoError(t, err)

	got, err := st.Get(ctx, store.MyCheckouts, 1)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCheckedOut, got.Status)
	assert.Equal(t, "Tablet Red 1", got.OwnerTag)

	_, err = st.Get(ctx, store.MyCheckouts, 9)
	assert.ErrorIs(t, err, store.ErrNotFound, "assignment must cover exactly the merged delta")
}

func TestImportQR_RoundTrip(t *testing.T) {
	r, st, n := newTestReconciler(t)
	ctx := context.Background()

	src := sampleCheckout(33, "Pit Crew")
	encoded, err := transport.EncodeQR(src)
	require.NoError(t, err)

	res, err := r.ImportQR(ctx, encoded, store.Settings{Name: "Tablet Red 1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Empty(t, n.events)

	got, err := st.Get(ctx, store.Checkouts, 33)
	require.NoError(t, err)
	assert.Equal(t, "Pit Crew", got.OwnerTag)
}

func TestImportQR_RejectsGarbage(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	_, err := r.ImportQR(context.Background(), "definitely-not-a-checkout", store.Settings{})
	assert.Error(t, err)
}
