package syncer

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/assign"
	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/notify"
	"github.com/widavies/RobluScouter/internal/reconcile"
	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

func newHostFixture(t *testing.T) (*PeerHost, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scouter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := func() int64 { return 42_000 }
	rec := reconcile.New(st,
		assign.New(st, assign.WithClock(clock)),
		reconcile.WithClock(clock),
		reconcile.WithNotifier(notify.Discard{}),
	)
	return NewPeerHost(st, rec), st
}

func TestPeerHost_EventActiveFollowsCursor(t *testing.T) {
	h, st := newHostFixture(t)
	ctx := context.Background()

	active, err := h.EventActive(ctx)
	require.NoError(t, err)
	assert.False(t, active, "no mirrored event means nothing to serve")

	require.NoError(t, st.SaveCursor(ctx, store.Cursor{EventName: "ONT District"}))
	active, err = h.EventActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestPeerHost_TeamServesMirroredMetadata(t *testing.T) {
	h, st := newHostFixture(t)
	ctx := context.Background()

	form := checkout.Form{
		Match: []checkout.Metric{{ID: 1, Title: "Cargo", Value: checkout.CounterValue{Increment: 1}}},
	}
	require.NoError(t, st.SaveForm(ctx, form))
	require.NoError(t, st.SaveCursor(ctx, store.Cursor{
		EventName:   "ONT District",
		TeamNumber:  2708,
		TeamVersion: 4,
	}))

	info, changed, err := h.Team(ctx, 0)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, 2708, info.Number)
	assert.Equal(t, "ONT District", info.EventName)
	assert.Equal(t, int64(4), info.SyncVersion)

	var gotForm checkout.Form
	require.NoError(t, json.Unmarshal(info.Form, &gotForm))
	assert.Equal(t, form, gotForm)

	_, changed, err = h.Team(ctx, 4)
	require.NoError(t, err)
	assert.False(t, changed, "a caller already at the version gets nothing")
}

func TestPeerHost_AcceptCheckoutsMergesAndAdvancesCursor(t *testing.T) {
	h, st := newHostFixture(t)
	ctx := context.Background()

	c := availableCheckout(3)
	require.NoError(t, c.Claim("Tablet Blue 2", 900))
	require.NoError(t, h.AcceptCheckouts(ctx, "Tablet Blue 2",
		[]transport.RemoteCheckout{remoteItem(t, c, 0)}))

	got, err := st.Get(ctx, store.Checkouts, 3)
	require.NoError(t, err)
	assert.Equal(t, "Tablet Blue 2", got.OwnerTag)

	cursor, err := st.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42_000), cursor.LastPeerSync)
}

func TestPeerHost_AcceptEmptyBatchIsNoOp(t *testing.T) {
	h, _ := newHostFixture(t)
	assert.NoError(t, h.AcceptCheckouts(context.Background(), "Tablet Blue 2", nil))
}

func TestPeerHost_CheckoutsSinceFiltersByTransitionTime(t *testing.T) {
	h, st := newHostFixture(t)
	ctx := context.Background()

	old := availableCheckout(1)
	require.NoError(t, old.Claim("Will", 100))
	require.NoError(t, st.WriteClaim(ctx, old))

	fresh := availableCheckout(2)
	require.NoError(t, fresh.Claim("Will", 500))
	require.NoError(t, st.WriteClaim(ctx, fresh))

	batch, err := h.CheckoutsSince(ctx, 200)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].ID)
	assert.Equal(t, int64(500), batch[0].SyncVersion)

	batch, err = h.CheckoutsSince(ctx, 500)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

// Full loop: a PeerTransport pulling from a Serve loop backed by PeerHost.
func TestPeerHost_AnswersPeerTransport(t *testing.T) {
	h, st := newHostFixture(t)
	ctx := context.Background()

	c := availableCheckout(7)
	require.NoError(t, c.Claim("Will", 900))
	require.NoError(t, st.WriteClaim(ctx, c))
	require.NoError(t, st.SaveCursor(ctx, store.Cursor{EventName: "ONT District", TeamVersion: 2}))

	dial := func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go transport.Serve(ctx, server, h)
		return client, nil
	}
	pt := transport.NewPeerConn(dial, "Tablet Blue 3")

	active, err := pt.IsEventActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	batch, err := pt.PullCheckouts(ctx, store.Cursor{LastPeerSync: 0})
	require.NoError(t, err)
	require.Len(t, batch, 1)

	var got checkout.Checkout
	require.NoError(t, json.Unmarshal(batch[0].Content, &got))
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "Will", got.OwnerTag)
}
