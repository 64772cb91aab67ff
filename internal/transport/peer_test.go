package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/store"
)

// fakeHost records what the client asked for and serves canned answers.
type fakeHost struct {
	active    bool
	team      TeamInfo
	teamAt    int64
	checkouts []RemoteCheckout
	pushed    []RemoteCheckout
	pushedBy  string
	lastSince int64
	fail      bool
}

func (h *fakeHost) EventActive(context.Context) (bool, error) {
	if h.fail {
		return false, fmt.Errorf("host on fire")
	}
	return h.active, nil
}

func (h *fakeHost) Team(_ context.Context, since int64) (TeamInfo, bool, error) {
	if since >= h.teamAt {
		return TeamInfo{}, false, nil
	}
	return h.team, true, nil
}

func (h *fakeHost) AcceptCheckouts(_ context.Context, from string, batch []RemoteCheckout) error {
	h.pushedBy = from
	h.pushed = append(h.pushed, batch...)
	return nil
}

func (h *fakeHost) CheckoutsSince(_ context.Context, since int64) ([]RemoteCheckout, error) {
	h.lastSince = since
	return h.checkouts, nil
}

// pipeTransport wires a PeerTransport to a Host over net.Pipe. Each call
// gets a fresh pipe, matching the per-call dial of the real transport.
func pipeTransport(t *testing.T, h Host) *PeerTransport {
	t.Helper()
	dial := func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go func() { _ = Serve(ctx, server, h) }()
		return client, nil
	}
	return NewPeerConn(dial, "Tablet Red 1")
}

func TestPeer_Ping(t *testing.T) {
	pt := pipeTransport(t, &fakeHost{})
	assert.NoError(t, pt.Ping(context.Background()))
}

func TestPeer_EventActive(t *testing.T) {
	pt := pipeTransport(t, &fakeHost{active: true})

	active, err := pt.IsEventActive(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
}

func TestPeer_PullTeam(t *testing.T) {
	h := &fakeHost{
		team:   TeamInfo{Number: 2708, EventName: "ONT District", SyncVersion: 4},
		teamAt: 4,
	}
	pt := pipeTransport(t, h)
	ctx := context.Background()

	info, changed, err := pt.PullTeam(ctx, 2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "ONT District", info.EventName)

	_, changed, err = pt.PullTeam(ctx, 4)
	require.NoError(t, err)
	assert.False(t, changed, "up-to-date version must not re-send team info")
}

func TestPeer_PushAndPullCheckouts(t *testing.T) {
	h := &fakeHost{
		checkouts: []RemoteCheckout{{ID: 3, Content: json.RawMessage(`{"id":3}`)}},
	}
	pt := pipeTransport(t, h)
	ctx := context.Background()

	batch := []RemoteCheckout{{ID: 9, Content: json.RawMessage(`{"id":9}`)}}
	require.NoError(t, pt.PushCheckouts(ctx, batch))
	assert.Equal(t, "Tablet Red 1", h.pushedBy)
	require.Len(t, h.pushed, 1)
	assert.Equal(t, 9, h.pushed[0].ID)

	got, err := pt.PullCheckouts(ctx, store.Cursor{LastPeerSync: 555})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, int64(555), h.lastSince, "pull must carry the peer cursor timestamp")
}

func TestPeer_HostErrorSurfacesToCaller(t *testing.T) {
	pt := pipeTransport(t, &fakeHost{fail: true})

	_, err := pt.IsEventActive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host on fire")
}

func TestPeer_DialFailure(t *testing.T) {
	pt := NewPeerConn(func(context.Context) (net.Conn, error) {
		return nil, fmt.Errorf("no route to peer")
	}, "x")

	assert.Error(t, pt.Ping(context.Background()))
}
