package testutil

import (
	"context"
	"sync"

	"github.com/widavies/RobluScouter/internal/store"
	"github.com/widavies/RobluScouter/internal/transport"
)

// FakeTransport is a scriptable transport for syncer and harness tests.
// Script the remote with the exported fields, then inspect Pushed and the
// call counters after driving cycles. Zero value: reachable hub, active
// event, unchanged team, nothing to pull.
type FakeTransport struct {
	mu sync.Mutex

	// PingErr makes connectivity checks fail.
	PingErr error
	// EventInactive makes the remote report the event as ended.
	EventInactive bool
	// Team is served by PullTeam when its SyncVersion is newer than the
	// requested one.
	Team transport.TeamInfo
	// Queue is drained by the next PullCheckouts call.
	Queue []transport.RemoteCheckout
	// PushErr makes PushCheckouts fail without recording the batch.
	PushErr error
	// OnPush, if set, runs during a successful push, before the batch is
	// recorded. Tests use it to race a store mutation against the upload.
	OnPush func(batch []transport.RemoteCheckout)
	// PullErr makes PullCheckouts fail.
	PullErr error

	// Pushed accumulates every batch item successfully pushed.
	Pushed []transport.RemoteCheckout

	Pings     int
	Pushes    int
	Pulls     int
	LastPull  store.Cursor
	TeamPulls int
}

var _ transport.Transport = (*FakeTransport)(nil)

// Ping implements transport.Transport.
func (f *FakeTransport) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pings++
	return f.PingErr
}

// IsEventActive implements transport.Transport.
func (f *FakeTransport) IsEventActive(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.EventInactive, nil
}

// PullTeam implements transport.Transport.
func (f *FakeTransport) PullTeam(_ context.Context, sinceVersion int64) (transport.TeamInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TeamPulls++
	if f.Team.SyncVersion <= sinceVersion {
		return transport.TeamInfo{}, false, nil
	}
	return f.Team, true, nil
}

// PushCheckouts implements transport.Transport.
func (f *FakeTransport) PushCheckouts(_ context.Context, batch []transport.RemoteCheckout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pushes++
	if f.PushErr != nil {
		return f.PushErr
	}
	if f.OnPush != nil {
		f.OnPush(batch)
	}
	f.Pushed = append(f.Pushed, batch...)
	return nil
}

// PullCheckouts implements transport.Transport. The queue is consumed:
// a second pull returns nothing until the test enqueues more.
func (f *FakeTransport) PullCheckouts(_ context.Context, cursor store.Cursor) ([]transport.RemoteCheckout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulls++
	f.LastPull = cursor
	if f.PullErr != nil {
		return nil, f.PullErr
	}
	batch := f.Queue
	f.Queue = nil
	return batch, nil
}

// Enqueue adds items for the next PullCheckouts call.
func (f *FakeTransport) Enqueue(items ...transport.RemoteCheckout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queue = append(f.Queue, items...)
}
