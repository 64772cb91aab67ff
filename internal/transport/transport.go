// Package transport carries checkout batches between a device and the rest
// of the team. Three transports exist: HTTP against the team hub, a peer
// byte-stream protocol for direct device-to-device transfer, and a QR codec
// for fully offline handoff.
//
// Transports move opaque payloads plus sync bookkeeping. Decoding checkout
// content and merging it into the store is the reconciler's job, so a
// corrupt item on the wire never fails a whole pull here.
package transport

import (
	"context"
	"encoding/json"

	"github.com/widavies/RobluScouter/internal/store"
)

// RemoteCheckout is one checkout as it travels on the wire. Content is the
// serialized checkout; SyncVersion is the hub-assigned version used to
// advance the pull cursor (zero for transports without versioning).
type RemoteCheckout struct {
	ID          int             `json:"id"`
	Content     json.RawMessage `json:"content"`
	SyncVersion int64           `json:"sync_version"`
}

// TeamInfo is the team-level metadata a device mirrors: the active event,
// the scouting form, and the UI layout, all under one version number.
type TeamInfo struct {
	Number      int             `json:"number"`
	EventName   string          `json:"event_name"`
	SyncVersion int64           `json:"sync_version"`
	Form        json.RawMessage `json:"form,omitempty"`
	UI          json.RawMessage `json:"ui,omitempty"`
}

// Transport is the device side of the sync contract.
//
// PullTeam reports changed=false when the remote version is not newer than
// sinceVersion. PullCheckouts returns only checkouts the cursor has not
// seen. All calls honor ctx for cancellation and deadlines.
type Transport interface {
	Ping(ctx context.Context) error
	IsEventActive(ctx context.Context) (bool, error)
	PullTeam(ctx context.Context, sinceVersion int64) (info TeamInfo, changed bool, err error)
	PushCheckouts(ctx context.Context, batch []RemoteCheckout) error
	PullCheckouts(ctx context.Context, cursor store.Cursor) ([]RemoteCheckout, error)
}
