package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Cursor tracks last-successful-sync markers per transport, plus the sync
// loop's own bookkeeping that must survive independently of the
// user-editable Settings singleton. Persisted after every mutation.
type Cursor struct {
	// CheckoutVersions maps checkout ID to the server-assigned sync
	// version last seen for it. The network transport pulls only records
	// newer than these.
	CheckoutVersions map[int]int64 `json:"checkout_versions"`

	// LastPeerSync is the millisecond timestamp of the last successful
	// peer (Bluetooth) pull; the peer transport syncs by timestamp, not
	// per-ID versions.
	LastPeerSync int64 `json:"last_peer_sync"`

	// TeamVersion is the server's version stamp for team metadata
	// (form, event name). Mismatch triggers a team metadata pull.
	TeamVersion int64 `json:"team_version"`

	// EventName is the competition event the local data belongs to.
	// A change signals an event rollover and triggers the local reset.
	EventName string `json:"event_name"`

	TeamNumber int `json:"team_number,omitempty"`

	// UploadCooldownUntil is a millisecond deadline: do not push pending
	// records again before this time. Reset whenever a new pending item
	// appears.
	UploadCooldownUntil int64 `json:"upload_cooldown_until"`
}

// Versions returns the version map, allocating it on first use.
func (c *Cursor) Versions() map[int]int64 {
	if c.CheckoutVersions == nil {
		c.CheckoutVersions = make(map[int]int64)
	}
	return c.CheckoutVersions
}

// Reset clears every marker. Called when the active event changes.
func (c *Cursor) Reset() {
	c.CheckoutVersions = nil
	c.LastPeerSync = 0
	c.TeamVersion = 0
	c.EventName = ""
	c.TeamNumber = 0
	c.UploadCooldownUntil = 0
}

// LoadCursor returns the persisted sync cursor, or a zero cursor if none
// has been written yet.
func (s *Store) LoadCursor(ctx context.Context) (Cursor, error) {
	var c Cursor
	err := s.getSingleton(ctx, singletonCursor, &c)
	if err == sql.ErrNoRows {
		return Cursor{}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return c, nil
}

// SaveCursor persists the sync cursor.
func (s *Store) SaveCursor(ctx context.Context, c Cursor) error {
	if err := s.putSingleton(ctx, singletonCursor, c); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
