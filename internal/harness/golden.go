package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/store"
)

// StepSnapshot is the store state after one sync cycle, serialized in a
// deterministic shape for golden comparison.
type StepSnapshot struct {
	Step          string       `json:"step"`
	Checkouts     []RecordLine `json:"checkouts"`
	MyCheckouts   []RecordLine `json:"my_checkouts"`
	Pending       []RecordLine `json:"pending"`
	Cursor        CursorLine   `json:"cursor"`
	Notifications []string     `json:"notifications"`
}

// RecordLine is one checkout reduced to its sync-relevant fields.
type RecordLine struct {
	ID     int    `json:"id"`
	Team   int    `json:"team"`
	Status string `json:"status"`
	Owner  string `json:"owner,omitempty"`
}

// CursorLine is the sync cursor with its version map flattened into a
// sorted list.
type CursorLine struct {
	Event         string        `json:"event,omitempty"`
	TeamVersion   int64         `json:"team_version"`
	Versions      []VersionLine `json:"versions,omitempty"`
	PeerSync      int64         `json:"peer_sync,omitempty"`
	CooldownUntil int64         `json:"cooldown_until,omitempty"`
}

// VersionLine is one entry of the per-checkout version map.
type VersionLine struct {
	ID      int   `json:"id"`
	Version int64 `json:"version"`
}

func snapshotStep(t *testing.T, ctx context.Context, env *Env, name string) StepSnapshot {
	t.Helper()

	snap := StepSnapshot{
		Step:          name,
		Notifications: []string{},
	}
	for _, ev := range env.drainNotifications() {
		snap.Notifications = append(snap.Notifications, fmt.Sprintf("%s (%d)", ev.Title, ev.Count))
	}

	for _, c := range []struct {
		col store.Collection
		dst *[]RecordLine
	}{
		{store.Checkouts, &snap.Checkouts},
		{store.MyCheckouts, &snap.MyCheckouts},
		{store.Pending, &snap.Pending},
	} {
		items, err := env.Store.List(ctx, c.col)
		require.NoError(t, err)
		lines := make([]RecordLine, 0, len(items))
		for _, item := range items {
			lines = append(lines, RecordLine{
				ID:     item.ID,
				Team:   item.Team.Number,
				Status: item.Status.String(),
				Owner:  item.OwnerTag,
			})
		}
		*c.dst = lines
	}

	cursor, err := env.Store.LoadCursor(ctx)
	require.NoError(t, err)
	snap.Cursor = CursorLine{
		Event:         cursor.EventName,
		TeamVersion:   cursor.TeamVersion,
		PeerSync:      cursor.LastPeerSync,
		CooldownUntil: cursor.UploadCooldownUntil,
	}
	for id, v := range cursor.CheckoutVersions {
		snap.Cursor.Versions = append(snap.Cursor.Versions, VersionLine{ID: id, Version: v})
	}
	sort.Slice(snap.Cursor.Versions, func(i, j int) bool {
		return snap.Cursor.Versions[i].ID < snap.Cursor.Versions[j].ID
	})
	return snap
}

// RunWithGolden executes the scenario and compares the per-step snapshots
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	snapshots := Run(t, sc)
	data, err := json.MarshalIndent(snapshots, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
}
