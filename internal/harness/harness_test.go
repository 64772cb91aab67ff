package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/checkout"
	"github.com/widavies/RobluScouter/internal/transport"
)

func remote(t *testing.T, c checkout.Checkout, version int64) transport.RemoteCheckout {
	t.Helper()
	content, err := json.Marshal(c)
	require.NoError(t, err)
	return transport.RemoteCheckout{ID: c.ID, Content: content, SyncVersion: version}
}

func matchCheckout(id, team, position int) checkout.Checkout {
	return checkout.Checkout{
		ID: id,
		Team: checkout.Team{
			Number: team,
			Name:   fmt.Sprintf("Team %d", team),
			Tabs:   []checkout.Tab{{Title: "Match", AlliancePosition: position}},
		},
	}
}

// A red-1 device pulls two fresh checkouts, auto-claims the one matching
// its slot, and uploads the claim on the following cycle.
func TestScenario_ClaimAndUpload(t *testing.T) {
	sc := &Scenario{
		Name:           "claim_and_upload",
		Device:         "Red 1",
		AssignmentMode: 1,
		Steps: []Step{
			{
				Name: "pull_assigns_slot",
				Apply: func(t *testing.T, env *Env) {
					env.Transport.Team = transport.TeamInfo{
						Number:      2708,
						EventName:   "Kingston",
						SyncVersion: 1,
					}
					env.Transport.Enqueue(
						remote(t, matchCheckout(1, 101, 1), 1),
						remote(t, matchCheckout(2, 102, 4), 2),
					)
				},
			},
			// Nothing new arrives; the cycle pushes the claim recorded in
			// the previous step and clears pending.
			{Name: "upload_claim"},
		},
	}
	RunWithGolden(t, sc)
}

// A device with assignment disabled mirrors a foreign claim, then the
// server ends the event and every local record is wiped.
func TestScenario_EventRollover(t *testing.T) {
	sc := &Scenario{
		Name:   "event_rollover",
		Device: "Red 3",
		Steps: []Step{
			{
				Name: "foreign_claim_arrives",
				Apply: func(t *testing.T, env *Env) {
					env.Transport.Team = transport.TeamInfo{
						Number:      2708,
						EventName:   "Kingston",
						SyncVersion: 3,
					}
					c := matchCheckout(5, 254, 4)
					require.NoError(t, c.Claim("Blue 2", 900))
					env.Transport.Enqueue(remote(t, c, 9))
				},
			},
			{
				Name: "event_ends",
				Apply: func(t *testing.T, env *Env) {
					env.Transport.EventInactive = true
				},
			},
		},
	}
	RunWithGolden(t, sc)
}
