package checkout

import "fmt"

// Status is the handoff status of a checkout.
type Status int

const (
	// StatusAvailable means the checkout is unowned and claimable.
	StatusAvailable Status = 0
	// StatusCheckedOut means a device has claimed the checkout and is
	// (or will be) entering data for it.
	StatusCheckedOut Status = 1
	// StatusCompleted means data entry is finished and the checkout is
	// waiting to be (or has been) uploaded.
	StatusCompleted Status = 2
)

// String returns the lowercase name used in logs and wire payloads.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusCheckedOut:
		return "checked_out"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusCheckedOut || s == StatusCompleted
}

// Alliance position codes carried on the first tab of a match checkout.
// -1 means the server supplied no position info.
const (
	PositionUndefined = -1
	// Positions 1-3 are red devices, 4-6 are blue devices.
	PositionPit = 7
)

// Checkout is the central entity: one team's scouting data for one match
// or pit visit, with ownership tracking.
//
// Checkouts are value objects. They are copied into and out of the record
// store; no shared mutable instance crosses collection boundaries.
type Checkout struct {
	// ID is globally unique and assigned by the server.
	ID int `json:"id"`

	Status Status `json:"status"`

	// OwnerTag is the display name of the device/person holding the
	// checkout. Meaningful only when Status != StatusAvailable.
	OwnerTag string `json:"name_tag,omitempty"`

	// OwnedSince is the millisecond epoch timestamp of the last
	// claim/complete transition.
	OwnedSince int64 `json:"time,omitempty"`

	Team Team `json:"team"`

	// CustomRelevance is a UI sort hint. Never persisted or transmitted.
	CustomRelevance int `json:"-"`
}

// Team is the nested team record carried by a checkout.
type Team struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	LastEdit int64  `json:"last_edit,omitempty"`
	Tabs     []Tab  `json:"tabs"`
}

// Tab is one PIT or MATCH context with its own metric set.
type Tab struct {
	Title string `json:"title"`

	// AlliancePosition maps to device slots: 1-3 red, 4-6 blue, 7 pit,
	// PositionUndefined when the server supplied none.
	AlliancePosition int `json:"alliance_position"`

	Metrics  []Metric `json:"metrics"`
	LastEdit int64    `json:"last_edit,omitempty"`

	// Edits maps author name to the millisecond timestamp of their edit.
	Edits map[string]int64 `json:"edits,omitempty"`
}

// FirstTab returns the first tab, or a zero Tab if the checkout has none.
// Assignment rules only ever inspect tab 0.
func (c *Checkout) FirstTab() Tab {
	if len(c.Team.Tabs) == 0 {
		return Tab{AlliancePosition: PositionUndefined}
	}
	return c.Team.Tabs[0]
}

// HasUserEdits reports whether any tab carries a metric a scouter actually
// modified. Derived (calculation) and read-only (field data) metrics are
// ignored: field data always reports itself modified and calculations are
// recomputed, so neither represents data that could be lost.
func (c *Checkout) HasUserEdits() bool {
	for _, tab := range c.Team.Tabs {
		for _, m := range tab.Metrics {
			if m.UserEdited() {
				return true
			}
		}
	}
	return false
}

// StampEdits records an edit-history entry for author on every tab.
// Called when a completed checkout is packaged for upload.
func (c *Checkout) StampEdits(author string, now int64) {
	for i := range c.Team.Tabs {
		if c.Team.Tabs[i].Edits == nil {
			c.Team.Tabs[i].Edits = make(map[string]int64)
		}
		c.Team.Tabs[i].Edits[author] = now
	}
}

// Clone returns a deep copy of the checkout. Metric payloads are copied so
// callers can mutate the clone without aliasing stored data.
func (c *Checkout) Clone() Checkout {
	out := *c
	out.Team.Tabs = make([]Tab, len(c.Team.Tabs))
	for i, tab := range c.Team.Tabs {
		t := tab
		t.Metrics = make([]Metric, len(tab.Metrics))
		for j, m := range tab.Metrics {
			t.Metrics[j] = m.Clone()
		}
		if tab.Edits != nil {
			t.Edits = make(map[string]int64, len(tab.Edits))
			for k, v := range tab.Edits {
				t.Edits[k] = v
			}
		}
		out.Team.Tabs[i] = t
	}
	return out
}
