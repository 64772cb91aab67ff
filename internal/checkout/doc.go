// Package checkout defines the core scouting data model: checkouts, teams,
// tabs, and the metric value types scouters fill in.
//
// A checkout is one unit of scouting work - one team's data for a single
// match or pit visit - together with ownership and handoff status. Checkout
// IDs are assigned by the server; this client never mints new ones.
//
// # Status lifecycle
//
//	Available ──claim──▶ CheckedOut ──complete──▶ Completed
//	    ▲                    │
//	    └─────release────────┘  (refused if any user-editable metric is modified)
//
// Claim and Complete stamp the owner tag and timestamp. Release is guarded:
// a checkout with user-entered data never silently reverts to Available.
//
// # Metrics
//
// Metrics are a closed tagged variant (see MetricKind). Each Metric carries
// an envelope (kind, id, title, modified flag) plus a kind-specific payload.
// Dispatch is by switching on the payload type, never by reflection.
package checkout
