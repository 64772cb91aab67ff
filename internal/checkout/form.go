package checkout

// Form is the scouting form definition authored on the master side and
// delivered by the server. Tabs are instantiated from these metric lists
// when the master generates checkouts; this client only stores the form so
// the UI can render titles and defaults for metrics it has not seen yet.
type Form struct {
	Pit   []Metric `json:"pit"`
	Match []Metric `json:"match"`
}
