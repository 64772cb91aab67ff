package hub

import "time"

// Device is a registered scouting tablet. Registration hands back a token
// the tablet shows in its settings screen; the hub does not authenticate
// per-request beyond the shared team code.
type Device struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	Token     string    `gorm:"size:64;uniqueIndex" json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckoutRecord is the hub's copy of one checkout. Content is the opaque
// client payload; the hub never decodes it. SyncVersion increases on every
// write so clients can pull deltas.
type CheckoutRecord struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	CheckoutID  int       `gorm:"uniqueIndex" json:"id"`
	Content     string    `gorm:"type:text" json:"content"`
	SyncVersion int64     `gorm:"index" json:"sync_version"`
	Device      string    `gorm:"size:255" json:"device"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventState is the hub's team metadata singleton: the active event, the
// scouting form, and the UI layout, versioned together.
type EventState struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	TeamNumber  int    `json:"team_number"`
	Name        string `gorm:"size:255" json:"name"`
	Active      bool   `json:"active"`
	Form        string `gorm:"type:text" json:"form"`
	UI          string `gorm:"type:text" json:"ui"`
	SyncVersion int64  `json:"sync_version"`
}
