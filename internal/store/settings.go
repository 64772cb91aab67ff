package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Singleton record names.
const (
	singletonSettings = "settings"
	singletonCursor   = "cloud_settings"
	singletonForm     = "form"
)

// Assignment modes. 1-3 are red device slots, 4-6 blue device slots.
const (
	AssignDisabled = 0
	AssignPit      = 7
)

// Settings is the device settings singleton. Created with defaults on
// first launch, mutated through the settings UI, read by every sync cycle.
type Settings struct {
	// Name is the owner display name stamped on claimed checkouts.
	Name string `json:"name"`
	// Code is the team join code required by the server.
	Code string `json:"code"`

	ServerAddr string `json:"server_addr"`

	// AssignmentMode selects auto-assignment: 0 disabled, 1-6 alliance
	// device slots, 7 pit.
	AssignmentMode int `json:"auto_assignment_mode"`

	// PeerAddrs lists paired peer devices for the peer transport.
	PeerAddrs []string `json:"peer_addrs,omitempty"`

	// Display filters for the checkouts list.
	ShowPit        bool `json:"show_pit"`
	ShowCompleted  bool `json:"show_completed"`
	ShowCheckedOut bool `json:"show_checked_out"`

	SyncDisabled bool `json:"sync_disabled"`
}

// DefaultSettings returns first-launch defaults.
func DefaultSettings() Settings {
	return Settings{
		ShowPit:    true,
		ServerAddr: "http://localhost:9527",
	}
}

// LoadSettings returns the settings singleton, creating defaults on first
// launch. firstLaunch is true when the defaults were just created.
func (s *Store) LoadSettings(ctx context.Context) (settings Settings, firstLaunch bool, err error) {
	err = s.getSingleton(ctx, singletonSettings, &settings)
	if err == sql.ErrNoRows {
		settings = DefaultSettings()
		if err := s.SaveSettings(ctx, settings); err != nil {
			return Settings{}, false, err
		}
		return settings, true, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("load settings: %w", err)
	}
	return settings, false, nil
}

// SaveSettings replaces the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if err := s.putSingleton(ctx, singletonSettings, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) getSingleton(ctx context.Context, name string, out any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM singletons WHERE name = ?", name,
	).Scan(&data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("decode singleton %s: %w", name, err)
	}
	return nil
}

func (s *Store) putSingleton(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode singleton %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO singletons (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, name, string(data))
	return err
}
