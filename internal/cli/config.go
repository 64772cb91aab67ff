package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/widavies/RobluScouter/internal/store"
)

// AgentConfig is the optional YAML bootstrap file for the sync agent. It
// seeds the device settings singleton on first launch; after that, the
// settings stored in the database win unless a field is explicitly set
// here again.
type AgentConfig struct {
	DeviceName     string   `yaml:"device_name"`
	TeamCode       string   `yaml:"team_code"`
	ServerAddr     string   `yaml:"server_addr"`
	AssignmentMode *int     `yaml:"assignment_mode"`
	PeerAddrs      []string `yaml:"peer_addrs"`
	SyncInterval   string   `yaml:"sync_interval"`
}

// LoadAgentConfig reads and parses the config at path. An empty path
// returns a zero config.
func LoadAgentConfig(path string) (AgentConfig, error) {
	var cfg AgentConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Interval parses the configured sync interval, or returns fallback.
func (c AgentConfig) Interval(fallback time.Duration) (time.Duration, error) {
	if c.SyncInterval == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("parse sync_interval %q: %w", c.SyncInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("sync_interval must be positive, got %q", c.SyncInterval)
	}
	return d, nil
}

// Apply overlays the config's set fields onto settings.
func (c AgentConfig) Apply(settings store.Settings) store.Settings {
	if c.DeviceName != "" {
		settings.Name = c.DeviceName
	}
	if c.TeamCode != "" {
		settings.Code = c.TeamCode
	}
	if c.ServerAddr != "" {
		settings.ServerAddr = c.ServerAddr
	}
	if c.AssignmentMode != nil {
		settings.AssignmentMode = *c.AssignmentMode
	}
	if len(c.PeerAddrs) > 0 {
		settings.PeerAddrs = append([]string(nil), c.PeerAddrs...)
	}
	return settings
}
