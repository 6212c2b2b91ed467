// ABOUTME: Sync settings for the charm-backed collection store
// ABOUTME: Stored as JSON next to the local database under the XDG data dir

package charm

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/charm/kv"
)

const (
	// DefaultCharmHost is the public charm server.
	DefaultCharmHost = "cloud.charm.sh"

	// AppName names the charm KV database and the data directory.
	AppName = "crmpulse"

	// ConfigFileName is the sync settings file.
	ConfigFileName = "sync.json"

	// EnvHost overrides the configured host.
	EnvHost = "CRMPULSE_CHARM_HOST"
)

// Config holds sync settings.
type Config struct {
	Host           string        `json:"host,omitempty"`
	AutoSync       bool          `json:"auto_sync"`
	StaleThreshold time.Duration `json:"stale_threshold,omitempty"`
}

// DefaultConfig returns sync settings with auto-sync off. Collections are
// a per-machine working set until the user links an account.
func DefaultConfig() *Config {
	return &Config{
		Host:           DefaultCharmHost,
		StaleThreshold: kv.DefaultStaleThreshold,
	}
}

func configPath() (string, error) {
	dir := filepath.Join(xdg.DataHome, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// LoadConfig reads the settings file, falling back to defaults when it is
// missing or unreadable.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path, err := configPath()
	if err != nil {
		return applyEnv(cfg), nil //nolint:nilerr // no data dir means defaults
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return applyEnv(cfg), nil
	case err != nil:
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return applyEnv(DefaultConfig()), nil //nolint:nilerr // a corrupt file means defaults
	}
	if cfg.Host == "" {
		cfg.Host = DefaultCharmHost
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = kv.DefaultStaleThreshold
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg *Config) *Config {
	if host := os.Getenv(EnvHost); host != "" {
		cfg.Host = host
	}
	return cfg
}

// Save writes the settings file.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SetAutoSync toggles auto-sync and saves.
func (c *Config) SetAutoSync(enabled bool) error {
	c.AutoSync = enabled
	return c.Save()
}
