// ABOUTME: Synced key-value store for the working deal and task collections
// ABOUTME: Wraps charm KV behind a small interface so tests can swap in plain badger

package charm

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"

	"github.com/harperreed/crmpulse/logging"
)

// store is the part of charm KV the client uses.
type store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Reset() error
}

var (
	globalClient *Client
	clientOnce   sync.Once
	clientErr    error
)

// Client is a KV handle that optionally syncs after every write.
type Client struct {
	store  store
	config *Config
	mu     sync.RWMutex
	remote bool
}

// InitClient opens the process-wide client once.
func InitClient() error {
	clientOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			clientErr = fmt.Errorf("failed to load sync config: %w", err)
			return
		}
		globalClient, clientErr = NewClient(cfg)
	})
	return clientErr
}

// GetClient returns the process-wide client.
func GetClient() (*Client, error) {
	if err := InitClient(); err != nil {
		return nil, err
	}
	if globalClient == nil {
		return nil, fmt.Errorf("sync client not initialized")
	}
	return globalClient, nil
}

// NewClient opens the charm KV database for this app.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	_ = os.Setenv("CHARM_HOST", cfg.Host)

	db, err := kv.OpenWithDefaults(AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := &Client{store: db, config: cfg, remote: true}
	if cfg.AutoSync {
		if err := db.Sync(); err != nil {
			logging.Component("charm").Warn("initial sync failed", "host", cfg.Host, "err", err)
		}
	}
	return c, nil
}

// Config returns the client's config.
func (c *Client) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// ID returns the charm account id of this device.
func (c *Client) ID() (string, error) {
	if !c.remote {
		return "local", nil
	}
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// IsConnected reports whether the charm account is reachable.
func (c *Client) IsConnected() bool {
	_, err := c.ID()
	return err == nil
}

// Sync pushes and pulls pending changes.
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Sync()
}

// Get returns the value of key. A missing key yields badger.ErrKeyNotFound.
func (c *Client) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Get(key)
}

// Set stores a value and syncs when auto-sync is on.
func (c *Client) Set(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(key, value); err != nil {
		return err
	}
	c.autoSync()
	return nil
}

// Delete removes a key and syncs when auto-sync is on.
func (c *Client) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(key); err != nil {
		return err
	}
	c.autoSync()
	return nil
}

// autoSync must be called with the write lock held.
func (c *Client) autoSync() {
	if !c.config.AutoSync {
		return
	}
	if err := c.store.Sync(); err != nil {
		logging.Component("charm").Warn("sync after write failed", "err", err)
	}
}

// Keys returns every stored key.
func (c *Client) Keys() ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Keys()
}

// KeysWithPrefix returns the stored keys that start with prefix.
func (c *Client) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	all, err := c.Keys()
	if err != nil {
		return nil, err
	}

	var matched [][]byte
	for _, k := range all {
		if bytes.HasPrefix(k, prefix) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// Reset wipes the local store.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Reset()
}
