// ABOUTME: Persists the current deal and task collections in the synced KV store
// ABOUTME: Collections are stored as JSON arrays under fixed keys
package collection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/harperreed/crmpulse/models"
)

// ErrUnknownKind is returned for a collection kind other than deals or tasks.
var ErrUnknownKind = errors.New("unknown collection kind")

const keyPrefix = "collection:"

// KV is the subset of the charm client the cache needs.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Cache holds the working deal and task collections between commands.
type Cache struct {
	kv KV
}

// NewCache creates a cache over a KV store.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Key returns the KV key for a collection kind.
func Key(kind string) ([]byte, error) {
	switch kind {
	case models.KindDeals, models.KindTasks:
		return []byte(keyPrefix + kind), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Deals returns the cached deals, or nil when nothing is cached.
func (c *Cache) Deals() ([]models.Deal, error) {
	var deals []models.Deal
	if err := c.load(models.KindDeals, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// Tasks returns the cached tasks, or nil when nothing is cached.
func (c *Cache) Tasks() ([]models.Task, error) {
	var tasks []models.Task
	if err := c.load(models.KindTasks, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveDeals replaces the cached deals.
func (c *Cache) SaveDeals(deals []models.Deal) error {
	return c.save(models.KindDeals, deals)
}

// SaveTasks replaces the cached tasks.
func (c *Cache) SaveTasks(tasks []models.Task) error {
	return c.save(models.KindTasks, tasks)
}

// MergeDeals merges incoming deals into the cached ones and stores the result.
func (c *Cache) MergeDeals(incoming []models.Deal) ([]models.Deal, error) {
	existing, err := c.Deals()
	if err != nil {
		return nil, err
	}
	merged := Merge(existing, incoming)
	if err := c.SaveDeals(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeTasks merges incoming tasks into the cached ones and stores the result.
func (c *Cache) MergeTasks(incoming []models.Task) ([]models.Task, error) {
	existing, err := c.Tasks()
	if err != nil {
		return nil, err
	}
	merged := Merge(existing, incoming)
	if err := c.SaveTasks(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clear removes the given collections. With no kinds it removes both.
func (c *Cache) Clear(kinds ...string) error {
	if len(kinds) == 0 {
		kinds = []string{models.KindDeals, models.KindTasks}
	}
	for _, kind := range kinds {
		key, err := Key(kind)
		if err != nil {
			return err
		}
		if err := c.kv.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to clear %s: %w", kind, err)
		}
	}
	return nil
}

func (c *Cache) load(kind string, dst any) error {
	key, err := Key(kind)
	if err != nil {
		return err
	}

	data, err := c.kv.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", kind, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

func (c *Cache) save(kind string, records any) error {
	key, err := Key(kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	if err := c.kv.Set(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return nil
}
