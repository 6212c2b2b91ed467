// ABOUTME: Test helper that backs a Client with a throwaway badger database
// ABOUTME: No charm server or SSH keys are involved

package charm

import (
	"testing"

	"github.com/dgraph-io/badger/v3"
)

// badgerStore implements store directly on badger.
type badgerStore struct {
	db *badger.DB
}

func (b *badgerStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (b *badgerStore) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error { return txn.Set(key, value) })
}

func (b *badgerStore) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error { return txn.Delete(key) })
}

func (b *badgerStore) Keys() ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStore) Sync() error { return nil }

func (b *badgerStore) Reset() error { return b.db.DropAll() }

// NewTestClient returns a Client on a temporary badger database. Call the
// cleanup function when done.
func NewTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}

	c := &Client{
		store:  &badgerStore{db: db},
		config: &Config{Host: "localhost"},
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	}
	return c, cleanup
}
