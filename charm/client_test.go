package charm

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	c, cleanup := NewTestClient(t)
	defer cleanup()

	_, err := c.Get([]byte("collection:deals"))
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)

	require.NoError(t, c.Set([]byte("collection:deals"), []byte(`[]`)))
	require.NoError(t, c.Set([]byte("collection:tasks"), []byte(`[{"id":"1"}]`)))
	require.NoError(t, c.Set([]byte("other"), []byte(`x`)))

	got, err := c.Get([]byte("collection:tasks"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(got))

	keys, err := c.KeysWithPrefix([]byte("collection:"))
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, c.Delete([]byte("collection:deals")))
	keys, err = c.KeysWithPrefix([]byte("collection:"))
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, c.Reset())
	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWriteStatus(t *testing.T) {
	c, cleanup := NewTestClient(t)
	defer cleanup()
	require.NoError(t, c.Set([]byte("collection:deals"), []byte(`[]`)))

	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, c, c.Config()))

	out := buf.String()
	assert.Contains(t, out, "Server:    localhost")
	assert.Contains(t, out, "Account:   local")
	assert.Contains(t, out, "Keys:      1")
	assert.Contains(t, out, "collection:deals")
	assert.True(t, c.IsConnected())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultCharmHost, cfg.Host)
	assert.False(t, cfg.AutoSync)
	assert.NotZero(t, cfg.StaleThreshold)
}
