package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	require.True(t, c.IsEnabled())

	_, ok := c.Get("https://example.com/a.png")
	assert.False(t, ok)

	require.NoError(t, c.Put("https://example.com/a.png", []byte("payload")))

	data, ok := c.Get("https://example.com/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)

	_, ok = c.Get("https://example.com/b.png")
	assert.False(t, ok)

	size, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), size)

	require.NoError(t, c.Clear())
	_, ok = c.Get("https://example.com/a.png")
	assert.False(t, ok)
}

func TestCache_Disabled(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	require.NoError(t, c.Put("u", []byte("x")))
	_, ok := c.Get("u")
	assert.False(t, ok)

	var nilCache *Cache
	assert.False(t, nilCache.IsEnabled())
	_, ok = nilCache.Get("u")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Len(t, Key("https://example.com"), 32)
	assert.Equal(t, Key("a"), Key("a"))
	assert.NotEqual(t, Key("a"), Key("b"))
}
