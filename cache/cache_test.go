package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedContentRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewResolvedContent(0)
	c.Add(12, []byte("hello"))

	got, ok := c.Get(12)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))

	_, ok = c.Get(999)
	assert.False(t, ok)
}

func TestResolvedContentEvictsBySize(t *testing.T) {
	t.Parallel()

	c := NewResolvedContent(10)
	c.Add(1, []byte("12345"))
	c.Add(2, []byte("67890"))

	// both fit exactly; a third entry must evict the oldest (position 1).
	c.Add(3, []byte("abcde"))

	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestResolvedContentRejectsOversizedEntry(t *testing.T) {
	t.Parallel()

	c := NewResolvedContent(4)
	c.Add(1, []byte("12345"))

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestResolvedContentClear(t *testing.T) {
	t.Parallel()

	c := NewResolvedContent(0)
	c.Add(1, []byte("x"))
	c.Clear()

	_, ok := c.Get(1)
	assert.False(t, ok)
}
