package objid

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHex(t *testing.T) {
	sha1Hex := strings.Repeat("af", 20)
	id, ok := FromHex(sha1Hex)
	require.True(t, ok)
	assert.Equal(t, SHA1, id.Format())
	assert.Equal(t, sha1Hex, id.String())

	sha256Hex := strings.Repeat("ab", 32)
	id256, ok := FromHex(sha256Hex)
	require.True(t, ok)
	assert.Equal(t, SHA256, id256.Format())
	assert.Equal(t, sha256Hex, id256.String())

	_, ok = FromHex("not-hex")
	assert.False(t, ok)
}

func TestFromBytes(t *testing.T) {
	raw := make([]byte, SHA1Size)
	id, ok := FromBytes(raw)
	require.True(t, ok)
	assert.True(t, id.IsZero())

	_, ok = FromBytes(make([]byte, 7))
	assert.False(t, ok)
}

func TestSort(t *testing.T) {
	a, _ := FromHex(strings.Repeat("ff", 20))
	b, _ := FromHex(strings.Repeat("00", 20))
	c, _ := FromHex(strings.Repeat("7f", 20))

	ids := []ID{a, b, c}
	Sort(ids)

	assert.Equal(t, b, ids[0])
	assert.Equal(t, c, ids[1])
	assert.Equal(t, a, ids[2])
}

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(SHA1, "blob", 5)
	h.Write([]byte("hello"))
	id := h.Sum()

	oh := NewObjectHasher(SHA1)
	id2 := oh.Compute("blob", []byte("hello"))

	assert.Equal(t, id, id2)
	assert.Equal(t, "blob 5\x00hello", "blob "+strconv.Itoa(5)+"\x00hello")
}
