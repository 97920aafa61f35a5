package idx

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-pack-indexer/objid"
)

func mustID(t *testing.T, hex string) objid.ID {
	t.Helper()
	id, ok := objid.FromHex(hex)
	require.True(t, ok)
	return id
}

func TestEncodeSingleEntry(t *testing.T) {
	t.Parallel()

	b := NewBuilder(1)
	id := mustID(t, strings.Repeat("ab", 20))
	b.Add(id, 12, 0xdeadbeef)

	var buf bytes.Buffer
	e := NewEncoder(&buf, objid.SHA1)
	trailer := bytes.Repeat([]byte{0x11}, objid.SHA1Size)
	_, err := e.Encode(b.Entries(), trailer)
	require.NoError(t, err)

	out := buf.Bytes()
	assert.Equal(t, idxMagic[:], out[:4])
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(out[4:8]))

	fanout := out[8 : 8+256*4]
	// every fanout slot at or past 0xab should read 1; everything before, 0.
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(fanout[0xaa*4:0xaa*4+4]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(fanout[0xab*4:0xab*4+4]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(fanout[255*4:255*4+4]))

	idsSection := out[8+256*4:]
	assert.Equal(t, id.Bytes(), idsSection[:20])

	crcSection := idsSection[20:]
	assert.Equal(t, uint32(0xdeadbeef), binary.BigEndian.Uint32(crcSection[:4]))

	offsetSection := crcSection[4:]
	assert.Equal(t, uint32(12), binary.BigEndian.Uint32(offsetSection[:4]))

	rest := offsetSection[4:]
	assert.Equal(t, trailer, rest[:objid.SHA1Size])
	assert.Len(t, rest[objid.SHA1Size:], objid.SHA1Size)
}

func TestEncodeLongOffset(t *testing.T) {
	t.Parallel()

	b := NewBuilder(2)
	low := mustID(t, strings.Repeat("00", 20))
	high := mustID(t, strings.Repeat("ff", 20))
	b.Add(high, 1<<31+100, 1)
	b.Add(low, 50, 2)

	var buf bytes.Buffer
	e := NewEncoder(&buf, objid.SHA1)
	trailer := bytes.Repeat([]byte{0x22}, objid.SHA1Size)
	_, err := e.Encode(b.Entries(), trailer)
	require.NoError(t, err)

	out := buf.Bytes()
	offsetSection := out[8+256*4+2*20+2*4:]

	// low sorts first: direct 32-bit offset.
	assert.Equal(t, uint32(50), binary.BigEndian.Uint32(offsetSection[:4]))
	// high sorts second: MSB set, index 0 into the long-offset section.
	assert.Equal(t, uint32(0x80000000), binary.BigEndian.Uint32(offsetSection[4:8]))

	longSection := offsetSection[8:]
	assert.Equal(t, uint64(1<<31+100), binary.BigEndian.Uint64(longSection[:8]))
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0)

	var buf bytes.Buffer
	e := NewEncoder(&buf, objid.SHA1)
	trailer := bytes.Repeat([]byte{0x33}, objid.SHA1Size)
	_, err := e.Encode(b.Entries(), trailer)
	require.NoError(t, err)

	out := buf.Bytes()
	fanout := out[8 : 8+256*4]
	for i := 0; i < 256; i++ {
		assert.Equal(t, uint32(0), binary.BigEndian.Uint32(fanout[i*4:i*4+4]))
	}
	assert.Equal(t, trailer, out[8+256*4:8+256*4+objid.SHA1Size])
}
