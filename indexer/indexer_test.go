package indexer

import (
	"bytes"
	"compress/zlib"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-pack-indexer/objid"
)

// buildBlobPack assembles a minimal, well-formed v2 pack containing a
// single blob entry, matching exactly what packfile.Scanner expects to
// decode: signature, version, object count, one object header+deflate
// stream, and a trailing hash over every preceding byte.
func buildBlobPack(t *testing.T, content []byte) []byte {
	t.Helper()

	var body bytes.Buffer
	body.WriteString("PACK")
	body.Write(be32(2))
	body.Write(be32(1))

	// type=blob(3), size<16 fits in the single header byte's low nibble.
	require.Less(t, len(content), 16)
	body.WriteByte(byte(3<<4) | byte(len(content)))

	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	_, err := w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	body.Write(z.Bytes())

	h := objid.NewHash(objid.SHA1)
	h.Write(body.Bytes())
	trailer := h.Sum(nil)

	return append(body.Bytes(), trailer...)
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func TestIndexerAppendAndCommitSingleBlob(t *testing.T) {
	dir := t.TempDir()
	pack := buildBlobPack(t, []byte("hello"))

	ix, err := NewIndexer(dir, objid.SHA1, 0o644, nil, nil)
	require.NoError(t, err)

	// Split the stream across two Append calls to exercise the resumable
	// scanner and the chunked append writer together.
	mid := len(pack) / 2
	n, err := ix.Append(pack[:mid])
	require.NoError(t, err)
	assert.Equal(t, mid, n)

	n, err = ix.Append(pack[mid:])
	require.NoError(t, err)
	assert.Equal(t, len(pack)-mid, n)

	n, err = ix.Append(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	id, err := ix.Commit(context.Background())
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	osFS := osfs.New(dir)
	_, err = osFS.Stat("pack-" + id.String() + ".pack")
	assert.NoError(t, err)
	_, err = osFS.Stat("pack-" + id.String() + ".idx")
	assert.NoError(t, err)

	require.NoError(t, ix.Free())
}

func TestIndexerAppendRejectedAfterFailure(t *testing.T) {
	dir := t.TempDir()

	ix, err := NewIndexer(dir, objid.SHA1, 0o644, nil, nil)
	require.NoError(t, err)

	_, err = ix.Append([]byte("not a pack"))
	require.Error(t, err)

	_, err = ix.Append([]byte("more"))
	require.Error(t, err)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindState, ie.Kind)
}

func TestIndexerCommitBeforeCompleteFails(t *testing.T) {
	dir := t.TempDir()

	ix, err := NewIndexer(dir, objid.SHA1, 0o644, nil, nil)
	require.NoError(t, err)

	_, err = ix.Commit(context.Background())
	require.Error(t, err)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindState, ie.Kind)
}

// buildMixedPack assembles a v2 pack containing one blob, one OFS_DELTA
// entry based on it, and one REF_DELTA entry also based on it (referencing
// the blob by id rather than by offset), exercising every entry kind §8's
// integration test plan calls for in one synthetic stream.
func buildMixedPack(t *testing.T) []byte {
	t.Helper()

	baseContent := []byte("hi")
	baseID := objid.NewObjectHasher(objid.SHA1).Compute("blob", baseContent)

	ofsInstr := []byte{2, 8, 0x90, 2, 6}
	ofsInstr = append(ofsInstr, " there"...)

	refInstr := []byte{2, 5, 0x90, 2, 3}
	refInstr = append(refInstr, "!!!"...)

	var body bytes.Buffer
	body.WriteString("PACK")
	body.Write(be32(2))
	body.Write(be32(3))

	basePos := int64(body.Len())
	body.WriteByte(byte(3<<4) | byte(len(baseContent))) // blob, size 2
	body.Write(deflate(t, baseContent))

	ofsPos := int64(body.Len())
	body.WriteByte(byte(6<<4) | byte(len(ofsInstr))) // OFS_DELTA, instr size 11
	offset := ofsPos - basePos
	require.Less(t, offset, int64(128))
	body.WriteByte(byte(offset))
	body.Write(deflate(t, ofsInstr))

	body.WriteByte(byte(7<<4) | byte(len(refInstr))) // REF_DELTA, instr size 8
	body.Write(baseID.Bytes())
	body.Write(deflate(t, refInstr))

	h := objid.NewHash(objid.SHA1)
	h.Write(body.Bytes())
	trailer := h.Sum(nil)

	return append(body.Bytes(), trailer...)
}

// TestIndexerMixedPackChunkSplitsProduceIdenticalOutput builds one
// synthetic pack containing a blob, an OFS_DELTA and a REF_DELTA entry, and
// feeds it through the indexer split across several different Append chunk
// boundaries, asserting the committed pack and index bytes come out
// identical regardless of where the stream happened to be cut — the
// integration test §8 commits to.
func TestIndexerMixedPackChunkSplitsProduceIdenticalOutput(t *testing.T) {
	pack := buildMixedPack(t)

	splits := [][]int{
		{len(pack)},
		{1, len(pack) - 1},
		{len(pack) / 2, len(pack) - len(pack)/2},
		{3, 7, 16, len(pack)},
		{1, 1, 1, 1, len(pack) - 4},
	}

	var wantPack, wantIdx []byte
	for i, chunks := range splits {
		dir := t.TempDir()
		ix, err := NewIndexer(dir, objid.SHA1, 0o644, nil, nil)
		require.NoError(t, err)

		off := 0
		for _, n := range chunks {
			if n <= 0 || off >= len(pack) {
				continue
			}
			end := off + n
			if end > len(pack) {
				end = len(pack)
			}
			_, err := ix.Append(pack[off:end])
			require.NoError(t, err)
			off = end
		}
		require.Equal(t, len(pack), off)

		id, err := ix.Commit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, ix.Stats().ExternalBases, "ref-delta base is present in-pack, not external")

		gotPack, err := os.ReadFile(filepath.Join(dir, "pack-"+id.String()+".pack"))
		require.NoError(t, err)
		gotIdx, err := os.ReadFile(filepath.Join(dir, "pack-"+id.String()+".idx"))
		require.NoError(t, err)

		if i == 0 {
			wantPack, wantIdx = gotPack, gotIdx
		} else {
			assert.Equal(t, wantPack, gotPack, "split %v produced different pack bytes", chunks)
			assert.Equal(t, wantIdx, gotIdx, "split %v produced different idx bytes", chunks)
		}

		require.NoError(t, ix.Free())
	}
}

func TestIndexerFreeAbortsUncommittedTempFile(t *testing.T) {
	dir := t.TempDir()
	pack := buildBlobPack(t, []byte("world"))

	ix, err := NewIndexer(dir, objid.SHA1, 0o644, nil, nil)
	require.NoError(t, err)

	_, err = ix.Append(pack)
	require.NoError(t, err)

	tempName := ix.writer.tempName()
	require.NoError(t, ix.Free())

	_, err = osfs.New(dir).Stat(tempName)
	assert.True(t, os.IsNotExist(err))
}
