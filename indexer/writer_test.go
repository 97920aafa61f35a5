package indexer

import (
	"io"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-pack-indexer/progress"
)

func readAll(t *testing.T, fs billy.Filesystem, name string) []byte {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer f.Close()

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	return content
}

func TestAppendWriterWritesAndCommits(t *testing.T) {
	fs := osfs.New(t.TempDir())
	w, err := newAppendWriter(fs, 0o644, 8, progress.NewReporter(nil))
	require.NoError(t, err)

	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.EqualValues(t, 11, w.Size())

	final, err := w.commit("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "pack-deadbeef.pack", final)

	assert.Equal(t, "hello world", string(readAll(t, fs, final)))
}

func TestAppendWriterAbortRemovesTempFile(t *testing.T) {
	fs := osfs.New(t.TempDir())
	w, err := newAppendWriter(fs, 0o644, defaultWriteChunk, progress.NewReporter(nil))
	require.NoError(t, err)

	_, err = w.Write([]byte("data"))
	require.NoError(t, err)

	tempName := w.tempName()
	require.NoError(t, w.abort())

	_, err = fs.Stat(tempName)
	assert.True(t, os.IsNotExist(err))
}
