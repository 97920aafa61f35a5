package indexer

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-git/go-billy/v5"

	"github.com/go-git/go-pack-indexer/progress"
)

// defaultWriteChunk bounds a single underlying Write call. Some platforms
// (notably older Windows releases go-git has historically worked around)
// cap how much a single write syscall will accept; splitting defensively
// costs nothing on platforms without such a limit.
const defaultWriteChunk = 32 << 20

// appendWriter is the append writer (component B): every byte Append
// receives is copied, once, to a temporary pack file, verbatim and in
// order, independently of whatever the parser does with the same bytes —
// so a parse failure mid-stream still leaves the caller's bytes on disk
// for inspection. Grounded on
// storage/filesystem/dotgit/writers.go's PackWriter temp-then-rename
// discipline, without its goroutine+pipe concurrency: §5 forbids an
// internal thread pool, so every Write here runs synchronously on the
// caller's goroutine.
type appendWriter struct {
	fs       billy.Filesystem
	tmp      billy.File
	mode     os.FileMode
	chunk    int
	reporter *progress.Reporter

	size int64
}

func newAppendWriter(fs billy.Filesystem, mode os.FileMode, chunk int, reporter *progress.Reporter) (*appendWriter, error) {
	tmp, err := fs.TempFile("", "tmp_pack_")
	if err != nil {
		return nil, wrapError(KindIO, err)
	}

	return &appendWriter{fs: fs, tmp: tmp, mode: mode, chunk: chunk, reporter: reporter}, nil
}

// Write copies p to the temp pack file, splitting into chunk-sized pieces.
func (w *appendWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > w.chunk {
			n = w.chunk
		}

		m, err := w.tmp.Write(p[:n])
		written += m
		w.size += int64(m)
		if err != nil {
			return written, wrapError(KindIO, err)
		}
		if w.reporter != nil {
			if abort := w.reporter.AddReceivedBytes(int64(m)); abort != 0 {
				return written, newError(KindCancelled, "append aborted by observer after %d bytes", w.size)
			}
		}
		p = p[n:]
	}
	return written, nil
}

// Size returns the number of bytes written so far.
func (w *appendWriter) Size() int64 {
	return w.size
}

// tempName returns the temp file's path, for re-opening a read view of it
// (e.g. to mmap the already-written bytes at commit time).
func (w *appendWriter) tempName() string {
	return w.tmp.Name()
}

// commit closes the temp file and renames it to its final name,
// pack-<hex>.pack, fixing permissions to mode.
func (w *appendWriter) commit(hexID string) (string, error) {
	if err := w.tmp.Close(); err != nil {
		return "", wrapError(KindIO, err)
	}

	final := fmt.Sprintf("pack-%s.pack", hexID)
	if err := w.fs.Rename(w.tmp.Name(), final); err != nil {
		return "", wrapError(KindIO, err)
	}
	fixPermissions(w.fs, final, w.mode)
	return final, nil
}

// abort closes and removes the temp file, leaving no trace on disk. It is
// a no-op if commit already ran.
func (w *appendWriter) abort() error {
	_ = w.tmp.Close()
	if err := w.fs.Remove(w.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return wrapError(KindIO, err)
	}
	return nil
}

func fixPermissions(fs billy.Filesystem, path string, mode os.FileMode) {
	if runtime.GOOS == "windows" {
		return
	}
	if chmodFS, ok := fs.(billy.Chmod); ok {
		_ = chmodFS.Chmod(path, mode)
	}
}
