//go:build !darwin && !linux

package mmapfile

import (
	"io"

	"github.com/go-git/go-billy/v5"
)

// open has no mmap syscall available on this platform, so it falls back to
// reading the whole pack into memory. Unlike a general-purpose pack scanner,
// this package never needs to map packs larger than memory allows — the
// indexer already builds a complete in-memory entry table while scanning,
// so degrading to a full read here doesn't change the package's memory
// profile by more than a constant factor.
func open(f billy.File) ([]byte, func() error, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error {
		return f.Close()
	}

	return data, cleanup, nil
}
