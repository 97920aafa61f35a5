// Package mmapfile gives the committed-pack resolver read-only byte access
// to the pack file without holding a second full copy of it in memory.
//
// This is deliberately not a port of a general pack scanner: the indexer
// already keeps its own position index in memory (the entry table built
// while scanning), so there is no need for a second lookup structure that
// binary-searches an idx file by object identity. All this package owns is
// turning an already-fully-written pack file into a []byte the resolver can
// slice into by the positions it already knows.
package mmapfile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
)

var (
	packSignature = []byte{'P', 'A', 'C', 'K'}
	packMinLen    = 12
)

// ErrNilFile is returned when Open is given a nil billy.File.
var ErrNilFile = errors.New("mmapfile: nil file")

// File is a read-only view of a pack file's bytes. The zero value is not
// usable; obtain one from Open.
type File struct {
	data    []byte
	cleanup func() error
}

// Open maps f's contents read-only and validates that it looks like a pack
// file (signature "PACK", at least a 12-byte header). The returned File
// must be closed once the resolver is done with it.
func Open(f billy.File) (*File, error) {
	if f == nil {
		return nil, ErrNilFile
	}

	data, cleanup, err := open(f)
	if err != nil {
		return nil, err
	}

	if err := validate(data); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("malformed pack file: %w", err)
	}

	return &File{data: data, cleanup: cleanup}, nil
}

// Bytes returns the mapped pack contents. The slice is only valid until
// Close is called.
func (f *File) Bytes() []byte {
	return f.data
}

// Close unmaps the file (or, on the fallback path, simply releases the
// in-memory copy) and closes the underlying descriptor.
func (f *File) Close() error {
	if f.cleanup == nil {
		return nil
	}
	err := f.cleanup()
	f.cleanup = nil
	f.data = nil
	return err
}

func validate(data []byte) error {
	if len(data) < packMinLen {
		return fmt.Errorf("too short: %d bytes", len(data))
	}
	if !bytes.Equal(packSignature, data[:4]) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
