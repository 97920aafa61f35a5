//go:build darwin || linux

package mmapfile

import (
	"errors"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sys/unix"
)

// open memory-maps f read-only and shared, returning the mapped bytes and
// a cleanup func that unmaps and closes f.
func open(f billy.File) ([]byte, func() error, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, nil, errors.Join(err, f.Close())
	}

	fd, err := fileDescriptor(f)
	if err != nil {
		return nil, nil, err
	}

	data, err := unix.Mmap(int(fd), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, errors.Join(err, f.Close())
	}

	cleanup := func() error {
		return errors.Join(unix.Munmap(data), f.Close())
	}

	return data, cleanup, nil
}

// billyFileDescriptor and goFileDescriptor cover the two shapes a
// billy.File's underlying descriptor accessor shows up in: go-billy's own
// osfs.File exposes Fd() (uintptr, bool), while a bare *os.File (which
// satisfies billy.File directly in several in-memory/os-backed
// implementations) exposes the stdlib Fd() uintptr.
type billyFileDescriptor interface {
	Fd() (uintptr, bool)
}

type goFileDescriptor interface {
	Fd() uintptr
}

var ErrNoFileDescriptor = errors.New("mmapfile: file has no descriptor")

func fileDescriptor(f billy.File) (uintptr, error) {
	if ffd, ok := f.(billyFileDescriptor); ok {
		if v, ok := ffd.Fd(); ok {
			return v, nil
		}
	}
	if ffd, ok := f.(goFileDescriptor); ok {
		return ffd.Fd(), nil
	}
	return 0, ErrNoFileDescriptor
}
