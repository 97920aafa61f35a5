// Package objid implements the identity type used to address objects inside
// a packfile: a content hash that is either 20 bytes (SHA-1) or 32 bytes
// (SHA-256), plus the hash-algorithm registry used to compute it.
package objid

import "errors"

// Format names the hash algorithm an ID was computed with.
type Format string

const (
	// UnsetFormat is the zero value; Size/HexSize fall back to SHA1.
	UnsetFormat Format = ""

	// SHA1 is the legacy, default object format.
	SHA1 Format = "sha1"

	// SHA256 is the newer object format supported by Git's extensions.objectformat.
	SHA256 Format = "sha256"

	// DefaultFormat is used whenever a format is not explicit.
	DefaultFormat = SHA1
)

const (
	// SHA1Size is the size in bytes of a SHA-1 sum.
	SHA1Size = 20
	// SHA256Size is the size in bytes of a SHA-256 sum.
	SHA256Size = 32
	// SHA1HexSize is the size of a SHA-1 sum in hex.
	SHA1HexSize = SHA1Size * 2
	// SHA256HexSize is the size of a SHA-256 sum in hex.
	SHA256HexSize = SHA256Size * 2
)

// ErrInvalidFormat is returned when an invalid Format is used.
var ErrInvalidFormat = errors.New("invalid object format")

// String returns the string representation of the Format.
func (f Format) String() string {
	return string(f)
}

// Size returns the hash size, in bytes, for the format.
func (f Format) Size() int {
	switch f {
	case SHA256:
		return SHA256Size
	default:
		return SHA1Size
	}
}

// HexSize returns the hash size, in hex characters, for the format.
func (f Format) HexSize() int {
	return f.Size() * 2
}
