package objid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// ID is the identity of a Git object: the hash of its type-prefixed,
// size-prefixed content. It is fixed-size storage (sized for the largest
// supported format) tagged with which format produced it, so a slice of
// IDs can hold a mix of SHA-1 and SHA-256 packs without boxing.
type ID struct {
	sum    [SHA256Size]byte
	format Format
}

// Zero is the zero-value SHA-1 ID.
var Zero ID

// FromHex parses a hex string into an ID. The format is inferred from the
// string length: 40 characters means SHA-1, 64 means SHA-256.
func FromHex(s string) (ID, bool) {
	var id ID
	switch len(s) {
	case SHA256HexSize:
		id.format = SHA256
	case SHA1HexSize:
		id.format = SHA1
	default:
		return id, false
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}
	copy(id.sum[:], raw)
	return id, true
}

// FromBytes builds an ID from a raw sum. The format is inferred from the
// slice length.
func FromBytes(raw []byte) (ID, bool) {
	var id ID
	switch len(raw) {
	case SHA256Size:
		id.format = SHA256
	case SHA1Size:
		id.format = SHA1
	default:
		return id, false
	}
	copy(id.sum[:], raw)
	return id, true
}

// ZeroOf returns the zero ID for the given format.
func ZeroOf(f Format) ID {
	return ID{format: f}
}

// Format reports which hash algorithm produced the ID.
func (id ID) Format() Format {
	if id.format == UnsetFormat {
		return DefaultFormat
	}
	return id.format
}

// Size returns the number of significant bytes in the sum.
func (id ID) Size() int {
	return id.Format().Size()
}

// HexSize returns the number of hex characters in the String() form.
func (id ID) HexSize() int {
	return id.Size() * 2
}

// Bytes returns the raw sum, trimmed to Size().
func (id ID) Bytes() []byte {
	return id.sum[:id.Size()]
}

// Compare compares id's sum against a raw byte slice, memcmp-style.
func (id ID) Compare(b []byte) int {
	return bytes.Compare(id.Bytes(), b)
}

// Equal reports whether two IDs carry the same sum.
func (id ID) Equal(other ID) bool {
	return id.Compare(other.Bytes()) == 0
}

// IsZero reports whether the sum is all zeroes.
func (id ID) IsZero() bool {
	for _, b := range id.Bytes() {
		if b != 0 {
			return false
		}
	}
	return true
}

// String returns the lowercase hex representation of the sum.
func (id ID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// HasPrefix reports whether the sum starts with prefix.
func (id ID) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(id.Bytes(), prefix)
}

// ReadFrom reads Size() bytes for the current format from r into id.
// The format must already be set (e.g. via ResetBySize) before calling.
func (id *ID) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.ReadFull(r, id.sum[:id.Size()])
	if err != nil {
		return int64(n), fmt.Errorf("read object id: %w", err)
	}
	return int64(n), nil
}

// WriteTo writes the Size()-byte sum to w, big-endian (i.e. verbatim).
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id.Bytes())
	return int64(n), err
}

// ResetBySize clears the ID and sets its format based on a byte count (20
// or 32), defaulting to SHA-1 for anything else.
func (id *ID) ResetBySize(size int) {
	if size == SHA256Size {
		id.format = SHA256
	} else {
		id.format = SHA1
	}
	id.sum = [SHA256Size]byte{}
}

// Sort sorts a slice of IDs in ascending memcmp order, the order the v2
// index format requires for its identity table.
func Sort(ids []ID) {
	sort.Sort(byBytes(ids))
}

type byBytes []ID

func (s byBytes) Len() int           { return len(s) }
func (s byBytes) Less(i, j int) bool { return s[i].Compare(s[j].Bytes()) < 0 }
func (s byBytes) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
