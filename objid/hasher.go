package objid

import (
	"hash"
	"strconv"
	"sync"
)

// Hasher wraps a hash.Hash, priming it with the Git object header
// ("<type> <size>\0") so that writing the raw content is all that's left
// to produce the object's ID.
type Hasher struct {
	hash.Hash
	format Format
}

// NewHasher returns a Hasher for the given format, object type name and
// content size, already primed with the header.
func NewHasher(f Format, typeName string, size int64) Hasher {
	h := Hasher{format: f, Hash: NewHash(f)}
	h.Reset(typeName, size)
	return h
}

// Reset rewinds the hasher and re-writes the header for a new type/size.
func (h Hasher) Reset(typeName string, size int64) {
	h.Hash.Reset()
	writeHeader(h.Hash, typeName, size)
}

// Sum returns the computed ID.
func (h Hasher) Sum() ID {
	var id ID
	id.format = h.format
	copy(id.sum[:], h.Hash.Sum(nil))
	return id
}

func writeHeader(h hash.Hash, typeName string, size int64) {
	h.Write([]byte(typeName))
	h.Write([]byte{' '})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
}

// ObjectHasher is a concurrency-safe, one-shot variant of Hasher: it computes
// the ID of an already fully materialised buffer. The resolver uses it once
// per resolved delta, potentially from more than one goroutine when chains
// are resolved in parallel (see the indexer package's resolver).
type ObjectHasher struct {
	format Format
	m      sync.Mutex
	h      hash.Hash
}

// NewObjectHasher returns an ObjectHasher for the given format.
func NewObjectHasher(f Format) *ObjectHasher {
	return &ObjectHasher{format: f, h: NewHash(f)}
}

// Compute hashes typeName+size+content under the standard Git object
// header and returns the resulting ID.
func (h *ObjectHasher) Compute(typeName string, content []byte) ID {
	h.m.Lock()
	defer h.m.Unlock()

	h.h.Reset()
	writeHeader(h.h, typeName, int64(len(content)))
	h.h.Write(content)

	var id ID
	id.format = h.format
	copy(id.sum[:], h.h.Sum(nil))
	return id
}
