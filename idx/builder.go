package idx

import (
	"sort"

	"github.com/go-git/go-pack-indexer/objid"
)

// Builder collects an object table's contribution to the index as it is
// discovered — one Add per resolved entry — and produces it sorted by
// identity, the order Encoder.Encode requires. It mirrors the teacher's own
// accumulate-then-sort index writer, but defers section layout entirely to
// Encoder: the teacher's version computed fixed 32-bit offsets inline and
// panicked on anything that didn't fit ("64 bit offsets not implemented"),
// which is exactly the gap this package closes.
type Builder struct {
	entries Entries
}

// Entries is a sortable slice of index entries, ascending by identity
// (memcmp order).
type Entries []Entry

func (e Entries) Len() int           { return len(e) }
func (e Entries) Less(i, j int) bool { return e[i].ID.Compare(e[j].ID.Bytes()) < 0 }
func (e Entries) Swap(i, j int)      { e[i], e[j] = e[j], e[i] }

// NewBuilder returns a Builder with its backing slice pre-sized to count,
// the pack's announced object count.
func NewBuilder(count uint32) *Builder {
	return &Builder{entries: make(Entries, 0, count)}
}

// Add records one resolved object's contribution to the index.
func (b *Builder) Add(id objid.ID, position int64, crc32 uint32) {
	b.entries = append(b.entries, Entry{ID: id, Position: position, CRC32: crc32})
}

// Len reports how many entries have been added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Entries sorts the accumulated entries by identity and returns them. The
// returned slice is the Builder's own backing array; callers must not
// mutate it before Encoder.Encode has finished with it.
func (b *Builder) Entries() Entries {
	sort.Sort(b.entries)
	return b.entries
}
