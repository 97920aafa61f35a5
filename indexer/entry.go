package indexer

import (
	"github.com/emirpasic/gods/v2/maps/treemap"

	"github.com/go-git/go-pack-indexer/objid"
	"github.com/go-git/go-pack-indexer/packfile"
)

// entry is the tagged-variant record for one pack entry, object or delta.
// Object and delta entries share every field below except the ones that
// only make sense for one or the other (refDelta/baseOffset, finalType);
// rather than two structs joined by an unsafe cast (the source's own
// approach, per SPEC_FULL's design notes), this is one struct with a kind
// tag, and the position index/object table/delta table all hold *entry
// directly instead of duplicating storage.
type entry struct {
	kind entryKind

	position       int64
	headerSize     int64
	compressedSize int64
	crc32          uint32

	// typ is the on-disk type for an object entry, or the delta type
	// (OFSDeltaObject/REFDeltaObject) for a delta entry.
	typ  packfile.ObjectType
	size int64 // object: inflated payload size. delta: inflated instruction-stream size.

	id objid.ID // object: known at parse time. delta: zero until resolved.

	// delta-only fields.
	refDelta   objid.ID // REF_DELTA base identity
	baseOffset int64    // OFS_DELTA base position
	finalType  packfile.ObjectType
}

type entryKind int8

const (
	objectEntry entryKind = iota
	deltaEntry
)

func (e *entry) isDelta() bool {
	return e.kind == deltaEntry
}

// table is the entry table (component C): the object table is the full
// ordered list of entries as they were discovered, the position index
// resolves a base offset to its entry in O(1), and the delta table keys
// OFS_DELTA entries by base position so the resolver can walk in a single
// pass without an explicit sort step.
type table struct {
	objects    []*entry
	byPosition map[int64]*entry
	byID       map[objid.ID]*entry

	// ofsDeltas maps a base position to every delta entry waiting on it.
	// A treemap (rather than a plain map) keeps the keys available in
	// ascending order, matching §4.4's "sort the delta table by
	// base.position" step without a separate sort pass.
	ofsDeltas *treemap.Map[int64, []*entry]

	// refDeltas holds every REF_DELTA entry; resolved after the
	// position-ordered walk, per §4.4's "REF_DELTA entries sort after
	// all OFS_DELTAs".
	refDeltas []*entry
}

func newTable(capacity uint32) *table {
	return &table{
		objects:    make([]*entry, 0, capacity),
		byPosition: make(map[int64]*entry, capacity),
		byID:       make(map[objid.ID]*entry, capacity),
		ofsDeltas:  treemap.New[int64, []*entry](),
	}
}

// add records e, rejecting a second entry at a position already seen — the
// duplicate-position guard described in SPEC_FULL's Supplemented Features.
func (t *table) add(e *entry) error {
	if _, dup := t.byPosition[e.position]; dup {
		return newError(KindParse, "duplicate entry at position %d", e.position)
	}

	t.objects = append(t.objects, e)
	t.byPosition[e.position] = e

	if !e.isDelta() {
		t.byID[e.id] = e
		return nil
	}

	if e.typ == packfile.REFDeltaObject {
		t.refDeltas = append(t.refDeltas, e)
		return nil
	}

	existing, _ := t.ofsDeltas.Get(e.baseOffset)
	t.ofsDeltas.Put(e.baseOffset, append(existing, e))
	return nil
}

// childrenAt returns every OFS_DELTA entry waiting on base, if any.
func (t *table) childrenAt(base int64) []*entry {
	children, _ := t.ofsDeltas.Get(base)
	return children
}
