package packfile

import "github.com/go-git/go-pack-indexer/objid"

// ObjectType identifies the kind of object a pack entry decodes to.
// Numeric values track the on-disk encoding used by the pack format.
type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4
	// 5 is reserved by the format for future expansion.
	OFSDeltaObject ObjectType = 6
	REFDeltaObject ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OFSDeltaObject:
		return "ofs-delta"
	case REFDeltaObject:
		return "ref-delta"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the object types the pack format defines.
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject, OFSDeltaObject, REFDeltaObject:
		return true
	default:
		return false
	}
}

// IsDelta reports whether t represents one of the two delta encodings.
func (t ObjectType) IsDelta() bool {
	return t == OFSDeltaObject || t == REFDeltaObject
}

// Header is the event fired once, right after the 12-byte pack header.
type Header struct {
	Version    uint32
	ObjectsQty uint32
}

// ObjectStart is fired once the header of a non-delta entry has been fully
// decoded, before its compressed payload is read.
type ObjectStart struct {
	Position   int64
	HeaderSize int64
	Type       ObjectType
	Size       int64
}

// ObjectComplete is fired once a non-delta entry's deflate stream has ended.
type ObjectComplete struct {
	Position       int64
	CompressedSize int64
	CRC32          uint32
	ID             objid.ID
}

// DeltaStart is fired once the header of a delta entry has been fully
// decoded. Exactly one of RefDelta/BaseOffset is meaningful, selected by
// Type.
type DeltaStart struct {
	Position   int64
	HeaderSize int64
	Type       ObjectType // OFSDeltaObject or REFDeltaObject
	Size       int64      // inflated delta-instruction-stream size
	RefDelta   objid.ID   // REF_DELTA: base object id
	BaseOffset int64      // OFS_DELTA: position - negative_offset
}

// DeltaComplete is fired once a delta entry's deflate stream has ended. Its
// identity is unknown until the resolver runs, so it carries none.
type DeltaComplete struct {
	Position       int64
	CompressedSize int64
	CRC32          uint32
}

// Footer is fired once after the last entry, carrying the trailer hash that
// was validated against the running hash of every preceding byte.
type Footer struct {
	Checksum []byte
}
