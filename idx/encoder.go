package idx

import (
	"errors"
	"hash"
	"io"

	ibinary "github.com/go-git/go-pack-indexer/internal/binary"
	"github.com/go-git/go-pack-indexer/objid"
)

// version is the only index format this package writes or understands.
const version = 2

// longOffsetThreshold is the position at which an entry's offset no longer
// fits the 31-bit direct form and must be indirected through the 64-bit
// long-offset section. It is fixed at 2^31 by the index format itself; the
// teacher's own writer never reached this case (it panicked instead), and
// at least one known source implementation uses a larger, incorrect
// constant here — this is deliberately 2^31 and nothing else.
const longOffsetThreshold = 1 << 31

var idxMagic = [4]byte{0xff, 't', 'O', 'c'}

// ErrTooManyEntries is returned when an object table exceeds what the
// fanout table's final slot (a uint32) can represent.
var ErrTooManyEntries = errors.New("idx: entry count overflows fanout table")

// Entry is one object's contribution to the index: its identity, the byte
// position of its header in the pack, and the CRC32 of its compressed
// bytes (header plus deflate stream).
type Entry struct {
	ID       objid.ID
	Position int64
	CRC32    uint32
}

// Encoder writes the v2 index layout in a single forward pass, hashing
// every byte as it goes so it can emit the index's own trailer checksum
// without a second pass over the output.
type Encoder struct {
	w    io.Writer
	hash hash.Hash
}

// NewEncoder returns an Encoder for the given hash format. Unlike an
// object's identity hash, the index trailer hashes the raw bytes written
// with no Git object header — it authenticates the index file itself, not
// a piece of repository content.
func NewEncoder(w io.Writer, format objid.Format) *Encoder {
	return &Encoder{w: w, hash: objid.NewHash(format)}
}

// Encode writes the full index for entries, which MUST already be sorted
// ascending by ID (memcmp order) — see Builder.Entries. packTrailer is the
// pack's own trailer hash, copied verbatim into section 7.
func (e *Encoder) Encode(entries Entries, packTrailer []byte) (int64, error) {
	if uint64(len(entries)) > 1<<32-1 {
		return 0, ErrTooManyEntries
	}

	mw := io.MultiWriter(e.w, e.hash)
	var total int64

	for _, step := range []func(io.Writer, Entries) (int64, error){
		e.encodeHeader,
		e.encodeFanout,
		e.encodeIdentities,
		e.encodeCRC32s,
		e.encodeOffsets,
	} {
		n, err := step(mw, entries)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err := writeN(e.w, packTrailer)
	total += n
	if err != nil {
		return total, err
	}
	e.hash.Write(packTrailer)

	n, err = writeN(e.w, e.hash.Sum(nil))
	total += n
	return total, err
}

func (e *Encoder) encodeHeader(w io.Writer, _ Entries) (int64, error) {
	n, err := writeN(w, idxMagic[:])
	if err != nil {
		return n, err
	}
	m, err := writeUint32(w, version)
	return n + m, err
}

func (e *Encoder) encodeFanout(w io.Writer, entries Entries) (int64, error) {
	var fanout [256]uint32
	for _, ent := range entries {
		fanout[ent.ID.Bytes()[0]]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}

	var total int64
	for _, c := range fanout {
		n, err := writeUint32(w, c)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Encoder) encodeIdentities(w io.Writer, entries Entries) (int64, error) {
	var total int64
	for _, ent := range entries {
		n, err := writeN(w, ent.ID.Bytes())
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Encoder) encodeCRC32s(w io.Writer, entries Entries) (int64, error) {
	var total int64
	for _, ent := range entries {
		n, err := writeUint32(w, ent.CRC32)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Encoder) encodeOffsets(w io.Writer, entries Entries) (int64, error) {
	var long []int64
	var total int64

	for _, ent := range entries {
		if ent.Position < longOffsetThreshold {
			n, err := writeUint32(w, uint32(ent.Position))
			total += n
			if err != nil {
				return total, err
			}
			continue
		}

		n, err := writeUint32(w, 0x80000000|uint32(len(long)))
		total += n
		if err != nil {
			return total, err
		}
		long = append(long, ent.Position)
	}

	for _, pos := range long {
		n, err := writeUint64(w, uint64(pos))
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func writeN(w io.Writer, p []byte) (int64, error) {
	n, err := w.Write(p)
	return int64(n), err
}

func writeUint32(w io.Writer, v uint32) (int64, error) {
	if err := ibinary.WriteUint32(w, v); err != nil {
		return 0, err
	}
	return 4, nil
}

func writeUint64(w io.Writer, v uint64) (int64, error) {
	if err := ibinary.WriteUint64(w, v); err != nil {
		return 0, err
	}
	return 8, nil
}
