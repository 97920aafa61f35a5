package packfile

import (
	"bytes"
	"compress/zlib"
	"errors"
	"hash"
	"hash/crc32"
	"io"

	"github.com/go-git/go-pack-indexer/objid"
)

const signature = "PACK"

// Observer receives the events a Scanner produces as it walks a pack byte
// stream. Implementations must not retain the byte slices passed to them
// past the call (only Footer.Checksum carries one, and it is only valid
// for the duration of the call).
type Observer interface {
	OnHeader(Header) error
	OnObjectStart(ObjectStart) error
	OnObjectComplete(ObjectComplete) error
	OnDeltaStart(DeltaStart) error
	OnDeltaComplete(DeltaComplete) error
	OnFooter(Footer) error
}

// errNeedMore is an internal sentinel: the scanner has buffered everything
// it can make sense of and is waiting on more bytes from a future Write.
// It never escapes the package.
var errNeedMore = errors.New("packfile: need more input")

type stateFn func(*Scanner) (stateFn, error)

// Scanner is a resumable, single-threaded pack parser. It consumes a pack
// byte stream through arbitrary-sized Write calls with no foreknowledge of
// total length, and reports structural events to an Observer as they
// become recognisable. It keeps no goroutines of its own: a Write does all
// of its parsing synchronously, on the caller's goroutine, before
// returning.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	format   objid.Format
	observer Observer

	state stateFn
	buf   []byte // bytes of the entry (or header) currently being parsed
	pos   int64  // stream offset of buf[0]

	version    uint32
	objectsQty uint32
	objIndex   uint32

	packHash hash.Hash // running hash over every byte except the trailer
	crc      hash.Hash32

	// current entry, valid between stateEntryTypeSize and the matching
	// *Complete event
	entryPos    int64
	entryHeader int64 // bytes of header (type+size[+ref/offset]) seen so far
	entryType   ObjectType
	entrySize   int64

	done bool
	err  error
}

// NewScanner returns a Scanner that reports events to obs, computing
// object ids using the given hash format.
func NewScanner(f objid.Format, obs Observer) *Scanner {
	s := &Scanner{
		format:   f,
		observer: obs,
		packHash: objid.NewHash(f),
		crc:      crc32.NewIEEE(),
	}
	s.state = stateSignature
	return s
}

// Write feeds the next chunk of a pack byte stream into the scanner. It
// satisfies io.Writer: a successful call always reports n == len(p). Once
// Write has returned an error, every subsequent call returns the same
// error without doing further work.
func (s *Scanner) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.buf = append(s.buf, p...)
	if err := s.drain(); err != nil {
		s.err = err
		return 0, err
	}
	return len(p), nil
}

// Done reports whether the trailer has been seen and validated.
func (s *Scanner) Done() bool {
	return s.done
}

func (s *Scanner) drain() error {
	for {
		next, err := s.state(s)
		switch {
		case err == errNeedMore:
			return nil
		case err != nil:
			return err
		}
		s.state = next
	}
}

// consume feeds the first n bytes of buf into the running pack hash and
// the current entry's crc (if an entry is in progress), then drops them
// from buf and advances pos.
func (s *Scanner) consume(n int) {
	head := s.buf[:n]
	s.packHash.Write(head)
	s.crc.Write(head)
	s.buf = s.buf[n:]
	s.pos += int64(n)
}

func stateSignature(s *Scanner) (stateFn, error) {
	if len(s.buf) < 4 {
		return nil, errNeedMore
	}
	if string(s.buf[:4]) != signature {
		return nil, NewError("not a pack file: bad signature")
	}
	s.consume(4)
	return stateVersion, nil
}

func stateVersion(s *Scanner) (stateFn, error) {
	if len(s.buf) < 4 {
		return nil, errNeedMore
	}
	s.version = be32(s.buf)
	s.consume(4)
	return stateObjectsQty, nil
}

func stateObjectsQty(s *Scanner) (stateFn, error) {
	if len(s.buf) < 4 {
		return nil, errNeedMore
	}
	s.objectsQty = be32(s.buf)
	s.consume(4)

	if err := s.observer.OnHeader(Header{Version: s.version, ObjectsQty: s.objectsQty}); err != nil {
		return nil, err
	}

	if s.objectsQty == 0 {
		return stateTrailer, nil
	}
	return stateEntryTypeSize, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func stateEntryTypeSize(s *Scanner) (stateFn, error) {
	s.entryPos = s.pos
	s.crc.Reset()

	typ, size, n, ok, err := decodeTypeAndSize(s.buf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNeedMore
	}
	if !typ.Valid() {
		return nil, NewError("invalid object type in pack entry")
	}

	s.entryType = typ
	s.entrySize = size
	s.entryHeader = int64(n)

	switch {
	case typ == OFSDeltaObject:
		return stateEntryOffsetDelta, nil
	case typ == REFDeltaObject:
		return stateEntryRefDelta, nil
	default:
		if err := s.observer.OnObjectStart(ObjectStart{
			Position:   s.entryPos,
			HeaderSize: s.entryHeader,
			Type:       typ,
			Size:       size,
		}); err != nil {
			return nil, err
		}
		return stateEntryPayload, nil
	}
}

func stateEntryOffsetDelta(s *Scanner) (stateFn, error) {
	off, n, ok, err := decodeOffsetDelta(s.buf[s.entryHeader:])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNeedMore
	}

	base := s.entryPos - off
	if base < 0 || base >= s.entryPos {
		return nil, NewError("ofs-delta base offset out of range")
	}
	s.entryHeader += int64(n)

	if err := s.observer.OnDeltaStart(DeltaStart{
		Position:   s.entryPos,
		HeaderSize: s.entryHeader,
		Type:       OFSDeltaObject,
		Size:       s.entrySize,
		BaseOffset: base,
	}); err != nil {
		return nil, err
	}
	return stateEntryPayload, nil
}

func stateEntryRefDelta(s *Scanner) (stateFn, error) {
	size := s.format.Size()
	want := int(s.entryHeader) + size
	if len(s.buf) < want {
		return nil, errNeedMore
	}

	ref, ok := objid.FromBytes(s.buf[s.entryHeader:want])
	if !ok {
		return nil, NewError("malformed ref-delta base id")
	}
	s.entryHeader = int64(want)

	if err := s.observer.OnDeltaStart(DeltaStart{
		Position:   s.entryPos,
		HeaderSize: s.entryHeader,
		Type:       REFDeltaObject,
		Size:       s.entrySize,
		RefDelta:   ref,
	}); err != nil {
		return nil, err
	}
	return stateEntryPayload, nil
}

func stateEntryPayload(s *Scanner) (stateFn, error) {
	raw := s.buf[s.entryHeader:]

	needHash := !s.entryType.IsDelta()
	var hasher objid.Hasher
	var dst io.Writer = io.Discard
	if needHash {
		hasher = objid.NewHasher(s.format, s.entryType.String(), s.entrySize)
		dst = hasher
	}

	n, ok, err := inflateInto(raw, dst)
	if err != nil {
		return nil, NewError("corrupt zlib stream").AddDetails("position %d: %v", s.entryPos, err)
	}
	if !ok {
		return nil, errNeedMore
	}

	total := s.entryHeader + int64(n)
	s.consume(int(total))
	crc := s.crc.Sum32()

	if s.entryType.IsDelta() {
		if err := s.observer.OnDeltaComplete(DeltaComplete{
			Position:       s.entryPos,
			CompressedSize: total,
			CRC32:          crc,
		}); err != nil {
			return nil, err
		}
	} else {
		if err := s.observer.OnObjectComplete(ObjectComplete{
			Position:       s.entryPos,
			CompressedSize: total,
			CRC32:          crc,
			ID:             hasher.Sum(),
		}); err != nil {
			return nil, err
		}
	}

	s.objIndex++
	if s.objIndex >= s.objectsQty {
		return stateTrailer, nil
	}
	return stateEntryTypeSize, nil
}

func stateTrailer(s *Scanner) (stateFn, error) {
	size := s.format.Size()
	if len(s.buf) < size {
		return nil, errNeedMore
	}

	want := append([]byte(nil), s.packHash.Sum(nil)...)
	got := s.buf[:size]
	if !bytes.Equal(want, got) {
		return nil, NewError("pack trailer checksum mismatch")
	}

	s.buf = s.buf[size:]
	s.pos += int64(size)
	s.done = true

	if err := s.observer.OnFooter(Footer{Checksum: got}); err != nil {
		return nil, err
	}
	return stateFinished, nil
}

func stateFinished(s *Scanner) (stateFn, error) {
	if len(s.buf) > 0 {
		return nil, NewError("trailing bytes after pack trailer")
	}
	return nil, errNeedMore
}

// inflateInto decompresses a zlib stream from the start of raw into dst,
// reporting how many compressed bytes (header, deflate stream and the
// trailing adler32) it consumed. raw may be a prefix of the real stream;
// in that case it returns ok=false rather than an error, so the caller can
// retry once more bytes are available. Because compress/flate drives its
// input through raw's io.ByteReader one byte at a time with no read-ahead
// buffering of its own, the number of bytes consumed from a bytes.Reader
// is always exactly the number the deflate stream actually used.
func inflateInto(raw []byte, dst io.Writer) (n int, ok bool, err error) {
	br := bytes.NewReader(raw)

	zr, err := zlib.NewReader(br)
	if err != nil {
		if incomplete(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	if _, err := io.Copy(dst, zr); err != nil {
		if incomplete(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if err := zr.Close(); err != nil {
		if incomplete(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return len(raw) - br.Len(), true, nil
}

func incomplete(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
