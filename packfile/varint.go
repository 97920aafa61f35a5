package packfile

// Variable-length integer decoders for the three encodings the pack format
// uses. All of them take a byte slice that may be a prefix of the real
// value (the caller hasn't received the rest of the stream yet) and report
// ok=false rather than erroring in that case, so the scanner can buffer
// more input and retry from the same starting offset.
//
// Each form caps the number of continuation bytes it will accept before
// giving up with an error; a well-formed pack never needs more than 10
// bytes to encode any of these (enough for a full uint64), so anything
// longer is malformed rather than merely incomplete.

const (
	maskContinue = 0x80
	maskPayload7 = 0x7f
	maskType     = 0x70
	maskSize4    = 0x0f

	maxVarintBytes = 10
)

// decodeTypeAndSize reads the first byte of an object header: the low 4
// bits plus 3 type bits, continued (size only) in 7-bit groups in
// subsequent bytes, MSB-continuation style.
//
//	first byte:   c ttt ssss         (c=continue, t=type, s=size low bits)
//	next bytes:   c sssssss          (c=continue, s=size bits, increasing significance)
func decodeTypeAndSize(buf []byte) (typ ObjectType, size int64, n int, ok bool, err error) {
	if len(buf) == 0 {
		return 0, 0, 0, false, nil
	}

	first := buf[0]
	typ = ObjectType((first & maskType) >> 4)
	size = int64(first & maskSize4)

	if first&maskContinue == 0 {
		return typ, size, 1, true, nil
	}

	shift := uint(4)
	for i := 1; ; i++ {
		if i >= maxVarintBytes {
			return 0, 0, 0, false, NewError("object header varint too long")
		}
		if i >= len(buf) {
			return 0, 0, 0, false, nil
		}

		b := buf[i]
		size |= int64(b&maskPayload7) << shift
		if b&maskContinue == 0 {
			return typ, size, i + 1, true, nil
		}
		shift += 7
	}
}

// decodeOffsetDelta reads an OFS_DELTA negative offset: a biased
// MSB-continuation varint where each continuation byte adds one after the
// shift, so that every representable value has exactly one encoding.
func decodeOffsetDelta(buf []byte) (offset int64, n int, ok bool, err error) {
	if len(buf) == 0 {
		return 0, 0, false, nil
	}

	val := int64(buf[0] & maskPayload7)
	if buf[0]&maskContinue == 0 {
		return val, 1, true, nil
	}

	for i := 1; ; i++ {
		if i >= maxVarintBytes {
			return 0, 0, false, NewError("ofs-delta offset varint too long")
		}
		if i >= len(buf) {
			return 0, 0, false, nil
		}

		b := buf[i]
		val = ((val + 1) << 7) | int64(b&maskPayload7)
		if b&maskContinue == 0 {
			return val, i + 1, true, nil
		}
	}
}

// decodeLEB128 reads a plain (unbiased) little-endian-base-128 integer, as
// used by the two size fields at the start of a delta instruction stream.
func decodeLEB128(buf []byte) (value uint64, n int, ok bool, err error) {
	var shift uint
	for i := 0; ; i++ {
		if i >= maxVarintBytes {
			return 0, 0, false, NewError("delta header varint too long")
		}
		if i >= len(buf) {
			return 0, 0, false, nil
		}

		b := buf[i]
		value |= uint64(b&maskPayload7) << shift
		if b&maskContinue == 0 {
			return value, i + 1, true, nil
		}
		shift += 7
	}
}
