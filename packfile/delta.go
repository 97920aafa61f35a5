package packfile

import "errors"

// See https://github.com/git/git/blob/master/delta.h and
// https://github.com/git/git/blob/master/patch-delta.c for the on-disk
// delta instruction format this decodes.

// Delta errors.
var (
	ErrInvalidDelta = errors.New("invalid delta")
	ErrDeltaCmd     = errors.New("wrong delta command")
)

const (
	minDeltaSize = 4
	maxCopySize  = 0x10000
)

type deltaOffset struct {
	mask  byte
	shift uint
}

var copyOffsets = []deltaOffset{
	{mask: 0x01, shift: 0},
	{mask: 0x02, shift: 8},
	{mask: 0x04, shift: 16},
	{mask: 0x08, shift: 24},
}

var copySizes = []deltaOffset{
	{mask: 0x10, shift: 0},
	{mask: 0x20, shift: 8},
	{mask: 0x40, shift: 16},
}

// ApplyDelta reconstructs an object's content by applying delta instructions
// against base. Both base and the instruction stream must already be fully
// materialised: the resolver re-inflates a delta entry's compressed bytes
// from the mapped pack before calling this.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	if len(delta) < minDeltaSize {
		return nil, ErrInvalidDelta
	}

	srcSz, rest, ok := decodeLEB128Slice(delta)
	if !ok {
		return nil, ErrInvalidDelta
	}
	if srcSz != uint(len(base)) {
		return nil, ErrInvalidDelta
	}

	targetSz, rest, ok := decodeLEB128Slice(rest)
	if !ok {
		return nil, ErrInvalidDelta
	}

	dst := make([]byte, 0, targetSz)
	remaining := targetSz

	for remaining > 0 {
		if len(rest) == 0 {
			return nil, ErrInvalidDelta
		}

		cmd := rest[0]
		rest = rest[1:]

		switch {
		case isCopyFromSrc(cmd):
			var offset, sz uint
			var err error
			offset, rest, err = decodeCopyOffset(cmd, rest)
			if err != nil {
				return nil, err
			}
			sz, rest, err = decodeCopySize(cmd, rest)
			if err != nil {
				return nil, err
			}
			if invalidSize(sz, remaining) || invalidOffsetSize(offset, sz, srcSz) {
				return nil, ErrInvalidDelta
			}
			dst = append(dst, base[offset:offset+sz]...)
			remaining -= sz

		case isCopyFromDelta(cmd):
			sz := uint(cmd)
			if invalidSize(sz, remaining) || uint(len(rest)) < sz {
				return nil, ErrInvalidDelta
			}
			dst = append(dst, rest[:sz]...)
			remaining -= sz
			rest = rest[sz:]

		default:
			return nil, ErrDeltaCmd
		}
	}

	return dst, nil
}

// decodeLEB128Slice reads the unbiased LEB128 size fields at the start of a
// delta instruction stream, in terms of the scanner's own decodeLEB128.
// Unlike the scanner's resumable decoders, this operates on an already
// fully-buffered stream, so running out of bytes is as terminal a failure
// as a too-long varint — decodeLEB128Slice doesn't distinguish them, both
// just mean the instruction stream is malformed.
func decodeLEB128Slice(b []byte) (value uint, rest []byte, ok bool) {
	v, n, decOK, err := decodeLEB128(b)
	if err != nil || !decOK {
		return 0, nil, false
	}
	return uint(v), b[n:], true
}

func isCopyFromSrc(cmd byte) bool {
	return cmd&maskContinue != 0
}

func isCopyFromDelta(cmd byte) bool {
	return cmd&maskContinue == 0 && cmd != 0
}

func decodeCopyOffset(cmd byte, delta []byte) (uint, []byte, error) {
	var offset uint
	for _, o := range copyOffsets {
		if cmd&o.mask != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			offset |= uint(delta[0]) << o.shift
			delta = delta[1:]
		}
	}
	return offset, delta, nil
}

func decodeCopySize(cmd byte, delta []byte) (uint, []byte, error) {
	var sz uint
	for _, s := range copySizes {
		if cmd&s.mask != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			sz |= uint(delta[0]) << s.shift
			delta = delta[1:]
		}
	}
	if sz == 0 {
		sz = maxCopySize
	}
	return sz, delta, nil
}

// invalidSize reports whether an instruction's copy/insert size would
// overrun what's left to produce. Checking against the bytes still
// remaining (rather than the delta's overall target size) stops
// remaining -= sz from underflowing a few lines below.
func invalidSize(sz, remaining uint) bool {
	return sz > remaining
}

func invalidOffsetSize(offset, sz, srcSz uint) bool {
	return sumOverflows(offset, sz) || offset+sz > srcSz
}

func sumOverflows(a, b uint) bool {
	return a+b < a
}
