package indexer

import (
	"fmt"
)

// Kind classifies an Error, mirroring §7's taxonomy so callers can branch
// with errors.As without parsing message text.
type Kind int8

const (
	// KindParse covers malformed bytes in the pack stream itself: bad
	// type, bad varint, inflate failure, trailer mismatch.
	KindParse Kind = iota
	// KindDelta covers resolution failures: unresolvable base,
	// instruction overrun, size mismatch.
	KindDelta
	// KindIO covers write/read/mmap/unlink failures.
	KindIO
	// KindLimit covers entry-count or offset overflow beyond what this
	// implementation supports.
	KindLimit
	// KindState covers an operation invoked in the wrong lifecycle state.
	KindState
	// KindCancelled covers an abort requested by the progress observer.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindDelta:
		return "delta"
	case KindIO:
		return "io"
	case KindLimit:
		return "limit"
	case KindState:
		return "state"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the root error type for every failure this package returns.
// All are terminal: once returned from Append or Commit, the Indexer's
// lifecycle has moved to failed and every subsequent call rejects with a
// KindState Error, the one part of this taxonomy not a root cause.
type Error struct {
	Kind Kind
	err  error
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, err: fmt.Errorf(format, args...)}
}

func wrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("indexer: %s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// AddDetails wraps e with additional context, keeping its Kind, mirroring
// packfile.Error's incremental-detail shape.
func (e *Error) AddDetails(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, err: fmt.Errorf("%w: %w", e.err, fmt.Errorf(format, args...))}
}
