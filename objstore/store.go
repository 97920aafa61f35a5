// Package objstore defines the external collaborator the indexer consults
// for two things a pack cannot always answer on its own: the content of a
// REF_DELTA base that isn't itself present in the pack (a "thin" pack),
// and an optional signature check on root objects once indexing succeeds.
//
// Connectivity and storage are explicitly out of scope for the indexer
// core (§1); this package is the seam, not an implementation. Callers
// supply their own Store backed by an existing repository.
package objstore

import (
	"errors"

	"github.com/go-git/go-pack-indexer/objid"
)

// ErrNotFound is the one error a Store is permitted to return as a soft
// failure — the indexer treats it as "no such base", not as an I/O error.
var ErrNotFound = errors.New("objstore: object not found")

// Store is the external object database the resolver falls back to when a
// REF_DELTA's base identity isn't present anywhere in the pack currently
// being indexed, and the optional signature verifier consulted once a
// commit succeeds.
type Store interface {
	// Get returns the type name and raw content of the object identified
	// by id. It returns ErrNotFound (checked with errors.Is) if the store
	// has no such object; any other error is treated as an I/O failure
	// and aborts the commit.
	Get(id objid.ID) (typeName string, content []byte, err error)

	// Verify optionally checks a root (non-delta) object's signature —
	// the do_verify pass-through described in §9. A Store that has
	// nothing to verify should return nil unconditionally; returning a
	// non-nil error does not unwind an already-committed pack (see
	// SPEC_FULL.md's Supplemented Features).
	Verify(id objid.ID, typeName string, content []byte) error
}

// NopStore rejects every REF_DELTA base lookup and treats every object as
// already verified. It is useful for packs known to contain only
// OFS_DELTA, or for tests that don't exercise the thin-pack path.
type NopStore struct{}

// Get always reports ErrNotFound.
func (NopStore) Get(objid.ID) (string, []byte, error) {
	return "", nil, ErrNotFound
}

// Verify is always a no-op.
func (NopStore) Verify(objid.ID, string, []byte) error {
	return nil
}
