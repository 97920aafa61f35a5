package objid

import (
	"crypto"
	// crypto/sha256 must be imported for its side-effecting
	// crypto.RegisterHash call: crypto.SHA256.New panics until the
	// concrete implementation has registered itself.
	_ "crypto/sha256"
	"fmt"
	"hash"

	"github.com/pjbgf/sha1cd"
)

// algos maps a Format to the hash.Hash constructor used to compute it.
// SHA-1 uses a collision-detecting implementation: packs built from
// untrusted remotes are exactly the kind of input SHAttered-style attacks
// target.
var algos = map[Format]func() hash.Hash{
	SHA1:   sha1cd.New,
	SHA256: crypto.SHA256.New,
}

// RegisterAlgorithm overrides the hash.Hash constructor used for f. It
// exists so callers can swap in a plain (non-collision-detecting) SHA-1
// for throughput-sensitive batch reindexing of already-trusted packs.
func RegisterAlgorithm(f Format, newHash func() hash.Hash) error {
	if newHash == nil {
		return fmt.Errorf("cannot register %s: constructor is nil", f)
	}
	switch f {
	case SHA1, SHA256:
		algos[f] = newHash
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, f)
	}
}

// NewHash returns a fresh hash.Hash for the given format.
func NewHash(f Format) hash.Hash {
	ctor, ok := algos[f]
	if !ok {
		ctor = algos[DefaultFormat]
	}
	return ctor()
}
