package indexer

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"sync"

	"github.com/go-git/go-pack-indexer/cache"
	"github.com/go-git/go-pack-indexer/objid"
	"github.com/go-git/go-pack-indexer/objstore"
	"github.com/go-git/go-pack-indexer/packfile"
	"github.com/go-git/go-pack-indexer/progress"
	"github.com/go-git/go-pack-indexer/tracelog"
)

// resolver is the delta resolver (component D): once the stream has ended
// and the pack is mapped read-only, it walks the entry table and
// reconstructs every delta's final content, learning its type and
// identity in the process.
//
// Unlike the scanner, the resolver never needs to be resumable — by the
// time it runs, the whole pack is available as a single byte slice — so
// it decodes each object's deflate stream directly rather than through
// the scanner's exact-consumption trick.
type resolver struct {
	format   objid.Format
	pack     []byte
	table    *table
	store    objstore.Store
	cache    *cache.ResolvedContent
	reporter *progress.Reporter
	workers  int

	// externalBases counts REF_DELTA entries whose base was not present
	// in this pack and had to come from store — the thin-pack signal
	// SPEC_FULL's Supplemented Features exposes via Indexer.Stats.
	externalBases int

	// mu serialises the bookkeeping that resolveAll's worker pool shares
	// across goroutines when workers > 1: the cycle guard, the table's
	// identity index, and the external-bases counter. The hash itself
	// (objid.ObjectHasher) and the resolved-content cache already
	// synchronise themselves internally.
	mu        sync.Mutex
	resolving map[int64]bool // cycle guard
	hasher    *objid.ObjectHasher
}

func newResolver(format objid.Format, pack []byte, t *table, store objstore.Store, c *cache.ResolvedContent, reporter *progress.Reporter, workers int) *resolver {
	if workers < 1 {
		workers = 1
	}
	return &resolver{
		format:    format,
		pack:      pack,
		table:     t,
		store:     store,
		cache:     c,
		reporter:  reporter,
		workers:   workers,
		resolving: make(map[int64]bool),
		hasher:    objid.NewObjectHasher(format),
	}
}

// resolveAll resolves every delta entry in t, in the order described by
// §4.4: a position-ordered walk resolving OFS_DELTA chains as their bases
// become available, followed by the REF_DELTA entries (which sort after
// all OFS_DELTAs in the source algorithm). When the resolver was
// configured with more than one worker, independent root chains (and
// independent REF_DELTA entries) are resolved concurrently, bounded by
// that worker count; shared state is serialised through mu.
func (r *resolver) resolveAll() error {
	roots := make([]*entry, 0, len(r.table.objects))
	for _, e := range r.table.objects {
		if !e.isDelta() {
			roots = append(roots, e)
		}
	}

	if err := r.forEach(roots, func(e *entry) error {
		return r.resolveChildren(e)
	}); err != nil {
		return err
	}

	pending := make([]*entry, 0, len(r.table.refDeltas))
	for _, e := range r.table.refDeltas {
		if !e.id.IsZero() {
			continue // already resolved as a transitive base of another ref-delta
		}
		pending = append(pending, e)
	}

	// A REF_DELTA's base may itself be another, not-yet-resolved REF_DELTA
	// in the same pack: its id only becomes known (and lands in
	// table.byID) once that entry is resolved. Resolving in plain list
	// order would let such a chain fall through to the external store
	// (or fail outright without one) purely because of scan order, so
	// repeatedly resolve whatever's already resolvable in-pack until a
	// full round makes no further progress, before falling back to store
	// lookups for whatever remains.
	for {
		var resolvable, deferred []*entry
		for _, e := range pending {
			if _, ok := r.table.byID[e.refDelta]; ok {
				resolvable = append(resolvable, e)
			} else {
				deferred = append(deferred, e)
			}
		}
		if len(resolvable) == 0 {
			break
		}
		if err := r.forEach(resolvable, func(e *entry) error {
			if _, _, err := r.materialize(e); err != nil {
				return err
			}
			// A REF_DELTA entry occupies a pack position like any
			// other, so a later OFS_DELTA may legally point at it.
			return r.resolveChildren(e)
		}); err != nil {
			return err
		}
		pending = deferred
	}

	return r.forEach(pending, func(e *entry) error {
		if _, _, err := r.materialize(e); err != nil {
			return err
		}
		return r.resolveChildren(e)
	})
}

// forEach applies fn to every item, running up to r.workers at a time.
// With a single worker it degrades to a plain sequential loop. The first
// error from any item stops further dispatch and is returned once every
// already-started item has finished.
func (r *resolver) forEach(items []*entry, fn func(*entry) error) error {
	if r.workers <= 1 || len(items) <= 1 {
		for _, e := range items {
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for _, e := range items {
		e := e
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(e); err != nil {
				once.Do(func() { firstErr = err })
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// resolveChildren resolves every OFS_DELTA entry keyed at base.position,
// recursively resolving their own children in turn (a delta may itself be
// the base of another delta, at its own position).
func (r *resolver) resolveChildren(base *entry) error {
	for _, child := range r.table.childrenAt(base.position) {
		if _, _, err := r.materialize(child); err != nil {
			return err
		}
		if err := r.resolveChildren(child); err != nil {
			return err
		}
	}
	return nil
}

// materialize returns e's fully reconstructed content and type, computing
// and recording e.id/e.finalType the first time a delta entry is
// resolved. Delta results are cached by position so a delta base shared
// by many deltas in the same chain is only reconstructed once; non-delta
// content is not cached and is re-inflated from the pack on every call.
func (r *resolver) materialize(e *entry) ([]byte, packfile.ObjectType, error) {
	if !e.isDelta() {
		content, err := r.inflateEntry(e)
		return content, e.typ, err
	}

	if content, ok := r.cache.Get(e.position); ok {
		return content, e.finalType, nil
	}

	r.mu.Lock()
	if r.resolving[e.position] {
		r.mu.Unlock()
		return nil, 0, newError(KindDelta, "delta cycle detected at position %d", e.position)
	}
	r.resolving[e.position] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.resolving, e.position)
		r.mu.Unlock()
	}()

	baseContent, baseType, err := r.base(e)
	if err != nil {
		return nil, 0, err
	}

	deltaBytes, err := r.inflateEntry(e)
	if err != nil {
		return nil, 0, err
	}

	content, err := packfile.ApplyDelta(baseContent, deltaBytes)
	if err != nil {
		return nil, 0, newError(KindDelta, "applying delta at position %d: %v", e.position, err)
	}

	e.finalType = baseType
	e.id = r.hasher.Compute(baseType.String(), content)

	r.mu.Lock()
	r.table.byID[e.id] = e
	r.mu.Unlock()

	r.cache.Add(e.position, content)

	tracelog.Resolve.Printf("resolved delta at %d: type=%s size=%d id=%s", e.position, baseType, len(content), e.id)

	if r.reporter != nil {
		if abort := r.reporter.Poll(); abort != 0 {
			return nil, 0, newError(KindCancelled, "resolution aborted by observer after delta at position %d", e.position)
		}
	}

	return content, baseType, nil
}

// base returns e's base content and type, looking it up by offset
// (OFS_DELTA) or identity (REF_DELTA, falling back to the external store).
func (r *resolver) base(e *entry) ([]byte, packfile.ObjectType, error) {
	if e.typ == packfile.OFSDeltaObject {
		baseEntry, ok := r.table.byPosition[e.baseOffset]
		if !ok {
			return nil, 0, newError(KindDelta, "ofs-delta base at position %d not found", e.baseOffset)
		}
		return r.materialize(baseEntry)
	}

	r.mu.Lock()
	baseEntry, ok := r.table.byID[e.refDelta]
	r.mu.Unlock()
	if ok {
		return r.materialize(baseEntry)
	}

	if r.store == nil {
		return nil, 0, newError(KindDelta, "ref-delta base %s not found in pack and no object store configured", e.refDelta)
	}

	typeName, content, err := r.store.Get(e.refDelta)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return nil, 0, newError(KindDelta, "ref-delta base %s not found", e.refDelta)
		}
		return nil, 0, wrapError(KindIO, err)
	}

	r.mu.Lock()
	r.externalBases++
	r.mu.Unlock()

	return content, objectTypeFromName(typeName), nil
}

// inflateEntry decompresses e's payload (object content, for an object
// entry, or the delta instruction stream, for a delta entry) directly
// from the mapped pack.
func (r *resolver) inflateEntry(e *entry) ([]byte, error) {
	start := e.position + e.headerSize
	end := e.position + e.compressedSize
	if start < 0 || end > int64(len(r.pack)) || start > end {
		return nil, newError(KindIO, "entry at position %d reaches past the mapped pack", e.position)
	}

	zr, err := zlib.NewReader(bytes.NewReader(r.pack[start:end]))
	if err != nil {
		return nil, newError(KindParse, "corrupt zlib stream at position %d: %v", e.position, err)
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, newError(KindParse, "corrupt zlib stream at position %d: %v", e.position, err)
	}
	return content, nil
}

func objectTypeFromName(name string) packfile.ObjectType {
	switch name {
	case "commit":
		return packfile.CommitObject
	case "tree":
		return packfile.TreeObject
	case "blob":
		return packfile.BlobObject
	case "tag":
		return packfile.TagObject
	default:
		return packfile.InvalidObject
	}
}
