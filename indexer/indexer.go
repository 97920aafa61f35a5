// Package indexer ties the stream parser, entry table, delta resolver and
// index writer together into the external interface described by §6: a
// single Append/Commit/Free lifecycle that turns an unbounded byte stream
// into a verified pack and its companion index.
package indexer

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/go-git/go-pack-indexer/cache"
	"github.com/go-git/go-pack-indexer/idx"
	"github.com/go-git/go-pack-indexer/mmapfile"
	"github.com/go-git/go-pack-indexer/objid"
	"github.com/go-git/go-pack-indexer/objstore"
	"github.com/go-git/go-pack-indexer/packfile"
	"github.com/go-git/go-pack-indexer/progress"
	"github.com/go-git/go-pack-indexer/tracelog"
)

// Stats reports facts about a committed pack beyond the identity/offset
// mapping in the index itself.
type Stats struct {
	// ExternalBases counts REF_DELTA entries whose base was not present
	// in this pack and had to be supplied by the configured
	// objstore.Store — i.e. whether this was a thin pack.
	ExternalBases int
}

// Indexer consumes one packfile byte stream and produces pack-<hex>.pack
// and pack-<hex>.idx in dir. It is not safe for concurrent use: Append and
// Commit must be called from one goroutine at a time, matching §5's
// single-threaded cooperative scheduling model.
type Indexer struct {
	format objid.Format
	mode   os.FileMode
	store  objstore.Store
	cfg    config

	fs       billy.Filesystem
	reporter *progress.Reporter
	writer   *appendWriter
	scanner  *packfile.Scanner
	table    *table

	state   lifecycle
	pending *entry
	footer  []byte

	mapped *mmapfile.File
	stats  Stats
	result objid.ID
}

// NewIndexer returns an Indexer writing into dir. format selects SHA-1 or
// SHA-256 identities; mode is applied to the emitted pack and index files.
// store supplies REF_DELTA bases absent from the pack and the optional
// do_verify pass-through; it may be objstore.NopStore{} or nil. obs
// receives progress snapshots; it may be nil.
func NewIndexer(dir string, format objid.Format, mode os.FileMode, store objstore.Store, obs progress.Observer, opts ...Option) (*Indexer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fs := osfs.New(dir)
	reporter := progress.NewReporter(obs)

	writer, err := newAppendWriter(fs, mode, cfg.writeChunk, reporter)
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		format:   format,
		mode:     mode,
		store:    store,
		cfg:      cfg,
		fs:       fs,
		reporter: reporter,
		writer:   writer,
		state:    fresh,
	}
	ix.scanner = packfile.NewScanner(format, ix)
	return ix, nil
}

// Append feeds the next chunk of the pack byte stream. It satisfies
// io.Writer: a successful call always reports n == len(p). A zero-length
// slice is an idempotent no-op, valid in any state.
func (ix *Indexer) Append(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !ix.state.canAppend() {
		return 0, ix.fail(newError(KindState, "append called in state %s", ix.state))
	}

	// The append writer runs as a pass fully separate from the parser
	// (§4.2): even if the parser rejects these bytes, they are already
	// durable on disk for inspection.
	n, err := ix.writer.Write(p)
	if err != nil {
		return n, ix.fail(err)
	}

	if _, err := ix.scanner.Write(p); err != nil {
		return n, ix.fail(asIndexerError(err))
	}

	if ix.state == started {
		ix.state = receiving
	}
	return n, nil
}

// Commit blocks until every delta has been resolved and the index has
// been written, then renames the temporary pack into place. It returns
// the pack's identity, the shared basename of pack-<hex>.pack and
// pack-<hex>.idx.
func (ix *Indexer) Commit(ctx context.Context) (objid.ID, error) {
	if !ix.state.canCommit() {
		return objid.ID{}, ix.fail(newError(KindState, "commit called in state %s", ix.state))
	}
	if err := ctx.Err(); err != nil {
		return objid.ID{}, ix.fail(newError(KindCancelled, "commit: %v", err))
	}

	packID, ok := objid.FromBytes(ix.footer)
	if !ok {
		return objid.ID{}, ix.fail(newError(KindParse, "trailer length %d does not match a known hash size", len(ix.footer)))
	}

	packFile, err := ix.fs.Open(ix.writer.tempName())
	if err != nil {
		return objid.ID{}, ix.fail(wrapError(KindIO, err))
	}

	mapped, err := mmapfile.Open(packFile)
	if err != nil {
		return objid.ID{}, ix.fail(wrapError(KindIO, err))
	}
	ix.mapped = mapped

	if err := ctx.Err(); err != nil {
		return objid.ID{}, ix.fail(newError(KindCancelled, "commit: %v", err))
	}

	res := newResolver(ix.format, mapped.Bytes(), ix.table, ix.store, cache.NewResolvedContent(ix.cfg.cacheSize), ix.reporter, ix.cfg.workerCount)
	if err := res.resolveAll(); err != nil {
		return objid.ID{}, ix.fail(err)
	}
	ix.stats.ExternalBases = res.externalBases

	builder := idx.NewBuilder(uint32(len(ix.table.objects)))
	for _, e := range ix.table.objects {
		builder.Add(e.id, e.position, e.crc32)
	}

	if err := ctx.Err(); err != nil {
		return objid.ID{}, ix.fail(newError(KindCancelled, "commit: %v", err))
	}

	idxName := fmt.Sprintf("pack-%s.idx", packID.String())
	idxFile, err := ix.fs.Create(idxName)
	if err != nil {
		return objid.ID{}, ix.fail(wrapError(KindIO, err))
	}

	enc := idx.NewEncoder(idxFile, ix.format)
	if _, err := enc.Encode(builder.Entries(), ix.footer); err != nil {
		_ = idxFile.Close()
		return objid.ID{}, ix.fail(wrapError(KindIO, err))
	}
	if err := idxFile.Close(); err != nil {
		return objid.ID{}, ix.fail(wrapError(KindIO, err))
	}
	fixPermissions(ix.fs, idxName, ix.mode)

	if _, err := ix.writer.commit(packID.String()); err != nil {
		return objid.ID{}, ix.fail(err)
	}

	ix.verifyRoots(res)

	ix.state = committed
	ix.result = packID
	tracelog.Commit.Printf("committed pack-%s: %d objects, %d external bases", packID, len(ix.table.objects), ix.stats.ExternalBases)
	return packID, nil
}

// verifyRoots runs the do_verify pass-through (§9): every non-delta
// commit/tag object is checked against the configured store once the
// pack is fully written. A failure here is advisory — it does not unwind
// the pack or idx files already on disk.
func (ix *Indexer) verifyRoots(res *resolver) {
	if ix.store == nil {
		return
	}

	for _, e := range ix.table.objects {
		if e.isDelta() || (e.typ != packfile.CommitObject && e.typ != packfile.TagObject) {
			continue
		}

		content, err := res.inflateEntry(e)
		if err != nil {
			tracelog.Commit.Printf("verify: re-reading %s: %v", e.id, err)
			continue
		}
		if err := ix.store.Verify(e.id, e.typ.String(), content); err != nil {
			tracelog.Commit.Printf("verify: %s failed signature check: %v", e.id, err)
		}
	}
}

// Stats reports facts collected while resolving the most recent commit.
func (ix *Indexer) Stats() Stats {
	return ix.stats
}

// Free releases every resource the Indexer holds. If Commit has not
// succeeded, the temporary pack is removed.
func (ix *Indexer) Free() error {
	if ix.mapped != nil {
		_ = ix.mapped.Close()
		ix.mapped = nil
	}
	if ix.state == committed {
		return nil
	}
	return ix.writer.abort()
}

func (ix *Indexer) fail(err error) error {
	ix.state = failed
	return err
}

func asIndexerError(err error) error {
	if ie, ok := err.(*Error); ok {
		return ie
	}
	return wrapError(KindParse, err)
}

// --- packfile.Observer ---

func (ix *Indexer) OnHeader(h packfile.Header) error {
	ix.table = newTable(h.ObjectsQty)
	ix.reporter.SetTotals(h.ObjectsQty, 0)
	if ix.state == fresh {
		ix.state = started
	}
	return nil
}

func (ix *Indexer) OnObjectStart(e packfile.ObjectStart) error {
	ix.pending = &entry{
		kind:       objectEntry,
		position:   e.Position,
		headerSize: e.HeaderSize,
		typ:        e.Type,
		size:       e.Size,
	}
	if abort := ix.reporter.AddReceivedObject(); abort != 0 {
		return newError(KindCancelled, "append aborted by observer at object position %d", e.Position)
	}
	return nil
}

func (ix *Indexer) OnObjectComplete(e packfile.ObjectComplete) error {
	p := ix.pending
	p.compressedSize = e.CompressedSize
	p.crc32 = e.CRC32
	p.id = e.ID
	ix.pending = nil

	if err := ix.table.add(p); err != nil {
		return err
	}
	tracelog.Scan.Printf("object at %d: %s %s", p.position, p.typ, p.id)
	if abort := ix.reporter.AddIndexedObject(); abort != 0 {
		return newError(KindCancelled, "append aborted by observer after object at position %d", p.position)
	}
	return nil
}

func (ix *Indexer) OnDeltaStart(d packfile.DeltaStart) error {
	ix.pending = &entry{
		kind:       deltaEntry,
		position:   d.Position,
		headerSize: d.HeaderSize,
		typ:        d.Type,
		size:       d.Size,
		refDelta:   d.RefDelta,
		baseOffset: d.BaseOffset,
	}
	snap := ix.reporter.Snapshot()
	ix.reporter.SetTotals(snap.TotalObjects, snap.TotalDeltas+1)
	if abort := ix.reporter.AddReceivedObject(); abort != 0 {
		return newError(KindCancelled, "append aborted by observer at delta position %d", d.Position)
	}
	return nil
}

func (ix *Indexer) OnDeltaComplete(d packfile.DeltaComplete) error {
	p := ix.pending
	p.compressedSize = d.CompressedSize
	p.crc32 = d.CRC32
	ix.pending = nil

	if err := ix.table.add(p); err != nil {
		return err
	}
	tracelog.Scan.Printf("delta at %d: base %v", p.position, p.baseOffset)
	if abort := ix.reporter.AddIndexedDelta(); abort != 0 {
		return newError(KindCancelled, "append aborted by observer after delta at position %d", p.position)
	}
	return nil
}

func (ix *Indexer) OnFooter(f packfile.Footer) error {
	ix.footer = append([]byte(nil), f.Checksum...)
	ix.state = complete
	return nil
}
