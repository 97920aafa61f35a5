// Package progress holds the counter set an Indexer reports as it works,
// and the cancellation contract the caller uses to abort mid-stream.
package progress

import "sync"

// Snapshot is a point-in-time copy of an indexing run's counters. It is
// safe to read without further synchronisation once obtained from
// Reporter.Snapshot.
type Snapshot struct {
	ReceivedBytes   int64
	ReceivedObjects uint32
	IndexedObjects  uint32
	IndexedDeltas   uint32
	TotalObjects    uint32
	TotalDeltas     uint32
}

// Observer is called after each meaningful unit of work — a chunk written,
// an object parsed, a delta resolved. A non-zero return aborts the
// operation at the next chunk or delta boundary; the indexer surfaces this
// as a cancelled-kind error.
type Observer func(Snapshot) int

// Reporter owns the counter set for one indexing run and serialises
// updates to it behind a mutex, since Append may in principle be driven
// from goroutines coordinating with the caller even though the indexer
// core itself is single-threaded.
type Reporter struct {
	mu       sync.Mutex
	snapshot Snapshot
	observer Observer
}

// NewReporter returns a Reporter that calls obs after each update. obs may
// be nil, in which case updates are recorded but never reported and every
// reporting method (the Add* methods and Poll) returns 0.
func NewReporter(obs Observer) *Reporter {
	return &Reporter{observer: obs}
}

// AddReceivedBytes records n additional bytes written to the pack and
// reports the resulting snapshot.
func (r *Reporter) AddReceivedBytes(n int64) int {
	r.mu.Lock()
	r.snapshot.ReceivedBytes += n
	s := r.snapshot
	r.mu.Unlock()
	return r.report(s)
}

// AddReceivedObject records one more object header having been parsed.
func (r *Reporter) AddReceivedObject() int {
	r.mu.Lock()
	r.snapshot.ReceivedObjects++
	s := r.snapshot
	r.mu.Unlock()
	return r.report(s)
}

// AddIndexedObject records one more non-delta object fully indexed.
func (r *Reporter) AddIndexedObject() int {
	r.mu.Lock()
	r.snapshot.IndexedObjects++
	s := r.snapshot
	r.mu.Unlock()
	return r.report(s)
}

// AddIndexedDelta records one more delta entry fully parsed and added to
// the entry table; its identity is not known until resolution.
func (r *Reporter) AddIndexedDelta() int {
	r.mu.Lock()
	r.snapshot.IndexedDeltas++
	s := r.snapshot
	r.mu.Unlock()
	return r.report(s)
}

// SetTotals records the expected object/delta counts, taken from the pack
// header and the count of DeltaStart events seen so far respectively.
func (r *Reporter) SetTotals(objects, deltas uint32) {
	r.mu.Lock()
	r.snapshot.TotalObjects = objects
	r.snapshot.TotalDeltas = deltas
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Poll reports the current snapshot without recording any new count,
// giving the observer a chance to abort at a boundary that doesn't
// otherwise touch the counter set — e.g. between deltas during delta
// resolution, where no new counter is incremented per §5.
func (r *Reporter) Poll() int {
	return r.report(r.Snapshot())
}

func (r *Reporter) report(s Snapshot) int {
	if r.observer == nil {
		return 0
	}
	return r.observer(s)
}
