package kv

import (
	"sync"

	"github.com/dustin/go-humanize"
)

// readerTracker bounds the number of concurrently open read
// transactions the way spec §4.1's max_readers option does. Commit and
// Abort release a transaction's slot; Env.ClearStaleReaders only drops
// entries whose transaction is already closed, so a read transaction
// that is never committed or aborted keeps its slot.
type readerTracker struct {
	mu      sync.Mutex
	max     int
	active  map[*Txn]struct{}
}

func newReaderTracker(max int) *readerTracker {
	if max <= 0 {
		max = 126
	}
	return &readerTracker{max: max, active: make(map[*Txn]struct{})}
}

func (t *readerTracker) acquire(txn *Txn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.active) >= t.max {
		return ErrReadersFull
	}
	t.active[txn] = struct{}{}
	return nil
}

func (t *readerTracker) release(txn *Txn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, txn)
}

func (t *readerTracker) clearStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for txn := range t.active {
		if txn.closed {
			delete(t.active, txn)
		}
	}
}

func (t *readerTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Stats summarizes environment resource usage for
// pkg/rdfstore.Store.Stats (spec §6.3).
type Stats struct {
	LSMSizeBytes  int64
	VlogSizeBytes int64
	SubDBCount    int
	ActiveReaders int
	MaxReaders    int
}

// HumanSize formats the on-disk footprint the way go-humanize renders
// byte counts ("512 MB") for the CLI `stats` command.
func (s Stats) HumanSize() string {
	return humanize.Bytes(uint64(s.LSMSizeBytes + s.VlogSizeBytes)) // #nosec G115 - sizes are non-negative badger accounting counters
}

// Stats reports environment-level resource usage.
func (e *Env) Stats() Stats {
	lsm, vlog := e.db.Size()
	return Stats{
		LSMSizeBytes:  lsm,
		VlogSizeBytes: vlog,
		SubDBCount:    e.subDBs.Count(),
		ActiveReaders: e.readers.count(),
		MaxReaders:    e.opts.MaxReaders,
	}
}
