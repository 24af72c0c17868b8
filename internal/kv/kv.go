// Package kv wraps an embedded, memory-mapped, copy-on-write B+tree KV
// store behind the single-writer/multi-reader, MVCC-snapshot contract
// spec §4.1 describes, in the shape of environment, transaction, and
// cursor types independent of any one RDF concern.
//
// Grounded on the teacher's internal/storage.BadgerStorage and
// pkg/store.{Storage,Transaction,Iterator} — same choice of
// github.com/dgraph-io/badger/v4 as the underlying engine, same idea of
// folding a logical sub-database into a physical key prefix
// (pkg/store.PrefixKey) — generalized from the teacher's fixed
// Table-enum of eleven tables to a runtime-registered, name-addressed
// catalog, and extended with the multi-value (duplicate-key) cursor
// vocabulary spec §4.1 requires (badger has no native dupsort, so it is
// modeled the way erigon-lib's DupSort tables are: the dictionary
// key and value are physically concatenated into one sorted badger
// key).
package kv

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/logging"
)

// Options mirrors spec §4.1's enumerated open() options.
type Options struct {
	MapSize    int64       // bytes; Open sets badger's MemTableSize to a quarter of it
	MaxDBs     int         // maximum distinct named sub-databases
	MaxReaders int         // read-transaction budget, enforced by Env's reader tracker (ErrReadersFull)
	NoSubdir   bool        // sets badger's ValueDir to Dir; badger's defaults already use path for both
	ReadAhead  bool        // stored only: Open and Cursor ignore it, and iterators never prefetch values
	Create     bool        // allow bootstrapping a new environment
	KeyWidth   codec.Width // on-disk Key width; must match an existing environment's header
	HashSeed   [16]byte    // used only when bootstrapping a new environment
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		MapSize:    1 << 30, // 1 GiB
		MaxDBs:     64,
		MaxReaders: 126,
		NoSubdir:   false,
		ReadAhead:  false,
		Create:     true,
		KeyWidth:   codec.Width5,
		HashSeed:   codec.DefaultHashSeed,
	}
}

// Env is an open environment: one badger database plus the subDB
// catalog and header record layered on top of it.
type Env struct {
	db      *badger.DB
	path    string
	opts    Options
	header  Header
	subDBs  *subDBRegistry
	log     *logrus.Entry
	readers *readerTracker
}

// Open opens (or, if opts.Create, bootstraps) an environment at path.
func Open(path string, opts Options) (*Env, error) {
	if !opts.KeyWidth.Valid() {
		return nil, fmt.Errorf("%w: key width must be 4, 5, or 8", ErrCorrupted)
	}
	if opts.Create {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("kv: creating environment directory: %w", err)
		}
	}

	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil // the teacher disables badger's own logger too; we log via internal/logging instead
	if opts.NoSubdir {
		bopts.ValueDir = bopts.Dir
	}
	if opts.MapSize > 0 {
		// Badger has no single map_size knob; MemTableSize is the closest
		// lever for bounding in-memory write-buffer growth, so the
		// configured map_size informs it rather than being ignored.
		bopts.MemTableSize = opts.MapSize / 4
	}

	db, err := badger.Open(bopts)
	if err != nil {
		if isMapFull(err) {
			return nil, fmt.Errorf("%w: %v", ErrMapFull, err)
		}
		return nil, fmt.Errorf("kv: opening environment: %w", err)
	}

	header, err := loadOrCreateHeader(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := newSubDBRegistry(opts.MaxDBs)
	if err := reg.load(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	env := &Env{
		db:      db,
		path:    path,
		opts:    opts,
		header:  header,
		subDBs:  reg,
		log:     logging.L().WithField("component", "kv"),
		readers: newReaderTracker(opts.MaxReaders),
	}
	env.log.WithFields(logrus.Fields{
		"path":      path,
		"key_width": header.KeyWidth,
	}).Info("environment opened")
	return env, nil
}

// Close releases the environment.
func (e *Env) Close() error {
	return e.db.Close()
}

// KeyWidth returns the on-disk key width recorded in this
// environment's header.
func (e *Env) KeyWidth() codec.Width {
	return codec.Width(e.header.KeyWidth)
}

// HashSeed returns the term-codec seed recorded in this environment's
// header, so every writer hashes terms identically.
func (e *Env) HashSeed() [16]byte {
	return e.header.Seed
}

// ClearStaleReaders drops bookkeeping for reader slots whose owning
// transaction has already ended. Badger's MVCC GC already reclaims
// old snapshots; this exists to satisfy the spec's resource-model
// contract (readers_full recovery) and to bound the in-process reader
// tracker used by Stats().
func (e *Env) ClearStaleReaders() {
	e.readers.clearStale()
}

func isMapFull(err error) bool {
	// badger.Open has no single "disk full" sentinel; syscall-level
	// ENOSPC is the practical signal that the reserved space (map_size)
	// has been exhausted.
	return errors.Is(err, syscall.ENOSPC)
}
