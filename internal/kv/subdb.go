package kv

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// catalogPrefix namespaces the subDB name->id catalog entries so they
// never collide with the headerKey or a subDB's own data prefix.
var catalogPrefix = []byte{0xff, 'c', 'a', 't', ':'}

// subDBRegistry assigns a stable single-byte physical-key prefix to
// each named sub-database, the way the teacher's pkg/store.Table enum
// assigns a byte per table — generalized here to a runtime-registered,
// persisted catalog so callers can open sub-databases by name (spec
// §4.1: "env.txn(write).cursor(sub_db)") instead of a compile-time enum.
type subDBRegistry struct {
	mu     sync.RWMutex
	byName map[string]byte
	nextID byte
	maxDBs int
}

func newSubDBRegistry(maxDBs int) *subDBRegistry {
	return &subDBRegistry{
		byName: make(map[string]byte),
		nextID: 1, // 0 is reserved
		maxDBs: maxDBs,
	}
}

// load populates the registry from badger's catalog entries.
func (r *subDBRegistry) load(db *badger.DB) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = catalogPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		r.mu.Lock()
		defer r.mu.Unlock()
		for it.Seek(catalogPrefix); it.ValidForPrefix(catalogPrefix); it.Next() {
			name := string(it.Item().Key()[len(catalogPrefix):])
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(val) != 1 {
				return fmt.Errorf("%w: malformed subDB catalog entry for %q", ErrCorrupted, name)
			}
			r.byName[name] = val[0]
			if val[0] >= r.nextID {
				r.nextID = val[0] + 1
			}
		}
		return it.Close()
	})
}

// prefixFor returns the physical prefix byte for name, registering it
// (and persisting the registration) on first use.
func (r *subDBRegistry) prefixFor(db *badger.DB, name string) (byte, error) {
	r.mu.RLock()
	if id, ok := r.byName[name]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id, nil
	}
	if int(r.nextID) == 0 || r.countLocked() >= r.maxDBs {
		return 0, ErrTooManySubDBs
	}
	id := r.nextID
	r.nextID++

	err := db.Update(func(txn *badger.Txn) error {
		key := append(append([]byte{}, catalogPrefix...), name...)
		return txn.Set(key, []byte{id})
	})
	if err != nil {
		r.nextID--
		return 0, err
	}
	r.byName[name] = id
	return id, nil
}

func (r *subDBRegistry) countLocked() int {
	return len(r.byName)
}

// Count returns the number of registered sub-databases.
func (r *subDBRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}
