package kv

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Op selects the positioning behavior of Cursor.Get, mirroring the
// MDBX-style cursor operation vocabulary spec §4.1 requires.
type Op int

const (
	OpExact Op = iota
	OpFirst
	OpLast
	OpNext
	OpNextDup
	OpNextNoDup
	OpSetRange
	OpGetBoth
	OpFirstDup
)

// PutFlags modifies Cursor.Put semantics.
type PutFlags int

const (
	PutNone PutFlags = 0
	// PutNoOverwrite rejects the put if the logical key already exists
	// (in a dup-sorted sub-database: if the key has any values at all).
	PutNoOverwrite PutFlags = 1 << iota
	// PutNoDupData rejects the put if this exact (key, value) pair
	// already exists in a dup-sorted sub-database.
	PutNoDupData
)

// DelFlags modifies Cursor.Del semantics.
type DelFlags int

const (
	DelNone DelFlags = 0
	// DelAllDuplicates removes every value stored under the cursor's
	// current logical key in a dup-sorted sub-database.
	DelAllDuplicates DelFlags = 1 << iota
)

// Cursor iterates one sub-database. When dupKeyLen is 0 the
// sub-database holds ordinary unique keys; when positive, it is
// dup-sorted the way spec §4.1 and the Design Notes describe: the
// physical badger key is prefix + logicalKey(dupKeyLen bytes) +
// logicalValue, stored with an empty value, so that all values for one
// logical key sort contiguously and next_dup/first_dup/get_both can be
// implemented as plain prefix scans. This mirrors the DupSort table
// convention used by erigon-lib's MDBX wrapper, adapted to an engine
// (badger) with no native multi-value keys.
type Cursor struct {
	txn       *Txn
	it        *badger.Iterator
	prefix    []byte // subDB prefix, 1 byte
	dupKeyLen int
	closed    bool

	curKey []byte // logical key of the current position
	curVal []byte // logical value (dup-sorted only; nil otherwise)
}

// Cursor opens a cursor over subDB within t. dupKeyLen must match the
// value the sub-database was created with (0 for a unique-key table).
func (t *Txn) Cursor(subDB string, dupKeyLen int) (*Cursor, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	prefixByte, err := t.env.subDBs.prefixFor(t.env.db, subDB)
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{prefixByte}
	opts.PrefetchValues = false
	c := &Cursor{
		txn:       t,
		it:        t.txn.NewIterator(opts),
		prefix:    []byte{prefixByte},
		dupKeyLen: dupKeyLen,
	}
	t.cursors = append(t.cursors, c)
	return c, nil
}

func (c *Cursor) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.it.Close()
}

// Close releases the cursor's underlying iterator. Safe to call more
// than once.
func (c *Cursor) Close() {
	c.close()
}

func (c *Cursor) physicalKey(logicalKey, logicalValue []byte) []byte {
	if c.dupKeyLen == 0 {
		buf := make([]byte, 0, len(c.prefix)+len(logicalKey))
		buf = append(buf, c.prefix...)
		buf = append(buf, logicalKey...)
		return buf
	}
	buf := make([]byte, 0, len(c.prefix)+len(logicalKey)+len(logicalValue))
	buf = append(buf, c.prefix...)
	buf = append(buf, logicalKey...)
	buf = append(buf, logicalValue...)
	return buf
}

// split decomposes a physical key (minus the subDB prefix) back into
// its logical key and, for dup-sorted tables, logical value.
func (c *Cursor) split(physical []byte) (key, val []byte) {
	body := physical[len(c.prefix):]
	if c.dupKeyLen == 0 {
		return body, nil
	}
	return body[:c.dupKeyLen], body[c.dupKeyLen:]
}

// incrementKey treats key as a big-endian integer and returns key+1.
// ok is false if key is already all 0xff, meaning no larger value of
// the same width exists.
func incrementKey(key []byte) (next []byte, ok bool) {
	next = append([]byte{}, key...)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] != 0xff {
			next[i]++
			return next, true
		}
		next[i] = 0
	}
	return next, false
}

func (c *Cursor) setPosition(item *badger.Item) {
	k, v := c.split(item.KeyCopy(nil))
	c.curKey, c.curVal = k, v
}

func (c *Cursor) clearPosition() {
	c.curKey, c.curVal = nil, nil
}

// Get positions the cursor per op and returns the logical key/value at
// the resulting position. key/val are the op's operands: OpExact and
// OpSetRange use key; OpGetBoth uses both key and val.
func (c *Cursor) Get(op Op, key, val []byte) (outKey, outVal []byte, err error) {
	switch op {
	case OpFirst:
		c.it.Seek(c.prefix)
		return c.current()

	case OpLast:
		return c.last()

	case OpExact:
		phys := c.physicalKey(key, nil)
		c.it.Seek(phys)
		if !c.it.ValidForPrefix(c.prefix) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		gotKey, gotVal := c.split(c.it.Item().KeyCopy(nil))
		if !bytes.Equal(gotKey, key) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		c.curKey, c.curVal = gotKey, gotVal
		if c.dupKeyLen == 0 {
			return c.materialize(c.it.Item())
		}
		return gotKey, gotVal, nil

	case OpSetRange:
		phys := c.physicalKey(key, nil)
		c.it.Seek(phys)
		return c.current()

	case OpGetBoth:
		phys := c.physicalKey(key, val)
		c.it.Seek(phys)
		if !c.it.ValidForPrefix(c.prefix) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		gotKey, gotVal := c.split(c.it.Item().KeyCopy(nil))
		if !bytes.Equal(gotKey, key) || !bytes.Equal(gotVal, val) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		c.curKey, c.curVal = gotKey, gotVal
		return gotKey, gotVal, nil

	case OpNext:
		if c.curKey == nil {
			c.it.Seek(c.prefix)
		} else {
			c.it.Next()
		}
		return c.current()

	case OpNextDup:
		if c.dupKeyLen == 0 {
			return nil, nil, fmt.Errorf("%w: next_dup on a non dup-sorted sub-database", ErrBadTxn)
		}
		if c.curKey == nil {
			return nil, nil, ErrNotFound
		}
		want := append(append([]byte{}, c.curKey...))
		c.it.Next()
		if !c.it.ValidForPrefix(c.prefix) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		gotKey, gotVal := c.split(c.it.Item().KeyCopy(nil))
		if !bytes.Equal(gotKey, want) {
			c.clearPosition()
			return nil, nil, ErrNotFound
		}
		c.curKey, c.curVal = gotKey, gotVal
		return gotKey, gotVal, nil

	case OpNextNoDup:
		if c.curKey == nil {
			c.it.Seek(c.prefix)
			return c.current()
		}
		// Skip past every value of the current logical key by seeking
		// to the first physical key of the next logical key. Since
		// curKey is fixed-width, incrementing it as a big-endian
		// integer is a true ceiling regardless of what bytes a stored
		// value starts with (appending 0xff to curKey is not: a value
		// whose own leading byte is 0xff sorts after that ceiling).
		next, ok := incrementKey(c.curKey)
		if !ok {
			// curKey is already the largest representable logical key
			// of this width, so no physical key can sort above it;
			// scan past its remaining duplicates directly.
			for c.it.ValidForPrefix(c.prefix) {
				gotKey, _ := c.split(c.it.Item().KeyCopy(nil))
				if !bytes.Equal(gotKey, c.curKey) {
					break
				}
				c.it.Next()
			}
			return c.current()
		}
		phys := c.physicalKey(next, nil)
		c.it.Seek(phys)
		return c.current()

	case OpFirstDup:
		if c.dupKeyLen == 0 {
			return nil, nil, fmt.Errorf("%w: first_dup on a non dup-sorted sub-database", ErrBadTxn)
		}
		if c.curKey == nil {
			return nil, nil, ErrNotFound
		}
		phys := c.physicalKey(c.curKey, nil)
		c.it.Seek(phys)
		return c.current()

	default:
		return nil, nil, fmt.Errorf("%w: unknown cursor op %d", ErrBadTxn, op)
	}
}

func (c *Cursor) current() (key, val []byte, err error) {
	if !c.it.ValidForPrefix(c.prefix) {
		c.clearPosition()
		return nil, nil, ErrNotFound
	}
	item := c.it.Item()
	gotKey, gotVal := c.split(item.KeyCopy(nil))
	c.curKey, c.curVal = gotKey, gotVal
	if c.dupKeyLen == 0 {
		return c.materialize(item)
	}
	return gotKey, gotVal, nil
}

// last walks to the final entry under the prefix. Badger iterators are
// forward-only by default; reverse iteration needs its own iterator.
func (c *Cursor) last() (key, val []byte, err error) {
	ropts := badger.DefaultIteratorOptions
	ropts.Reverse = true
	ropts.Prefix = c.prefix
	ropts.PrefetchValues = false
	it := c.txn.txn.NewIterator(ropts)
	defer it.Close()

	ceiling := append(append([]byte{}, c.prefix...), bytes.Repeat([]byte{0xff}, 64)...)
	it.Seek(ceiling)
	if !it.ValidForPrefix(c.prefix) {
		c.clearPosition()
		return nil, nil, ErrNotFound
	}
	item := it.Item()
	gotKey, gotVal := c.split(item.KeyCopy(nil))
	c.curKey, c.curVal = gotKey, gotVal
	// Re-seek the forward iterator onto this position so subsequent
	// Next/NextDup calls continue from here.
	c.it.Seek(item.KeyCopy(nil))
	if c.dupKeyLen == 0 {
		return c.materialize(item)
	}
	return gotKey, gotVal, nil
}

// materialize reads the stored value for a unique-key table entry
// (dup-sorted tables store an empty value and carry the payload in the
// physical key itself, so they never need this).
func (c *Cursor) materialize(item *badger.Item) ([]byte, []byte, error) {
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	return c.curKey, v, nil
}

// Put writes a logical (key, value) pair at the cursor's sub-database.
// In a dup-sorted table val participates in the physical key; in a
// unique-key table it is the stored value.
func (c *Cursor) Put(key, val []byte, flags PutFlags) error {
	if !c.txn.writable {
		return fmt.Errorf("%w: cursor is read-only", ErrBadTxn)
	}
	if flags&PutNoOverwrite != 0 {
		if _, _, err := c.Get(OpExact, key, nil); err == nil {
			return ErrKeyExists
		}
	}
	if c.dupKeyLen == 0 {
		return c.txn.txn.Set(c.physicalKey(key, nil), val)
	}
	if len(key) != c.dupKeyLen {
		return ErrInvalidDupKeyLen
	}
	phys := c.physicalKey(key, val)
	if flags&PutNoDupData != 0 {
		if _, err := c.txn.txn.Get(phys); err == nil {
			return ErrKeyExists
		}
	}
	return c.txn.txn.Set(phys, nil)
}

// Del removes the entry at the cursor's current position. With
// DelAllDuplicates it removes every value stored under the current
// logical key.
func (c *Cursor) Del(flags DelFlags) error {
	if !c.txn.writable {
		return fmt.Errorf("%w: cursor is read-only", ErrBadTxn)
	}
	if c.curKey == nil {
		return ErrNotFound
	}
	if c.dupKeyLen == 0 || flags&DelAllDuplicates != 0 {
		return c.deleteAllForKey(c.curKey)
	}
	return c.txn.txn.Delete(c.physicalKey(c.curKey, c.curVal))
}

func (c *Cursor) deleteAllForKey(key []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = c.prefix
	opts.PrefetchValues = false
	it := c.txn.txn.NewIterator(opts)
	defer it.Close()

	phys := c.physicalKey(key, nil)
	var toDelete [][]byte
	for it.Seek(phys); it.ValidForPrefix(c.prefix); it.Next() {
		gotKey, _ := c.split(it.Item().KeyCopy(nil))
		if !bytes.Equal(gotKey, key) {
			break
		}
		toDelete = append(toDelete, it.Item().KeyCopy(nil))
	}
	for _, k := range toDelete {
		if err := c.txn.txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
