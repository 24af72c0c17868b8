// Package keyset implements the Key Set (spec §4.5): a growable,
// tombstone-capable buffer of codec.TripleKey entries with geometric
// growth and set-algebra primitives.
//
// The teacher has no analogue of this (it inlines terms directly into
// badger keys and scans the KV store itself); this package is new code
// written in the teacher's plain, low-abstraction struct-and-method
// style — no generics, no interfaces where a concrete type will do.
package keyset

import (
	"github.com/ldpstore/quadstore/internal/codec"
)

// growthNumerator/growthDenominator express the 1.75x expansion factor
// as integers so growth is deterministic across platforms.
const (
	growthNumerator   = 7
	growthDenominator = 4
)

var nullTriple codec.TripleKey // zero value; used as a tombstone

// KeySet is a growable, order-preserving buffer of TripleKeys. Removed
// entries are tombstoned in place (set to the null TripleKey) rather
// than shifted out, keeping Remove O(1).
type KeySet struct {
	data []codec.TripleKey
	used int
	pos  int // cursor for Seek/Tell/GetNext
}

// Empty returns a KeySet with capacity preallocated.
func Empty(capacity int) *KeySet {
	if capacity < 0 {
		capacity = 0
	}
	return &KeySet{data: make([]codec.TripleKey, capacity)}
}

// FromSlice copies keys into a new KeySet.
func FromSlice(keys []codec.TripleKey) *KeySet {
	ks := Empty(len(keys))
	for _, k := range keys {
		ks.Add(k, false)
	}
	return ks
}

// Len returns the used-count (including tombstones).
func (ks *KeySet) Len() int { return ks.used }

// Cap returns the current backing capacity.
func (ks *KeySet) Cap() int { return len(ks.data) }

func (ks *KeySet) grow(minCap int) {
	if minCap <= len(ks.data) {
		return
	}
	newCap := len(ks.data)*growthNumerator/growthDenominator + 1
	if newCap < minCap {
		newCap = minCap
	}
	grown := make([]codec.TripleKey, newCap)
	copy(grown, ks.data[:ks.used])
	ks.data = grown
}

// Resize grows the backing array to at least newCap, a no-op if newCap
// is not larger than the current capacity.
func (ks *KeySet) Resize(newCap int) {
	ks.grow(newCap)
}

// Add appends key. With checkDup it first scans for an existing,
// non-tombstoned equal entry and no-ops if found.
func (ks *KeySet) Add(key codec.TripleKey, checkDup bool) {
	if checkDup && ks.Contains(key) {
		return
	}
	ks.grow(ks.used + 1)
	ks.data[ks.used] = key
	ks.used++
}

// Remove tombstones the first non-tombstoned occurrence of key.
func (ks *KeySet) Remove(key codec.TripleKey) bool {
	for i := 0; i < ks.used; i++ {
		if ks.data[i] != nullTriple && ks.data[i] == key {
			ks.data[i] = nullTriple
			return true
		}
	}
	return false
}

// Contains reports whether key is present and not tombstoned. O(n).
func (ks *KeySet) Contains(key codec.TripleKey) bool {
	for i := 0; i < ks.used; i++ {
		if ks.data[i] != nullTriple && ks.data[i] == key {
			return true
		}
	}
	return false
}

// Seek repositions the read cursor used by GetNext.
func (ks *KeySet) Seek(index int) { ks.pos = index }

// Tell returns the read cursor's current position.
func (ks *KeySet) Tell() int { return ks.pos }

// GetNext advances the cursor past tombstones and writes the next live
// entry into out, reporting false once the cursor reaches the end.
func (ks *KeySet) GetNext(out *codec.TripleKey) bool {
	for ks.pos < ks.used {
		k := ks.data[ks.pos]
		ks.pos++
		if k != nullTriple {
			*out = k
			return true
		}
	}
	return false
}

// Copy returns a deep copy, tombstones included, cursor reset.
func (ks *KeySet) Copy() *KeySet {
	out := Empty(len(ks.data))
	copy(out.data, ks.data)
	out.used = ks.used
	return out
}

// SparseCopy returns a copy with tombstones compacted out and the
// backing array shrunk to the live count.
func (ks *KeySet) SparseCopy() *KeySet {
	out := Empty(ks.liveCount())
	for i := 0; i < ks.used; i++ {
		if ks.data[i] != nullTriple {
			out.Add(ks.data[i], false)
		}
	}
	return out
}

func (ks *KeySet) liveCount() int {
	n := 0
	for i := 0; i < ks.used; i++ {
		if ks.data[i] != nullTriple {
			n++
		}
	}
	return n
}

// Slice returns the live, order-preserving contents as a plain slice
// (callers must not mutate the backing array of the returned slice
// across subsequent KeySet mutations).
func (ks *KeySet) Slice() []codec.TripleKey {
	out := make([]codec.TripleKey, 0, ks.liveCount())
	for i := 0; i < ks.used; i++ {
		if ks.data[i] != nullTriple {
			out = append(out, ks.data[i])
		}
	}
	return out
}

// Lookup scans for entries matching the bound positions among s, p, o
// (nil means unbound), returning a new KeySet of matches. The
// comparator is chosen by which positions are bound, mirroring the
// spec's "comparator chosen by which keys are bound" wording.
func (ks *KeySet) Lookup(s, p, o *codec.Key) *KeySet {
	out := Empty(0)
	for i := 0; i < ks.used; i++ {
		tk := ks.data[i]
		if tk == nullTriple {
			continue
		}
		if s != nil && tk.S != *s {
			continue
		}
		if p != nil && tk.P != *p {
			continue
		}
		if o != nil && tk.O != *o {
			continue
		}
		out.Add(tk, false)
	}
	return out
}

// Union returns a new KeySet containing the deduplicated members of
// a and b, tombstones skipped on both sides.
func Union(a, b *KeySet) *KeySet {
	out := Empty(a.liveCount() + b.liveCount())
	seen := make(map[codec.TripleKey]struct{}, out.Cap())
	for _, k := range a.Slice() {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out.Add(k, false)
		}
	}
	for _, k := range b.Slice() {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out.Add(k, false)
		}
	}
	return out
}

// Subtract returns the members of a not present in b.
func Subtract(a, b *KeySet) *KeySet {
	exclude := make(map[codec.TripleKey]struct{}, b.liveCount())
	for _, k := range b.Slice() {
		exclude[k] = struct{}{}
	}
	out := Empty(a.liveCount())
	for _, k := range a.Slice() {
		if _, ok := exclude[k]; !ok {
			out.Add(k, false)
		}
	}
	return out
}

// Intersect returns the members present in both a and b.
func Intersect(a, b *KeySet) *KeySet {
	present := make(map[codec.TripleKey]struct{}, b.liveCount())
	for _, k := range b.Slice() {
		present[k] = struct{}{}
	}
	out := Empty(0)
	for _, k := range a.Slice() {
		if _, ok := present[k]; ok {
			out.Add(k, false)
		}
	}
	return out
}

// Xor returns the symmetric difference of a and b.
func Xor(a, b *KeySet) *KeySet {
	return Union(Subtract(a, b), Subtract(b, a))
}
