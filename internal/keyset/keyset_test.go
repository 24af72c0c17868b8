package keyset

import (
	"testing"

	"github.com/ldpstore/quadstore/internal/codec"
)

func tk(s, p, o uint64) codec.TripleKey {
	return codec.TripleKey{S: codec.Key(s), P: codec.Key(p), O: codec.Key(o)}
}

func TestAddAndContains(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 2, 3), false)
	if !ks.Contains(tk(1, 2, 3)) {
		t.Fatal("expected Contains to find added entry")
	}
	if ks.Contains(tk(9, 9, 9)) {
		t.Fatal("Contains found a non-existent entry")
	}
}

func TestAddCheckDupSkipsExisting(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 2, 3), false)
	ks.Add(tk(1, 2, 3), true)
	if ks.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after deduplicated add", ks.Len())
	}
}

func TestRemoveTombstones(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 2, 3), false)
	if !ks.Remove(tk(1, 2, 3)) {
		t.Fatal("Remove returned false for existing entry")
	}
	if ks.Contains(tk(1, 2, 3)) {
		t.Fatal("Contains found a removed entry")
	}
	if ks.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (tombstones still counted)", ks.Len())
	}
}

func TestGetNextSkipsTombstones(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 0, 0), false)
	ks.Add(tk(2, 0, 0), false)
	ks.Add(tk(3, 0, 0), false)
	ks.Remove(tk(2, 0, 0))

	var out codec.TripleKey
	var got []codec.TripleKey
	for ks.GetNext(&out) {
		got = append(got, out)
	}
	if len(got) != 2 || got[0] != tk(1, 0, 0) || got[1] != tk(3, 0, 0) {
		t.Fatalf("GetNext sequence = %v, want [1,3]", got)
	}
}

func TestSparseCopyCompactsTombstones(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 0, 0), false)
	ks.Add(tk(2, 0, 0), false)
	ks.Remove(tk(1, 0, 0))

	sc := ks.SparseCopy()
	if sc.Len() != 1 {
		t.Fatalf("SparseCopy Len() = %d, want 1", sc.Len())
	}
	if !sc.Contains(tk(2, 0, 0)) {
		t.Fatal("SparseCopy dropped a live entry")
	}
}

func TestLookupByBoundPositions(t *testing.T) {
	ks := Empty(0)
	ks.Add(tk(1, 1, 1), false)
	ks.Add(tk(1, 2, 3), false)
	ks.Add(tk(2, 2, 2), false)

	one := codec.Key(1)
	result := ks.Lookup(&one, nil, nil)
	if result.Len() != 2 {
		t.Fatalf("Lookup(s=1) Len() = %d, want 2", result.Len())
	}
}

func TestUnionDeduplicates(t *testing.T) {
	a := FromSlice([]codec.TripleKey{tk(1, 0, 0), tk(2, 0, 0)})
	b := FromSlice([]codec.TripleKey{tk(2, 0, 0), tk(3, 0, 0)})
	u := Union(a, b)
	if u.Len() != 3 {
		t.Fatalf("Union Len() = %d, want 3", u.Len())
	}
}

func TestSubtractIntersectXor(t *testing.T) {
	a := FromSlice([]codec.TripleKey{tk(1, 0, 0), tk(2, 0, 0), tk(3, 0, 0)})
	b := FromSlice([]codec.TripleKey{tk(2, 0, 0), tk(4, 0, 0)})

	sub := Subtract(a, b)
	if sub.Len() != 2 || !sub.Contains(tk(1, 0, 0)) || !sub.Contains(tk(3, 0, 0)) {
		t.Fatalf("Subtract = %v", sub.Slice())
	}

	inter := Intersect(a, b)
	if inter.Len() != 1 || !inter.Contains(tk(2, 0, 0)) {
		t.Fatalf("Intersect = %v", inter.Slice())
	}

	x := Xor(a, b)
	if x.Len() != 3 {
		t.Fatalf("Xor Len() = %d, want 3", x.Len())
	}
}

func TestGrowthIsGeometric(t *testing.T) {
	ks := Empty(4)
	for i := 0; i < 5; i++ {
		ks.Add(tk(uint64(i), 0, 0), false)
	}
	if ks.Cap() <= 4 {
		t.Fatalf("Cap() = %d, expected growth past initial capacity 4", ks.Cap())
	}
}
