package codec

import (
	"encoding/binary"
	"fmt"
)

// NullKey is the reserved sentinel key (spec §3 invariant 2). No term
// is ever assigned this key.
const NullKey Key = 0

// DefaultGraphKey is the reserved context key for the default graph
// (spec §9 open question, fixed to 1 for testability).
const DefaultGraphKey Key = 1

// Key is a dictionary-assigned term identifier. Only the low W bytes
// (W = one of 4, 5, 8) are ever significant on disk; in memory a Key
// is simply a uint64 for arithmetic convenience.
type Key uint64

// Width is a supported on-disk key width in bytes.
type Width int

const (
	Width4 Width = 4
	Width5 Width = 5
	Width8 Width = 8
)

// Valid reports whether w is one of the spec's permissible key widths.
func (w Width) Valid() bool {
	return w == Width4 || w == Width5 || w == Width8
}

// Max is the largest Key value representable in w bytes.
func (w Width) Max() Key {
	if w >= 8 {
		return Key(^uint64(0))
	}
	return Key(uint64(1)<<(uint(w)*8)) - 1
}

// Encode writes k as a big-endian, fixed-width byte counter so that
// byte-lexicographic order matches numeric order (spec §4.3 allocator
// rule).
func (w Width) Encode(k Key) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(k))
	return buf[8-int(w):]
}

// Decode is the inverse of Encode.
func (w Width) Decode(b []byte) (Key, error) {
	if len(b) != int(w) {
		return 0, fmt.Errorf("codec: key has wrong width: got %d, want %d", len(b), w)
	}
	var buf [8]byte
	copy(buf[8-int(w):], b)
	return Key(binary.BigEndian.Uint64(buf[:])), nil
}

// Successor returns k+1, and false if k is already Width's maximum
// (spec §4.3: "when the counter saturates the database is declared
// full").
func (w Width) Successor(k Key) (Key, bool) {
	if k >= w.Max() {
		return 0, false
	}
	return k + 1, true
}

// TripleKey is an ordered (subject, predicate, object) key triple,
// byte-packed to 3*W bytes (spec §3).
type TripleKey struct {
	S, P, O Key
}

func (w Width) EncodeTriple(tk TripleKey) []byte {
	buf := make([]byte, 0, 3*int(w))
	buf = append(buf, w.Encode(tk.S)...)
	buf = append(buf, w.Encode(tk.P)...)
	buf = append(buf, w.Encode(tk.O)...)
	return buf
}

func (w Width) DecodeTriple(b []byte) (TripleKey, error) {
	if len(b) != 3*int(w) {
		return TripleKey{}, fmt.Errorf("codec: triple key has wrong length: got %d, want %d", len(b), 3*int(w))
	}
	s, _ := w.Decode(b[0*int(w) : 1*int(w)])
	p, _ := w.Decode(b[1*int(w) : 2*int(w)])
	o, _ := w.Decode(b[2*int(w) : 3*int(w)])
	return TripleKey{S: s, P: p, O: o}, nil
}

// DoubleKey is an ordered pair of keys, the value half of a compound
// index entry (spec §4.4). The field order is defined per-index by the
// caller (quadindex), not fixed here.
type DoubleKey struct {
	A, B Key
}

func (w Width) EncodeDouble(dk DoubleKey) []byte {
	buf := make([]byte, 0, 2*int(w))
	buf = append(buf, w.Encode(dk.A)...)
	buf = append(buf, w.Encode(dk.B)...)
	return buf
}

func (w Width) DecodeDouble(b []byte) (DoubleKey, error) {
	if len(b) != 2*int(w) {
		return DoubleKey{}, fmt.Errorf("codec: double key has wrong length: got %d, want %d", len(b), 2*int(w))
	}
	a, _ := w.Decode(b[0*int(w) : 1*int(w)])
	c, _ := w.Decode(b[1*int(w) : 2*int(w)])
	return DoubleKey{A: a, B: c}, nil
}
