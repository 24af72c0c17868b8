package codec

import (
	"testing"

	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c := New(DefaultHashSeed)

	terms := []rdfterm.Term{
		rdfterm.NewIRI("http://example.org/s"),
		rdfterm.NewBlankNode("b0"),
		rdfterm.NewLiteral("plain"),
		rdfterm.NewLiteralWithLanguage("hello", "en"),
		rdfterm.NewLiteralWithDatatype("42", rdfterm.XSDInteger),
	}

	for _, term := range terms {
		buf, err := c.Serialize(term)
		if err != nil {
			t.Fatalf("Serialize(%v): %v", term, err)
		}
		got, err := c.Deserialize(buf)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if !got.Equals(term) {
			t.Errorf("round trip mismatch: got %v, want %v", got, term)
		}
	}
}

func TestSerializeRejectsInvalidLiteral(t *testing.T) {
	c := New(DefaultHashSeed)
	bad := &rdfterm.Literal{Lex: "x", Datatype: rdfterm.XSDString, Language: "en"}
	if _, err := c.Serialize(bad); err == nil {
		t.Fatal("expected error for literal with both datatype and language")
	}
}

func TestHash128Deterministic(t *testing.T) {
	c := New(DefaultHashSeed)
	buf, _ := c.Serialize(rdfterm.NewIRI("http://example.org/s"))
	h1 := c.Hash128(buf)
	h2 := c.Hash128(buf)
	if h1 != h2 {
		t.Error("Hash128 must be a pure function of the buffer")
	}

	other, _ := c.Serialize(rdfterm.NewIRI("http://example.org/o"))
	if c.Hash128(other) == h1 {
		t.Error("different terms hashed to the same digest (suspicious, not a proper collision test)")
	}
}

func TestKeyWidthEncodeDecodeRoundTrip(t *testing.T) {
	for _, w := range []Width{Width4, Width5, Width8} {
		k := Key(12345)
		enc := w.Encode(k)
		if len(enc) != int(w) {
			t.Fatalf("width %d: encoded length %d", w, len(enc))
		}
		dec, err := w.Decode(enc)
		if err != nil {
			t.Fatalf("width %d: %v", w, err)
		}
		if dec != k {
			t.Errorf("width %d: got %d, want %d", w, dec, k)
		}
	}
}

func TestSuccessorMonotonic(t *testing.T) {
	w := Width5
	k := Key(1)
	for i := 0; i < 1000; i++ {
		next, ok := w.Successor(k)
		if !ok {
			t.Fatalf("unexpected saturation at %d", k)
		}
		if next <= k {
			t.Fatalf("successor not increasing: %d -> %d", k, next)
		}
		k = next
	}
}

func TestSuccessorSaturates(t *testing.T) {
	w := Width4
	_, ok := w.Successor(w.Max())
	if ok {
		t.Error("expected saturation at width max")
	}
}

func TestTripleKeyEncodeDecodeRoundTrip(t *testing.T) {
	w := Width5
	tk := TripleKey{S: 1, P: 2, O: 3}
	enc := w.EncodeTriple(tk)
	dec, err := w.DecodeTriple(enc)
	if err != nil {
		t.Fatal(err)
	}
	if dec != tk {
		t.Errorf("got %+v, want %+v", dec, tk)
	}
}

func TestEncodeIsLexOrderedByKeyOrder(t *testing.T) {
	w := Width5
	a := w.Encode(Key(1))
	b := w.Encode(Key(2))
	if !lessBytes(a, b) {
		t.Error("big-endian fixed-width encoding must preserve numeric order lexicographically")
	}
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
