// Package graph implements the Graph abstraction (spec §4.6): a Key
// Set bound to a store handle, exposing RDF-term-level mutation and
// query on top of internal/keyset's key-level operations.
//
// Grounded on the teacher's pkg/rdf.Graph (Add/Remove/Contains over
// Triple values) and pkg/store's transaction-scoped query methods,
// generalized from the teacher's term-inlined storage to this spec's
// dictionary-of-keys design: a Graph here owns a keyset.KeySet of
// TripleKeys and only materializes RDF terms on demand via the term
// dictionary.
package graph

import (
	"fmt"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/dict"
	"github.com/ldpstore/quadstore/internal/keyset"
	"github.com/ldpstore/quadstore/internal/kv"
	"github.com/ldpstore/quadstore/internal/quadindex"
	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

// Backend is the set of collaborators a Graph needs to translate
// between RDF terms and keys. store.go's Store satisfies it.
type Backend interface {
	Dict() *dict.Dict
	Index() *quadindex.Index
}

// Graph is a Key Set bound to a store, optionally naming itself as a
// named graph's context.
type Graph struct {
	backend Backend
	keys    *keyset.KeySet
	uri     *rdfterm.IRI // nil for the default graph
}

// Empty returns a new, empty Graph with capacity preallocated.
func Empty(backend Backend, capacity int) *Graph {
	return &Graph{backend: backend, keys: keyset.Empty(capacity)}
}

// Named returns a new, empty Graph naming itself as uri.
func Named(backend Backend, uri string, capacity int) *Graph {
	return &Graph{backend: backend, keys: keyset.Empty(capacity), uri: rdfterm.NewIRI(uri)}
}

// FromTriples builds a Graph from an existing slice of triples,
// interning every term via txn's transaction.
func FromTriples(backend Backend, txn *kv.Txn, triples []rdfterm.Triple) (*Graph, error) {
	g := Empty(backend, len(triples))
	if err := g.Add(txn, triples); err != nil {
		return nil, err
	}
	return g, nil
}

// Load returns the named graph uri as it currently exists in the
// store, populated from the quad index's per-context projection
// (store.Get in spec §6.3).
func Load(backend Backend, txn *kv.Txn, uri string) (*Graph, error) {
	g := Named(backend, uri, 0)
	ctxKey, err := g.contextKey(txn)
	if err != nil {
		return nil, err
	}
	keys, err := backend.Index().Lookup(txn, quadindex.Pattern{Ctx: &ctxKey})
	if err != nil {
		return nil, fmt.Errorf("graph: load: %w", err)
	}
	g.keys = keys
	return g, nil
}

// Copy returns a deep copy of g, optionally renaming it to uri (nil
// keeps g's own URI, including keeping it anonymous).
func (g *Graph) Copy(uri *string) *Graph {
	out := &Graph{backend: g.backend, keys: g.keys.Copy(), uri: g.uri}
	if uri != nil {
		out.uri = rdfterm.NewIRI(*uri)
	}
	return out
}

// EmptyCopy returns a new, empty Graph sharing g's backend and,
// unless uri overrides it, g's own URI.
func (g *Graph) EmptyCopy(uri *string) *Graph {
	out := Empty(g.backend, 0)
	out.uri = g.uri
	if uri != nil {
		out.uri = rdfterm.NewIRI(*uri)
	}
	return out
}

// URI returns the graph's own context IRI, or nil for the default graph.
func (g *Graph) URI() *rdfterm.IRI { return g.uri }

// Len returns the number of live triples in the graph.
func (g *Graph) Len() int { return len(g.keys.Slice()) }

func (g *Graph) contextKey(txn *kv.Txn) (codec.Key, error) {
	if g.uri == nil {
		return codec.DefaultGraphKey, nil
	}
	return g.backend.Dict().ToKey(txn, g.uri)
}

// Add interns and inserts every triple into the graph and the
// underlying quad index, within txn.
func (g *Graph) Add(txn *kv.Txn, triples []rdfterm.Triple) error {
	ctxKey, err := g.contextKey(txn)
	if err != nil {
		return err
	}
	d := g.backend.Dict()
	for _, t := range triples {
		sk, err := d.ToKey(txn, t.Subject)
		if err != nil {
			return fmt.Errorf("graph: add: subject: %w", err)
		}
		pk, err := d.ToKey(txn, t.Predicate)
		if err != nil {
			return fmt.Errorf("graph: add: predicate: %w", err)
		}
		ok, err := d.ToKey(txn, t.Object)
		if err != nil {
			return fmt.Errorf("graph: add: object: %w", err)
		}
		if err := g.backend.Index().Add(txn, sk, pk, ok, ctxKey); err != nil {
			return fmt.Errorf("graph: add: %w", err)
		}
		tk := codec.TripleKey{S: sk, P: pk, O: ok}
		g.keys.Add(tk, true)
	}
	return nil
}

// Remove deletes every triple matching pattern from the graph and the
// underlying quad index, within txn. Unbound positions in pattern
// match any term.
func (g *Graph) Remove(txn *kv.Txn, pattern rdfterm.Triple) error {
	ctxKey, err := g.contextKey(txn)
	if err != nil {
		return err
	}
	pat, err := g.toKeyPattern(txn, pattern)
	if err != nil {
		if errUnresolved(err) {
			return nil
		}
		return err
	}
	pat.Ctx = &ctxKey

	matches, err := g.backend.Index().Lookup(txn, pat)
	if err != nil {
		return fmt.Errorf("graph: remove: %w", err)
	}
	var tk codec.TripleKey
	for matches.GetNext(&tk) {
		if err := g.backend.Index().Remove(txn, tk, &ctxKey); err != nil {
			return fmt.Errorf("graph: remove: %w", err)
		}
		g.keys.Remove(tk)
	}
	return nil
}

// Set replaces every (s, p, *) triple currently in the graph with
// exactly (s, p, o).
func (g *Graph) Set(txn *kv.Txn, s, p, o rdfterm.Term) error {
	if err := g.Remove(txn, rdfterm.Triple{Subject: s, Predicate: p}); err != nil {
		return err
	}
	return g.Add(txn, []rdfterm.Triple{{Subject: s, Predicate: p, Object: o}})
}

// toKeyPattern resolves the bound positions of pattern to keys,
// using ToKeyOrMiss so an unknown term yields "no match" rather than
// allocating a fresh key during a read-style lookup.
func (g *Graph) toKeyPattern(txn *kv.Txn, pattern rdfterm.Triple) (quadindex.Pattern, error) {
	var pat quadindex.Pattern
	d := g.backend.Dict()

	bind := func(term rdfterm.Term) (*codec.Key, bool, error) {
		if term == nil {
			return nil, true, nil
		}
		key, ok, err := d.ToKeyOrMiss(txn, term)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		return &key, true, nil
	}

	if k, ok, err := bind(pattern.Subject); err != nil {
		return pat, err
	} else if !ok {
		return pat, errUnresolvedTerm
	} else {
		pat.S = k
	}
	if k, ok, err := bind(pattern.Predicate); err != nil {
		return pat, err
	} else if !ok {
		return pat, errUnresolvedTerm
	} else {
		pat.P = k
	}
	if k, ok, err := bind(pattern.Object); err != nil {
		return pat, err
	} else if !ok {
		return pat, errUnresolvedTerm
	} else {
		pat.O = k
	}
	return pat, nil
}

// errUnresolvedTerm is returned internally when a lookup pattern
// names a term never interned in the dictionary; callers see it
// folded into an empty result, never propagated.
var errUnresolvedTerm = fmt.Errorf("graph: term not interned")

// Contains reports whether the fully-bound triple is a member.
func (g *Graph) Contains(txn *kv.Txn, t rdfterm.Triple) (bool, error) {
	result, err := g.Lookup(txn, t)
	if err != nil {
		return false, err
	}
	return result.Len() > 0, nil
}

// Lookup returns a new Graph (sharing this Graph's backend and URI)
// containing every triple matching pattern. Unbound positions in
// pattern match any term.
func (g *Graph) Lookup(txn *kv.Txn, pattern rdfterm.Triple) (*Graph, error) {
	ctxKey, err := g.contextKey(txn)
	if err != nil {
		return nil, err
	}
	pat, err := g.toKeyPattern(txn, pattern)
	if errUnresolved(err) {
		return g.EmptyCopy(nil), nil
	}
	if err != nil {
		return nil, err
	}
	pat.Ctx = &ctxKey

	matches, err := g.backend.Index().Lookup(txn, pat)
	if err != nil {
		return nil, fmt.Errorf("graph: lookup: %w", err)
	}
	out := g.EmptyCopy(nil)
	out.keys = matches
	return out, nil
}

func errUnresolved(err error) bool {
	return err == errUnresolvedTerm
}

// AsTriples materializes every live triple back into RDF terms.
func (g *Graph) AsTriples(txn *kv.Txn) ([]rdfterm.Triple, error) {
	d := g.backend.Dict()
	keys := g.keys.Slice()
	out := make([]rdfterm.Triple, 0, len(keys))
	for _, tk := range keys {
		s, err := d.FromKey(txn, tk.S)
		if err != nil {
			return nil, err
		}
		p, err := d.FromKey(txn, tk.P)
		if err != nil {
			return nil, err
		}
		o, err := d.FromKey(txn, tk.O)
		if err != nil {
			return nil, err
		}
		out = append(out, rdfterm.Triple{Subject: s, Predicate: p, Object: o})
	}
	return out, nil
}

// Iter returns an iterator function (a closure) over the graph's live
// triples, materialized to RDF terms as it advances. It reports false
// once every triple has been returned, and also stops, reporting
// false, when a key cannot be resolved in the term dictionary.
func (g *Graph) Iter(txn *kv.Txn) func() (rdfterm.Triple, bool) {
	keys := g.keys.Slice()
	i := 0
	d := g.backend.Dict()
	return func() (rdfterm.Triple, bool) {
		if i >= len(keys) {
			return rdfterm.Triple{}, false
		}
		tk := keys[i]
		i++
		s, err := d.FromKey(txn, tk.S)
		if err != nil {
			return rdfterm.Triple{}, false
		}
		p, err := d.FromKey(txn, tk.P)
		if err != nil {
			return rdfterm.Triple{}, false
		}
		o, err := d.FromKey(txn, tk.O)
		if err != nil {
			return rdfterm.Triple{}, false
		}
		return rdfterm.Triple{Subject: s, Predicate: p, Object: o}, true
	}
}

// Position names a triple position for TermsByPosition.
type Position int

const (
	PosSubject Position = iota
	PosPredicate
	PosObject
)

// TermsByPosition returns the distinct terms occupying pos across
// every live triple in the graph.
func (g *Graph) TermsByPosition(txn *kv.Txn, pos Position) ([]rdfterm.Term, error) {
	d := g.backend.Dict()
	seen := make(map[codec.Key]struct{})
	var out []rdfterm.Term
	for _, tk := range g.keys.Slice() {
		var key codec.Key
		switch pos {
		case PosSubject:
			key = tk.S
		case PosPredicate:
			key = tk.P
		default:
			key = tk.O
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		term, err := d.FromKey(txn, key)
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

// Value returns the unique object for (subject, predicate) in a named
// graph. strict requires exactly one match; non-strict tolerates zero
// or more and returns the first found (nil if none).
func (g *Graph) Value(txn *kv.Txn, subject, predicate rdfterm.Term, strict bool) (rdfterm.Term, error) {
	result, err := g.Lookup(txn, rdfterm.Triple{Subject: subject, Predicate: predicate})
	if err != nil {
		return nil, err
	}
	triples, err := result.AsTriples(txn)
	if err != nil {
		return nil, err
	}
	if strict && len(triples) != 1 {
		return nil, fmt.Errorf("graph: value: expected exactly one match, got %d", len(triples))
	}
	if len(triples) == 0 {
		return nil, nil
	}
	return triples[0].Object, nil
}

// Equals reports whether g and other contain the same set of
// non-tombstone TripleKeys (spec §4.6 equality definition).
func (g *Graph) Equals(other *Graph) bool {
	a, b := g.keys.Slice(), other.keys.Slice()
	if len(a) != len(b) {
		return false
	}
	seen := make(map[codec.TripleKey]struct{}, len(a))
	for _, k := range a {
		seen[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := seen[k]; !ok {
			return false
		}
	}
	return true
}

// ErrDifferentStore is returned by the set-algebra methods when the
// two Graphs do not share a backend.
var ErrDifferentStore = fmt.Errorf("graph: set algebra requires a common store")

func checkCommonBackend(a, b *Graph) error {
	if a.backend != b.backend {
		return ErrDifferentStore
	}
	return nil
}

// Or returns the union of g and other as a new Graph (out-of-place).
func (g *Graph) Or(other *Graph) (*Graph, error) {
	if err := checkCommonBackend(g, other); err != nil {
		return nil, err
	}
	out := g.EmptyCopy(nil)
	out.keys = keyset.Union(g.keys, other.keys)
	return out, nil
}

// And returns the intersection of g and other as a new Graph.
func (g *Graph) And(other *Graph) (*Graph, error) {
	if err := checkCommonBackend(g, other); err != nil {
		return nil, err
	}
	out := g.EmptyCopy(nil)
	out.keys = keyset.Intersect(g.keys, other.keys)
	return out, nil
}

// Sub returns the members of g not present in other.
func (g *Graph) Sub(other *Graph) (*Graph, error) {
	if err := checkCommonBackend(g, other); err != nil {
		return nil, err
	}
	out := g.EmptyCopy(nil)
	out.keys = keyset.Subtract(g.keys, other.keys)
	return out, nil
}

// Xor returns the symmetric difference of g and other.
func (g *Graph) Xor(other *Graph) (*Graph, error) {
	if err := checkCommonBackend(g, other); err != nil {
		return nil, err
	}
	out := g.EmptyCopy(nil)
	out.keys = keyset.Xor(g.keys, other.keys)
	return out, nil
}

// OrInPlace unions other into g in place.
func (g *Graph) OrInPlace(other *Graph) error {
	if err := checkCommonBackend(g, other); err != nil {
		return err
	}
	g.keys = keyset.Union(g.keys, other.keys)
	return nil
}

// AndInPlace intersects g with other in place.
func (g *Graph) AndInPlace(other *Graph) error {
	if err := checkCommonBackend(g, other); err != nil {
		return err
	}
	g.keys = keyset.Intersect(g.keys, other.keys)
	return nil
}

// SubInPlace subtracts other from g in place.
func (g *Graph) SubInPlace(other *Graph) error {
	if err := checkCommonBackend(g, other); err != nil {
		return err
	}
	g.keys = keyset.Subtract(g.keys, other.keys)
	return nil
}

// XorInPlace replaces g with the symmetric difference of g and other.
func (g *Graph) XorInPlace(other *Graph) error {
	if err := checkCommonBackend(g, other); err != nil {
		return err
	}
	g.keys = keyset.Xor(g.keys, other.keys)
	return nil
}
