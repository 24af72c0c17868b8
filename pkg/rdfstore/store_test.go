package rdfstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ldpstore/quadstore/internal/kv"
	"github.com/ldpstore/quadstore/internal/quadindex"
	"github.com/ldpstore/quadstore/pkg/graph"
	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "env")
	s, err := Open(dir, kv.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ex(local string) *rdfterm.IRI {
	return rdfterm.NewIRI("http://ex.org/" + local)
}

// Scenario 1 (spec §8): add triples to a named graph, confirm
// triples() is scoped exactly to that graph.
func TestScenario1NamedGraphIsolation(t *testing.T) {
	s := openTestStore(t)
	ctxURI := "http://ex.org/g"
	g := graph.Named(s, ctxURI, 0)
	triple := rdfterm.NewTriple(ex("s"), ex("p"), ex("o"))

	if err := s.AddGraph(context.Background(), g, []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph: %v", err)
	}

	inG, err := s.Triples(context.Background(), rdfterm.Triple{}, &ctxURI)
	if err != nil {
		t.Fatalf("Triples(g): %v", err)
	}
	if len(inG) != 1 {
		t.Fatalf("Triples(g) = %d quads, want 1", len(inG))
	}

	other := "http://ex.org/other"
	inOther, err := s.Triples(context.Background(), rdfterm.Triple{}, &other)
	if err != nil {
		t.Fatalf("Triples(other): %v", err)
	}
	if len(inOther) != 0 {
		t.Fatalf("Triples(other) = %d quads, want 0", len(inOther))
	}
}

// Scenario 2 (spec §8): Set() replaces every object for (s, p, *).
func TestScenario2SetReplacesAllObjects(t *testing.T) {
	s := openTestStore(t)
	g := graph.Empty(s, 0)
	ctx := context.Background()

	triples := []rdfterm.Triple{
		rdfterm.NewTriple(ex("s"), ex("p"), rdfterm.NewLiteral("a")),
		rdfterm.NewTriple(ex("s"), ex("p"), rdfterm.NewLiteral("b")),
	}
	if err := s.AddGraph(ctx, g, triples); err != nil {
		t.Fatalf("AddGraph: %v", err)
	}

	before, err := s.Triples(ctx, rdfterm.Triple{Subject: ex("s"), Predicate: ex("p")}, nil)
	if err != nil {
		t.Fatalf("Triples: %v", err)
	}
	if len(before) != 2 {
		t.Fatalf("Triples before Set = %d, want 2", len(before))
	}

	err = s.TxnCtx(ctx, true, func(_ context.Context, txn *kv.Txn) error {
		return g.Set(txn, ex("s"), ex("p"), rdfterm.NewLiteral("c"))
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	after, err := s.Triples(ctx, rdfterm.Triple{Subject: ex("s"), Predicate: ex("p")}, nil)
	if err != nil {
		t.Fatalf("Triples after Set: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("Triples after Set = %d, want 1", len(after))
	}
	lit, ok := after[0].Object.(*rdfterm.Literal)
	if !ok || lit.Lex != "c" {
		t.Fatalf("Triples after Set object = %v, want \"c\"", after[0].Object)
	}
}

// Scenario 3 (spec §8): a triple added under two contexts reports
// both, and removing one context leaves the other.
func TestScenario3MultiContextRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g1, g2 := "http://ex.org/g1", "http://ex.org/g2"
	triple := rdfterm.NewTriple(ex("s"), ex("p"), ex("o"))

	if err := s.AddGraph(ctx, graph.Named(s, g1, 0), []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph(g1): %v", err)
	}
	if err := s.AddGraph(ctx, graph.Named(s, g2, 0), []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph(g2): %v", err)
	}

	pattern := triple
	contexts, err := s.Contexts(ctx, &pattern)
	if err != nil {
		t.Fatalf("Contexts: %v", err)
	}
	if len(contexts) != 2 {
		t.Fatalf("Contexts = %v, want 2 entries", contexts)
	}

	if err := s.Remove(ctx, triple, &g1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	contexts, err = s.Contexts(ctx, &pattern)
	if err != nil {
		t.Fatalf("Contexts after Remove: %v", err)
	}
	if len(contexts) != 1 || contexts[0] != g2 {
		t.Fatalf("Contexts after Remove = %v, want [%s]", contexts, g2)
	}
}

// Scenario 4 (spec §8): an aborted write leaves num_triples unchanged.
func TestScenario4AbortLeavesStateUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	txn, err := s.Env().Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	g := graph.Empty(s, 0)
	for i := 0; i < 100; i++ {
		if err := g.Add(txn, []rdfterm.Triple{rdfterm.NewTriple(ex("s"), ex("p"), rdfterm.NewIntegerLiteral(int64(i)))}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	txn.Abort()

	after, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if after.NumTriples != before.NumTriples {
		t.Fatalf("NumTriples after abort = %d, want unchanged %d", after.NumTriples, before.NumTriples)
	}
}

// Scenario 6 (spec §8): add(t); add(t) increments num_triples by
// exactly one.
func TestScenario6DuplicateAddIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g := graph.Empty(s, 0)
	triple := rdfterm.NewTriple(ex("s"), ex("p"), ex("o"))

	if err := s.AddGraph(ctx, g, []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph: %v", err)
	}
	if err := s.AddGraph(ctx, g, []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph (duplicate): %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NumTriples != 1 {
		t.Fatalf("NumTriples = %d, want 1", stats.NumTriples)
	}
}

// Scenario 5 (spec §8): a reader transaction begun before a concurrent
// write commits keeps seeing the old count; a reader opened afterward
// sees the new one. internal/kv's badger-backed MVCC snapshots give
// every read transaction a consistent view as of the moment it began.
func TestScenario5ConcurrentReaderIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := graph.Empty(s, 0)
	if err := s.AddGraph(ctx, g, []rdfterm.Triple{rdfterm.NewTriple(ex("s0"), ex("p"), ex("o"))}); err != nil {
		t.Fatalf("AddGraph seed: %v", err)
	}

	txnA, err := s.Env().Txn(false)
	if err != nil {
		t.Fatalf("Txn(false) A: %v", err)
	}
	defer txnA.Abort()

	countIn := func(txn *kv.Txn) int {
		all, err := s.index.Lookup(txn, quadindex.Pattern{})
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		return all.Len()
	}

	before := countIn(txnA)

	if err := s.AddGraph(ctx, graph.Empty(s, 0), []rdfterm.Triple{rdfterm.NewTriple(ex("s1"), ex("p"), ex("o"))}); err != nil {
		t.Fatalf("AddGraph concurrent: %v", err)
	}

	if got := countIn(txnA); got != before {
		t.Fatalf("txnA count after concurrent commit = %d, want unchanged %d", got, before)
	}

	txnB, err := s.Env().Txn(false)
	if err != nil {
		t.Fatalf("Txn(false) B: %v", err)
	}
	defer txnB.Abort()
	if got := countIn(txnB); got != before+1 {
		t.Fatalf("txnB count = %d, want %d", got, before+1)
	}
}

func TestBindAndNamespaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Bind(ctx, "ex", "http://ex.org/"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	bindings, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces: %v", err)
	}
	if len(bindings) != 1 || bindings[0].Prefix != "ex" {
		t.Fatalf("Namespaces = %v", bindings)
	}
}

func TestGetReturnsLoadedGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	uri := "http://ex.org/g"
	triple := rdfterm.NewTriple(ex("s"), ex("p"), ex("o"))

	if err := s.AddGraph(ctx, graph.Named(s, uri, 0), []rdfterm.Triple{triple}); err != nil {
		t.Fatalf("AddGraph: %v", err)
	}

	g, err := s.Get(ctx, uri)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("Get(uri).Len() = %d, want 1", g.Len())
	}
}
