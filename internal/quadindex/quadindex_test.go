package quadindex

import (
	"path/filepath"
	"testing"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/kv"
)

func openTestEnv(t *testing.T) *kv.Env {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "env")
	env, err := kv.Open(dir, kv.DefaultOptions())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func key(v uint64) *codec.Key {
	k := codec.Key(v)
	return &k
}

func TestAddThenLookup3Bound(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 10, 20, 30, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{S: key(10), P: key(20), O: key(30)})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ks.Len() != 1 {
		t.Fatalf("Lookup 3-bound Len() = %d, want 1", ks.Len())
	}
}

func TestLookup0BoundEnumeratesAll(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 2, 4, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ks.Len() != 2 {
		t.Fatalf("Lookup 0-bound Len() = %d, want 2", ks.Len())
	}
}

func TestLookup1BoundUsesCompoundIndex(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 5, 6, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 9, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{S: key(1)})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ks.Len() != 2 {
		t.Fatalf("Lookup s=1 Len() = %d, want 2", ks.Len())
	}
}

func TestLookup2BoundFiltersSecondTerm(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 2, 4, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 9, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{S: key(1), O: key(3)})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ks.Len() != 2 {
		t.Fatalf("Lookup s=1,o=3 Len() = %d, want 2 ((1,2,3) and (1,9,3))", ks.Len())
	}
}

func TestRemoveWithoutCtxDropsAllContexts(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 2, 3, 50); err != nil {
		t.Fatalf("Add second context: %v", err)
	}

	tk := codec.TripleKey{S: 1, P: 2, O: 3}
	if err := x.Remove(txn, tk, nil); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{S: key(1), P: key(2), O: key(3)})
	if err != nil {
		t.Fatalf("Lookup after Remove: %v", err)
	}
	if ks.Len() != 0 {
		t.Fatalf("Lookup after Remove Len() = %d, want 0", ks.Len())
	}
}

func TestRemoveWithCtxKeepsOtherContexts(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, codec.DefaultGraphKey); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add(txn, 1, 2, 3, 50); err != nil {
		t.Fatalf("Add second context: %v", err)
	}

	tk := codec.TripleKey{S: 1, P: 2, O: 3}
	ctx := codec.Key(50)
	if err := x.Remove(txn, tk, &ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	ks, err := x.Lookup(txn, Pattern{S: key(1), P: key(2), O: key(3)})
	if err != nil {
		t.Fatalf("Lookup after Remove: %v", err)
	}
	if ks.Len() != 1 {
		t.Fatalf("Lookup after Remove(ctx=50) Len() = %d, want 1 (default graph entry remains)", ks.Len())
	}
}

func TestContextsIncludesEmptyContext(t *testing.T) {
	env := openTestEnv(t)
	x := New(env)
	txn, err := env.Txn(true)
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	defer txn.Commit()

	if err := x.Add(txn, 1, 2, 3, 99); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx := codec.Key(99)
	if err := x.Remove(txn, codec.TripleKey{S: 1, P: 2, O: 3}, &ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	contexts, err := x.Contexts(txn)
	if err != nil {
		t.Fatalf("Contexts: %v", err)
	}
	found := false
	for _, c := range contexts {
		if c == 99 {
			found = true
		}
	}
	if !found {
		t.Fatalf("Contexts() = %v, want to include 99", contexts)
	}
}
