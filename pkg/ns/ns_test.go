package ns

import (
	"context"
	"path/filepath"
	"testing"

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

func TestBindAndLookupBothDirections(t *testing.T) {
	env := openTestEnv(t)
	tbl := New(env)
	ctx := context.Background()

	if err := tbl.Bind(ctx, "foaf", "http://xmlns.com/foaf/0.1/"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	ns, err := tbl.Namespace(ctx, "foaf")
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	if ns != "http://xmlns.com/foaf/0.1/" {
		t.Fatalf("Namespace(foaf) = %q", ns)
	}

	prefix, err := tbl.Prefix(ctx, "http://xmlns.com/foaf/0.1/")
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	if prefix != "foaf" {
		t.Fatalf("Prefix(...) = %q, want foaf", prefix)
	}
}

func TestBindOverwritesExisting(t *testing.T) {
	env := openTestEnv(t)
	tbl := New(env)
	ctx := context.Background()

	if err := tbl.Bind(ctx, "ex", "http://example.org/a#"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := tbl.Bind(ctx, "ex", "http://example.org/b#"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	ns, err := tbl.Namespace(ctx, "ex")
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	if ns != "http://example.org/b#" {
		t.Fatalf("Namespace(ex) = %q, want overwritten value", ns)
	}
}

func TestNamespaceUnknownPrefix(t *testing.T) {
	env := openTestEnv(t)
	tbl := New(env)
	ctx := context.Background()

	if _, err := tbl.Namespace(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown prefix")
	}
}

func TestAllListsEveryBinding(t *testing.T) {
	env := openTestEnv(t)
	tbl := New(env)
	ctx := context.Background()

	want := map[string]string{
		"foaf": "http://xmlns.com/foaf/0.1/",
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	}
	for prefix, namespace := range want {
		if err := tbl.Bind(ctx, prefix, namespace); err != nil {
			t.Fatalf("Bind(%s): %v", prefix, err)
		}
	}

	all, err := tbl.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != len(want) {
		t.Fatalf("All() returned %d bindings, want %d", len(all), len(want))
	}
	for _, b := range all {
		if want[b.Prefix] != b.Namespace {
			t.Fatalf("All() contains unexpected binding %+v", b)
		}
	}
}

func TestAllEmptyTable(t *testing.T) {
	env := openTestEnv(t)
	tbl := New(env)

	all, err := tbl.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("All() on empty table = %v, want empty", all)
	}
}
