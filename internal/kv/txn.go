package kv

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Txn is a single read or write transaction. Read transactions are
// MVCC snapshots (spec §5). Write transactions are not serialized
// against each other: badger runs them concurrently and checks them
// for conflicts at commit, and Commit reports a conflict as ErrBadTxn.
type Txn struct {
	env      *Env
	txn      *badger.Txn
	writable bool
	closed   bool
	cursors  []*Cursor
}

// Txn opens a new transaction against e. Callers must Commit or Abort
// it; a Txn that is neither is a resource leak (the scoped helper
// WithTxn guarantees this instead).
func (e *Env) Txn(write bool) (*Txn, error) {
	t := &Txn{env: e, txn: e.db.NewTransaction(write), writable: write}
	if !write {
		if err := e.readers.acquire(t); err != nil {
			t.txn.Discard()
			return nil, err
		}
	}
	return t, nil
}

// Commit commits a write transaction. Committing a read transaction
// or a transaction that was already closed is a no-op per spec §5
// ("double-abort/double-commit are no-ops").
func (t *Txn) Commit() error {
	if t.closed {
		return nil
	}
	t.closeCursors()
	t.closed = true
	if !t.writable {
		t.env.readers.release(t)
		t.txn.Discard()
		return nil
	}
	if err := t.txn.Commit(); err != nil {
		if err == badger.ErrConflict {
			return fmt.Errorf("%w: write conflict", ErrBadTxn)
		}
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

// Abort discards the transaction, reversing all in-memory intent
// without touching persistent state. Constant-time, per spec §5.
func (t *Txn) Abort() {
	if t.closed {
		return
	}
	t.closeCursors()
	t.closed = true
	if !t.writable {
		t.env.readers.release(t)
	}
	t.txn.Discard()
}

func (t *Txn) closeCursors() {
	for _, c := range t.cursors {
		c.close()
	}
	t.cursors = nil
}

func (t *Txn) checkOpen() error {
	if t.closed {
		return ErrBadTxn
	}
	return nil
}

// scopedTxnKey is the context key WithTxn uses to detect reentrancy.
type scopedTxnKey struct{ write bool }

// WithTxn is the scoped-transaction helper spec §4.1 describes: it
// opens a transaction, runs fn, and commits on nil error / aborts
// otherwise. A WithTxn call nested (via ctx) inside another WithTxn of
// the same writability observes the outer transaction and neither
// commits nor aborts it — the re-entrant flag the Design Notes ask for
// in place of a destructor-based RAII guard.
func WithTxn(ctx context.Context, env *Env, write bool, fn func(context.Context, *Txn) error) error {
	if outer, ok := ctx.Value(scopedTxnKey{write: write}).(*Txn); ok {
		return fn(ctx, outer)
	}
	// A read can also be satisfied by an outer write transaction.
	if !write {
		if outer, ok := ctx.Value(scopedTxnKey{write: true}).(*Txn); ok {
			return fn(ctx, outer)
		}
	}

	txn, err := env.Txn(write)
	if err != nil {
		return err
	}
	nested := context.WithValue(ctx, scopedTxnKey{write: write}, txn)

	if err := fn(nested, txn); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}
