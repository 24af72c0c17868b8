// Package ns implements the namespace prefix table (spec §4.7): two
// small sub-databases mapping prefix<->namespace IRI, updated
// atomically within one write transaction.
package ns

import (
	"context"
	"errors"
	"fmt"

	"github.com/ldpstore/quadstore/internal/kv"
)

const (
	subDBPrefixToNS = "ns_prefix_to_ns"
	subDBNSToPrefix = "ns_ns_to_prefix"
)

// Table is the namespace binding table for one environment.
type Table struct {
	env *kv.Env
}

// New constructs a Table over env.
func New(env *kv.Env) *Table {
	return &Table{env: env}
}

// Binding is a single (prefix, namespace) pair.
type Binding struct {
	Prefix    string
	Namespace string
}

// Bind associates prefix with namespace, overwriting any existing
// binding for either side, in a single write transaction so the two
// sub-databases never disagree.
func (t *Table) Bind(ctx context.Context, prefix, namespace string) error {
	return kv.WithTxn(ctx, t.env, true, func(_ context.Context, txn *kv.Txn) error {
		p2n, err := txn.Cursor(subDBPrefixToNS, 0)
		if err != nil {
			return err
		}
		defer p2n.Close()
		n2p, err := txn.Cursor(subDBNSToPrefix, 0)
		if err != nil {
			return err
		}
		defer n2p.Close()

		if _, oldNS, err := p2n.Get(kv.OpExact, []byte(prefix), nil); err == nil {
			if _, _, err := n2p.Get(kv.OpExact, oldNS, nil); err == nil {
				if err := n2p.Del(kv.DelNone); err != nil {
					return fmt.Errorf("ns: unbinding namespace %q: %w", oldNS, err)
				}
			}
		}
		if _, oldPrefix, err := n2p.Get(kv.OpExact, []byte(namespace), nil); err == nil {
			if _, _, err := p2n.Get(kv.OpExact, oldPrefix, nil); err == nil {
				if err := p2n.Del(kv.DelNone); err != nil {
					return fmt.Errorf("ns: unbinding prefix %q: %w", oldPrefix, err)
				}
			}
		}
		if err := p2n.Put([]byte(prefix), []byte(namespace), kv.PutNone); err != nil {
			return fmt.Errorf("ns: binding prefix %q: %w", prefix, err)
		}
		if err := n2p.Put([]byte(namespace), []byte(prefix), kv.PutNone); err != nil {
			return fmt.Errorf("ns: binding namespace %q: %w", namespace, err)
		}
		return nil
	})
}

// Prefix returns the prefix bound to namespace, if any.
func (t *Table) Prefix(ctx context.Context, namespace string) (string, error) {
	var out string
	err := kv.WithTxn(ctx, t.env, false, func(_ context.Context, txn *kv.Txn) error {
		c, err := txn.Cursor(subDBNSToPrefix, 0)
		if err != nil {
			return err
		}
		defer c.Close()
		_, v, err := c.Get(kv.OpExact, []byte(namespace), nil)
		if err != nil {
			return err
		}
		out = string(v)
		return nil
	})
	return out, err
}

// Namespace returns the namespace bound to prefix, if any.
func (t *Table) Namespace(ctx context.Context, prefix string) (string, error) {
	var out string
	err := kv.WithTxn(ctx, t.env, false, func(_ context.Context, txn *kv.Txn) error {
		c, err := txn.Cursor(subDBPrefixToNS, 0)
		if err != nil {
			return err
		}
		defer c.Close()
		_, v, err := c.Get(kv.OpExact, []byte(prefix), nil)
		if err != nil {
			return err
		}
		out = string(v)
		return nil
	})
	return out, err
}

// All returns every registered binding.
func (t *Table) All(ctx context.Context) ([]Binding, error) {
	var out []Binding
	err := kv.WithTxn(ctx, t.env, false, func(_ context.Context, txn *kv.Txn) error {
		c, err := txn.Cursor(subDBPrefixToNS, 0)
		if err != nil {
			return err
		}
		defer c.Close()

		k, v, err := c.Get(kv.OpFirst, nil, nil)
		for err == nil {
			out = append(out, Binding{Prefix: string(k), Namespace: string(v)})
			k, v, err = c.Get(kv.OpNext, nil, nil)
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return nil
	})
	return out, err
}
