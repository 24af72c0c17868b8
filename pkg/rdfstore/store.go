// Package rdfstore implements the Graph-centric façade exposed to
// collaborators (spec §6.3): it wires internal/kv, internal/dict,
// internal/quadindex, pkg/graph and pkg/ns together
// behind Open/Close/TxnCtx/Get/AddGraph/Remove/Triples/Contexts/
// Namespaces/Bind/Stats, and publishes a commit event through
// internal/events after every successful write.
//
// Grounded on the teacher's pkg/store.TripleStore (the same
// one-struct-wires-everything shape) and pkg/server's handler pattern
// of reading the store then shaping results for a collaborator.
package rdfstore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/dict"
	"github.com/ldpstore/quadstore/internal/events"
	"github.com/ldpstore/quadstore/internal/kv"
	"github.com/ldpstore/quadstore/internal/logging"
	"github.com/ldpstore/quadstore/internal/quadindex"
	"github.com/ldpstore/quadstore/pkg/graph"
	"github.com/ldpstore/quadstore/pkg/ns"
	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

// Store is the façade collaborators (the LDP layer, the CLI, tests)
// open and drive. It satisfies graph.Backend so a Graph obtained from
// it can translate terms to keys without a separate handle.
type Store struct {
	env       *kv.Env
	dict      *dict.Dict
	index     *quadindex.Index
	ns        *ns.Table
	publisher events.Publisher
	log       *logrus.Entry
}

// Open opens (or bootstraps) an environment at path and wires up its
// collaborator components.
func Open(path string, opts kv.Options) (*Store, error) {
	env, err := kv.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		env:       env,
		dict:      dict.New(env),
		index:     quadindex.New(env),
		ns:        ns.New(env),
		publisher: events.NoopPublisher{},
		log:       logging.L().WithField("component", "rdfstore"),
	}, nil
}

// Close releases the underlying environment.
func (s *Store) Close() error { return s.env.Close() }

// SetPublisher installs the commit-notification sink; the zero value
// is events.NoopPublisher.
func (s *Store) SetPublisher(p events.Publisher) { s.publisher = p }

// Dict satisfies graph.Backend.
func (s *Store) Dict() *dict.Dict { return s.dict }

// Index satisfies graph.Backend.
func (s *Store) Index() *quadindex.Index { return s.index }

// Env exposes the underlying environment for Stats and CLI tooling.
func (s *Store) Env() *kv.Env { return s.env }

// TxnCtx runs fn within a scoped transaction (spec §6.3
// store.txn_ctx), reentrant via ctx exactly as kv.WithTxn is.
func (s *Store) TxnCtx(ctx context.Context, write bool, fn func(context.Context, *kv.Txn) error) error {
	return kv.WithTxn(ctx, s.env, write, fn)
}

// Get returns the named graph uri as it currently exists in the
// store.
func (s *Store) Get(ctx context.Context, uri string) (*graph.Graph, error) {
	var out *graph.Graph
	err := s.TxnCtx(ctx, false, func(_ context.Context, txn *kv.Txn) error {
		g, err := graph.Load(s, txn, uri)
		if err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// AddGraph commits g's triples into the store under g's own URI (or
// the default graph if g is anonymous), then publishes a KindAdd
// event. A publish failure is logged and never rolls back the commit.
func (s *Store) AddGraph(ctx context.Context, g *graph.Graph, triples []rdfterm.Triple) error {
	err := s.TxnCtx(ctx, true, func(_ context.Context, txn *kv.Txn) error {
		return g.Add(txn, triples)
	})
	if err != nil {
		return fmt.Errorf("rdfstore: add graph: %w", err)
	}
	s.publish(events.NewEvent(events.KindAdd, contextURI(g), triples))
	return nil
}

// Remove deletes every triple matching pattern from the named graph
// ctxURI (default graph if nil), then publishes a KindRemove event.
func (s *Store) Remove(ctx context.Context, pattern rdfterm.Triple, ctxURI *string) error {
	g, err := s.graphFor(ctxURI)
	if err != nil {
		return err
	}
	err = s.TxnCtx(ctx, true, func(_ context.Context, txn *kv.Txn) error {
		return g.Remove(txn, pattern)
	})
	if err != nil {
		return fmt.Errorf("rdfstore: remove: %w", err)
	}
	s.publish(events.NewEvent(events.KindRemove, contextURI(g), []rdfterm.Triple{pattern}))
	return nil
}

// Triples returns every quad matching pattern in one graph: the named
// graph ctxURI, or the default graph when ctxURI is nil. With a nil
// ctxURI, triples stored only in named graphs are not returned, and
// each returned quad's Context is nil.
func (s *Store) Triples(ctx context.Context, pattern rdfterm.Triple, ctxURI *string) ([]rdfterm.Quad, error) {
	g, err := s.graphFor(ctxURI)
	if err != nil {
		return nil, err
	}
	var out []rdfterm.Quad
	err = s.TxnCtx(ctx, false, func(_ context.Context, txn *kv.Txn) error {
		matches, err := g.Lookup(txn, pattern)
		if err != nil {
			return err
		}
		triples, err := matches.AsTriples(txn)
		if err != nil {
			return err
		}
		out = make([]rdfterm.Quad, len(triples))
		for i, t := range triples {
			var ctxTerm rdfterm.Term
			if ctxURI != nil {
				ctxTerm = rdfterm.NewIRI(*ctxURI)
			}
			out[i] = rdfterm.NewQuad(t.Subject, t.Predicate, t.Object, ctxTerm)
		}
		return nil
	})
	return out, err
}

// Contexts returns every named-graph URI that matches pattern — every
// registered context when pattern is nil, or only the contexts
// containing at least one matching triple otherwise (spec §6.3
// store.contexts(pattern?)).
func (s *Store) Contexts(ctx context.Context, pattern *rdfterm.Triple) ([]string, error) {
	var out []string
	err := s.TxnCtx(ctx, false, func(_ context.Context, txn *kv.Txn) error {
		keys, err := s.index.Contexts(txn)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if k == codec.DefaultGraphKey {
				continue
			}
			term, err := s.dict.FromKey(txn, k)
			if err != nil {
				return err
			}
			iri, ok := term.(*rdfterm.IRI)
			if !ok {
				continue
			}
			if pattern != nil {
				g := graph.Named(s, iri.Value, 0)
				ok, err := g.Contains(txn, *pattern)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			out = append(out, iri.Value)
		}
		return nil
	})
	return out, err
}

// Namespaces returns every registered (prefix, namespace) binding.
func (s *Store) Namespaces(ctx context.Context) ([]ns.Binding, error) {
	return s.ns.All(ctx)
}

// Bind registers a namespace prefix binding.
func (s *Store) Bind(ctx context.Context, prefix, namespace string) error {
	return s.ns.Bind(ctx, prefix, namespace)
}

// Stats reports the store's triple count and environment-level
// resource usage (kv.Stats); it carries no per-sub-database figures.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var numTriples int
	err := s.TxnCtx(ctx, false, func(_ context.Context, txn *kv.Txn) error {
		all, err := s.index.Lookup(txn, quadindex.Pattern{})
		if err != nil {
			return err
		}
		numTriples = all.Len()
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{NumTriples: numTriples, Env: s.env.Stats()}, nil
}

func (s *Store) graphFor(ctxURI *string) (*graph.Graph, error) {
	if ctxURI == nil {
		return graph.Empty(s, 0), nil
	}
	return graph.Named(s, *ctxURI, 0), nil
}

func contextURI(g *graph.Graph) string {
	if g.URI() == nil {
		return ""
	}
	return g.URI().Value
}

func (s *Store) publish(e events.Event) {
	if err := s.publisher.Publish(e); err != nil {
		s.log.WithError(err).Warn("event publish failed; commit already durable")
	}
}
