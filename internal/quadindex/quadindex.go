// Package quadindex implements the Quad Index (spec §4.4): the six
// sub-databases that together let a triple's existence, its contexts,
// and every single-bound-term projection be looked up without a full
// scan, plus the add/remove/lookup protocols and a static-rank query
// planner.
//
// Grounded on the teacher's pkg/store/query.go (selectIndex,
// buildScanPrefix) for the planner shape and pkg/store/storage.go
// (Table enum, PrefixKey) for the one-sub-database-per-permutation
// layout, generalized from the teacher's nine term-inlined permutation
// tables (it stores terms directly in SPOG/POS/OSP-style keys) to this
// spec's six dictionary-of-keys tables (TripleToCtx, CtxToTriple,
// CtxSet, SToPO, PToSO, OToSP).
package quadindex

import (
	"errors"
	"fmt"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/keyset"
	"github.com/ldpstore/quadstore/internal/kv"
	"github.com/ldpstore/quadstore/internal/logging"
)

const (
	subDBTripleToCtx = "triple_to_ctx"
	subDBCtxToTriple = "ctx_to_triple"
	subDBCtxSet      = "ctx_set"
	subDBSToPO       = "s_to_po"
	subDBPToSO       = "p_to_so"
	subDBOToSP       = "o_to_sp"
)

// Index wraps one environment's quad-index sub-databases.
type Index struct {
	env   *kv.Env
	width codec.Width
	// Rank is the static tie-break order the planner consults for
	// 2-bound lookups: the earlier a position appears, the more
	// eagerly its compound index is preferred. Exported so an offline
	// tuning pass can rebalance it from collected statistics (spec
	// §4.4 planner note).
	Rank [3]Position
}

// Position names one of the three triple positions.
type Position int

const (
	PosS Position = iota
	PosP
	PosO
)

// New constructs an Index over env with the spec's default rank [S, O, P].
func New(env *kv.Env) *Index {
	return &Index{
		env:   env,
		width: env.KeyWidth(),
		Rank:  [3]Position{PosS, PosO, PosP},
	}
}

func (x *Index) w() int { return int(x.width) }

// Add inserts the (s, p, o, ctx) quad within txn. ctx is
// codec.DefaultGraphKey when the triple belongs only to the default
// graph. Every write happens in txn; the caller commits or aborts.
func (x *Index) Add(txn *kv.Txn, s, p, o, ctx codec.Key) error {
	tk := codec.TripleKey{S: s, P: p, O: o}
	spok := x.width.EncodeTriple(tk)
	ckBuf := x.width.Encode(ctx)

	ctxSet, err := txn.Cursor(subDBCtxSet, 0)
	if err != nil {
		return err
	}
	defer ctxSet.Close()
	if err := ignoreKeyExists(ctxSet.Put(ckBuf, nil, kv.PutNoOverwrite)); err != nil {
		return fmt.Errorf("quadindex: ctx_set: %w", err)
	}

	tripleToCtx, err := txn.Cursor(subDBTripleToCtx, x.w()*3)
	if err != nil {
		return err
	}
	defer tripleToCtx.Close()
	if err := ignoreKeyExists(tripleToCtx.Put(spok, ckBuf, kv.PutNoDupData)); err != nil {
		return fmt.Errorf("quadindex: triple_to_ctx: %w", err)
	}

	ctxToTriple, err := txn.Cursor(subDBCtxToTriple, x.w())
	if err != nil {
		return err
	}
	defer ctxToTriple.Close()
	if err := ignoreKeyExists(ctxToTriple.Put(ckBuf, spok, kv.PutNoDupData)); err != nil {
		return fmt.Errorf("quadindex: ctx_to_triple: %w", err)
	}

	if err := x.putProjection(txn, subDBSToPO, x.w(), x.width.Encode(s), x.width.EncodeDouble(codec.DoubleKey{A: p, B: o})); err != nil {
		return err
	}
	if err := x.putProjection(txn, subDBPToSO, x.w(), x.width.Encode(p), x.width.EncodeDouble(codec.DoubleKey{A: s, B: o})); err != nil {
		return err
	}
	if err := x.putProjection(txn, subDBOToSP, x.w(), x.width.Encode(o), x.width.EncodeDouble(codec.DoubleKey{A: s, B: p})); err != nil {
		return err
	}

	logging.L().WithField("component", "quadindex").Debug("added quad")
	return nil
}

func (x *Index) putProjection(txn *kv.Txn, subDB string, dupKeyLen int, key, val []byte) error {
	c, err := txn.Cursor(subDB, dupKeyLen)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := ignoreKeyExists(c.Put(key, val, kv.PutNoDupData)); err != nil {
		return fmt.Errorf("quadindex: %s: %w", subDB, err)
	}
	return nil
}

func ignoreKeyExists(err error) error {
	if errors.Is(err, kv.ErrKeyExists) {
		return nil
	}
	return err
}

// Remove deletes every quad matching tk. If ctx is nil every context
// the triple belongs to is removed; if non-nil, only that one
// (triple, ctx) pair is removed.
func (x *Index) Remove(txn *kv.Txn, tk codec.TripleKey, ctx *codec.Key) error {
	spok := x.width.EncodeTriple(tk)

	tripleToCtx, err := txn.Cursor(subDBTripleToCtx, x.w()*3)
	if err != nil {
		return err
	}
	defer tripleToCtx.Close()

	ctxToTriple, err := txn.Cursor(subDBCtxToTriple, x.w())
	if err != nil {
		return err
	}
	defer ctxToTriple.Close()

	if ctx != nil {
		ckBuf := x.width.Encode(*ctx)
		if err := delIfPresent(tripleToCtx, spok, ckBuf); err != nil {
			return err
		}
		if err := delIfPresent(ctxToTriple, ckBuf, spok); err != nil {
			return err
		}

		remaining, err := x.contextsOf(txn, tk)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
	} else {
		contexts, err := x.contextsOf(txn, tk)
		if err != nil {
			return err
		}
		for _, ck := range contexts {
			if err := delIfPresent(ctxToTriple, x.width.Encode(ck), spok); err != nil {
				return err
			}
		}
		if _, _, err := tripleToCtx.Get(kv.OpExact, spok, nil); err == nil {
			if err := tripleToCtx.Del(kv.DelAllDuplicates); err != nil {
				return err
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
	}

	if err := x.delProjection(txn, subDBSToPO, x.w(), x.width.Encode(tk.S), x.width.EncodeDouble(codec.DoubleKey{A: tk.P, B: tk.O})); err != nil {
		return err
	}
	if err := x.delProjection(txn, subDBPToSO, x.w(), x.width.Encode(tk.P), x.width.EncodeDouble(codec.DoubleKey{A: tk.S, B: tk.O})); err != nil {
		return err
	}
	if err := x.delProjection(txn, subDBOToSP, x.w(), x.width.Encode(tk.O), x.width.EncodeDouble(codec.DoubleKey{A: tk.S, B: tk.P})); err != nil {
		return err
	}
	return nil
}

// delIfPresent deletes the (key, val) dup-sorted entry c is positioned
// to find, treating "not found" as already-deleted.
func delIfPresent(c *kv.Cursor, key, val []byte) error {
	if _, _, err := c.Get(kv.OpGetBoth, key, val); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	return c.Del(kv.DelNone)
}

func (x *Index) delProjection(txn *kv.Txn, subDB string, dupKeyLen int, key, val []byte) error {
	c, err := txn.Cursor(subDB, dupKeyLen)
	if err != nil {
		return err
	}
	defer c.Close()
	return delIfPresent(c, key, val)
}

// contextsOf returns every context key a triple currently belongs to.
func (x *Index) contextsOf(txn *kv.Txn, tk codec.TripleKey) ([]codec.Key, error) {
	c, err := txn.Cursor(subDBTripleToCtx, x.w()*3)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	spok := x.width.EncodeTriple(tk)
	var out []codec.Key
	_, v, err := c.Get(kv.OpSetRange, spok, nil)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for {
		ck, err := x.width.Decode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, ck)
		_, v, err = c.Get(kv.OpNextDup, nil, nil)
		if errors.Is(err, kv.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Pattern is a quad lookup pattern; nil fields are unbound.
type Pattern struct {
	S, P, O *codec.Key
	Ctx     *codec.Key
}

// Lookup resolves pattern to a KeySet per the spec §4.4 branches.
func (x *Index) Lookup(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	bound := boundCount(pat)

	switch {
	case bound == 3 && pat.Ctx != nil:
		return x.lookup3BoundWithCtx(txn, pat)
	case bound == 3:
		return x.lookup3BoundNoCtx(txn, pat)
	case bound == 0 && pat.Ctx != nil:
		return x.lookup0BoundWithCtx(txn, pat)
	case bound == 0:
		return x.lookupAll(txn)
	case bound == 1:
		return x.lookup1Bound(txn, pat)
	default:
		return x.lookup2Bound(txn, pat)
	}
}

func boundCount(pat Pattern) int {
	n := 0
	if pat.S != nil {
		n++
	}
	if pat.P != nil {
		n++
	}
	if pat.O != nil {
		n++
	}
	return n
}

func (x *Index) lookup3BoundWithCtx(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	tk := codec.TripleKey{S: *pat.S, P: *pat.P, O: *pat.O}
	spok := x.width.EncodeTriple(tk)
	ckBuf := x.width.Encode(*pat.Ctx)

	c, err := txn.Cursor(subDBCtxToTriple, x.w())
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := keyset.Empty(0)
	if _, _, err := c.Get(kv.OpGetBoth, ckBuf, spok); err == nil {
		out.Add(tk, false)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return out, nil
}

func (x *Index) lookup3BoundNoCtx(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	tk := codec.TripleKey{S: *pat.S, P: *pat.P, O: *pat.O}
	spok := x.width.EncodeTriple(tk)

	c, err := txn.Cursor(subDBTripleToCtx, x.w()*3)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := keyset.Empty(0)
	if _, _, err := c.Get(kv.OpExact, spok, nil); err == nil {
		out.Add(tk, false)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return out, nil
}

func (x *Index) lookup0BoundWithCtx(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	c, err := txn.Cursor(subDBCtxToTriple, x.w())
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ckBuf := x.width.Encode(*pat.Ctx)
	out := keyset.Empty(0)
	_, v, err := c.Get(kv.OpSetRange, ckBuf, nil)
	if errors.Is(err, kv.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for {
		tk, derr := x.width.DecodeTriple(v)
		if derr != nil {
			return nil, derr
		}
		out.Add(tk, false)
		_, v, err = c.Get(kv.OpNextDup, nil, nil)
		if errors.Is(err, kv.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lookupAll enumerates one entry per distinct triple regardless of how
// many contexts it belongs to (spec §4.4: "Scan triple_to_ctx (one
// entry per triple)"), so it advances with OpNextNoDup rather than
// OpNext to skip a triple's extra (triple, ctx) duplicates.
func (x *Index) lookupAll(txn *kv.Txn) (*keyset.KeySet, error) {
	c, err := txn.Cursor(subDBTripleToCtx, x.w()*3)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := keyset.Empty(0)
	k, _, err := c.Get(kv.OpFirst, nil, nil)
	for err == nil {
		tk, derr := x.width.DecodeTriple(k)
		if derr != nil {
			return nil, derr
		}
		out.Add(tk, false)
		k, _, err = c.Get(kv.OpNextNoDup, nil, nil)
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return out, nil
}

func (x *Index) lookup1Bound(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	var subDB string
	var boundKey codec.Key
	var assemble func(dk codec.DoubleKey) codec.TripleKey

	switch {
	case pat.S != nil:
		subDB, boundKey = subDBSToPO, *pat.S
		assemble = func(dk codec.DoubleKey) codec.TripleKey {
			return codec.TripleKey{S: boundKey, P: dk.A, O: dk.B}
		}
	case pat.P != nil:
		subDB, boundKey = subDBPToSO, *pat.P
		assemble = func(dk codec.DoubleKey) codec.TripleKey {
			return codec.TripleKey{S: dk.A, P: boundKey, O: dk.B}
		}
	default:
		subDB, boundKey = subDBOToSP, *pat.O
		assemble = func(dk codec.DoubleKey) codec.TripleKey {
			return codec.TripleKey{S: dk.A, P: dk.B, O: boundKey}
		}
	}

	c, err := txn.Cursor(subDB, x.w())
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := keyset.Empty(0)
	keyBuf := x.width.Encode(boundKey)
	_, v, err := c.Get(kv.OpSetRange, keyBuf, nil)
	if errors.Is(err, kv.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for {
		dk, derr := x.width.DecodeDouble(v)
		if derr != nil {
			return nil, derr
		}
		tk := assemble(dk)
		if pat.Ctx != nil {
			ok, cerr := x.hasContext(txn, tk, *pat.Ctx)
			if cerr != nil {
				return nil, cerr
			}
			if ok {
				out.Add(tk, false)
			}
		} else {
			out.Add(tk, false)
		}
		_, v, err = c.Get(kv.OpNextDup, nil, nil)
		if errors.Is(err, kv.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (x *Index) hasContext(txn *kv.Txn, tk codec.TripleKey, ctx codec.Key) (bool, error) {
	c, err := txn.Cursor(subDBCtxToTriple, x.w())
	if err != nil {
		return false, err
	}
	defer c.Close()

	spok := x.width.EncodeTriple(tk)
	ckBuf := x.width.Encode(ctx)
	if _, _, err := c.Get(kv.OpGetBoth, ckBuf, spok); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// lookup2Bound picks the bound-position whose index comes first in
// x.Rank, scans its duplicates, and filters by the other bound term.
func (x *Index) lookup2Bound(txn *kv.Txn, pat Pattern) (*keyset.KeySet, error) {
	for _, pos := range x.Rank {
		switch pos {
		case PosS:
			if pat.S != nil {
				return x.scanAndFilter(txn, subDBSToPO, x.w(), *pat.S, pat, func(dk codec.DoubleKey) codec.TripleKey {
					return codec.TripleKey{S: *pat.S, P: dk.A, O: dk.B}
				}, func(tk codec.TripleKey) bool {
					return pat.P == nil || tk.P == *pat.P
				}, func(tk codec.TripleKey) bool {
					return pat.O == nil || tk.O == *pat.O
				})
			}
		case PosO:
			if pat.O != nil {
				return x.scanAndFilter(txn, subDBOToSP, x.w(), *pat.O, pat, func(dk codec.DoubleKey) codec.TripleKey {
					return codec.TripleKey{S: dk.A, P: dk.B, O: *pat.O}
				}, func(tk codec.TripleKey) bool {
					return pat.S == nil || tk.S == *pat.S
				}, func(tk codec.TripleKey) bool {
					return pat.P == nil || tk.P == *pat.P
				})
			}
		case PosP:
			if pat.P != nil {
				return x.scanAndFilter(txn, subDBPToSO, x.w(), *pat.P, pat, func(dk codec.DoubleKey) codec.TripleKey {
					return codec.TripleKey{S: dk.A, P: *pat.P, O: dk.B}
				}, func(tk codec.TripleKey) bool {
					return pat.S == nil || tk.S == *pat.S
				}, func(tk codec.TripleKey) bool {
					return pat.O == nil || tk.O == *pat.O
				})
			}
		}
	}
	return nil, fmt.Errorf("quadindex: lookup2Bound called with fewer than two bound positions")
}

func (x *Index) scanAndFilter(
	txn *kv.Txn, subDB string, dupKeyLen int, bound codec.Key, pat Pattern,
	assemble func(codec.DoubleKey) codec.TripleKey,
	filters ...func(codec.TripleKey) bool,
) (*keyset.KeySet, error) {
	c, err := txn.Cursor(subDB, dupKeyLen)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := keyset.Empty(0)
	keyBuf := x.width.Encode(bound)
	_, v, err := c.Get(kv.OpSetRange, keyBuf, nil)
	if errors.Is(err, kv.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for {
		dk, derr := x.width.DecodeDouble(v)
		if derr != nil {
			return nil, derr
		}
		tk := assemble(dk)
		match := true
		for _, f := range filters {
			if !f(tk) {
				match = false
				break
			}
		}
		if match {
			if pat.Ctx != nil {
				ok, cerr := x.hasContext(txn, tk, *pat.Ctx)
				if cerr != nil {
					return nil, cerr
				}
				if !ok {
					match = false
				}
			}
		}
		if match {
			out.Add(tk, false)
		}
		_, v, err = c.Get(kv.OpNextDup, nil, nil)
		if errors.Is(err, kv.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Contexts enumerates every registered context key, including empty
// ones (spec §4.4 ctx_set purpose).
func (x *Index) Contexts(txn *kv.Txn) ([]codec.Key, error) {
	c, err := txn.Cursor(subDBCtxSet, 0)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var out []codec.Key
	k, _, err := c.Get(kv.OpFirst, nil, nil)
	for err == nil {
		ck, derr := x.width.Decode(k)
		if derr != nil {
			return nil, derr
		}
		out = append(out, ck)
		k, _, err = c.Get(kv.OpNext, nil, nil)
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return out, nil
}
