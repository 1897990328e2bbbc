package miniscript

import (
	"fmt"
	"sync"

	"github.com/decred/dcrd/lru"
)

const (
	// defaultTypeCacheSize is the default number of fragments whose types
	// are remembered by a TypeCache.
	defaultTypeCacheSize = 1000
)

// typeEntry is the checked type and cost data of one fragment.
type typeEntry struct {
	ty  Type
	ext ExtData
}

// TypeCache remembers the types of fragments by their canonical text so
// repeated sub-fragments are only checked once across calls to Reverify.
// It is safe for concurrent use.
type TypeCache struct {
	cache lru.KVCache
	limit uint

	mtx  sync.Mutex
	size uint
}

// NewTypeCache returns a cache holding up to size fragments.  A size of 0
// selects the default.
func NewTypeCache(size uint) *TypeCache {
	if size == 0 {
		size = defaultTypeCacheSize
	}
	return &TypeCache{cache: lru.NewKVCache(size), limit: size}
}

func (c *TypeCache) lookup(frag string) (typeEntry, bool) {
	if c == nil {
		return typeEntry{}, false
	}
	v, ok := c.cache.Lookup(frag)
	if !ok {
		return typeEntry{}, false
	}
	return v.(typeEntry), true
}

func (c *TypeCache) add(frag string, e typeEntry) {
	if c == nil {
		return
	}
	if !c.cache.Contains(frag) {
		// The cache evicts its oldest entry once full, so the number of
		// entries never exceeds the limit.
		c.mtx.Lock()
		if c.size < c.limit {
			c.size++
		}
		c.mtx.Unlock()
	}
	c.cache.Add(frag, e)
}

// Len returns the number of cached fragments.
func (c *TypeCache) Len() int {
	if c == nil {
		return 0
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return int(c.size)
}

// Reverify checks the types stored in m, a tree that may have been built
// elsewhere, against the types computed from scratch.  The stored types of
// the nodes are never trusted; only cache, which may be nil, is consulted.
// A disagreement is reported as ErrTypeMismatch.
func Reverify(m *Miniscript, cache *TypeCache) error {
	_, err := cache.verify(m)
	return err
}

func (c *TypeCache) verify(m *Miniscript) (typeEntry, error) {
	frag := m.String()
	if e, ok := c.lookup(frag); ok {
		return e, compareEntry(m, frag, e)
	}

	for _, sub := range m.Node.children() {
		if _, err := c.verify(sub); err != nil {
			return typeEntry{}, err
		}
	}

	// Children evicted in the meantime are recomputed by the checker.
	corr, err := typeCheck[Correctness](m.Node,
		func(sub *Miniscript) (Correctness, bool) {
			e, ok := c.lookup(sub.String())
			return e.ty.Corr, ok
		})
	if err != nil {
		return typeEntry{}, err
	}
	mall, err := typeCheck[Malleability](m.Node,
		func(sub *Miniscript) (Malleability, bool) {
			e, ok := c.lookup(sub.String())
			return e.ty.Mall, ok
		})
	if err != nil {
		return typeEntry{}, err
	}
	ext, err := typeCheck[ExtData](m.Node,
		func(sub *Miniscript) (ExtData, bool) {
			e, ok := c.lookup(sub.String())
			return e.ext, ok
		})
	if err != nil {
		return typeEntry{}, err
	}

	e := typeEntry{ty: Type{Corr: corr, Mall: mall}, ext: ext}
	e.ty.sanityChecks()
	if err := compareEntry(m, frag, e); err != nil {
		return typeEntry{}, err
	}
	c.add(frag, e)
	return e, nil
}

func compareEntry(m *Miniscript, frag string, e typeEntry) error {
	if m.ty != e.ty {
		return analysisError(ErrTypeMismatch, frag, fmt.Sprintf(
			"fragment %q claims type %v but checks as %v", frag,
			m.ty, e.ty))
	}
	if m.ext != e.ext {
		return analysisError(ErrTypeMismatch, frag, fmt.Sprintf(
			"fragment %q claims cost data %+v but checks as %+v",
			frag, m.ext, e.ext))
	}
	return nil
}
