package bptree

import (
	"bytes"

	"clusterdb/internal/algo"
	"clusterdb/internal/base"
)

// Bound is one end of a key range. A nil Key leaves that end unbounded.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// Unbounded is the open end of a range
var Unbounded = Bound{}

// Inclusive returns a bound that includes key
func Inclusive(key []byte) Bound {
	return Bound{Key: key, Inclusive: true}
}

// Exclusive returns a bound that excludes key
func Exclusive(key []byte) Bound {
	return Bound{Key: key}
}

type entry struct {
	key   []byte
	value []byte
}

// Cursor iterates the entries of a key range in ascending order.
//
// The cursor copies one leaf at a time under the tree's read lock and
// follows sibling links between leaves. If the tree was modified since the
// previous leaf was read, it seeks again to the first key after the last one
// returned, so a surviving key is never skipped or returned twice. Entries of
// the leaf being drained reflect the moment it was copied. Keys and values
// are shared with the tree and must not be modified.
type Cursor struct {
	tree   *Tree
	lo, hi Bound

	buf   []entry
	pos   int
	next  base.PageID // leaf to read after buf is drained
	epoch uint64

	started bool
	done    bool
	last    []byte

	key   []byte
	value []byte
}

// Cursor returns a cursor over [lo, hi] honouring each bound's
// inclusiveness. The cursor starts before the first entry.
func (t *Tree) Cursor(lo, hi Bound) *Cursor {
	return &Cursor{tree: t, lo: lo, hi: hi}
}

// Next advances to the next entry, returning false when the range is
// exhausted
func (c *Cursor) Next() bool {
	for {
		if c.pos < len(c.buf) {
			e := c.buf[c.pos]
			c.pos++
			c.key, c.value = e.key, e.value
			c.last = e.key
			return true
		}
		if c.done || !c.fill() {
			c.done = true
			c.key, c.value = nil, nil
			return false
		}
	}
}

// Key returns the current key
func (c *Cursor) Key() []byte {
	return c.key
}

// Value returns the current value
func (c *Cursor) Value() []byte {
	return c.value
}

// Reset rewinds the cursor to the start of its range
func (c *Cursor) Reset() {
	*c = Cursor{tree: c.tree, lo: c.lo, hi: c.hi}
}

// fill loads the next leaf's entries into buf. It returns false once no
// leaf is left to read.
func (c *Cursor) fill() bool {
	t := c.tree
	t.mu.RLock()
	defer t.mu.RUnlock()

	c.buf = c.buf[:0]
	c.pos = 0

	var leaf *base.Node
	start := 0
	switch {
	case !c.started || (c.epoch != t.epoch && c.last == nil):
		leaf, start = c.seek(c.lo)
		c.started = true
	case c.epoch != t.epoch:
		leaf, start = c.seek(Exclusive(c.last))
	default:
		if c.next == 0 {
			return false
		}
		leaf = t.store.Get(c.next)
	}
	c.epoch = t.epoch
	c.next = leaf.Next

	for i := start; i < len(leaf.Keys); i++ {
		if c.pastHi(leaf.Keys[i]) {
			c.next = 0
			break
		}
		c.buf = append(c.buf, entry{key: leaf.Keys[i], value: leaf.Values[i]})
	}

	return len(c.buf) > 0 || c.next != 0
}

// seek finds the leaf and index of the first key satisfying lo
func (c *Cursor) seek(lo Bound) (*base.Node, int) {
	t := c.tree
	if lo.Key == nil {
		node := t.store.Get(t.root)
		for !node.IsLeaf() {
			node = t.store.Get(node.Children[0])
		}
		return node, 0
	}

	leaf := t.findLeaf(lo.Key, nil)
	i := algo.FindInsertPosition(leaf, lo.Key)
	if !lo.Inclusive && i < len(leaf.Keys) && bytes.Equal(leaf.Keys[i], lo.Key) {
		i++
	}
	return leaf, i
}

func (c *Cursor) pastHi(key []byte) bool {
	if c.hi.Key == nil {
		return false
	}
	cmp := bytes.Compare(key, c.hi.Key)
	return cmp > 0 || (cmp == 0 && !c.hi.Inclusive)
}

// Ascend calls fn for every entry in the range until fn returns false
func (t *Tree) Ascend(lo, hi Bound, fn func(key, value []byte) bool) {
	c := t.Cursor(lo, hi)
	for c.Next() {
		if !fn(c.Key(), c.Value()) {
			return
		}
	}
}
