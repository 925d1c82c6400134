package bptree

import (
	"bytes"
	"errors"
	"fmt"

	"clusterdb/internal/base"
)

// ErrInvariant is returned by Check when the tree structure is broken
var ErrInvariant = errors.New("b+ tree invariant violated")

type checker struct {
	t         *Tree
	leafDepth int
	leaves    []*base.Node
	count     int
	nodes     int
}

// Check walks the whole tree and verifies its structural invariants:
// uniform leaf depth, node occupancy, strictly increasing keys, separator
// bounds, child counts, the leaf sibling chain and the entry count.
func (t *Tree) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.check()
}

func (t *Tree) check() error {
	c := &checker{t: t, leafDepth: -1}
	if err := c.walk(t.root, nil, nil, 0); err != nil {
		return err
	}

	for i, leaf := range c.leaves {
		var want base.PageID
		if i+1 < len(c.leaves) {
			want = c.leaves[i+1].PageID
		}
		if leaf.Next != want {
			return fmt.Errorf("%w: leaf %d links to %d, want %d", ErrInvariant, leaf.PageID, leaf.Next, want)
		}
	}

	if c.count != t.count {
		return fmt.Errorf("%w: %d entries reachable, count is %d", ErrInvariant, c.count, t.count)
	}
	if c.nodes != t.store.Len() {
		return fmt.Errorf("%w: %d nodes reachable, store holds %d", ErrInvariant, c.nodes, t.store.Len())
	}
	return nil
}

// walk checks the subtree at id, whose keys must lie in [lo, hi)
func (c *checker) walk(id base.PageID, lo, hi []byte, depth int) error {
	t := c.t
	node := t.store.Get(id)
	if node == nil {
		return fmt.Errorf("%w: missing node %d", ErrInvariant, id)
	}
	c.nodes++

	isRoot := id == t.root
	n := len(node.Keys)
	if n > t.order {
		return fmt.Errorf("%w: node %d has %d keys, order is %d", ErrInvariant, id, n, t.order)
	}
	if !isRoot && n < t.minKeys(node) {
		return fmt.Errorf("%w: node %d has %d keys, minimum is %d", ErrInvariant, id, n, t.minKeys(node))
	}

	for i, key := range node.Keys {
		if i > 0 && bytes.Compare(node.Keys[i-1], key) >= 0 {
			return fmt.Errorf("%w: node %d keys out of order at %d", ErrInvariant, id, i)
		}
		if lo != nil && bytes.Compare(key, lo) < 0 {
			return fmt.Errorf("%w: node %d key %d below separator", ErrInvariant, id, i)
		}
		if hi != nil && bytes.Compare(key, hi) >= 0 {
			return fmt.Errorf("%w: node %d key %d not below separator", ErrInvariant, id, i)
		}
	}

	if node.IsLeaf() {
		if len(node.Values) != n {
			return fmt.Errorf("%w: leaf %d has %d keys and %d values", ErrInvariant, id, n, len(node.Values))
		}
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if depth != c.leafDepth {
			return fmt.Errorf("%w: leaf %d at depth %d, want %d", ErrInvariant, id, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, node)
		c.count += n
		return nil
	}

	if n == 0 {
		return fmt.Errorf("%w: branch %d has no keys", ErrInvariant, id)
	}
	if len(node.Children) != n+1 {
		return fmt.Errorf("%w: branch %d has %d keys and %d children", ErrInvariant, id, n, len(node.Children))
	}
	for i, child := range node.Children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = node.Keys[i-1]
		}
		if i < n {
			childHi = node.Keys[i]
		}
		if err := c.walk(child, childLo, childHi, depth+1); err != nil {
			return err
		}
	}
	return nil
}
