// Package bptree implements an in-memory B+ tree over byte-string keys.
//
// Nodes live in a store.Store arena and reference each other by PageID.
// Every leaf links to its right sibling, so ordered scans walk the leaf
// level without returning to the root.
package bptree

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"clusterdb/internal/algo"
	"clusterdb/internal/base"
	"clusterdb/internal/store"
)

var (
	ErrInvalidOrder = errors.New("order must be at least 3")
	ErrKeyNotFound  = errors.New("key not found")
	ErrKeyExists    = errors.New("key already exists")
)

// MinOrder is the smallest order for which splits and merges stay balanced
const MinOrder = 3

// Tree is a B+ tree. All methods are safe for concurrent use; writers are
// serialized and exclude readers.
type Tree struct {
	mu sync.RWMutex

	store *store.Store
	root  base.PageID

	order     int // max keys per node
	minLeaf   int // ceil(order/2)
	minBranch int // floor(order/2)

	count int
	epoch uint64 // bumped by every successful mutation
}

// path records one level of a descent: the node and the child index taken
type path struct {
	node       *base.Node
	childIndex int
}

// New creates an empty tree whose nodes hold at most order keys
func New(order int) (*Tree, error) {
	if order < MinOrder {
		return nil, ErrInvalidOrder
	}
	t := &Tree{
		store:     store.New(),
		order:     order,
		minLeaf:   (order + 1) / 2,
		minBranch: order / 2,
	}
	t.root = t.store.Allocate(true).PageID
	return t, nil
}

// Order returns the maximum number of keys per node
func (t *Tree) Order() int {
	return t.order
}

// Len returns the number of entries
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Epoch returns a counter that changes whenever the tree is modified
func (t *Tree) Epoch() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epoch
}

// Get returns a copy of the value stored under key
func (t *Tree) Get(key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf := t.findLeaf(key, nil)
	idx := algo.FindKeyInLeaf(leaf, key)
	if idx < 0 {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(leaf.Values[idx]), nil
}

// Has reports whether key is present
func (t *Tree) Has(key []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return algo.FindKeyInLeaf(t.findLeaf(key, nil), key) >= 0
}

// Insert adds a new entry. An existing key is left untouched and
// ErrKeyExists is returned.
func (t *Tree) Insert(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, _, err := t.insert(key, value, false)
	return err
}

// Put inserts or replaces the entry for key, returning the previous value
// when one was replaced
func (t *Tree) Put(key, value []byte) (old []byte, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, replaced, _ = t.insert(key, value, true)
	return old, replaced
}

// Update replaces the value of an existing key. The shape of the tree never
// changes.
func (t *Tree) Update(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf := t.findLeaf(key, nil)
	idx := algo.FindKeyInLeaf(leaf, key)
	if idx < 0 {
		return ErrKeyNotFound
	}
	algo.ApplyLeafUpdate(leaf, idx, bytes.Clone(value))
	t.epoch++
	return nil
}

// Delete removes key and returns its value
func (t *Tree) Delete(key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stack []path
	leaf := t.findLeaf(key, &stack)
	idx := algo.FindKeyInLeaf(leaf, key)
	if idx < 0 {
		return nil, ErrKeyNotFound
	}

	old := leaf.Values[idx]
	algo.ApplyLeafDelete(leaf, idx)
	t.count--
	t.epoch++

	// Walk back up while the current node is under its minimum
	node := leaf
	for level := len(stack) - 1; level >= 0; level-- {
		if len(node.Keys) >= t.minKeys(node) {
			break
		}
		parent := stack[level].node
		t.fixUnderflow(parent, stack[level].childIndex, node)
		node = parent
	}

	// Collapse a branch root left with a single child
	root := t.store.Get(t.root)
	if !root.IsLeaf() && len(root.Keys) == 0 {
		t.root = root.Children[0]
		t.store.Free(root.PageID)
	}

	return old, nil
}

// findLeaf descends to the leaf that may hold key, recording the branch
// levels in stack when it is non-nil
func (t *Tree) findLeaf(key []byte, stack *[]path) *base.Node {
	node := t.store.Get(t.root)
	for !node.IsLeaf() {
		i := algo.FindChildIndex(node, key)
		if stack != nil {
			*stack = append(*stack, path{node: node, childIndex: i})
		}
		node = t.store.Get(node.Children[i])
	}
	return node
}

func (t *Tree) insert(key, value []byte, replace bool) ([]byte, bool, error) {
	var stack []path
	leaf := t.findLeaf(key, &stack)

	pos := algo.FindInsertPosition(leaf, key)
	if pos < len(leaf.Keys) && bytes.Equal(leaf.Keys[pos], key) {
		if !replace {
			return nil, false, ErrKeyExists
		}
		old := leaf.Values[pos]
		algo.ApplyLeafUpdate(leaf, pos, bytes.Clone(value))
		t.epoch++
		return old, true, nil
	}

	algo.ApplyLeafInsert(leaf, pos, bytes.Clone(key), bytes.Clone(value))
	t.count++
	t.epoch++

	// Split upward while the current node overflows
	node := leaf
	for level := len(stack) - 1; len(node.Keys) > t.order; level-- {
		sp := algo.CalculateSplitPoint(node)
		right := t.store.Allocate(node.IsLeaf())
		algo.SplitInto(node, right, sp)

		if level < 0 {
			// Root split: the only way height grows
			root := t.store.Allocate(false)
			algo.NewBranchRoot(root, node.PageID, right.PageID, sp.SeparatorKey)
			t.root = root.PageID
			break
		}

		parent := stack[level].node
		algo.ApplyChildSplit(parent, stack[level].childIndex, right.PageID, sp.SeparatorKey)
		node = parent
	}

	return nil, false, nil
}

// fixUnderflow restores the minimum occupancy of child, the childIdx-th
// child of parent: borrow from the left sibling, else the right sibling,
// else merge with one of them
func (t *Tree) fixUnderflow(parent *base.Node, childIdx int, child *base.Node) {
	var left, right *base.Node
	if childIdx > 0 {
		left = t.store.Get(parent.Children[childIdx-1])
		if len(left.Keys) > t.minKeys(left) {
			algo.BorrowFromLeft(child, left, parent, childIdx-1)
			return
		}
	}
	if childIdx < len(parent.Children)-1 {
		right = t.store.Get(parent.Children[childIdx+1])
		if len(right.Keys) > t.minKeys(right) {
			algo.BorrowFromRight(child, right, parent, childIdx)
			return
		}
	}

	if left != nil {
		algo.MergeNodes(left, child, parent.Keys[childIdx-1])
		algo.ApplyBranchRemoveSeparator(parent, childIdx-1)
		t.store.Free(child.PageID)
		return
	}

	algo.MergeNodes(child, right, parent.Keys[childIdx])
	algo.ApplyBranchRemoveSeparator(parent, childIdx)
	t.store.Free(right.PageID)
}

func (t *Tree) minKeys(n *base.Node) int {
	if n.IsLeaf() {
		return t.minLeaf
	}
	return t.minBranch
}

// Stats describes the shape of a tree
type Stats struct {
	Count    int
	Height   int
	Leaves   int
	Branches int
}

// Height returns the number of levels; an empty tree has height 1
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height()
}

func (t *Tree) height() int {
	h := 1
	for node := t.store.Get(t.root); !node.IsLeaf(); node = t.store.Get(node.Children[0]) {
		h++
	}
	return h
}

// Stats returns entry and node counts
func (t *Tree) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{Count: t.count, Height: t.height()}
	t.store.Each(func(n *base.Node) {
		if n.IsLeaf() {
			s.Leaves++
		} else {
			s.Branches++
		}
	})
	return s
}

// Swap exchanges the contents of t and other. Both trees must have the same
// order, and other must not be swapped concurrently in the opposite
// direction. Readers of either tree see the old or the new contents, never a
// mix.
func (t *Tree) Swap(other *Tree) error {
	if t == other {
		return nil
	}
	if t.order != other.order {
		return fmt.Errorf("%w: swap order %d with %d", ErrOrderMismatch, t.order, other.order)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	t.store, other.store = other.store, t.store
	t.root, other.root = other.root, t.root
	t.count, other.count = other.count, t.count
	t.epoch++
	other.epoch++
	return nil
}
