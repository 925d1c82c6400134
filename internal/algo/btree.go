// Package algo contains algorithms used for traversing and editing a b+ tree.
//
// Separators follow one fixed tie-break: every key in a separator's left
// subtree is strictly less than it, every key in its right subtree is
// greater than or equal to it.
package algo

import (
	"bytes"
	"sort"

	"clusterdb/internal/base"
)

const searchThreshold = 32

// FindChildIndex returns the index of child pointer to follow for key
func FindChildIndex(node *base.Node, key []byte) int {
	keys := node.Keys

	if len(keys) < searchThreshold {
		i := 0
		for i < len(keys) && bytes.Compare(key, keys[i]) >= 0 {
			i++
		}
		return i
	}

	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(key, keys[i]) < 0
	})
}

// FindKeyInLeaf returns index of key in leaf, or -1 if not found
func FindKeyInLeaf(node *base.Node, key []byte) int {
	if !node.IsLeaf() {
		return -1
	}
	return node.FindKey(key)
}

// FindInsertPosition returns the index of the first key >= key
func FindInsertPosition(node *base.Node, key []byte) int {
	keys := node.Keys

	if len(keys) < searchThreshold {
		pos := 0
		for pos < len(keys) && bytes.Compare(key, keys[pos]) > 0 {
			pos++
		}
		return pos
	}

	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(key, keys[i]) <= 0
	})
}

// SplitPoint contains split calculation results
type SplitPoint struct {
	Mid          int // leaf: first index moved right; branch: index of the promoted key
	LeftCount    int
	RightCount   int
	SeparatorKey []byte
}

// CalculateSplitPoint determines the split position of an overfull node.
// Leaves keep the lower half and move the upper half right, pushing a copy
// of the right node's first key up. Branches promote their middle key,
// which then lives only in the parent.
func CalculateSplitPoint(node *base.Node) SplitPoint {
	keys := node.Keys
	if len(keys) < 2 {
		panic("cannot split node with fewer than two keys")
	}

	mid := len(keys) / 2
	sep := make([]byte, len(keys[mid]))
	copy(sep, keys[mid])

	if node.IsLeaf() {
		return SplitPoint{
			Mid:          mid,
			LeftCount:    mid,
			RightCount:   len(keys) - mid,
			SeparatorKey: sep,
		}
	}

	return SplitPoint{
		Mid:          mid,
		LeftCount:    mid,
		RightCount:   len(keys) - mid - 1,
		SeparatorKey: sep,
	}
}

// ExtractRightPortion copies right portion data (read-only on input)
func ExtractRightPortion(node *base.Node, sp SplitPoint) (keys [][]byte, vals [][]byte, children []base.PageID) {
	if node.IsLeaf() {
		keys = append(keys, node.Keys[sp.Mid:]...)
		vals = append(vals, node.Values[sp.Mid:]...)
		return keys, vals, nil
	}

	keys = append(keys, node.Keys[sp.Mid+1:]...)
	children = append(children, node.Children[sp.Mid+1:]...)
	return keys, nil, children
}

// InsertAt inserts value at index in slice
func InsertAt[T any](slice []T, index int, value T) []T {
	var zero T
	slice = append(slice, zero)
	copy(slice[index+1:], slice[index:])
	slice[index] = value
	return slice
}

// RemoveAt removes element at index from slice
func RemoveAt[T any](slice []T, index int) []T {
	return append(slice[:index], slice[index+1:]...)
}
