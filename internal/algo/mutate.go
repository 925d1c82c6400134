package algo

import (
	"clusterdb/internal/base"
)

// ApplyLeafUpdate replaces the value at pos in a leaf
func ApplyLeafUpdate(node *base.Node, pos int, newValue []byte) {
	node.Values[pos] = newValue
}

// ApplyLeafInsert inserts new key-value at position
func ApplyLeafInsert(node *base.Node, pos int, key, value []byte) {
	node.Keys = InsertAt(node.Keys, pos, key)
	node.Values = InsertAt(node.Values, pos, value)
}

// ApplyLeafDelete removes key at position
func ApplyLeafDelete(node *base.Node, idx int) {
	node.Keys = RemoveAt(node.Keys, idx)
	node.Values = RemoveAt(node.Values, idx)
}

// ApplyBranchRemoveSeparator removes separator key and child after merge
// Removes the separator at sepIdx and the child at sepIdx+1
func ApplyBranchRemoveSeparator(node *base.Node, sepIdx int) {
	node.Keys = RemoveAt(node.Keys, sepIdx)
	node.Children = RemoveAt(node.Children, sepIdx+1)
}

// ApplyChildSplit updates parent after splitting the child at childIdx:
// the separator goes in at childIdx and rightChild becomes child childIdx+1
func ApplyChildSplit(parent *base.Node, childIdx int, rightChild base.PageID, sepKey []byte) {
	parent.Keys = InsertAt(parent.Keys, childIdx, sepKey)
	parent.Children = InsertAt(parent.Children, childIdx+1, rightChild)
}

// NewBranchRoot fills root as a branch over two children after a root split
func NewBranchRoot(root *base.Node, leftChild, rightChild base.PageID, midKey []byte) {
	root.Leaf = false
	root.Keys = [][]byte{midKey}
	root.Values = nil
	root.Children = []base.PageID{leftChild, rightChild}
	root.Next = 0
}

// SplitInto moves the right portion of node into the empty node right and
// truncates node to its left portion. Leaves splice right into the sibling
// chain directly after node.
func SplitInto(node, right *base.Node, sp SplitPoint) {
	keys, vals, children := ExtractRightPortion(node, sp)
	right.Keys = keys
	right.Values = vals
	right.Children = children

	if node.IsLeaf() {
		right.Next = node.Next
		node.Next = right.PageID
	}
	TruncateLeft(node, sp)
}

// TruncateLeft modifies node to keep only left portion after split
func TruncateLeft(node *base.Node, sp SplitPoint) {
	leftKeys := make([][]byte, sp.LeftCount)
	copy(leftKeys, node.Keys[:sp.LeftCount])
	node.Keys = leftKeys

	if node.IsLeaf() {
		leftVals := make([][]byte, sp.LeftCount)
		copy(leftVals, node.Values[:sp.LeftCount])
		node.Values = leftVals
		return
	}

	node.Values = nil
	leftChildren := make([]base.PageID, sp.Mid+1)
	copy(leftChildren, node.Children[:sp.Mid+1])
	node.Children = leftChildren
}

// BorrowFromLeft moves last element from left sibling to beginning of node
// and updates the parent separator at parentKeyIdx
func BorrowFromLeft(node, leftSibling, parent *base.Node, parentKeyIdx int) {
	lastIdx := len(leftSibling.Keys) - 1

	if node.IsLeaf() {
		node.Keys = InsertAt(node.Keys, 0, leftSibling.Keys[lastIdx])
		node.Values = InsertAt(node.Values, 0, leftSibling.Values[lastIdx])

		leftSibling.Keys = RemoveAt(leftSibling.Keys, lastIdx)
		leftSibling.Values = RemoveAt(leftSibling.Values, lastIdx)

		// Separator becomes the first key of the right node
		parent.Keys[parentKeyIdx] = node.Keys[0]
		return
	}

	// Branch borrow rotates through the parent
	lastChild := leftSibling.Children[len(leftSibling.Children)-1]
	node.Keys = InsertAt(node.Keys, 0, parent.Keys[parentKeyIdx])
	node.Children = InsertAt(node.Children, 0, lastChild)

	parent.Keys[parentKeyIdx] = leftSibling.Keys[lastIdx]

	leftSibling.Keys = RemoveAt(leftSibling.Keys, lastIdx)
	leftSibling.Children = RemoveAt(leftSibling.Children, len(leftSibling.Children)-1)
}

// BorrowFromRight moves first element from right sibling to end of node
// and updates the parent separator at parentKeyIdx
func BorrowFromRight(node, rightSibling, parent *base.Node, parentKeyIdx int) {
	if node.IsLeaf() {
		node.Keys = append(node.Keys, rightSibling.Keys[0])
		node.Values = append(node.Values, rightSibling.Values[0])

		rightSibling.Keys = RemoveAt(rightSibling.Keys, 0)
		rightSibling.Values = RemoveAt(rightSibling.Values, 0)

		// Separator becomes the new first key of the right sibling
		parent.Keys[parentKeyIdx] = rightSibling.Keys[0]
		return
	}

	// Branch borrow rotates through the parent
	node.Keys = append(node.Keys, parent.Keys[parentKeyIdx])
	node.Children = append(node.Children, rightSibling.Children[0])

	parent.Keys[parentKeyIdx] = rightSibling.Keys[0]

	rightSibling.Keys = RemoveAt(rightSibling.Keys, 0)
	rightSibling.Children = RemoveAt(rightSibling.Children, 0)
}

// MergeNodes combines right node into left node
// For branch nodes, includes separator key from parent
// Does NOT update parent - caller must call ApplyBranchRemoveSeparator
func MergeNodes(leftNode, rightNode *base.Node, separatorKey []byte) {
	if leftNode.IsLeaf() {
		leftNode.Keys = append(leftNode.Keys, rightNode.Keys...)
		leftNode.Values = append(leftNode.Values, rightNode.Values...)
		leftNode.Next = rightNode.Next
		return
	}

	// Branch node: pull down separator key
	leftNode.Keys = append(leftNode.Keys, separatorKey)
	leftNode.Keys = append(leftNode.Keys, rightNode.Keys...)
	leftNode.Children = append(leftNode.Children, rightNode.Children...)
}
