package base

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Node represents a B+ tree node held in the node store
type Node struct {
	PageID PageID
	Leaf   bool // Explicit flag: true for leaf nodes, false for branch nodes

	Keys     [][]byte
	Values   [][]byte // leaves only
	Children []PageID // branches only, len(Keys)+1

	// Next is the right sibling of a leaf. It is a navigational handle into
	// the store, not an ownership edge; 0 means no sibling.
	Next PageID
}

// NewLeaf returns an empty leaf node with the given id
func NewLeaf(id PageID) *Node {
	return &Node{PageID: id, Leaf: true}
}

// NewBranch returns an empty branch node with the given id
func NewBranch(id PageID) *Node {
	return &Node{PageID: id}
}

// IsLeaf returns true if this is a leaf Node
func (n *Node) IsLeaf() bool {
	return n.Leaf
}

// NumKeys returns the number of keys held by the node
func (n *Node) NumKeys() int {
	return len(n.Keys)
}

// FindKey returns the index of key in Node, or -1 if not found
func (n *Node) FindKey(key []byte) int {
	i := sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(n.Keys[i], key) >= 0
	})
	if i < len(n.Keys) && bytes.Equal(n.Keys[i], key) {
		return i
	}
	return -1
}

// Reset clears the node for reuse by the store
func (n *Node) Reset() {
	n.PageID = 0
	n.Leaf = false
	n.Keys = n.Keys[:0]
	n.Values = n.Values[:0]
	n.Children = n.Children[:0]
	n.Next = 0
}

// BodySize calculates the size of the serialized node body
func (n *Node) BodySize() int {
	size := 0
	if n.IsLeaf() {
		for i := range n.Keys {
			size += 8 + len(n.Keys[i]) + len(n.Values[i])
		}
		return size
	}

	size += 8 // Children[0]
	for i := range n.Keys {
		size += 4 + len(n.Keys[i]) + 8
	}
	return size
}

// Serialize encodes the Node into a fresh sealed page image
func (n *Node) Serialize() (*Page, error) {
	bodySize := n.BodySize()
	page, err := NewPage(bodySize)
	if err != nil {
		return nil, err
	}

	header := &PageHeader{
		PageID:   n.PageID,
		NumKeys:  uint32(len(n.Keys)),
		BodySize: uint32(bodySize),
	}
	if n.IsLeaf() {
		header.Flags = LeafPageFlag
		header.Next = n.Next
	} else {
		header.Flags = BranchPageFlag
	}
	page.WriteHeader(header)

	body := page.Data[PageHeaderSize:PageHeaderSize]
	if n.IsLeaf() {
		for i, key := range n.Keys {
			value := n.Values[i]
			body = binary.LittleEndian.AppendUint32(body, uint32(len(key)))
			body = binary.LittleEndian.AppendUint32(body, uint32(len(value)))
			body = append(body, key...)
			body = append(body, value...)
		}
	} else {
		body = binary.LittleEndian.AppendUint64(body, uint64(n.Children[0]))
		for i, key := range n.Keys {
			body = binary.LittleEndian.AppendUint32(body, uint32(len(key)))
			body = append(body, key...)
			body = binary.LittleEndian.AppendUint64(body, uint64(n.Children[i+1]))
		}
	}

	page.Seal()
	return page, nil
}

// Deserialize decodes the page image into Node fields. Keys and values are
// copied out of the page.
func (n *Node) Deserialize(p *Page) error {
	if err := p.Verify(); err != nil {
		return err
	}
	header := p.Header()
	body, err := p.Body()
	if err != nil {
		return err
	}

	n.PageID = header.PageID
	n.Next = 0
	numKeys := int(header.NumKeys)
	r := reader{buf: body}

	switch header.Flags {
	case LeafPageFlag:
		n.Leaf = true
		n.Next = header.Next
		n.Keys = make([][]byte, numKeys)
		n.Values = make([][]byte, numKeys)
		n.Children = nil
		for i := 0; i < numKeys; i++ {
			keySize := r.uint32()
			valueSize := r.uint32()
			n.Keys[i] = r.bytes(int(keySize))
			n.Values[i] = r.bytes(int(valueSize))
		}
	case BranchPageFlag:
		n.Leaf = false
		n.Keys = make([][]byte, numKeys)
		n.Values = nil
		n.Children = make([]PageID, numKeys+1)
		n.Children[0] = PageID(r.uint64())
		for i := 0; i < numKeys; i++ {
			keySize := r.uint32()
			n.Keys[i] = r.bytes(int(keySize))
			n.Children[i+1] = PageID(r.uint64())
		}
	default:
		return ErrInvalidPageType
	}

	return r.err
}

// reader walks a page body, recording the first out-of-bounds access
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(size int) []byte {
	if r.err != nil {
		return nil
	}
	if size < 0 || r.off+size > len(r.buf) {
		r.err = ErrInvalidOffset
		return nil
	}
	b := r.buf[r.off : r.off+size]
	r.off += size
	return b
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) bytes(size int) []byte {
	b := r.take(size)
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
