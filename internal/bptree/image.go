package bptree

import (
	"errors"
	"fmt"
	"io"

	"clusterdb/internal/base"
	"clusterdb/internal/store"
)

// ErrOrderMismatch is returned when a page stream was written by a tree of
// a different order
var ErrOrderMismatch = errors.New("page stream order does not match tree")

// WriteTo writes the tree as a meta page followed by one page image per
// node in ascending PageID order
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta := base.MetaPage{
		Magic:    base.MagicNumber,
		Version:  base.FormatVersion,
		Order:    uint32(t.order),
		Root:     t.root,
		Count:    uint64(t.count),
		NumNodes: uint64(t.store.Len()),
	}
	page, err := meta.Serialize()
	if err != nil {
		return 0, err
	}
	written, err := page.WriteTo(w)
	if err != nil {
		return written, err
	}

	err = t.store.ForEach(func(n *base.Node) error {
		page, err := n.Serialize()
		if err != nil {
			return fmt.Errorf("serialize node %d: %w", n.PageID, err)
		}
		m, err := page.WriteTo(w)
		written += m
		return err
	})
	return written, err
}

// ReadFrom replaces the tree's contents with a page stream produced by
// WriteTo. The loaded tree is checked before it is installed; on any error
// the tree is left unchanged.
func (t *Tree) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}

	page, err := base.ReadPage(cr)
	if err != nil {
		return cr.n, fmt.Errorf("read meta page: %w", err)
	}
	var meta base.MetaPage
	if err := meta.Deserialize(page); err != nil {
		return cr.n, fmt.Errorf("read meta page: %w", err)
	}
	if int(meta.Order) != t.order {
		return cr.n, fmt.Errorf("%w: stream order %d, tree order %d", ErrOrderMismatch, meta.Order, t.order)
	}

	s := store.New()
	for i := uint64(0); i < meta.NumNodes; i++ {
		page, err := base.ReadPage(cr)
		if err != nil {
			return cr.n, err
		}
		node := &base.Node{}
		if err := node.Deserialize(page); err != nil {
			return cr.n, fmt.Errorf("page %d: %w", page.Header().PageID, err)
		}
		if err := s.Place(node); err != nil {
			return cr.n, err
		}
	}
	s.Seal()

	loaded := &Tree{
		store:     s,
		root:      meta.Root,
		order:     t.order,
		minLeaf:   t.minLeaf,
		minBranch: t.minBranch,
		count:     int(meta.Count),
	}
	if loaded.store.Get(loaded.root) == nil {
		return cr.n, fmt.Errorf("%w: root page %d not in stream", ErrInvariant, meta.Root)
	}
	if err := loaded.check(); err != nil {
		return cr.n, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = loaded.store
	t.root = loaded.root
	t.count = loaded.count
	t.epoch++
	return cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
