// Package store is the node arena backing a B+ tree. Nodes are addressed by
// integer PageID handles; parents reference children and leaves reference
// their right sibling only through these handles, so a node is destroyed by
// returning its slot to the free list.
package store

import (
	"errors"
	"fmt"

	"clusterdb/internal/base"
	"clusterdb/internal/freelist"
)

var ErrSlotOccupied = errors.New("store: page slot already occupied")

// Store owns every node of one tree
type Store struct {
	nodes    []*base.Node // indexed by PageID; slot 0 is the nil handle
	freelist *freelist.Freelist
	live     int
}

// New creates an empty store
func New() *Store {
	return &Store{
		nodes:    make([]*base.Node, 1),
		freelist: freelist.New(),
	}
}

// Allocate returns a new empty node, reusing a freed slot when one exists
func (s *Store) Allocate(leaf bool) *base.Node {
	id := s.freelist.Allocate()
	if id == 0 {
		id = base.PageID(len(s.nodes))
		s.nodes = append(s.nodes, nil)
	}

	var n *base.Node
	if leaf {
		n = base.NewLeaf(id)
	} else {
		n = base.NewBranch(id)
	}
	s.nodes[id] = n
	s.live++
	return n
}

// Get returns the node for id, or nil if the slot is empty
func (s *Store) Get(id base.PageID) *base.Node {
	if id == 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// Free destroys the node at id and makes the slot reusable
func (s *Store) Free(id base.PageID) {
	n := s.Get(id)
	if n == nil {
		return
	}
	n.Reset()
	s.nodes[id] = nil
	s.freelist.Free(id)
	s.live--
}

// Len returns the number of live nodes
func (s *Store) Len() int {
	return s.live
}

// ForEach calls fn for every live node in ascending PageID order
func (s *Store) ForEach(fn func(n *base.Node) error) error {
	for _, n := range s.nodes[1:] {
		if n == nil {
			continue
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// Each calls fn for every live node in ascending PageID order
func (s *Store) Each(fn func(n *base.Node)) {
	for _, n := range s.nodes[1:] {
		if n != nil {
			fn(n)
		}
	}
}

// Place installs a decoded node at its own PageID. Used when loading page
// images; call Seal once every node is placed.
func (s *Store) Place(n *base.Node) error {
	if n.PageID == 0 {
		return fmt.Errorf("%w: page id 0 is reserved", ErrSlotOccupied)
	}
	for int(n.PageID) >= len(s.nodes) {
		s.nodes = append(s.nodes, nil)
	}
	if s.nodes[n.PageID] != nil {
		return fmt.Errorf("%w: page %d", ErrSlotOccupied, n.PageID)
	}
	s.nodes[n.PageID] = n
	s.live++
	return nil
}

// Seal rebuilds the free list from the empty slots left after Place
func (s *Store) Seal() {
	var free []base.PageID
	for id := 1; id < len(s.nodes); id++ {
		if s.nodes[id] == nil {
			free = append(free, base.PageID(id))
		}
	}
	s.freelist.Reset(free)
}
