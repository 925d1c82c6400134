package freelist

import (
	"sort"

	"clusterdb/internal/base"
)

// Freelist tracks node store slots released by merges and root collapses so
// they can be handed out again before the store grows.
type Freelist struct {
	freed []base.PageID            // LIFO stack of reusable IDs
	index map[base.PageID]struct{} // membership, guards against double free
}

// New creates a new Freelist with empty state
func New() *Freelist {
	return &Freelist{
		index: make(map[base.PageID]struct{}),
	}
}

// Allocate returns a free page ID, or 0 if none available.
func (f *Freelist) Allocate() base.PageID {
	if len(f.freed) == 0 {
		return 0
	}

	id := f.freed[len(f.freed)-1]
	f.freed = f.freed[:len(f.freed)-1]
	delete(f.index, id)
	return id
}

// Free adds a page ID to the free list. Freeing an ID twice is a no-op.
func (f *Freelist) Free(id base.PageID) {
	if _, exists := f.index[id]; exists {
		return
	}
	f.index[id] = struct{}{}
	f.freed = append(f.freed, id)
}

// Contains reports whether id is currently free
func (f *Freelist) Contains(id base.PageID) bool {
	_, ok := f.index[id]
	return ok
}

// Len returns the number of free IDs
func (f *Freelist) Len() int {
	return len(f.freed)
}

// Reset replaces the free set with ids. The highest ID is handed out first.
func (f *Freelist) Reset(ids []base.PageID) {
	sorted := append([]base.PageID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	f.freed = f.freed[:0]
	f.index = make(map[base.PageID]struct{}, len(sorted))
	for _, id := range sorted {
		f.Free(id)
	}
}
