package clusterdb

import (
	"bytes"
	"fmt"

	"clusterdb/internal/bptree"
)

// IndexStats describes the shape of one index's tree
type IndexStats struct {
	Entries  int
	Height   int
	Leaves   int
	Branches int
}

// TableStats describes a table and its indexes
type TableStats struct {
	Rows        int
	Primary     IndexStats
	Secondary   map[string]IndexStats
	CacheHits   uint64
	CacheMisses uint64
	CachedRows  int
}

func indexStats(tree *bptree.Tree) IndexStats {
	s := tree.Stats()
	return IndexStats{Entries: s.Count, Height: s.Height, Leaves: s.Leaves, Branches: s.Branches}
}

// Stats returns row, tree and cache statistics
func (t *Table) Stats() TableStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := TableStats{
		Rows:      t.primary.Len(),
		Primary:   indexStats(t.primary.tree),
		Secondary: make(map[string]IndexStats, len(t.indexes)),
	}
	for _, idx := range t.indexes {
		stats.Secondary[idx.name] = indexStats(idx.tree)
	}
	stats.CacheHits, stats.CacheMisses, stats.CachedRows = t.primary.cache.stats()
	return stats
}

// Check verifies the structure of every index tree and that the secondary
// indexes and the rows agree: each row has exactly one entry in every index
// and each entry names a stored row.
func (t *Table) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.check()
}

func (t *Table) check() error {
	if err := t.primary.tree.Check(); err != nil {
		return fmt.Errorf("clustered index: %w", err)
	}
	for _, idx := range t.indexes {
		if err := idx.tree.Check(); err != nil {
			return fmt.Errorf("index %s: %w", idx.name, err)
		}
	}

	// Every row has its entries
	var err error
	t.primary.tree.Ascend(bptree.Unbounded, bptree.Unbounded, func(pk, enc []byte) bool {
		var row Row
		row, err = t.schema.decodeRow(enc)
		if err != nil {
			return false
		}
		for _, idx := range t.indexes {
			var key []byte
			key, err = idx.entryKey(row, pk)
			if err != nil {
				return false
			}
			stored, getErr := idx.tree.Get(key)
			if getErr != nil || !bytes.Equal(stored, pk) {
				err = t.corruption(idx.name, pk, "index entry not found")
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	// Every entry names a row
	for _, idx := range t.indexes {
		idx.tree.Ascend(bptree.Unbounded, bptree.Unbounded, func(_, pk []byte) bool {
			if !t.primary.tree.Has(pk) {
				err = t.corruption(idx.name, pk, "row not found")
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if idx.Len() != t.primary.Len() {
			return t.corruption(idx.name, nil, fmt.Sprintf("%d entries for %d rows", idx.Len(), t.primary.Len()))
		}
	}
	return nil
}
