package clusterdb

import (
	"bytes"
	"errors"
	"fmt"

	"clusterdb/internal/bptree"
)

// ClusteredIndex stores full rows in a B+ tree keyed by primary key.
//
// Every method is safe for concurrent use, and the row cache never serves a
// row older than the last completed write. Writes made directly on the
// clustered index bypass the table's secondary indexes.
type ClusteredIndex struct {
	schema *schema
	tree   *bptree.Tree
	cache  *rowCache
}

func newClusteredIndex(s *schema, order, cacheSize int) (*ClusteredIndex, error) {
	tree, err := bptree.New(order)
	if err != nil {
		return nil, err
	}
	cache, err := newRowCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &ClusteredIndex{schema: s, tree: tree, cache: cache}, nil
}

// Get returns the row stored under pk
func (c *ClusteredIndex) Get(pk Key) (Row, error) {
	enc, err := c.schema.encodeKey(c.schema.pk, pk, false)
	if err != nil {
		return nil, err
	}
	return c.get(enc)
}

func (c *ClusteredIndex) get(pk []byte) (Row, error) {
	if row, ok := c.cache.get(pk); ok {
		return row, nil
	}
	gen := c.cache.generation()
	enc, err := c.tree.Get(pk)
	if errors.Is(err, bptree.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row, err := c.schema.decodeRow(enc)
	if err != nil {
		return nil, err
	}
	c.cache.fill(gen, pk, row)
	return row, nil
}

// RangeByPK returns the rows whose primary keys fall within [lo, hi] in
// primary key order
func (c *ClusteredIndex) RangeByPK(lo, hi Bound) ([]Row, error) {
	blo, bhi, err := c.schema.encodeRange(c.schema.pk, lo, hi)
	if err != nil {
		return nil, err
	}

	var rows []Row
	cur := c.tree.Cursor(blo, bhi)
	for cur.Next() {
		row, err := c.schema.decodeRow(cur.Value())
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Insert adds row under its primary key. Inserting a row identical to the
// stored one is a no-op; a different row under the same key is rejected
// with ErrPrimaryKeyViolation.
func (c *ClusteredIndex) Insert(row Row) error {
	rec, err := c.schema.prepare(row)
	if err != nil {
		return err
	}
	_, err = c.insert(rec)
	return err
}

// insert reports whether a new row was stored
func (c *ClusteredIndex) insert(rec *record) (bool, error) {
	err := c.tree.Insert(rec.pk, rec.encode)
	if errors.Is(err, bptree.ErrKeyExists) {
		existing, getErr := c.tree.Get(rec.pk)
		if getErr == nil && bytes.Equal(existing, rec.encode) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrPrimaryKeyViolation, []any(c.schema.primaryKey(rec.row)))
	}
	if err != nil {
		return false, err
	}
	c.cache.remove(rec.pk)
	return true, nil
}

// Put stores row under its primary key, replacing any previous row
func (c *ClusteredIndex) Put(row Row) error {
	rec, err := c.schema.prepare(row)
	if err != nil {
		return err
	}
	c.put(rec.pk, rec.encode)
	return nil
}

// put stores an encoded row and returns the encoding it replaced
func (c *ClusteredIndex) put(pk, enc []byte) []byte {
	old, _ := c.tree.Put(pk, enc)
	c.cache.remove(pk)
	return old
}

// Remove deletes the row stored under pk and returns it
func (c *ClusteredIndex) Remove(pk Key) (Row, error) {
	enc, err := c.schema.encodeKey(c.schema.pk, pk, false)
	if err != nil {
		return nil, err
	}
	old, err := c.remove(enc)
	if err != nil {
		return nil, err
	}
	return c.schema.decodeRow(old)
}

func (c *ClusteredIndex) remove(pk []byte) ([]byte, error) {
	old, err := c.tree.Delete(pk)
	c.cache.remove(pk)
	if errors.Is(err, bptree.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return old, err
}

// Len returns the number of rows
func (c *ClusteredIndex) Len() int {
	return c.tree.Len()
}
