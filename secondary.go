package clusterdb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"clusterdb/internal/bptree"
	"clusterdb/internal/keycodec"
)

// SecondaryIndex maps the values of one or more columns to primary keys.
//
// Entries of a non-unique index are keyed by the encoded column values
// followed by the encoded primary key, so equal values are ordered by
// primary key and an equality lookup is a prefix scan. A unique index keys
// entries by the column values alone, except when one of them is null:
// nulls never collide, and such entries use the non-unique layout.
type SecondaryIndex struct {
	name    string
	columns []string
	cols    []int
	unique  bool

	schema *schema
	tree   *bptree.Tree
}

func newSecondaryIndex(s *schema, name string, columns []string, unique bool, order int) (*SecondaryIndex, error) {
	cols, err := s.resolve(columns)
	if err != nil {
		return nil, err
	}
	tree, err := bptree.New(order)
	if err != nil {
		return nil, err
	}
	return &SecondaryIndex{
		name:    name,
		columns: slices.Clone(columns),
		cols:    cols,
		unique:  unique,
		schema:  s,
		tree:    tree,
	}, nil
}

// Name returns the index name
func (idx *SecondaryIndex) Name() string {
	return idx.name
}

// Columns returns the indexed column names in key order
func (idx *SecondaryIndex) Columns() []string {
	return slices.Clone(idx.columns)
}

// Unique reports whether the index rejects duplicate values
func (idx *SecondaryIndex) Unique() bool {
	return idx.unique
}

// Len returns the number of entries
func (idx *SecondaryIndex) Len() int {
	return idx.tree.Len()
}

// Lookup returns the primary keys of the entries whose column values equal
// values, in primary key order
func (idx *SecondaryIndex) Lookup(values ...any) ([]Key, error) {
	pks, err := idx.lookup(Key(values))
	if err != nil {
		return nil, err
	}
	return decodeKeys(pks)
}

func (idx *SecondaryIndex) lookup(values Key) ([][]byte, error) {
	enc, err := idx.schema.encodeKey(idx.cols, values, false)
	if err != nil {
		return nil, err
	}

	if idx.unique && !hasNull(values) {
		pk, err := idx.tree.Get(enc)
		if errors.Is(err, bptree.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return [][]byte{pk}, nil
	}

	return idx.scan(bptree.Inclusive(enc), bptree.Exclusive(keycodec.PrefixEnd(enc))), nil
}

// LookupRange returns the primary keys of the entries whose column values
// fall within [lo, hi], ordered by values and then primary key. Bounds may
// name a prefix of the indexed columns.
func (idx *SecondaryIndex) LookupRange(lo, hi Bound) ([]Key, error) {
	pks, err := idx.lookupRange(lo, hi)
	if err != nil {
		return nil, err
	}
	return decodeKeys(pks)
}

func (idx *SecondaryIndex) lookupRange(lo, hi Bound) ([][]byte, error) {
	blo, bhi, err := idx.schema.encodeRange(idx.cols, lo, hi)
	if err != nil {
		return nil, err
	}
	return idx.scan(blo, bhi), nil
}

func (idx *SecondaryIndex) scan(lo, hi bptree.Bound) [][]byte {
	var pks [][]byte
	cur := idx.tree.Cursor(lo, hi)
	for cur.Next() {
		pks = append(pks, cur.Value())
	}
	return pks
}

// InsertEntry adds the entry (values, pk). Inserting an existing entry is a
// no-op; values already held by another primary key in a unique index fail
// with ErrUniqueConstraintViolation.
func (idx *SecondaryIndex) InsertEntry(values, pk Key) error {
	key, pkEnc, err := idx.entry(values, pk)
	if err != nil {
		return err
	}
	_, err = idx.insert(key, pkEnc)
	return err
}

// RemoveEntry removes exactly the entry (values, pk)
func (idx *SecondaryIndex) RemoveEntry(values, pk Key) error {
	key, pkEnc, err := idx.entry(values, pk)
	if err != nil {
		return err
	}
	return idx.remove(key, pkEnc)
}

// entry encodes a caller supplied entry
func (idx *SecondaryIndex) entry(values, pk Key) ([]byte, []byte, error) {
	enc, err := idx.schema.encodeKey(idx.cols, values, false)
	if err != nil {
		return nil, nil, err
	}
	pkEnc, err := idx.schema.encodeKey(idx.schema.pk, pk, false)
	if err != nil {
		return nil, nil, err
	}
	return idx.layout(enc, hasNull(values), pkEnc), pkEnc, nil
}

// entryKey returns the tree key of a normalized row's entry
func (idx *SecondaryIndex) entryKey(row Row, pk []byte) ([]byte, error) {
	enc, err := idx.schema.encodeColumns(idx.cols, row)
	if err != nil {
		return nil, err
	}
	null := false
	for _, col := range idx.cols {
		if row[idx.schema.columns[col].Name] == nil {
			null = true
			break
		}
	}
	return idx.layout(enc, null, pk), nil
}

func (idx *SecondaryIndex) layout(values []byte, null bool, pk []byte) []byte {
	if idx.unique && !null {
		return values
	}
	key := make([]byte, 0, len(values)+len(pk))
	key = append(key, values...)
	return append(key, pk...)
}

// insert reports whether a new entry was stored
func (idx *SecondaryIndex) insert(key, pk []byte) (bool, error) {
	err := idx.tree.Insert(key, pk)
	if errors.Is(err, bptree.ErrKeyExists) {
		existing, getErr := idx.tree.Get(key)
		if getErr == nil && bytes.Equal(existing, pk) {
			return false, nil
		}
		return false, fmt.Errorf("%w: index %s", ErrUniqueConstraintViolation, idx.name)
	}
	return err == nil, err
}

func (idx *SecondaryIndex) remove(key, pk []byte) error {
	existing, err := idx.tree.Get(key)
	if errors.Is(err, bptree.ErrKeyNotFound) || (err == nil && !bytes.Equal(existing, pk)) {
		return fmt.Errorf("%w: entry in index %s", ErrNotFound, idx.name)
	}
	if err != nil {
		return err
	}
	_, err = idx.tree.Delete(key)
	return err
}

func hasNull(values Key) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

func decodeKeys(encoded [][]byte) ([]Key, error) {
	keys := make([]Key, 0, len(encoded))
	for _, enc := range encoded {
		k, err := decodeKey(enc)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
