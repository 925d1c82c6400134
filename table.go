// Package clusterdb is an in-process table store organised like InnoDB: a
// clustered B+ tree keyed by primary key holds the rows, and any number of
// secondary B+ trees map column values to primary keys. A query on a
// secondary column resolves primary keys first and then fetches each row from
// the clustered index.
//
// A Table allows one writer and many readers at a time. Reads collect their
// whole result under the read lock, so each read observes the table as of
// its start.
package clusterdb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"clusterdb/internal/bptree"
)

// Table coordinates one clustered index and its secondary indexes, keeping
// every index consistent with the rows on each write
type Table struct {
	mu sync.RWMutex

	name    string
	schema  *schema
	options Options
	log     Logger

	primary *ClusteredIndex
	indexes []*SecondaryIndex // declaration order
	byName  map[string]*SecondaryIndex
}

// NewTable creates an empty table
func NewTable(name string, s Schema, opts ...Option) (*Table, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	compiled, err := compileSchema(s)
	if err != nil {
		return nil, err
	}
	primary, err := newClusteredIndex(compiled, options.order, options.rowCacheSize)
	if err != nil {
		return nil, err
	}

	return &Table{
		name:    name,
		schema:  compiled,
		options: options,
		log:     options.logger,
		primary: primary,
		byName:  make(map[string]*SecondaryIndex),
	}, nil
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// Primary returns the clustered index. Writes made through it bypass the
// secondary indexes.
func (t *Table) Primary() *ClusteredIndex {
	return t.primary
}

// DeclareSecondaryIndex adds an index over columns. Existing rows are
// indexed before the call returns; if they violate a unique index the index
// is not added.
func (t *Table) DeclareSecondaryIndex(name string, columns []string, unique bool) (*SecondaryIndex, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	idx, err := newSecondaryIndex(t.schema, name, columns, unique, t.options.order)
	if err != nil {
		return nil, fmt.Errorf("declare index %s: %w", name, err)
	}

	// Backfill from existing rows
	var backfillErr error
	t.primary.tree.Ascend(bptree.Unbounded, bptree.Unbounded, func(pk, enc []byte) bool {
		row, err := t.schema.decodeRow(enc)
		if err != nil {
			backfillErr = err
			return false
		}
		key, err := idx.entryKey(row, pk)
		if err != nil {
			backfillErr = err
			return false
		}
		if _, err := idx.insert(key, pk); err != nil {
			backfillErr = err
			return false
		}
		return true
	})
	if backfillErr != nil {
		return nil, fmt.Errorf("declare index %s: backfill: %w", name, backfillErr)
	}

	t.indexes = append(t.indexes, idx)
	t.byName[name] = idx
	t.log.Info("declared secondary index",
		"table", t.name,
		"index", name,
		"columns", idx.columns,
		"unique", unique,
		"backfilled", idx.Len())
	return idx, nil
}

// DropSecondaryIndex removes an index
func (t *Table) DropSecondaryIndex(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	delete(t.byName, name)
	t.indexes = slices.DeleteFunc(t.indexes, func(s *SecondaryIndex) bool { return s == idx })
	t.log.Info("dropped secondary index", "table", t.name, "index", name)
	return nil
}

// Indexes returns the secondary indexes in declaration order
func (t *Table) Indexes() []*SecondaryIndex {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.indexes)
}

// Index returns the named secondary index
func (t *Table) Index(name string) (*SecondaryIndex, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index(name)
}

func (t *Table) index(name string) (*SecondaryIndex, error) {
	idx, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return idx, nil
}

// Get returns the row stored under pk
func (t *Table) Get(pk ...any) (Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.Get(Key(pk))
}

// RangeByPK returns the rows whose primary keys fall within [lo, hi]
func (t *Table) RangeByPK(lo, hi Bound) ([]Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.RangeByPK(lo, hi)
}

// Scan calls fn for every row in primary key order until fn returns false.
// fn runs under the table's read lock and must not write to the table.
func (t *Table) Scan(fn func(Row) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var scanErr error
	t.primary.tree.Ascend(bptree.Unbounded, bptree.Unbounded, func(_, enc []byte) bool {
		row, err := t.schema.decodeRow(enc)
		if err != nil {
			scanErr = err
			return false
		}
		return fn(row)
	})
	return scanErr
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.primary.Len()
}

// LookupPrimaryKeys returns the primary keys whose rows hold values in the
// named index's columns. This is the first half of a point query.
func (t *Table) LookupPrimaryKeys(index string, values ...any) ([]Key, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, err := t.index(index)
	if err != nil {
		return nil, err
	}
	return idx.Lookup(values...)
}

// PointQueryByColumn returns the rows whose columns in the named index equal
// values: the index yields primary keys, each of which is then fetched from
// the clustered index. Rows are ordered by primary key.
func (t *Table) PointQueryByColumn(index string, values ...any) ([]Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, err := t.index(index)
	if err != nil {
		return nil, err
	}
	pks, err := idx.lookup(Key(values))
	if err != nil {
		return nil, err
	}
	return t.fetch(idx, pks)
}

// RangeQueryByColumn returns the rows whose columns in the named index fall
// within [lo, hi], ordered by those columns and then by primary key
func (t *Table) RangeQueryByColumn(index string, lo, hi Bound) ([]Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, err := t.index(index)
	if err != nil {
		return nil, err
	}
	pks, err := idx.lookupRange(lo, hi)
	if err != nil {
		return nil, err
	}
	return t.fetch(idx, pks)
}

// fetch resolves encoded primary keys against the clustered index. A key
// with no row means the index is corrupt.
func (t *Table) fetch(idx *SecondaryIndex, pks [][]byte) ([]Row, error) {
	rows := make([]Row, 0, len(pks))
	for _, pk := range pks {
		row, err := t.primary.get(pk)
		if errors.Is(err, ErrNotFound) {
			return nil, t.corruption(idx.name, pk, "row not found")
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Table) corruption(index string, pk []byte, detail string) error {
	key, _ := decodeKey(pk)
	err := &CorruptionError{Index: index, PrimaryKey: key, Detail: detail}
	t.log.Error("index corruption detected",
		"table", t.name,
		"index", index,
		"pk", []any(key),
		"detail", detail)
	return err
}

// Insert adds a row. The clustered index is written first and then every
// secondary index in declaration order; if any step fails, all of them are
// undone and the triggering error is returned. Inserting a row identical to
// the stored one is a no-op.
func (t *Table) Insert(row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.schema.prepare(row)
	if err != nil {
		return err
	}

	var undo undoLog
	inserted, err := t.primary.insert(rec)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	undo.push(func() error {
		_, err := t.primary.remove(rec.pk)
		return err
	})

	if err := t.insertEntries(&undo, rec.row, rec.pk); err != nil {
		t.rollback(&undo, "insert", err)
		return err
	}
	return nil
}

// Delete removes the row stored under pk together with its index entries
func (t *Table) Delete(pk ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pkEnc, err := t.schema.encodeKey(t.schema.pk, Key(pk), false)
	if err != nil {
		return err
	}
	old, err := t.storedRow(pkEnc)
	if err != nil {
		return err
	}

	var undo undoLog
	if err := t.removeRow(&undo, pkEnc, old); err != nil {
		t.rollback(&undo, "delete", err)
		return err
	}
	return nil
}

// Update replaces the row stored under pk. Only indexes whose column values
// change are touched. When row carries a different primary key, the old row
// is deleted and row is inserted under its own key. A failed update leaves
// the table unchanged.
func (t *Table) Update(pk Key, row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pkEnc, err := t.schema.encodeKey(t.schema.pk, pk, false)
	if err != nil {
		return err
	}
	old, err := t.storedRow(pkEnc)
	if err != nil {
		return err
	}
	rec, err := t.schema.prepare(row)
	if err != nil {
		return err
	}

	var undo undoLog
	if bytes.Equal(rec.pk, pkEnc) {
		err = t.updateInPlace(&undo, old, rec)
	} else {
		err = t.move(&undo, pkEnc, old, rec)
	}
	if err != nil {
		t.rollback(&undo, "update", err)
		return err
	}
	return nil
}

func (t *Table) updateInPlace(undo *undoLog, old *record, rec *record) error {
	for _, idx := range t.indexes {
		oldKey, err := idx.entryKey(old.row, old.pk)
		if err != nil {
			return err
		}
		newKey, err := idx.entryKey(rec.row, rec.pk)
		if err != nil {
			return err
		}
		if bytes.Equal(oldKey, newKey) {
			continue
		}

		if err := idx.remove(oldKey, old.pk); err != nil {
			return t.entryError(idx, old.pk, err)
		}
		undo.push(func() error {
			_, err := idx.insert(oldKey, old.pk)
			return err
		})

		inserted, err := idx.insert(newKey, rec.pk)
		if err != nil {
			return err
		}
		if inserted {
			undo.push(func() error { return idx.remove(newKey, rec.pk) })
		}
	}

	prev := t.primary.put(rec.pk, rec.encode)
	undo.push(func() error {
		t.primary.put(old.pk, prev)
		return nil
	})
	return nil
}

// move re-keys a row whose primary key changed
func (t *Table) move(undo *undoLog, pk []byte, old *record, rec *record) error {
	if t.primary.tree.Has(rec.pk) {
		return fmt.Errorf("%w: %v", ErrPrimaryKeyViolation, []any(t.schema.primaryKey(rec.row)))
	}
	if err := t.removeRow(undo, pk, old); err != nil {
		return err
	}

	if _, err := t.primary.insert(rec); err != nil {
		return err
	}
	undo.push(func() error {
		_, err := t.primary.remove(rec.pk)
		return err
	})
	return t.insertEntries(undo, rec.row, rec.pk)
}

func (t *Table) insertEntries(undo *undoLog, row Row, pk []byte) error {
	for _, idx := range t.indexes {
		key, err := idx.entryKey(row, pk)
		if err != nil {
			return err
		}
		inserted, err := idx.insert(key, pk)
		if err != nil {
			return err
		}
		if inserted {
			undo.push(func() error { return idx.remove(key, pk) })
		}
	}
	return nil
}

// removeRow removes every index entry of a stored row and then the row
func (t *Table) removeRow(undo *undoLog, pk []byte, old *record) error {
	for _, idx := range t.indexes {
		key, err := idx.entryKey(old.row, pk)
		if err != nil {
			return err
		}
		if err := idx.remove(key, pk); err != nil {
			return t.entryError(idx, pk, err)
		}
		undo.push(func() error {
			_, err := idx.insert(key, pk)
			return err
		})
	}

	if _, err := t.primary.remove(pk); err != nil {
		return err
	}
	undo.push(func() error {
		t.primary.put(pk, old.encode)
		return nil
	})
	return nil
}

// entryError reports a stored row whose index entry is missing
func (t *Table) entryError(idx *SecondaryIndex, pk []byte, err error) error {
	if errors.Is(err, ErrNotFound) {
		return t.corruption(idx.name, pk, "index entry not found")
	}
	return err
}

// storedRow loads the row under pk as a record
func (t *Table) storedRow(pk []byte) (*record, error) {
	enc, err := t.primary.tree.Get(pk)
	if err != nil {
		return nil, ErrNotFound
	}
	row, err := t.schema.decodeRow(enc)
	if err != nil {
		return nil, err
	}
	return &record{row: row, pk: pk, encode: enc}, nil
}

func (t *Table) rollback(undo *undoLog, op string, cause error) {
	if undo.len() == 0 {
		return
	}
	t.log.Warn("rolling back write",
		"table", t.name,
		"op", op,
		"steps", undo.len(),
		"error", cause)
	for _, err := range undo.rollback() {
		t.log.Error("undo step failed", "table", t.name, "op", op, "error", err)
	}
}

// undoLog records compensating actions for the steps of one write
type undoLog struct {
	steps []func() error
}

func (u *undoLog) push(step func() error) {
	u.steps = append(u.steps, step)
}

func (u *undoLog) len() int {
	return len(u.steps)
}

// rollback runs the recorded steps newest first and returns their failures
func (u *undoLog) rollback() []error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	return errs
}
