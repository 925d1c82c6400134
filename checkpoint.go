package clusterdb

import (
	"fmt"
	"io"
	"slices"

	"clusterdb/internal/base"
	"clusterdb/internal/bptree"
	"clusterdb/internal/keycodec"
)

const (
	sectionTable = "table"
	sectionIndex = "index"
)

// Checkpoint writes the page images of every index of the table: a table
// section page, the clustered index, and then for each secondary index a
// section page naming it followed by its pages. Every page is a multiple of
// base.PageSize bytes.
func (t *Table) Checkpoint(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := writeSection(w, sectionTable, t.name, int64(len(t.indexes))); err != nil {
		return err
	}
	if _, err := t.primary.tree.WriteTo(w); err != nil {
		return fmt.Errorf("checkpoint clustered index: %w", err)
	}

	for _, idx := range t.indexes {
		fields := []any{sectionIndex, idx.name, idx.unique}
		for _, col := range idx.columns {
			fields = append(fields, col)
		}
		if err := writeSection(w, fields...); err != nil {
			return err
		}
		if _, err := idx.tree.WriteTo(w); err != nil {
			return fmt.Errorf("checkpoint index %s: %w", idx.name, err)
		}
	}
	return nil
}

// Restore replaces the table's contents with a checkpoint. The table must
// declare the same secondary indexes, in the same order, as the table that
// wrote it. The restored indexes are checked for consistency before they are
// installed; on any error the table is left unchanged.
func (t *Table) Restore(r io.Reader) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fields, err := readSection(r)
	if err != nil {
		return err
	}
	if len(fields) != 3 || fields[0] != sectionTable {
		return fmt.Errorf("%w: missing table section", ErrCheckpointMismatch)
	}
	if fields[1] != t.name {
		return fmt.Errorf("%w: checkpoint of table %v", ErrCheckpointMismatch, fields[1])
	}
	if fields[2] != int64(len(t.indexes)) {
		return fmt.Errorf("%w: checkpoint has %v indexes, table has %d", ErrCheckpointMismatch, fields[2], len(t.indexes))
	}

	primary, err := bptree.New(t.options.order)
	if err != nil {
		return err
	}
	if _, err := primary.ReadFrom(r); err != nil {
		return fmt.Errorf("restore clustered index: %w", err)
	}

	trees := make([]*bptree.Tree, len(t.indexes))
	for i, idx := range t.indexes {
		fields, err := readSection(r)
		if err != nil {
			return err
		}
		want := []any{sectionIndex, idx.name, idx.unique}
		for _, col := range idx.columns {
			want = append(want, col)
		}
		if !slices.Equal(fields, want) {
			return fmt.Errorf("%w: index %d is %v, table declares %v", ErrCheckpointMismatch, i, fields, want)
		}

		trees[i], err = bptree.New(t.options.order)
		if err != nil {
			return err
		}
		if _, err := trees[i].ReadFrom(r); err != nil {
			return fmt.Errorf("restore index %s: %w", idx.name, err)
		}
	}

	// Swap in, verify, and swap back on failure. The tree handles stay the
	// same so index handles held by readers remain valid.
	restored := append([]*bptree.Tree{primary}, trees...)
	live := []*bptree.Tree{t.primary.tree}
	for _, idx := range t.indexes {
		live = append(live, idx.tree)
	}
	if err := swapTrees(live, restored); err != nil {
		return err
	}
	t.primary.cache.purge()

	if err := t.check(); err != nil {
		if swapErr := swapTrees(live, restored); swapErr != nil {
			t.log.Error("restore swap back failed", "table", t.name, "error", swapErr)
		}
		t.primary.cache.purge()
		return fmt.Errorf("restore: %w", err)
	}

	t.log.Info("restored table from checkpoint",
		"table", t.name,
		"rows", t.primary.Len(),
		"indexes", len(t.indexes))
	return nil
}

func swapTrees(live, restored []*bptree.Tree) error {
	for i := range live {
		if err := live[i].Swap(restored[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(w io.Writer, fields ...any) error {
	body, err := keycodec.Encode(fields...)
	if err != nil {
		return err
	}
	page, err := base.NewSectionPage(body)
	if err != nil {
		return err
	}
	_, err = page.WriteTo(w)
	return err
}

func readSection(r io.Reader) ([]any, error) {
	page, err := base.ReadPage(r)
	if err != nil {
		return nil, fmt.Errorf("read section: %w", err)
	}
	body, err := base.SectionBody(page)
	if err != nil {
		return nil, fmt.Errorf("read section: %w", err)
	}
	return keycodec.Decode(body)
}
