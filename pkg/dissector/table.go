package dissector

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

type tableEntry struct {
	field Field
	index host.FieldIndex
}

// Table binds declared fields and trees to their engine indices. It is built
// once after registration and only read afterwards, so it needs no locking.
type Table struct {
	entries  []tableEntry
	byAbbrev map[string]int
	byIndex  map[host.FieldIndex]int
	trees    []host.TreeIndex
}

// NewTable pairs fields with the indices the engine returned for them, in
// submission order.
func NewTable(fields []Field, indices []host.FieldIndex, trees []host.TreeIndex) (*Table, error) {
	if len(fields) != len(indices) {
		return nil, fmt.Errorf("%d fields but %d indices: %w", len(fields), len(indices), core.ErrHostContract)
	}

	t := &Table{
		entries:  make([]tableEntry, 0, len(fields)),
		byAbbrev: make(map[string]int, len(fields)),
		byIndex:  make(map[host.FieldIndex]int, len(fields)),
		trees:    make([]host.TreeIndex, len(trees)),
	}
	for i, f := range fields {
		idx := indices[i]
		if idx < 0 {
			return nil, fmt.Errorf("field %q got index %d: %w", f.Abbrev, idx, core.ErrHostContract)
		}
		if _, dup := t.byAbbrev[f.Abbrev]; dup {
			return nil, fmt.Errorf("field %q: %w", f.Abbrev, core.ErrDuplicateAbbrev)
		}
		if prev, dup := t.byIndex[idx]; dup {
			return nil, fmt.Errorf("fields %q and %q share index %d: %w",
				t.entries[prev].field.Abbrev, f.Abbrev, idx, core.ErrHostContract)
		}
		t.byAbbrev[f.Abbrev] = len(t.entries)
		t.byIndex[idx] = len(t.entries)
		t.entries = append(t.entries, tableEntry{field: f, index: idx})
	}
	for i, ett := range trees {
		if ett < 0 {
			return nil, fmt.Errorf("tree %d got index %d: %w", i, ett, core.ErrHostContract)
		}
		t.trees[i] = ett
	}
	return t, nil
}

// Lookup returns the index registered for abbrev.
func (t *Table) Lookup(abbrev string) (host.FieldIndex, error) {
	pos, ok := t.byAbbrev[abbrev]
	if !ok {
		return host.Unassigned, fmt.Errorf("field %q: %w", abbrev, core.ErrUndeclaredField)
	}
	return t.entries[pos].index, nil
}

// Field returns the index of a declared field. A field that was never
// declared is a bug in the dissector, so Field panics instead of returning
// a default.
func (t *Table) Field(f Field) host.FieldIndex {
	pos, ok := t.byAbbrev[f.Abbrev]
	if !ok || t.entries[pos].field.Kind != f.Kind {
		panic(fmt.Errorf("field %s: %w", f, core.ErrUndeclaredField))
	}
	return t.entries[pos].index
}

// Tree returns the index registered for a subtree fold; panics when id was
// not declared.
func (t *Table) Tree(id TreeID) host.TreeIndex {
	if id < 0 || int(id) >= len(t.trees) {
		panic(fmt.Errorf("tree %d of %d: %w", id, len(t.trees), core.ErrUndeclaredTree))
	}
	return t.trees[id]
}

func (t *Table) Len() int       { return len(t.entries) }
func (t *Table) TreeCount() int { return len(t.trees) }
