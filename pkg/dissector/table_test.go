package dissector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

func TestNewTable_RoundTrip(t *testing.T) {
	fields := []Field{
		NewField("A", "p.a", host.KindUint8, host.BaseDec),
		NewField("B", "p.b", host.KindUint16, host.BaseHex),
		NewField("C", "p.c", host.KindInt32, host.BaseDec),
	}
	indices := []host.FieldIndex{40, 41, 57}
	trees := []host.TreeIndex{5, 9}

	table, err := NewTable(fields, indices, trees)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 2, table.TreeCount())

	for i, f := range fields {
		assert.Equal(t, indices[i], table.Field(f))
		idx, err := table.Lookup(f.Abbrev)
		require.NoError(t, err)
		assert.Equal(t, indices[i], idx)
	}
	assert.Equal(t, host.TreeIndex(5), table.Tree(0))
	assert.Equal(t, host.TreeIndex(9), table.Tree(1))
}

func TestNewTable_Rejects(t *testing.T) {
	a := NewField("A", "p.a", host.KindUint8, host.BaseDec)
	b := NewField("B", "p.b", host.KindUint8, host.BaseDec)

	_, err := NewTable([]Field{a, b}, []host.FieldIndex{1}, nil)
	assert.ErrorIs(t, err, core.ErrHostContract)

	_, err = NewTable([]Field{a}, []host.FieldIndex{host.Unassigned}, nil)
	assert.ErrorIs(t, err, core.ErrHostContract)

	_, err = NewTable([]Field{a, a}, []host.FieldIndex{1, 2}, nil)
	assert.ErrorIs(t, err, core.ErrDuplicateAbbrev)

	_, err = NewTable([]Field{a, b}, []host.FieldIndex{1, 1}, nil)
	assert.ErrorIs(t, err, core.ErrHostContract)

	_, err = NewTable([]Field{a}, []host.FieldIndex{1}, []host.TreeIndex{-1})
	assert.ErrorIs(t, err, core.ErrHostContract)
}

func TestTable_UndeclaredAlwaysFails(t *testing.T) {
	a := NewField("A", "p.a", host.KindUint8, host.BaseDec)
	table, err := NewTable([]Field{a}, []host.FieldIndex{1}, []host.TreeIndex{2})
	require.NoError(t, err)

	_, err = table.Lookup("p.missing")
	assert.ErrorIs(t, err, core.ErrUndeclaredField)

	assert.PanicsWithError(t, `field Missing (p.missing): dissect: field was not declared at registration`, func() {
		table.Field(NewField("Missing", "p.missing", host.KindUint8, host.BaseDec))
	})
	// Same abbreviation, different kind: not the declared field.
	assert.Panics(t, func() {
		table.Field(NewField("A", "p.a", host.KindUint16, host.BaseDec))
	})
	assert.Panics(t, func() { table.Tree(1) })
	assert.Panics(t, func() { table.Tree(-1) })
}
