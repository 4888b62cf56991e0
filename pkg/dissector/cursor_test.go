package dissector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_AdvancesOnSuccess(t *testing.T) {
	e := newFakeEngine()
	table := boundTable(t)
	tree := NewProtoTree(e, e.tree())
	buf := NewBuffer(e, e.buffer([]byte{0x07, 0x00, 0x2A}))
	c := NewCursor(buf, 0)

	_, v, err := c.AddUint(tree, table.Field(byte0), 1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)
	assert.Equal(t, 1, c.Offset())

	_, err = c.Add(tree, table.Field(byte1), 2, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Offset())
	assert.Equal(t, 0, c.Remaining())

	_, _, err = c.AddUint(tree, table.Field(byte0), 1, BigEndian)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 3, c.Offset())
}

func TestCursor_Skip(t *testing.T) {
	e := newFakeEngine()
	buf := NewBuffer(e, e.buffer([]byte{1, 2, 3, 4}))
	c := NewCursor(buf, -5)
	assert.Equal(t, 0, c.Offset())

	require.NoError(t, c.Skip(3))
	assert.Equal(t, 1, c.Remaining())
	assert.ErrorIs(t, c.Skip(2), ErrInsufficientData)
	assert.Equal(t, 3, c.Offset())
	assert.Error(t, c.Skip(-1))
}
