package dissector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Reads(t *testing.T) {
	e := newFakeEngine()
	buf := NewBuffer(e, e.buffer([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}))

	assert.Equal(t, 9, buf.ReportedLength())
	assert.Equal(t, 4, buf.Remaining(5))
	assert.Equal(t, 0, buf.Remaining(9))
	assert.Equal(t, -1, buf.Remaining(10))
	assert.Equal(t, -1, buf.Remaining(-1))

	v8, err := buf.Uint8(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), v8)

	v16, err := buf.Uint16(0, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	v16, err = buf.Uint16(0, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v16)

	v32, err := buf.Uint32(1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x02030405), v32)

	v64, err := buf.Uint64(1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0203040506070809), v64)
}

func TestBuffer_Bounds(t *testing.T) {
	e := newFakeEngine()
	buf := NewBuffer(e, e.buffer([]byte{0xAA, 0xBB}))

	_, err := buf.Uint32(0, BigEndian)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = buf.Uint8(2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = buf.Bytes(-1, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = buf.Bytes(3, ToEnd)
	assert.ErrorIs(t, err, ErrInsufficientData)

	p, err := buf.Bytes(1, ToEnd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBB}, p)

	p, err = buf.Bytes(2, ToEnd)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestBuffer_Subset(t *testing.T) {
	e := newFakeEngine()
	buf := NewBuffer(e, e.buffer([]byte{0x00, 0x11, 0x22, 0x33}))

	sub, err := buf.Subset(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.ReportedLength())

	v, err := sub.Uint16(0, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1122), v)

	_, err = buf.Subset(3, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
