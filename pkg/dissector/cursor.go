package dissector

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Cursor walks a buffer for formats that are laid out sequentially. It only
// moves forward on successful extractions.
type Cursor struct {
	buf *Buffer
	off int
}

// NewCursor starts a cursor at offset.
func NewCursor(buf *Buffer, offset int) *Cursor {
	if offset < 0 {
		offset = 0
	}
	return &Cursor{buf: buf, off: offset}
}

func (c *Cursor) Offset() int { return c.off }

// Remaining returns the bytes left after the cursor.
func (c *Cursor) Remaining() int {
	if r := c.buf.Remaining(c.off); r > 0 {
		return r
	}
	return 0
}

// Skip moves the cursor n bytes forward.
func (c *Cursor) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("skip %d: %w", n, core.ErrConfigInvalid)
	}
	if _, err := c.buf.span(c.off, n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// Add adds field idx at the cursor and advances past it.
func (c *Cursor) Add(tree *ProtoTree, idx host.FieldIndex, length int, enc host.Encoding) (*ProtoItem, error) {
	n, err := c.buf.span(c.off, length)
	if err != nil {
		return nil, err
	}
	item, err := tree.AddItem(idx, c.buf, c.off, n, enc)
	if err != nil {
		return nil, err
	}
	c.off += n
	return item, nil
}

// AddUint is Add returning the decoded unsigned value.
func (c *Cursor) AddUint(tree *ProtoTree, idx host.FieldIndex, length int, enc host.Encoding) (*ProtoItem, uint64, error) {
	n, err := c.buf.span(c.off, length)
	if err != nil {
		return nil, 0, err
	}
	item, v, err := tree.AddItemUint(idx, c.buf, c.off, n, enc)
	if err != nil {
		return nil, 0, err
	}
	c.off += n
	return item, v, nil
}
