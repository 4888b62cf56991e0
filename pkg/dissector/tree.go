package dissector

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// ProtoTree is a level of the output tree. A tree built on the null handle
// accepts every call, decodes values and checks bounds, but records nothing.
type ProtoTree struct {
	engine host.Engine
	handle host.Tree
}

// ProtoItem is one entry of the output tree.
type ProtoItem struct {
	engine host.Engine
	handle host.Item
}

// NewProtoTree wraps an engine tree handle.
func NewProtoTree(engine host.Engine, handle host.Tree) *ProtoTree {
	return &ProtoTree{engine: engine, handle: handle}
}

func (t *ProtoTree) Handle() host.Tree { return t.handle }

// IsNull reports whether the engine is not building a tree.
func (t *ProtoTree) IsNull() bool { return t.handle == 0 }

// AddItem decodes length bytes at start as field idx and appends the item.
func (t *ProtoTree) AddItem(idx host.FieldIndex, buf *Buffer, start, length int, enc host.Encoding) (*ProtoItem, error) {
	n, err := buf.span(start, length)
	if err != nil {
		return nil, err
	}
	item, err := t.engine.AddItem(t.handle, idx, buf.handle, start, n, enc)
	if err != nil {
		return nil, err
	}
	return t.item(item), nil
}

// AddItemUint is AddItem for unsigned fields that also returns the value.
func (t *ProtoTree) AddItemUint(idx host.FieldIndex, buf *Buffer, start, length int, enc host.Encoding) (*ProtoItem, uint64, error) {
	n, err := buf.span(start, length)
	if err != nil {
		return nil, 0, err
	}
	item, v, err := t.engine.AddItemRetUint(t.handle, idx, buf.handle, start, n, enc)
	if err != nil {
		return nil, 0, err
	}
	return t.item(item), v, nil
}

// AddItemInt is AddItem for signed fields that also returns the value.
func (t *ProtoTree) AddItemInt(idx host.FieldIndex, buf *Buffer, start, length int, enc host.Encoding) (*ProtoItem, int64, error) {
	n, err := buf.span(start, length)
	if err != nil {
		return nil, 0, err
	}
	item, v, err := t.engine.AddItemRetInt(t.handle, idx, buf.handle, start, n, enc)
	if err != nil {
		return nil, 0, err
	}
	return t.item(item), v, nil
}

// AddBitsItem adds a field of bitCount bits starting bitOffset bits into buf.
func (t *ProtoTree) AddBitsItem(idx host.FieldIndex, buf *Buffer, bitOffset, bitCount int, enc host.Encoding) (*ProtoItem, error) {
	if bitCount < 1 || bitCount > 64 {
		return nil, fmt.Errorf("bit count %d: %w", bitCount, core.ErrConfigInvalid)
	}
	if bitOffset < 0 {
		return nil, fmt.Errorf("bit offset %d: %w", bitOffset, core.ErrInsufficientData)
	}
	start := bitOffset / 8
	length := (bitOffset%8 + bitCount + 7) / 8
	if _, err := buf.span(start, length); err != nil {
		return nil, err
	}
	item, err := t.engine.AddBitsItem(t.handle, idx, buf.handle, bitOffset, bitCount, enc)
	if err != nil {
		return nil, err
	}
	return t.item(item), nil
}

// AddText appends a text-only item covering [start, start+length).
func (t *ProtoTree) AddText(buf *Buffer, start, length int, format string, args ...any) (*ProtoItem, error) {
	n, err := buf.span(start, length)
	if err != nil {
		return nil, err
	}
	item, err := t.engine.AddText(t.handle, buf.handle, start, n, fmt.Sprintf(format, args...))
	if err != nil {
		return nil, err
	}
	return t.item(item), nil
}

// CallTable hands buf to whatever is registered under value in table. The
// engine may re-enter this very dissector from inside the call.
func (t *ProtoTree) CallTable(table string, value uint32, buf *Buffer) (int, bool) {
	return t.engine.TryUint(table, value, buf.handle, t.handle)
}

func (t *ProtoTree) item(h host.Item) *ProtoItem {
	return &ProtoItem{engine: t.engine, handle: h}
}

func (i *ProtoItem) Handle() host.Item { return i.handle }

// AddSubtree returns the tree whose items become children of i. An item has
// at most one subtree; calling again returns the same one.
func (i *ProtoItem) AddSubtree(ett host.TreeIndex) *ProtoTree {
	return &ProtoTree{engine: i.engine, handle: i.engine.AddSubtree(i.handle, ett)}
}

func (i *ProtoItem) SetText(format string, args ...any) {
	i.engine.SetText(i.handle, fmt.Sprintf(format, args...))
}

func (i *ProtoItem) AppendText(format string, args ...any) {
	i.engine.AppendText(i.handle, fmt.Sprintf(format, args...))
}

func (i *ProtoItem) PrependText(format string, args ...any) {
	i.engine.PrependText(i.handle, fmt.Sprintf(format, args...))
}

// SetLength changes the byte span the item covers.
func (i *ProtoItem) SetLength(length int) {
	i.engine.SetLength(i.handle, length)
}
