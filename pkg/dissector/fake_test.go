package dissector

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/dissect/pkg/host"
)

type fakeItem struct {
	idx      host.FieldIndex
	start    int
	length   int
	value    uint64
	text     string
	parent   host.Tree
	subtree  host.Tree
	children []host.Item
}

// fakeEngine records tree operations. Unused Registrar methods panic through
// the embedded nil interface.
type fakeEngine struct {
	host.Registrar

	bufs     map[host.Buffer][]byte
	items    map[host.Item]*fakeItem
	roots    map[host.Tree][]host.Item
	nextID   uint64
	calls    int
	dispatch map[string]map[uint32]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		bufs:     map[host.Buffer][]byte{},
		items:    map[host.Item]*fakeItem{},
		roots:    map[host.Tree][]host.Item{},
		dispatch: map[string]map[uint32]int{},
	}
}

func (e *fakeEngine) id() uint64 {
	e.nextID++
	return e.nextID
}

func (e *fakeEngine) buffer(data []byte) host.Buffer {
	h := host.Buffer(e.id())
	e.bufs[h] = data
	return h
}

func (e *fakeEngine) tree() host.Tree {
	return host.Tree(e.id())
}

func (e *fakeEngine) ReportedLength(buf host.Buffer) int { return len(e.bufs[buf]) }

func (e *fakeEngine) ReportedLengthRemaining(buf host.Buffer, offset int) int {
	n := len(e.bufs[buf])
	if offset > n {
		return -1
	}
	return n - offset
}

func (e *fakeEngine) Bytes(buf host.Buffer, offset, length int) ([]byte, error) {
	return append([]byte(nil), e.bufs[buf][offset:offset+length]...), nil
}

func (e *fakeEngine) Subset(buf host.Buffer, offset, length int) (host.Buffer, error) {
	return e.buffer(e.bufs[buf][offset : offset+length]), nil
}

func (e *fakeEngine) add(tree host.Tree, it *fakeItem) host.Item {
	e.calls++
	if tree == 0 {
		return 0
	}
	h := host.Item(e.id())
	it.parent = tree
	e.items[h] = it
	e.roots[tree] = append(e.roots[tree], h)
	return h
}

func (e *fakeEngine) decode(buf host.Buffer, start, length int) uint64 {
	var p [8]byte
	copy(p[8-length:], e.bufs[buf][start:start+length])
	return binary.BigEndian.Uint64(p[:])
}

func (e *fakeEngine) AddItem(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, _ host.Encoding) (host.Item, error) {
	return e.add(tree, &fakeItem{idx: idx, start: start, length: length}), nil
}

func (e *fakeEngine) AddItemRetUint(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, _ host.Encoding) (host.Item, uint64, error) {
	v := e.decode(buf, start, length)
	return e.add(tree, &fakeItem{idx: idx, start: start, length: length, value: v}), v, nil
}

func (e *fakeEngine) AddItemRetInt(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, _ host.Encoding) (host.Item, int64, error) {
	v := e.decode(buf, start, length)
	shift := 64 - 8*length
	s := int64(v<<shift) >> shift
	return e.add(tree, &fakeItem{idx: idx, start: start, length: length, value: v}), s, nil
}

func (e *fakeEngine) AddBitsItem(tree host.Tree, idx host.FieldIndex, buf host.Buffer, bitOffset, bitCount int, _ host.Encoding) (host.Item, error) {
	return e.add(tree, &fakeItem{idx: idx, start: bitOffset / 8, length: (bitOffset%8 + bitCount + 7) / 8}), nil
}

func (e *fakeEngine) AddText(tree host.Tree, buf host.Buffer, start, length int, text string) (host.Item, error) {
	return e.add(tree, &fakeItem{idx: host.Unassigned, start: start, length: length, text: text}), nil
}

func (e *fakeEngine) AddSubtree(item host.Item, _ host.TreeIndex) host.Tree {
	it, ok := e.items[item]
	if !ok {
		return 0
	}
	if it.subtree == 0 {
		it.subtree = e.tree()
	}
	return it.subtree
}

func (e *fakeEngine) SetText(item host.Item, text string) {
	if it, ok := e.items[item]; ok {
		it.text = text
	}
}

func (e *fakeEngine) AppendText(item host.Item, text string) {
	if it, ok := e.items[item]; ok {
		it.text += text
	}
}

func (e *fakeEngine) PrependText(item host.Item, text string) {
	if it, ok := e.items[item]; ok {
		it.text = text + it.text
	}
}

func (e *fakeEngine) SetLength(item host.Item, length int) {
	if it, ok := e.items[item]; ok {
		it.length = length
	}
}

func (e *fakeEngine) TryUint(table string, value uint32, _ host.Buffer, _ host.Tree) (int, bool) {
	n, ok := e.dispatch[table][value]
	return n, ok
}

func (e *fakeEngine) String() string {
	return fmt.Sprintf("fakeEngine(%d items)", len(e.items))
}
