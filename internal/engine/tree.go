package engine

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Node is one item of a dissected frame.
type Node struct {
	Abbrev   string  `yaml:"abbrev,omitempty"`
	Text     string  `yaml:"text"`
	Start    int     `yaml:"start"`
	Length   int     `yaml:"length"`
	Value    any     `yaml:"value,omitempty"`
	Probe    string  `yaml:"probe,omitempty"`    // heuristic that was probing when the item was added
	Rejected bool    `yaml:"rejected,omitempty"` // that heuristic then rejected the data
	Children []*Node `yaml:"children,omitempty"`

	subtree host.TreeIndex
	open    bool
}

// Subtree reports the fold index of the node's subtree, if it has one.
func (n *Node) Subtree() (host.TreeIndex, bool) { return n.subtree, n.open }

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// pass holds the handles of one frame. Handles carry the pass generation in
// their upper half so a handle kept across frames is detected.
type pass struct {
	gen   uint32
	nodes []*Node
	bufs  []*bufRec
	probe string
}

func newPass(gen uint32) *pass {
	return &pass{gen: gen}
}

func (p *pass) handle(idx int) uint64 {
	return uint64(p.gen)<<32 | uint64(idx+1)
}

func (p *pass) index(h uint64) (int, bool) {
	if h == 0 || uint32(h>>32) != p.gen {
		return 0, false
	}
	return int(uint32(h)) - 1, true
}

func (p *pass) addNode(n *Node) uint64 {
	if p.probe != "" {
		n.Probe = p.probe
	}
	p.nodes = append(p.nodes, n)
	return p.handle(len(p.nodes) - 1)
}

func (p *pass) addBuffer(data []byte, base int) host.Buffer {
	p.bufs = append(p.bufs, &bufRec{data: data, base: base})
	return host.Buffer(p.handle(len(p.bufs) - 1))
}

// node resolves a tree or item handle. The zero handle resolves to nil.
func (e *Engine) node(h uint64) (*Node, error) {
	if e.pass == nil {
		return nil, fmt.Errorf("tree access outside dissection: %w", core.ErrPhase)
	}
	if h == 0 {
		return nil, nil
	}
	idx, ok := e.pass.index(h)
	if !ok || idx >= len(e.pass.nodes) {
		return nil, fmt.Errorf("tree handle %#x: %w", h, core.ErrHostContract)
	}
	return e.pass.nodes[idx], nil
}

func (e *Engine) field(idx host.FieldIndex) (*field, error) {
	if idx < 0 || int(idx) >= len(e.fields) {
		return nil, fmt.Errorf("field index %d: %w", idx, core.ErrUndeclaredField)
	}
	return &e.fields[idx], nil
}

// attach appends n under parent; a nil parent means no tree is being built.
func (e *Engine) attach(parent *Node, n *Node) host.Item {
	if parent == nil {
		return 0
	}
	parent.Children = append(parent.Children, n)
	return host.Item(e.pass.addNode(n))
}

func (e *Engine) addField(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, enc host.Encoding) (host.Item, value, error) {
	parent, err := e.node(uint64(tree))
	if err != nil {
		return 0, value{}, err
	}
	f, err := e.field(idx)
	if err != nil {
		return 0, value{}, err
	}
	b, err := e.buffer(buf)
	if err != nil {
		return 0, value{}, err
	}
	data, err := b.slice(start, length)
	if err != nil {
		return 0, value{}, err
	}
	v, err := decode(f.hf, data, enc)
	if err != nil {
		return 0, value{}, err
	}
	n := &Node{
		Abbrev: f.hf.Abbrev,
		Text:   label(f.hf, v),
		Start:  b.base + start,
		Length: len(data),
		Value:  v.export(f.hf.Kind),
	}
	return e.attach(parent, n), v, nil
}

func (e *Engine) AddItem(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, enc host.Encoding) (host.Item, error) {
	item, _, err := e.addField(tree, idx, buf, start, length, enc)
	return item, err
}

func (e *Engine) AddItemRetUint(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, enc host.Encoding) (host.Item, uint64, error) {
	f, err := e.field(idx)
	if err != nil {
		return 0, 0, err
	}
	if k := f.hf.Kind; !k.Unsigned() && k != host.KindChar && k != host.KindBoolean {
		return 0, 0, fmt.Errorf("%s is %v, not unsigned: %w", f.hf.Abbrev, k, core.ErrFieldKind)
	}
	item, v, err := e.addField(tree, idx, buf, start, length, enc)
	return item, v.u, err
}

func (e *Engine) AddItemRetInt(tree host.Tree, idx host.FieldIndex, buf host.Buffer, start, length int, enc host.Encoding) (host.Item, int64, error) {
	f, err := e.field(idx)
	if err != nil {
		return 0, 0, err
	}
	if !f.hf.Kind.Signed() {
		return 0, 0, fmt.Errorf("%s is %v, not signed: %w", f.hf.Abbrev, f.hf.Kind, core.ErrFieldKind)
	}
	item, v, err := e.addField(tree, idx, buf, start, length, enc)
	return item, v.i, err
}

// AddBitsItem reads bitCount bits starting bitOffset bits into buf. Big-endian
// bits are numbered from the most significant bit of the first octet;
// little-endian bits from the least significant one.
func (e *Engine) AddBitsItem(tree host.Tree, idx host.FieldIndex, buf host.Buffer, bitOffset, bitCount int, enc host.Encoding) (host.Item, error) {
	parent, err := e.node(uint64(tree))
	if err != nil {
		return 0, err
	}
	f, err := e.field(idx)
	if err != nil {
		return 0, err
	}
	if !f.hf.Kind.Integer() {
		return 0, fmt.Errorf("bits item on %v field %s: %w", f.hf.Kind, f.hf.Abbrev, core.ErrFieldKind)
	}
	if bitCount < 1 || bitCount > 64 || bitOffset < 0 {
		return 0, fmt.Errorf("bits %d+%d: %w", bitOffset, bitCount, core.ErrConfigInvalid)
	}
	b, err := e.buffer(buf)
	if err != nil {
		return 0, err
	}
	start := bitOffset / 8
	data, err := b.slice(start, (bitOffset%8+bitCount+7)/8)
	if err != nil {
		return 0, err
	}

	le := enc.LittleEndian()
	v := bitsValue(f.hf.Kind, data, bitOffset%8, bitCount, le)
	n := &Node{
		Abbrev: f.hf.Abbrev,
		Text:   bitPattern(data, bitOffset%8, bitCount, le) + " = " + f.hf.Name + ": " + formatInt(f.hf, v, (bitCount+3)/4),
		Start:  b.base + start,
		Length: len(data),
		Value:  v.export(f.hf.Kind),
	}
	return e.attach(parent, n), nil
}

func (e *Engine) AddText(tree host.Tree, buf host.Buffer, start, length int, text string) (host.Item, error) {
	parent, err := e.node(uint64(tree))
	if err != nil {
		return 0, err
	}
	b, err := e.buffer(buf)
	if err != nil {
		return 0, err
	}
	data, err := b.slice(start, length)
	if err != nil {
		return 0, err
	}
	return e.attach(parent, &Node{Text: text, Start: b.base + start, Length: len(data)}), nil
}

// AddSubtree opens the subtree of item. The subtree handle is the item
// handle itself, so asking twice yields the same subtree.
func (e *Engine) AddSubtree(item host.Item, ett host.TreeIndex) host.Tree {
	n, err := e.node(uint64(item))
	if err != nil || n == nil {
		return 0
	}
	if ett < 0 || int(ett) >= e.trees {
		e.log.WithField("ett", ett).Warn("subtree with unregistered fold index")
		return 0
	}
	if !n.open {
		n.open = true
		n.subtree = ett
	}
	return host.Tree(item)
}

func (e *Engine) item(item host.Item) *Node {
	n, err := e.node(uint64(item))
	if err != nil {
		return nil
	}
	return n
}

func (e *Engine) SetText(item host.Item, text string) {
	if n := e.item(item); n != nil {
		n.Text = text
	}
}

func (e *Engine) AppendText(item host.Item, text string) {
	if n := e.item(item); n != nil {
		n.Text += text
	}
}

func (e *Engine) PrependText(item host.Item, text string) {
	if n := e.item(item); n != nil {
		n.Text = text + n.Text
	}
}

func (e *Engine) SetLength(item host.Item, length int) {
	if n := e.item(item); n != nil && length >= 0 {
		n.Length = length
	}
}
