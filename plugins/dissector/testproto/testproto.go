// Package testproto is a small dissector that exercises most of the
// dissector API: fixed and runtime-built fields, label mappings, bit
// fields, signed values, nested subtrees and item text edits.
package testproto

import (
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

const (
	treeMain dissector.TreeID = iota
	treeFirstElements
	treeCount
)

var (
	hfMain     = dissector.NewField("protoname", "proto.main", host.KindProtocol, host.BaseNone)
	hfByte0    = dissector.NewField("first byte", "proto.byte0", host.KindUint8, host.BaseHex)
	hfByte1    = dissector.NewField("second byte", "proto.byte1", host.KindUint16, host.BaseHex)
	hfInt32    = dissector.NewField("uint32 byte", "proto.byte3", host.KindInt32, host.BaseDec)
	hfUint64   = dissector.NewField("uint64 byte", "proto.byte4", host.KindUint64, host.BaseHex)
	hfBitfield = dissector.NewField("A bitfield", "proto.bitfield1", host.KindUint16, host.BaseDec)
)

var numbers = []string{"Zero", "One", "Two", "Three"}

// Options configure testproto.
type Options struct {
	Post  bool     `mapstructure:"post"`  // run on every frame
	Ports []uint32 `mapstructure:"ports"` // udp.port registrations
}

type Dissector struct {
	dissector.Base
	opts    Options
	runtime []dissector.Field
}

func New() dissector.Dissector {
	return &Dissector{
		opts:    Options{Ports: []uint32{8995}},
		runtime: runtimeFields(),
	}
}

// runtimeFields builds field descriptors from values only known at run
// time, as a dissector generated from a schema would.
func runtimeFields() []dissector.Field {
	vs := make(host.ValueStrings, len(numbers))
	vs64 := make(host.Value64Strings, len(numbers))
	for i, n := range numbers {
		vs[i] = host.ValueString{Value: uint32(i), Label: n}
		vs64[i] = host.Value64String{Value: uint64(i), Label: n}
	}

	field := func(name string, kind host.FieldKind) dissector.Field {
		return dissector.NewField("runtime."+name, "proto.runtime."+name, kind, host.BaseHex)
	}
	plain := field("field1", host.KindUint16)
	withStrings := field("with_strings", host.KindUint8)
	withStrings.Strings = vs
	withStrings.Blurb = "This is the blurb."
	with64 := field("with_strings64", host.KindUint64)
	with64.Strings = vs64
	with64.Blurb = "This is the blurb."
	withRange := field("with_strings_range", host.KindUint32)
	withRange.Strings = host.RangeStrings{
		{Low: 0, High: 5, Label: "Few"},
		{Low: 5, High: 1 << 16, Label: "Many"},
		{Low: 1 << 16, High: 0xFFFFFFFF, Label: "Lots"},
	}
	withRange.Blurb = "This is the blurb."
	return []dissector.Field{plain, withStrings, with64, withRange}
}

func (d *Dissector) ProtocolName() dissector.ProtocolName {
	return dissector.ProtocolName{Full: "This is a test protocol", Short: "testproto", Filter: "testproto"}
}

func (d *Dissector) Init(cfg map[string]any) error {
	return dissector.DecodeOptions(cfg, &d.opts)
}

func (d *Dissector) Fields() []dissector.Field {
	return append([]dissector.Field{hfMain, hfByte0, hfByte1, hfInt32, hfUint64, hfBitfield}, d.runtime...)
}

func (d *Dissector) TreeCount() int { return int(treeCount) }

func (d *Dissector) Registrations() []dissector.Registration {
	regs := []dissector.Registration{
		dissector.ManualSelection{Table: "udp.port"},
		dissector.ManualSelection{Table: "tcp.port"},
	}
	if d.opts.Post {
		regs = append(regs, dissector.PostDissector{})
	}
	for _, port := range d.opts.Ports {
		regs = append(regs, dissector.ExactMatch{Table: "udp.port", Pattern: port})
	}
	return regs
}

// Dissect needs 20 bytes.
func (d *Dissector) Dissect(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	t := d.Table()
	offset := 0

	if _, err := tree.AddItem(t.Field(hfMain), buf, 0, dissector.ToEnd, dissector.BigEndian); err != nil {
		return 0, err
	}
	first, err := tree.AddItem(t.Field(hfByte0), buf, offset, 1, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	fold := first.AddSubtree(t.Tree(treeMain))

	if _, err := fold.AddItem(t.Field(hfByte1), buf, offset+1, 2, dissector.BigEndian); err != nil {
		return 0, err
	}
	offset += 2

	if _, err := fold.AddBitsItem(t.Field(hfBitfield), buf, (offset+2)*8+3, 4, dissector.BigEndian); err != nil {
		return 0, err
	}
	item, ret, err := fold.AddItemInt(t.Field(hfInt32), buf, offset+1, 4, dissector.BigEndian)
	if err != nil {
		return 0, err
	}

	for _, add := range []struct {
		field         dissector.Field
		start, length int
	}{
		{d.runtime[0], offset + 1, 2},
		{d.runtime[1], offset + 10, 1},
		{d.runtime[2], offset + 10, 8},
		{d.runtime[3], offset + 14, 4},
	} {
		if _, err := fold.AddItem(t.Field(add.field), buf, add.start, add.length, dissector.BigEndian); err != nil {
			return 0, err
		}
	}

	if ret%2 == 0 {
		item.PrependText("foo")
	}
	more := item.AddSubtree(t.Tree(treeFirstElements))
	if _, err := more.AddItem(t.Field(hfUint64), buf, offset, 1, dissector.BigEndian); err != nil {
		return 0, err
	}
	return buf.ReportedLength(), nil
}
