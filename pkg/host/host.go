// Package host defines the contract of the decoding engine that drives dissectors.
//
// The engine owns protocols, field registrations, dispatch tables, byte buffers
// and output trees. Dissectors only ever see the opaque handles declared here;
// indices are assigned by the engine and must never be fabricated by a client.
package host

// ProtocolID identifies a registered protocol.
type ProtocolID int32

// FieldIndex is the runtime index the engine assigns to a registered field.
type FieldIndex int32

// TreeIndex is the runtime index the engine assigns to a registered subtree fold.
type TreeIndex int32

// Unassigned marks an index slot the engine has not written yet.
const Unassigned = -1

// MaxRanges is the capacity of a single range registration.
const MaxRanges = 100

// Opaque engine handles. The zero value is the null handle: operations on a
// null tree or item are no-ops, exactly like a host that is not building a tree.
type (
	Handle uint64
	Tree   uint64
	Item   uint64
	Buffer uint64
)

// HeaderField is the engine's view of a field descriptor.
type HeaderField struct {
	Name    string
	Abbrev  string
	Kind    FieldKind
	Display Display
	Strings Strings
	Bitmask uint64
	Blurb   string
}

// Range is an inclusive [Low, High] interval in a dispatch table.
type Range struct {
	Low  uint32
	High uint32
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v uint32) bool {
	return v >= r.Low && v <= r.High
}

// Plugin is the pair of registration callbacks a plugin hands to the engine.
// The engine calls every RegisterProtoInfo before any RegisterHandoff.
type Plugin struct {
	Name              string
	RegisterProtoInfo func()
	RegisterHandoff   func()
}

// DissectFunc is invoked with the buffer to decode and the tree to fill.
// It returns the number of bytes consumed; 0 means the data was not claimed.
type DissectFunc func(buf Buffer, tree Tree) (int, error)

// HeuristicFunc speculatively probes unclaimed data and reports acceptance.
type HeuristicFunc func(buf Buffer, tree Tree) bool

// Registrar is the registration surface of the engine.
type Registrar interface {
	RegisterPlugin(p Plugin) error
	RegisterProtocol(fullName, shortName, filterName string) (ProtocolID, error)
	// RegisterFieldArray registers all fields of a protocol in one batch and
	// returns one index per field, in submission order.
	RegisterFieldArray(proto ProtocolID, fields []HeaderField) ([]FieldIndex, error)
	RegisterSubtreeArray(count int) ([]TreeIndex, error)

	CreateDissectorHandle(fn DissectFunc, proto ProtocolID) (Handle, error)
	RegisterPostDissector(h Handle) error
	AddUint(table string, pattern uint32, h Handle) error
	AddUintRange(table string, ranges []Range, h Handle) error
	AddForDecodeAs(table string, h Handle) error
	AddHeuristic(table string, fn HeuristicFunc, displayName, internalName string, proto ProtocolID, enabled bool) error
}

// TreeBuilder holds the output tree primitives.
type TreeBuilder interface {
	AddItem(tree Tree, idx FieldIndex, buf Buffer, start, length int, enc Encoding) (Item, error)
	AddItemRetUint(tree Tree, idx FieldIndex, buf Buffer, start, length int, enc Encoding) (Item, uint64, error)
	AddItemRetInt(tree Tree, idx FieldIndex, buf Buffer, start, length int, enc Encoding) (Item, int64, error)
	// AddBitsItem numbers bits from the most significant bit of the first
	// octet, or from the least significant one when enc is little-endian.
	AddBitsItem(tree Tree, idx FieldIndex, buf Buffer, bitOffset, bitCount int, enc Encoding) (Item, error)
	AddText(tree Tree, buf Buffer, start, length int, text string) (Item, error)
	AddSubtree(item Item, ett TreeIndex) Tree
	SetText(item Item, text string)
	AppendText(item Item, text string)
	PrependText(item Item, text string)
	SetLength(item Item, length int)
}

// Buffers exposes the engine's byte buffers.
type Buffers interface {
	ReportedLength(buf Buffer) int
	// ReportedLengthRemaining returns the bytes left after offset, or -1 if
	// offset lies beyond the end of the buffer.
	ReportedLengthRemaining(buf Buffer, offset int) int
	Bytes(buf Buffer, offset, length int) ([]byte, error)
	Subset(buf Buffer, offset, length int) (Buffer, error)
}

// Dispatcher lets a running dissector hand data to another table entry.
type Dispatcher interface {
	TryUint(table string, value uint32, buf Buffer, tree Tree) (int, bool)
}

// Engine is the full host surface consumed by the dissection core.
type Engine interface {
	Registrar
	TreeBuilder
	Buffers
	Dispatcher
}
