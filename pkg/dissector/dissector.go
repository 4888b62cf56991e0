package dissector

import "firestige.xyz/dissect/internal/core"

// Errors a dissector may need to test for.
var (
	ErrInsufficientData = core.ErrInsufficientData
	ErrUndeclaredField  = core.ErrUndeclaredField
	ErrUndeclaredTree   = core.ErrUndeclaredTree
	ErrFieldKind        = core.ErrFieldKind
	ErrConfigInvalid    = core.ErrConfigInvalid
	ErrRangeCapacity    = core.ErrRangeCapacity
)

// ProtocolName carries the three names the engine registers a protocol under.
type ProtocolName struct {
	Full   string // "Real Time Protocol"
	Short  string // "RTP"
	Filter string // "rtp"
}

// Dissector is the interface a dissector author implements.
//
// The engine calls ProtocolName, Fields, TreeCount and Bind once during
// registration, Registrations once during handoff, and Dissect for every
// unit routed to the protocol. Dissect may be re-entered by the engine while
// it is running, so it must not mutate the dissector.
type Dissector interface {
	ProtocolName() ProtocolName
	// Fields returns every field the dissector will ever add.
	Fields() []Field
	// TreeCount is the number of subtree folds the dissector uses.
	TreeCount() int
	// Bind hands over the resolved indices. It is the only call allowed to
	// mutate the dissector.
	Bind(table *Table)
	Registrations() []Registration
	// Dissect decodes buf into tree and returns the bytes consumed.
	Dissect(tree *ProtoTree, buf *Buffer) (int, error)
}

// Prober is implemented by dissectors that register a Heuristic.
type Prober interface {
	// Probe reports whether the data belongs to the protocol. Items added
	// before a rejection are not rolled back, so probes should decide first
	// and add items afterwards.
	Probe(tree *ProtoTree, buf *Buffer) bool
}

// Configurable is implemented by dissectors that accept options.
type Configurable interface {
	Init(cfg map[string]any) error
}

// Base provides Bind, TreeCount and a post-dissector registration. Embed it
// and override what differs.
type Base struct {
	table *Table
}

func (b *Base) Bind(table *Table) { b.table = table }

// Table returns the bound table, nil before registration.
func (b *Base) Table() *Table { return b.table }

func (b *Base) TreeCount() int { return 0 }

func (b *Base) Registrations() []Registration {
	return []Registration{PostDissector{}}
}
