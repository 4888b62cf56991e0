package engine

import (
	"errors"
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Key is a dispatch table lookup derived from the lower layers of a frame,
// for example table "udp.port" with the source and destination ports.
type Key struct {
	Table  string
	Values []uint32
}

// Frame is one unit handed to the engine.
type Frame struct {
	Number        int
	Data          []byte
	PayloadOffset int      // start of the bytes offered to dispatch
	Layers        []string // lower layers already decoded, e.g. eth, ip, udp
	Keys          []Key    // tried in order, values in order
	Heuristics    []string // heuristic tables tried when no key matched
}

// Result is the dissected form of a frame.
type Result struct {
	Number    int      `yaml:"number"`
	Length    int      `yaml:"length"`
	Protocols []string `yaml:"protocols"`
	Malformed []string `yaml:"malformed,omitempty"`
	Tree      *Node    `yaml:"tree"`
	Data      []byte   `yaml:"-"`
}

// DissectFrame runs dispatch on the frame payload and then every
// postdissector on the whole frame. Dispatch order is: decode-as
// selections, exact matches, range matches, then enabled heuristics.
func (e *Engine) DissectFrame(f Frame) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseReady {
		return nil, fmt.Errorf("dissect frame in phase %s: %w", e.phase, core.ErrPhase)
	}
	if f.PayloadOffset < 0 || f.PayloadOffset > len(f.Data) {
		return nil, fmt.Errorf("payload offset %d of %d bytes: %w", f.PayloadOffset, len(f.Data), core.ErrInsufficientData)
	}

	e.gen++
	e.pass = newPass(e.gen)
	defer func() { e.pass = nil }()

	res := &Result{Number: f.Number, Length: len(f.Data), Protocols: append([]string(nil), f.Layers...), Data: f.Data}
	root := &Node{
		Text:   fmt.Sprintf("Frame %d: %d bytes", f.Number, len(f.Data)),
		Length: len(f.Data),
	}
	res.Tree = root
	e.current = res
	defer func() { e.current = nil }()
	rootTree := host.Tree(e.pass.addNode(root))
	frameBuf := e.pass.addBuffer(f.Data, 0)
	payload := e.pass.addBuffer(f.Data[f.PayloadOffset:], f.PayloadOffset)

	if len(f.Data) > f.PayloadOffset && !e.dispatch(res, f, payload, rootTree) {
		root.Children = append(root.Children, &Node{
			Abbrev: "data",
			Text:   fmt.Sprintf("Data (%d bytes)", len(f.Data)-f.PayloadOffset),
			Start:  f.PayloadOffset,
			Length: len(f.Data) - f.PayloadOffset,
		})
		res.Protocols = append(res.Protocols, "data")
	}

	for _, h := range e.post {
		e.run(res, h, frameBuf, rootTree)
	}
	return res, nil
}

func (e *Engine) dispatch(res *Result, f Frame, buf host.Buffer, tree host.Tree) bool {
	for _, key := range f.Keys {
		for _, v := range key.Values {
			if h, ok := e.lookup(key.Table, v); ok {
				if n := e.run(res, h, buf, tree); n != 0 {
					return true
				}
			}
		}
	}

	for _, table := range f.Heuristics {
		for _, h := range e.heuristics[table] {
			if !h.enabled {
				continue
			}
			if e.probe(res, h, buf, tree) {
				return true
			}
		}
	}
	return false
}

// lookup resolves value in table: a user decode-as selection wins over an
// exact registration, which wins over a range.
func (e *Engine) lookup(table string, v uint32) (host.Handle, bool) {
	if h, ok := e.selections[table][v]; ok {
		return h, true
	}
	if h, ok := e.uints[table][v]; ok {
		return h, true
	}
	for _, r := range e.ranges[table] {
		if r.r.Contains(v) {
			return r.h, true
		}
	}
	return 0, false
}

// run invokes a dissector and records its outcome. A dissector that
// returns an error leaves its items in place and marks the frame malformed.
func (e *Engine) run(res *Result, h host.Handle, buf host.Buffer, tree host.Tree) int {
	d := e.handles[h-1]
	name := e.protocols[d.proto].filter

	e.depth++
	defer func() { e.depth-- }()

	n, err := e.invoke(d.fn, buf, tree)
	if err != nil {
		e.malformed(res, name, tree, err)
		return 0
	}
	if n != 0 {
		res.Protocols = append(res.Protocols, name)
	}
	return n
}

func (e *Engine) invoke(fn host.DissectFunc, buf host.Buffer, tree host.Tree) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if escapes(r) {
				panic(r)
			}
			err = panicError("dissector", r)
		}
	}()
	return fn(buf, tree)
}

// probe runs a heuristic. Items the probe adds stay in the tree either way;
// when it rejects the data they are marked as rejected.
func (e *Engine) probe(res *Result, h *heuristic, buf host.Buffer, tree host.Tree) bool {
	prev := e.pass.probe
	first := len(e.pass.nodes)
	e.pass.probe = h.internalName
	defer func() { e.pass.probe = prev }()

	e.depth++
	defer func() { e.depth-- }()

	var accepted bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				if escapes(r) {
					panic(r)
				}
				e.malformed(res, e.protocols[h.proto].filter, tree, panicError("heuristic "+h.internalName, r))
			}
		}()
		accepted = h.fn(buf, tree)
	}()

	if accepted {
		res.Protocols = append(res.Protocols, e.protocols[h.proto].filter)
		return true
	}
	for _, n := range e.pass.nodes[first:] {
		if n.Probe == h.internalName {
			n.Rejected = true
		}
	}
	return false
}

// escapes reports whether a panic raised by a dissector is a contract
// violation. Those end the run; any other panic only marks the frame.
func escapes(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	return errors.Is(err, core.ErrReentrant) ||
		errors.Is(err, core.ErrUndeclaredField) ||
		errors.Is(err, core.ErrUndeclaredTree) ||
		errors.Is(err, core.ErrHostContract)
}

func panicError(who string, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%s panic: %w", who, err)
	}
	return fmt.Errorf("%s panic: %v", who, r)
}

func (e *Engine) malformed(res *Result, proto string, tree host.Tree, err error) {
	msg := fmt.Sprintf("%s: %v", proto, err)
	res.Malformed = append(res.Malformed, msg)
	if parent, _ := e.node(uint64(tree)); parent != nil {
		parent.Children = append(parent.Children, &Node{Abbrev: "_ws.malformed", Text: "[Malformed Packet: " + msg + "]"})
	}
	e.log.WithField("protocol", proto).WithError(err).Debug("malformed frame")
}

// TryUint lets a running dissector hand buf to whatever is registered for
// value in table. It reports whether a dissector claimed the data.
func (e *Engine) TryUint(table string, value uint32, buf host.Buffer, tree host.Tree) (int, bool) {
	if e.pass == nil {
		return 0, false
	}
	if e.depth >= maxDepth {
		e.log.WithField("table", table).Warn("dispatch depth limit reached")
		return 0, false
	}
	h, ok := e.lookup(table, value)
	if !ok {
		return 0, false
	}
	res := e.current
	n := e.run(res, h, buf, tree)
	return n, n != 0
}
