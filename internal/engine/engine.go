// Package engine is an in-process decoding engine that implements the host
// contract. It owns the protocol and field namespace, the dispatch tables
// and the per-frame output trees, and drives registered plugins through
// the protoinfo, handoff and dissection phases in that order.
//
// The engine is driven from one goroutine at a time: Init and DissectFrame
// serialize on an internal mutex, and the callback surface (tree, buffer
// and registration calls) is only valid from inside those entry points.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/dissect/internal/arena"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/pkg/host"
)

// Phase is the lifecycle stage of the engine.
type Phase int

const (
	PhaseLoading   Phase = iota // plugins may register
	PhaseProtoInfo              // protocols, fields and trees
	PhaseHandoff                // handles and dispatch registrations
	PhaseReady                  // frames may be dissected
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseProtoInfo:
		return "protoinfo"
	case PhaseHandoff:
		return "handoff"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// maxDepth bounds nested dispatch through TryUint.
const maxDepth = 32

type protocol struct {
	full, short, filter string
	fields              []host.FieldIndex
}

type field struct {
	hf    host.HeaderField
	proto host.ProtocolID
}

type dissectorHandle struct {
	fn    host.DissectFunc
	proto host.ProtocolID
}

type rangeEntry struct {
	r host.Range
	h host.Handle
}

type heuristic struct {
	table        string
	fn           host.HeuristicFunc
	displayName  string
	internalName string
	proto        host.ProtocolID
	enabled      bool
}

// Engine implements host.Engine.
type Engine struct {
	mu    sync.Mutex
	phase Phase
	arena *arena.Arena
	log   log.Logger

	plugins   []host.Plugin
	protocols []protocol
	byFilter  map[string]host.ProtocolID
	fields    []field
	byAbbrev  map[string]host.FieldIndex
	trees     int

	handles    []dissectorHandle
	post       []host.Handle
	uints      map[string]map[uint32]host.Handle
	ranges     map[string][]rangeEntry
	decodeAs   map[string][]host.Handle
	selections map[string]map[uint32]host.Handle
	heuristics map[string][]*heuristic

	pass    *pass
	current *Result
	gen     uint32
	depth   int
}

var _ host.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		arena:      arena.New(),
		log:        log.GetLogger().WithField("component", "engine"),
		byFilter:   make(map[string]host.ProtocolID),
		byAbbrev:   make(map[string]host.FieldIndex),
		uints:      make(map[string]map[uint32]host.Handle),
		ranges:     make(map[string][]rangeEntry),
		decodeAs:   make(map[string][]host.Handle),
		selections: make(map[string]map[uint32]host.Handle),
		heuristics: make(map[string][]*heuristic),
	}
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) RegisterPlugin(p host.Plugin) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseLoading {
		return fmt.Errorf("register plugin %q in phase %s: %w", p.Name, e.phase, core.ErrPhase)
	}
	if p.Name == "" || p.RegisterProtoInfo == nil {
		return fmt.Errorf("plugin %q: missing name or protoinfo callback: %w", p.Name, core.ErrConfigInvalid)
	}
	for _, q := range e.plugins {
		if q.Name == p.Name {
			return fmt.Errorf("plugin %q registered twice: %w", p.Name, core.ErrConfigInvalid)
		}
	}
	e.plugins = append(e.plugins, p)
	e.log.WithField("plugin", p.Name).Debug("plugin registered")
	return nil
}

// Init runs every plugin's protoinfo callback, then every handoff callback,
// and leaves the engine ready for frames. A plugin that panics with an
// error aborts the load and the error is returned.
func (e *Engine) Init() (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseLoading {
		return fmt.Errorf("init in phase %s: %w", e.phase, core.ErrPhase)
	}

	e.phase = PhaseProtoInfo
	for _, p := range e.plugins {
		if err := e.call(p.Name, "protoinfo", p.RegisterProtoInfo); err != nil {
			return err
		}
	}

	e.phase = PhaseHandoff
	for _, p := range e.plugins {
		if p.RegisterHandoff == nil {
			continue
		}
		if err := e.call(p.Name, "handoff", p.RegisterHandoff); err != nil {
			return err
		}
	}

	e.phase = PhaseReady
	strs, size, tables := e.arena.Stats()
	e.log.WithFields(map[string]any{
		"plugins":   len(e.plugins),
		"protocols": len(e.protocols),
		"fields":    len(e.fields),
		"trees":     e.trees,
		"interned":  fmt.Sprintf("%d strings/%d bytes/%d tables", strs, size, tables),
	}).Info("engine ready")
	return nil
}

func (e *Engine) call(plugin, stage string, fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok {
			err = fmt.Errorf("plugin %q %s: %w", plugin, stage, rerr)
		} else {
			err = fmt.Errorf("plugin %q %s: %v: %w", plugin, stage, r, core.ErrPluginInitFailed)
		}
		e.log.WithField("plugin", plugin).WithError(err).Error("plugin load aborted")
	}()
	fn()
	return nil
}

// SetDecodeAs routes value in table to the protocol with the given filter
// name. The protocol must have offered itself for the table.
func (e *Engine) SetDecodeAs(table string, value uint32, filter string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseReady {
		return fmt.Errorf("decode-as in phase %s: %w", e.phase, core.ErrPhase)
	}
	proto, ok := e.byFilter[filter]
	if !ok {
		return fmt.Errorf("decode-as %s=%d: unknown protocol %q: %w", table, value, filter, core.ErrConfigInvalid)
	}
	for _, h := range e.decodeAs[table] {
		if e.handles[h-1].proto == proto {
			if e.selections[table] == nil {
				e.selections[table] = make(map[uint32]host.Handle)
			}
			e.selections[table][value] = h
			return nil
		}
	}
	return fmt.Errorf("decode-as %s=%d: %q is not offered for %s: %w", table, value, filter, table, core.ErrConfigInvalid)
}

// SetHeuristicEnabled switches a heuristic probe on or off by internal name.
func (e *Engine) SetHeuristicEnabled(internalName string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, list := range e.heuristics {
		for _, h := range list {
			if h.internalName == internalName {
				h.enabled = enabled
				return nil
			}
		}
	}
	return fmt.Errorf("heuristic %q: %w", internalName, core.ErrConfigInvalid)
}

// ProtocolInfo describes a registered protocol.
type ProtocolInfo struct {
	Name   string `yaml:"name"`
	Short  string `yaml:"short"`
	Filter string `yaml:"filter"`
}

// FieldInfo describes a registered field.
type FieldInfo struct {
	Index    host.FieldIndex `yaml:"index"`
	Protocol string          `yaml:"protocol"`
	Name     string          `yaml:"name"`
	Abbrev   string          `yaml:"abbrev"`
	Kind     string          `yaml:"kind"`
	Display  string          `yaml:"display"`
	Bitmask  uint64          `yaml:"bitmask,omitempty"`
	Blurb    string          `yaml:"blurb,omitempty"`
}

// RegistrationInfo describes one dispatch registration.
type RegistrationInfo struct {
	Protocol string `yaml:"protocol"`
	Kind     string `yaml:"kind"`
	Table    string `yaml:"table,omitempty"`
	Detail   string `yaml:"detail,omitempty"`
}

func (e *Engine) Protocols() []ProtocolInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ProtocolInfo, len(e.protocols))
	for i, p := range e.protocols {
		out[i] = ProtocolInfo{Name: p.full, Short: p.short, Filter: p.filter}
	}
	return out
}

// Fields lists registered fields in index order.
func (e *Engine) Fields() []FieldInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FieldInfo, len(e.fields))
	for i, f := range e.fields {
		out[i] = FieldInfo{
			Index:    host.FieldIndex(i),
			Protocol: e.protocols[f.proto].filter,
			Name:     f.hf.Name,
			Abbrev:   f.hf.Abbrev,
			Kind:     f.hf.Kind.String(),
			Display:  f.hf.Display.String(),
			Bitmask:  f.hf.Bitmask,
			Blurb:    f.hf.Blurb,
		}
	}
	return out
}

// Registrations lists dispatch registrations sorted by protocol and kind.
func (e *Engine) Registrations() []RegistrationInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := func(h host.Handle) string { return e.protocols[e.handles[h-1].proto].filter }
	var out []RegistrationInfo
	for _, h := range e.post {
		out = append(out, RegistrationInfo{Protocol: name(h), Kind: "postdissector"})
	}
	for table, m := range e.uints {
		for v, h := range m {
			out = append(out, RegistrationInfo{Protocol: name(h), Kind: "uint", Table: table, Detail: fmt.Sprint(v)})
		}
	}
	for table, list := range e.ranges {
		for _, r := range list {
			out = append(out, RegistrationInfo{Protocol: name(r.h), Kind: "range", Table: table,
				Detail: fmt.Sprintf("%d-%d", r.r.Low, r.r.High)})
		}
	}
	for table, list := range e.decodeAs {
		for _, h := range list {
			out = append(out, RegistrationInfo{Protocol: name(h), Kind: "decode-as", Table: table})
		}
	}
	for table, list := range e.heuristics {
		for _, h := range list {
			out = append(out, RegistrationInfo{Protocol: e.protocols[h.proto].filter, Kind: "heuristic", Table: table,
				Detail: fmt.Sprintf("%s (%s, enabled=%t)", h.internalName, h.displayName, h.enabled)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Detail < b.Detail
	})
	return out
}
