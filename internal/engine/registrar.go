package engine

import (
	"fmt"
	"strings"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

func (e *Engine) inPhase(op string, phases ...Phase) error {
	for _, p := range phases {
		if e.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%s in phase %s: %w", op, e.phase, core.ErrPhase)
}

func (e *Engine) validProto(proto host.ProtocolID) error {
	if proto < 0 || int(proto) >= len(e.protocols) {
		return fmt.Errorf("protocol %d: %w", proto, core.ErrConfigInvalid)
	}
	return nil
}

func (e *Engine) validHandle(h host.Handle) error {
	if h == 0 || int(h) > len(e.handles) {
		return fmt.Errorf("dissector handle %d: %w", h, core.ErrConfigInvalid)
	}
	return nil
}

// RegisterProtocol reserves the filter name in the field namespace.
func (e *Engine) RegisterProtocol(fullName, shortName, filterName string) (host.ProtocolID, error) {
	if err := e.inPhase("register protocol", PhaseProtoInfo); err != nil {
		return -1, err
	}
	if fullName == "" || shortName == "" || filterName == "" {
		return -1, fmt.Errorf("protocol %q/%q/%q: empty name: %w", fullName, shortName, filterName, core.ErrConfigInvalid)
	}
	if strings.ContainsAny(filterName, " \t\n") {
		return -1, fmt.Errorf("protocol filter %q contains whitespace: %w", filterName, core.ErrConfigInvalid)
	}
	if _, dup := e.byAbbrev[filterName]; dup {
		return -1, fmt.Errorf("protocol filter %q: %w", filterName, core.ErrDuplicateAbbrev)
	}
	if _, dup := e.byFilter[filterName]; dup {
		return -1, fmt.Errorf("protocol filter %q: %w", filterName, core.ErrDuplicateAbbrev)
	}

	id := host.ProtocolID(len(e.protocols))
	e.protocols = append(e.protocols, protocol{
		full:   e.arena.String(fullName),
		short:  e.arena.String(shortName),
		filter: e.arena.String(filterName),
	})
	e.byFilter[filterName] = id
	return id, nil
}

// RegisterFieldArray registers the batch atomically: either every field
// gets an index or none does.
func (e *Engine) RegisterFieldArray(proto host.ProtocolID, fields []host.HeaderField) ([]host.FieldIndex, error) {
	if err := e.inPhase("register fields", PhaseProtoInfo); err != nil {
		return nil, err
	}
	if err := e.validProto(proto); err != nil {
		return nil, err
	}

	batch := make(map[string]struct{}, len(fields))
	for _, hf := range fields {
		if hf.Abbrev == "" || hf.Name == "" || !hf.Kind.Valid() {
			return nil, fmt.Errorf("field %q: %w", hf.Abbrev, core.ErrConfigInvalid)
		}
		if _, dup := e.byAbbrev[hf.Abbrev]; dup {
			return nil, fmt.Errorf("field %q: %w", hf.Abbrev, core.ErrDuplicateAbbrev)
		}
		if _, dup := e.byFilter[hf.Abbrev]; dup {
			return nil, fmt.Errorf("field %q clashes with a protocol: %w", hf.Abbrev, core.ErrDuplicateAbbrev)
		}
		if _, dup := batch[hf.Abbrev]; dup {
			return nil, fmt.Errorf("field %q: %w", hf.Abbrev, core.ErrDuplicateAbbrev)
		}
		batch[hf.Abbrev] = struct{}{}
	}

	out := make([]host.FieldIndex, len(fields))
	for i, hf := range fields {
		idx := host.FieldIndex(len(e.fields))
		kept := e.arena.Field(hf)
		e.fields = append(e.fields, field{hf: kept, proto: proto})
		e.byAbbrev[kept.Abbrev] = idx
		e.protocols[proto].fields = append(e.protocols[proto].fields, idx)
		out[i] = idx
	}
	return out, nil
}

func (e *Engine) RegisterSubtreeArray(count int) ([]host.TreeIndex, error) {
	if err := e.inPhase("register subtrees", PhaseProtoInfo); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("subtree count %d: %w", count, core.ErrConfigInvalid)
	}
	out := make([]host.TreeIndex, count)
	for i := range out {
		out[i] = host.TreeIndex(e.trees + i)
	}
	e.trees += count
	return out, nil
}

func (e *Engine) CreateDissectorHandle(fn host.DissectFunc, proto host.ProtocolID) (host.Handle, error) {
	if err := e.inPhase("create dissector handle", PhaseProtoInfo, PhaseHandoff); err != nil {
		return 0, err
	}
	if err := e.validProto(proto); err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, fmt.Errorf("nil dissect function: %w", core.ErrConfigInvalid)
	}
	e.handles = append(e.handles, dissectorHandle{fn: fn, proto: proto})
	return host.Handle(len(e.handles)), nil
}

func (e *Engine) RegisterPostDissector(h host.Handle) error {
	if err := e.inPhase("register postdissector", PhaseHandoff); err != nil {
		return err
	}
	if err := e.validHandle(h); err != nil {
		return err
	}
	e.post = append(e.post, h)
	return nil
}

// AddUint binds pattern in table to h. A later registration for the same
// pattern replaces the earlier one.
func (e *Engine) AddUint(table string, pattern uint32, h host.Handle) error {
	if err := e.inPhase("add uint", PhaseHandoff); err != nil {
		return err
	}
	if err := e.validHandle(h); err != nil {
		return err
	}
	if table == "" {
		return fmt.Errorf("add uint: empty table: %w", core.ErrConfigInvalid)
	}
	m := e.uints[table]
	if m == nil {
		m = make(map[uint32]host.Handle)
		e.uints[table] = m
	}
	if prev, ok := m[pattern]; ok && prev != h {
		e.log.WithFields(map[string]any{
			"table":    table,
			"pattern":  pattern,
			"previous": e.protocols[e.handles[prev-1].proto].filter,
			"protocol": e.protocols[e.handles[h-1].proto].filter,
		}).Warn("dispatch entry replaced")
	}
	m[pattern] = h
	return nil
}

func (e *Engine) AddUintRange(table string, ranges []host.Range, h host.Handle) error {
	if err := e.inPhase("add uint range", PhaseHandoff); err != nil {
		return err
	}
	if err := e.validHandle(h); err != nil {
		return err
	}
	if table == "" || len(ranges) == 0 {
		return fmt.Errorf("add uint range: empty table or ranges: %w", core.ErrConfigInvalid)
	}
	if len(ranges) > host.MaxRanges {
		return fmt.Errorf("add uint range: %d ranges: %w", len(ranges), core.ErrRangeCapacity)
	}
	for _, r := range ranges {
		if r.Low > r.High {
			return fmt.Errorf("range %d-%d: %w", r.Low, r.High, core.ErrConfigInvalid)
		}
	}
	for _, r := range ranges {
		e.ranges[table] = append(e.ranges[table], rangeEntry{r: r, h: h})
	}
	return nil
}

func (e *Engine) AddForDecodeAs(table string, h host.Handle) error {
	if err := e.inPhase("add for decode-as", PhaseHandoff); err != nil {
		return err
	}
	if err := e.validHandle(h); err != nil {
		return err
	}
	if table == "" {
		return fmt.Errorf("add for decode-as: empty table: %w", core.ErrConfigInvalid)
	}
	for _, existing := range e.decodeAs[table] {
		if existing == h {
			return nil
		}
	}
	e.decodeAs[table] = append(e.decodeAs[table], h)
	return nil
}

func (e *Engine) AddHeuristic(table string, fn host.HeuristicFunc, displayName, internalName string, proto host.ProtocolID, enabled bool) error {
	if err := e.inPhase("add heuristic", PhaseHandoff); err != nil {
		return err
	}
	if err := e.validProto(proto); err != nil {
		return err
	}
	if table == "" || fn == nil || displayName == "" || internalName == "" {
		return fmt.Errorf("heuristic %q on %q: %w", internalName, table, core.ErrConfigInvalid)
	}
	for _, list := range e.heuristics {
		for _, h := range list {
			if h.internalName == internalName {
				return fmt.Errorf("heuristic %q registered twice: %w", internalName, core.ErrConfigInvalid)
			}
		}
	}
	e.heuristics[table] = append(e.heuristics[table], &heuristic{
		table:        table,
		fn:           fn,
		displayName:  e.arena.String(displayName),
		internalName: e.arena.String(internalName),
		proto:        proto,
		enabled:      enabled,
	})
	return nil
}
