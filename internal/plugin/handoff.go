package plugin

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

func (p *Plugin) registerHandoff() {
	err := p.slot.Exclusive(func(d dissector.Dissector) error {
		h, err := p.engine.CreateDissectorHandle(p.dissect, p.proto)
		if err != nil {
			return err
		}
		p.handle = h
		for _, reg := range d.Registrations() {
			if err := p.apply(d, reg); err != nil {
				return fmt.Errorf("registration %v: %w", reg, err)
			}
			p.log.WithField("registration", fmt.Sprint(reg)).Debug("handoff registered")
		}
		return nil
	})
	if err != nil {
		p.fatal("handoff", err)
	}
}

// apply issues the single engine call a registration maps to.
func (p *Plugin) apply(d dissector.Dissector, reg dissector.Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	switch r := reg.(type) {
	case dissector.PostDissector:
		return p.engine.RegisterPostDissector(p.handle)
	case dissector.ExactMatch:
		return p.engine.AddUint(r.Table, r.Pattern, p.handle)
	case dissector.RangeMatch:
		return p.engine.AddUintRange(r.Table, []host.Range(r.Ranges), p.handle)
	case dissector.ManualSelection:
		return p.engine.AddForDecodeAs(r.Table, p.handle)
	case dissector.Heuristic:
		if _, ok := d.(dissector.Prober); !ok {
			return fmt.Errorf("heuristic %s without a Probe method: %w", r.InternalName, core.ErrConfigInvalid)
		}
		return p.engine.AddHeuristic(r.Table, p.probe, r.DisplayName, r.InternalName, p.proto, r.EnabledByDefault)
	default:
		return fmt.Errorf("unsupported registration %T: %w", reg, core.ErrConfigInvalid)
	}
}
