// Package plugin connects dissectors to a decoding engine.
//
// Setup registers a pair of callbacks with the engine. During protoinfo the
// plugin registers the protocol, fields and trees and binds the resulting
// table into the dissector; during handoff it creates the dissect handle
// and turns each declared Registration into one engine call. Afterwards
// the engine drives dissect and probe callbacks, each of which takes shared
// access to the single dissector instance.
package plugin

import (
	"errors"
	"fmt"

	"firestige.xyz/dissect/internal/arbiter"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/internal/resolver"
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

// Plugin owns one dissector instance inside one engine.
type Plugin struct {
	name   string
	engine host.Engine
	slot   *arbiter.Arbiter[dissector.Dissector]
	log    log.Logger

	proto  host.ProtocolID
	table  *dissector.Table
	handle host.Handle
}

// Setup configures d with opts and registers it with engine. The engine
// calls back into the plugin when it initializes.
func Setup(engine host.Engine, d dissector.Dissector, opts map[string]any) (*Plugin, error) {
	name := d.ProtocolName().Filter
	if c, ok := d.(dissector.Configurable); ok {
		if err := c.Init(opts); err != nil {
			return nil, fmt.Errorf("dissector '%s' init: %v: %w", name, err, core.ErrPluginInitFailed)
		}
	}

	p := &Plugin{
		name:   name,
		engine: engine,
		slot:   arbiter.New[dissector.Dissector](),
		log:    log.GetLogger().WithField("plugin", name),
		proto:  -1,
	}
	if err := p.slot.Setup(d); err != nil {
		return nil, err
	}
	if err := engine.RegisterPlugin(host.Plugin{
		Name:              name,
		RegisterProtoInfo: p.registerProtoInfo,
		RegisterHandoff:   p.registerHandoff,
	}); err != nil {
		return nil, fmt.Errorf("dissector '%s': %w", name, err)
	}
	return p, nil
}

func (p *Plugin) Name() string { return p.name }

// Table is the resolved field table, nil before protoinfo.
func (p *Plugin) Table() *dissector.Table { return p.table }

func (p *Plugin) Protocol() host.ProtocolID { return p.proto }

func (p *Plugin) Handle() host.Handle { return p.handle }

func (p *Plugin) State() arbiter.State { return p.slot.State() }

func (p *Plugin) registerProtoInfo() {
	err := p.slot.Exclusive(func(d dissector.Dissector) error {
		name := d.ProtocolName()
		proto, err := p.engine.RegisterProtocol(name.Full, name.Short, name.Filter)
		if err != nil {
			return err
		}
		table, err := resolver.Register(p.engine, proto, d.Fields(), d.TreeCount())
		if err != nil {
			return err
		}
		p.proto, p.table = proto, table
		d.Bind(table)
		return nil
	})
	if err != nil {
		p.fatal("protoinfo", err)
	}
	p.log.WithFields(map[string]any{
		"protocol": p.proto,
		"fields":   p.table.Len(),
		"trees":    p.table.TreeCount(),
	}).Debug("protocol registered")
}

func (p *Plugin) dissect(buf host.Buffer, tree host.Tree) (int, error) {
	defer p.escalate("dissect")
	var n int
	entered := false
	err := p.slot.Shared(func(d dissector.Dissector) error {
		entered = true
		var err error
		n, err = d.Dissect(dissector.NewProtoTree(p.engine, tree), dissector.NewBuffer(p.engine, buf))
		return err
	})
	if !entered {
		p.fatal("dissect", err)
	}
	return n, err
}

func (p *Plugin) probe(buf host.Buffer, tree host.Tree) bool {
	defer p.escalate("probe")
	var accepted bool
	entered := false
	err := p.slot.Shared(func(d dissector.Dissector) error {
		entered = true
		accepted = d.(dissector.Prober).Probe(dissector.NewProtoTree(p.engine, tree), dissector.NewBuffer(p.engine, buf))
		return nil
	})
	if !entered {
		p.fatal("probe", err)
	}
	return accepted
}

// escalate turns a lookup miss raised by the dissector's table into a plugin
// failure. Other panics keep unwinding unchanged.
func (p *Plugin) escalate(stage string) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok && (errors.Is(err, core.ErrUndeclaredField) || errors.Is(err, core.ErrUndeclaredTree)) {
		p.fatal(stage, err)
	}
	panic(r)
}

// fatal aborts the plugin. The engine treats the panic as a failed load
// during registration and lets it escape during dissection.
func (p *Plugin) fatal(stage string, err error) {
	p.log.WithField("stage", stage).WithError(err).Error("dissector plugin failure")
	panic(fmt.Errorf("%s: %w", stage, err))
}
