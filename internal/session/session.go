// Package session bootstraps an engine from configuration: it loads the
// selected dissectors, initializes the engine, applies user selections and
// replays a capture through it.
package session

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/internal/metrics"
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/internal/render"
)

type Session struct {
	id      string
	cfg     *config.Config
	engine  *engine.Engine
	plugins []*plugin.Plugin
	metrics *metrics.Metrics
	log     log.Logger
}

// New builds a ready engine from cfg using the dissectors in reg. A nil
// reg selects the built-in registry.
func New(cfg *config.Config, reg *plugin.Registry) (*Session, error) {
	if reg == nil {
		reg = plugin.Dissectors()
	}
	id := uuid.NewString()
	s := &Session{
		id:      id,
		cfg:     cfg,
		engine:  engine.New(),
		metrics: metrics.New(id),
		log:     log.GetLogger().WithField("session", id),
	}

	order, err := reg.LoadOrder(cfg.Dissectors.Enabled)
	if err != nil {
		return nil, err
	}
	loaded := make(map[string]bool, len(order))
	for _, name := range order {
		factory, _, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		p, err := plugin.Setup(s.engine, factory(), cfg.Dissectors.Options[name])
		if err != nil {
			return nil, err
		}
		s.plugins = append(s.plugins, p)
		loaded[name] = true
	}
	for name := range cfg.Dissectors.Options {
		if !loaded[name] {
			s.log.WithField("dissector", name).Warn("options given for a dissector that is not loaded")
		}
	}

	if err := s.engine.Init(); err != nil {
		return nil, err
	}
	if err := s.applySelections(); err != nil {
		return nil, err
	}
	s.log.WithFields(map[string]any{"dissectors": order}).Info("session ready")
	return s, nil
}

func (s *Session) applySelections() error {
	for _, d := range s.cfg.Engine.DecodeAs {
		if err := s.engine.SetDecodeAs(d.Table, d.Value, d.Dissector); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(s.cfg.Engine.Heuristics))
	for name := range s.cfg.Engine.Heuristics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.engine.SetHeuristicEnabled(name, s.cfg.Engine.Heuristics[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Engine() *engine.Engine { return s.engine }

func (s *Session) Plugins() []*plugin.Plugin { return s.plugins }

// Metrics returns the collectors Run feeds.
func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

// Run replays the configured capture file and renders every frame to w,
// or to Kafka when the output format is kafka.
func (s *Session) Run(ctx context.Context, w io.Writer) (*capture.Stats, error) {
	r, err := s.renderer(ctx, w)
	if err != nil {
		return nil, err
	}

	mcfg := s.cfg.Output.Metrics
	if mcfg.Listen != "" {
		srv := metrics.NewServer(mcfg.Listen, mcfg.Path, s.metrics.Registry())
		if err := srv.Start(); err != nil {
			r.Close()
			return nil, err
		}
		defer srv.Stop(context.Background())
	}

	malformed := 0
	stats, err := capture.Replay(ctx, capture.Options{
		File:    s.cfg.Capture.File,
		Ports:   s.cfg.Capture.Ports,
		Snaplen: s.cfg.Capture.Snaplen,
		Limit:   s.cfg.Capture.Limit,
	}, func(p capture.Packet) error {
		start := time.Now()
		res, err := s.engine.DissectFrame(p.Frame)
		if err != nil {
			return err
		}
		s.metrics.ObserveFrame(res, time.Since(start))
		if len(res.Malformed) > 0 {
			malformed++
		}
		return r.Render(res)
	})
	s.metrics.ObserveReplay(stats)
	if cerr := r.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to flush output: %w", cerr)
	}
	if mcfg.File != "" {
		if merr := s.metrics.WriteFile(mcfg.File); err == nil {
			err = merr
		}
	}
	if err != nil {
		return stats, err
	}
	s.log.WithFields(map[string]any{"frames": stats.Delivered, "malformed": malformed}).Info("run finished")
	return stats, nil
}

func (s *Session) renderer(ctx context.Context, w io.Writer) (render.Renderer, error) {
	opts := render.Options{Bytes: s.cfg.Output.Bytes, Session: s.id}
	if s.cfg.Output.Format == render.FormatKafka {
		return render.NewKafka(ctx, s.cfg.Output.Kafka, opts)
	}
	return render.New(w, s.cfg.Output.Format, opts)
}
