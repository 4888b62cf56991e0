// Package metrics keeps Prometheus metrics for a dissection run.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/engine"
)

// Metrics holds the collectors of one session on a private registry, so
// several sessions in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	// FramesTotal counts frames handed to the engine
	FramesTotal prometheus.Counter
	// FramesFilteredTotal counts frames dropped by the port prefilter
	FramesFilteredTotal prometheus.Counter
	// ProtocolFramesTotal counts frames each protocol appeared in
	ProtocolFramesTotal *prometheus.CounterVec
	// MalformedTotal counts dissect errors by protocol
	MalformedTotal *prometheus.CounterVec
	// FrameDurationSeconds measures engine time per frame
	FrameDurationSeconds prometheus.Histogram
}

func New(session string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"session": session}

	return &Metrics{
		registry: reg,
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "dissect_frames_total",
			Help:        "Total number of frames dissected",
			ConstLabels: labels,
		}),
		FramesFilteredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "dissect_frames_filtered_total",
			Help:        "Total number of frames dropped by the capture filter",
			ConstLabels: labels,
		}),
		ProtocolFramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "dissect_protocol_frames_total",
			Help:        "Total number of frames a protocol was found in",
			ConstLabels: labels,
		}, []string{"protocol"}),
		MalformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "dissect_malformed_total",
			Help:        "Total number of dissect errors",
			ConstLabels: labels,
		}, []string{"protocol"}),
		FrameDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "dissect_frame_duration_seconds",
			Help:        "Time spent dissecting one frame in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		}),
	}
}

// Registry is the gatherer holding the session's collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFrame records one dissected frame.
func (m *Metrics) ObserveFrame(res *engine.Result, elapsed time.Duration) {
	m.FramesTotal.Inc()
	m.FrameDurationSeconds.Observe(elapsed.Seconds())
	for _, p := range res.Protocols {
		m.ProtocolFramesTotal.WithLabelValues(p).Inc()
	}
	for _, msg := range res.Malformed {
		// "sip: no end of header section"
		proto, _, _ := strings.Cut(msg, ":")
		m.MalformedTotal.WithLabelValues(proto).Inc()
	}
}

// ObserveReplay records the totals of a finished replay.
func (m *Metrics) ObserveReplay(stats *capture.Stats) {
	if stats != nil {
		m.FramesFilteredTotal.Add(float64(stats.Filtered))
	}
}

// WriteFile writes the metrics in text exposition format, e.g. for the
// node exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
