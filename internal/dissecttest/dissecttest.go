// Package dissecttest loads dissectors into a real engine for tests.
package dissecttest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/pkg/dissector"
)

// Load sets up every dissector with its options, keyed by filter name, and
// initializes the engine.
func Load(t testing.TB, opts map[string]map[string]any, ds ...dissector.Dissector) *engine.Engine {
	t.Helper()
	e := engine.New()
	for _, d := range ds {
		_, err := plugin.Setup(e, d, opts[d.ProtocolName().Filter])
		require.NoError(t, err)
	}
	require.NoError(t, e.Init())
	return e
}

// UDP builds a frame whose payload is offered under udp.port and to the
// udp heuristics. Eight zero bytes stand in for the UDP header.
func UDP(port uint32, payload []byte) engine.Frame {
	return transport("udp", port, payload)
}

func TCP(port uint32, payload []byte) engine.Frame {
	return transport("tcp", port, payload)
}

func transport(proto string, port uint32, payload []byte) engine.Frame {
	data := append(make([]byte, 8), payload...)
	return engine.Frame{
		Number:        1,
		Data:          data,
		PayloadOffset: 8,
		Layers:        []string{proto},
		Keys:          []engine.Key{{Table: proto + ".port", Values: []uint32{port}}},
		Heuristics:    []string{proto},
	}
}

// Find returns the first node with abbrev, depth first.
func Find(root *engine.Node, abbrev string) *engine.Node {
	var found *engine.Node
	root.Walk(func(n *engine.Node, _ int) {
		if found == nil && n.Abbrev == abbrev {
			found = n
		}
	})
	return found
}

// FindAll returns every node with abbrev in tree order.
func FindAll(root *engine.Node, abbrev string) []*engine.Node {
	var out []*engine.Node
	root.Walk(func(n *engine.Node, _ int) {
		if n.Abbrev == abbrev {
			out = append(out, n)
		}
	})
	return out
}
