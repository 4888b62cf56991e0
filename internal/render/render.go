// Package render writes dissected frames as indented text or YAML.
package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/engine"
)

const (
	FormatText  = "text"
	FormatYAML  = "yaml"
	FormatKafka = "kafka" // YAML documents published to a topic, see NewKafka
)

// Renderer writes one frame at a time.
type Renderer interface {
	Render(res *engine.Result) error
	Close() error
}

// Options control what a renderer prints besides the tree.
type Options struct {
	Bytes   bool   // append the frame bytes
	Session string // run identifier, YAML only
}

func New(w io.Writer, format string, opts Options) (Renderer, error) {
	switch format {
	case "", FormatText:
		return &textRenderer{w: w, opts: opts}, nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &yamlRenderer{enc: enc, opts: opts}, nil
	default:
		return nil, fmt.Errorf("output format %q: %w", format, core.ErrConfigInvalid)
	}
}

type textRenderer struct {
	w      io.Writer
	opts   Options
	frames int
}

func (r *textRenderer) Render(res *engine.Result) error {
	var b strings.Builder
	if r.frames > 0 {
		b.WriteByte('\n')
	}
	r.frames++

	res.Tree.Walk(func(n *engine.Node, depth int) {
		b.WriteString(strings.Repeat("    ", depth))
		b.WriteString(n.Text)
		if n.Rejected {
			fmt.Fprintf(&b, " [rejected by %s]", n.Probe)
		}
		b.WriteByte('\n')
		if depth == 0 {
			fmt.Fprintf(&b, "    [Protocols in frame: %s]\n", strings.Join(res.Protocols, ":"))
		}
	})
	if r.opts.Bytes && len(res.Data) > 0 {
		b.WriteByte('\n')
		b.WriteString(hex.Dump(res.Data))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textRenderer) Close() error { return nil }

type frameDoc struct {
	Session   string       `yaml:"session,omitempty"`
	Number    int          `yaml:"number"`
	Length    int          `yaml:"length"`
	Protocols []string     `yaml:"protocols"`
	Malformed []string     `yaml:"malformed,omitempty"`
	Tree      *engine.Node `yaml:"tree"`
	Bytes     string       `yaml:"bytes,omitempty"`
}

type yamlRenderer struct {
	enc  *yaml.Encoder
	opts Options
}

// Render emits the frame as its own YAML document.
func (r *yamlRenderer) Render(res *engine.Result) error {
	if err := r.enc.Encode(newFrameDoc(res, r.opts)); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", res.Number, err)
	}
	return nil
}

func newFrameDoc(res *engine.Result, opts Options) frameDoc {
	doc := frameDoc{
		Session:   opts.Session,
		Number:    res.Number,
		Length:    res.Length,
		Protocols: res.Protocols,
		Malformed: res.Malformed,
		Tree:      res.Tree,
	}
	if opts.Bytes {
		doc.Bytes = hex.EncodeToString(res.Data)
	}
	return doc
}

func (r *yamlRenderer) Close() error {
	return r.enc.Close()
}
