// Package dissector is the author-facing API for writing dissectors.
//
// A dissector declares its fields and subtree folds as plain data, receives the
// engine-assigned indices through Bind, and builds output trees through the
// ProtoTree façade while the engine drives it.
package dissector

import (
	"fmt"
	"strings"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Encodings accepted by the tree builder.
const (
	BigEndian    = host.EncodingBigEndian
	LittleEndian = host.EncodingLittleEndian
	ASCII        = host.EncodingASCII
	UTF8         = host.EncodingUTF8
)

// ToEnd as a length means "everything up to the end of the buffer".
const ToEnd = -1

// Field describes a displayable unit of data. Fields are values, so a
// registered field cannot be changed behind the engine's back.
type Field struct {
	Name    string
	Abbrev  string // unique, dotted path such as "proto.field"
	Kind    host.FieldKind
	Display host.Display
	Strings host.Strings // optional value to label mapping
	Bitmask uint64
	Blurb   string
}

// NewField builds a field with no label mapping, bitmask or blurb.
func NewField(name, abbrev string, kind host.FieldKind, display host.Display) Field {
	return Field{Name: name, Abbrev: abbrev, Kind: kind, Display: display}
}

func (f Field) String() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Abbrev)
}

// Validate checks the descriptor for errors the engine would reject.
func (f Field) Validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("field %q: empty name: %w", f.Abbrev, core.ErrConfigInvalid)
	case f.Abbrev == "":
		return fmt.Errorf("field %q: empty abbreviation: %w", f.Name, core.ErrConfigInvalid)
	case strings.ContainsAny(f.Abbrev, " \t\n"):
		return fmt.Errorf("field %q: abbreviation contains whitespace: %w", f.Abbrev, core.ErrConfigInvalid)
	case !f.Kind.Valid():
		return fmt.Errorf("field %q: unknown kind %v: %w", f.Abbrev, f.Kind, core.ErrConfigInvalid)
	}
	if f.Strings != nil && !f.Kind.Integer() {
		return fmt.Errorf("field %q: label mapping on %v: %w", f.Abbrev, f.Kind, core.ErrConfigInvalid)
	}
	if _, ok := f.Strings.(host.Value64Strings); ok && f.Kind.Width() < 5 {
		return fmt.Errorf("field %q: 64-bit labels on %v: %w", f.Abbrev, f.Kind, core.ErrConfigInvalid)
	}
	if f.Bitmask != 0 && !f.Kind.Integer() {
		return fmt.Errorf("field %q: bitmask on %v: %w", f.Abbrev, f.Kind, core.ErrConfigInvalid)
	}
	return nil
}

// HeaderField converts the descriptor into the engine's registration record.
func (f Field) HeaderField() host.HeaderField {
	return host.HeaderField{
		Name:    f.Name,
		Abbrev:  f.Abbrev,
		Kind:    f.Kind,
		Display: f.Display,
		Strings: f.Strings,
		Bitmask: f.Bitmask,
		Blurb:   f.Blurb,
	}
}

// TreeID names a subtree fold. Dissectors declare TreeIDs as a dense
// enumeration starting at zero and report the count through TreeCount.
type TreeID int
