package dissector

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Registration is a request to be invoked by the engine under some trigger.
// Every registration produces exactly one engine call during handoff.
type Registration interface {
	Validate() error
	isRegistration()
}

// PostDissector asks to run after every unit the engine decodes.
type PostDissector struct{}

// ExactMatch asks to run when Table carries exactly Pattern, e.g. a port.
type ExactMatch struct {
	Table   string
	Pattern uint32
}

// RangeMatch asks to run when Table carries a value inside one of Ranges.
type RangeMatch struct {
	Table  string
	Ranges Ranges
}

// ManualSelection offers the dissector for user-directed "decode as".
type ManualSelection struct {
	Table string
}

// Heuristic registers a speculative probe that runs when no table entry
// claimed the data. The dissector must implement Prober.
type Heuristic struct {
	Table            string
	DisplayName      string
	InternalName     string
	EnabledByDefault bool
}

func (PostDissector) isRegistration()   {}
func (ExactMatch) isRegistration()      {}
func (RangeMatch) isRegistration()      {}
func (ManualSelection) isRegistration() {}
func (Heuristic) isRegistration()       {}

func (PostDissector) Validate() error { return nil }

func (r ExactMatch) Validate() error {
	return requireTable("exact match", r.Table)
}

func (r RangeMatch) Validate() error {
	if err := requireTable("range match", r.Table); err != nil {
		return err
	}
	return r.Ranges.Validate()
}

func (r ManualSelection) Validate() error {
	return requireTable("manual selection", r.Table)
}

func (r Heuristic) Validate() error {
	if err := requireTable("heuristic", r.Table); err != nil {
		return err
	}
	if r.InternalName == "" {
		return fmt.Errorf("heuristic on %q: empty internal name: %w", r.Table, core.ErrConfigInvalid)
	}
	if r.DisplayName == "" {
		return fmt.Errorf("heuristic %q: empty display name: %w", r.InternalName, core.ErrConfigInvalid)
	}
	return nil
}

func (r ExactMatch) String() string      { return fmt.Sprintf("%s == %d", r.Table, r.Pattern) }
func (r RangeMatch) String() string      { return fmt.Sprintf("%s in %s", r.Table, r.Ranges) }
func (r ManualSelection) String() string { return fmt.Sprintf("decode-as %s", r.Table) }
func (r Heuristic) String() string       { return fmt.Sprintf("heuristic %s/%s", r.Table, r.InternalName) }
func (PostDissector) String() string     { return "postdissector" }

func requireTable(kind, table string) error {
	if table == "" {
		return fmt.Errorf("%s: empty table name: %w", kind, core.ErrConfigInvalid)
	}
	return nil
}

// Ranges is an ordered list of inclusive integer ranges.
type Ranges []host.Range

// Validate enforces the engine's capacity and low <= high.
func (rs Ranges) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("empty range list: %w", core.ErrConfigInvalid)
	}
	if len(rs) > host.MaxRanges {
		return fmt.Errorf("%d ranges, limit %d: %w", len(rs), host.MaxRanges, core.ErrRangeCapacity)
	}
	for i, r := range rs {
		if r.Low > r.High {
			return fmt.Errorf("range %d: low %d > high %d: %w", i, r.Low, r.High, core.ErrConfigInvalid)
		}
	}
	return nil
}

// Find returns the position of the first range containing v.
func (rs Ranges) Find(v uint32) (int, bool) {
	for i, r := range rs {
		if r.Contains(v) {
			return i, true
		}
	}
	return -1, false
}

func (rs Ranges) String() string {
	s := "["
	for i, r := range rs {
		if i > 0 {
			s += ","
		}
		if r.Low == r.High {
			s += fmt.Sprintf("%d", r.Low)
		} else {
			s += fmt.Sprintf("%d-%d", r.Low, r.High)
		}
	}
	return s + "]"
}
