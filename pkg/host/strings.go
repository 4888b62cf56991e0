package host

// Strings maps a decoded value to a display label.
type Strings interface {
	Label(v uint64) (string, bool)
}

// ValueString maps a 32-bit value to a label.
type ValueString struct {
	Value uint32
	Label string
}

// ValueStrings is a value_string style table.
type ValueStrings []ValueString

func (vs ValueStrings) Label(v uint64) (string, bool) {
	if v > 0xFFFFFFFF {
		return "", false
	}
	for _, e := range vs {
		if uint64(e.Value) == v {
			return e.Label, true
		}
	}
	return "", false
}

// Value64String maps a 64-bit value to a label.
type Value64String struct {
	Value uint64
	Label string
}

// Value64Strings is a val64_string style table.
type Value64Strings []Value64String

func (vs Value64Strings) Label(v uint64) (string, bool) {
	for _, e := range vs {
		if e.Value == v {
			return e.Label, true
		}
	}
	return "", false
}

// RangeString maps an inclusive value range to a label.
type RangeString struct {
	Low   uint64
	High  uint64
	Label string
}

// RangeStrings is a range_string style table. The first matching entry wins.
type RangeStrings []RangeString

func (rs RangeStrings) Label(v uint64) (string, bool) {
	for _, e := range rs {
		if v >= e.Low && v <= e.High {
			return e.Label, true
		}
	}
	return "", false
}
