// Package arena holds registration data the engine keeps for the life of
// the process. Entries are appended and never released.
package arena

import (
	"strings"
	"sync"

	"firestige.xyz/dissect/pkg/host"
)

// Arena interns strings and pins label tables.
type Arena struct {
	mu      sync.Mutex
	strs    map[string]string
	pinned  []host.Strings
	byteLen int
}

func New() *Arena {
	return &Arena{strs: make(map[string]string)}
}

// String returns the interned copy of s. Equal inputs return the same
// backing storage, which is detached from the caller's memory.
func (a *Arena) String(s string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.strs[s]; ok {
		return v
	}
	v := strings.Clone(s)
	a.strs[v] = v
	a.byteLen += len(v)
	return v
}

// Strings pins a label table and returns a private copy of it.
func (a *Arena) Strings(s host.Strings) host.Strings {
	if s == nil {
		return nil
	}
	var kept host.Strings
	switch t := s.(type) {
	case host.ValueStrings:
		c := make(host.ValueStrings, len(t))
		for i, e := range t {
			c[i] = host.ValueString{Value: e.Value, Label: a.String(e.Label)}
		}
		kept = c
	case host.Value64Strings:
		c := make(host.Value64Strings, len(t))
		for i, e := range t {
			c[i] = host.Value64String{Value: e.Value, Label: a.String(e.Label)}
		}
		kept = c
	case host.RangeStrings:
		c := make(host.RangeStrings, len(t))
		for i, e := range t {
			c[i] = host.RangeString{Low: e.Low, High: e.High, Label: a.String(e.Label)}
		}
		kept = c
	default:
		kept = s
	}

	a.mu.Lock()
	a.pinned = append(a.pinned, kept)
	a.mu.Unlock()
	return kept
}

// Field interns every string of a header field.
func (a *Arena) Field(hf host.HeaderField) host.HeaderField {
	hf.Name = a.String(hf.Name)
	hf.Abbrev = a.String(hf.Abbrev)
	hf.Blurb = a.String(hf.Blurb)
	hf.Strings = a.Strings(hf.Strings)
	return hf
}

// Stats reports the number of interned strings, their total size and the
// number of pinned tables.
func (a *Arena) Stats() (strs, bytes, tables int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.strs), a.byteLen, len(a.pinned)
}
