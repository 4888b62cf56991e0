package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/pkg/host"
)

func TestArena_StringDedupes(t *testing.T) {
	a := New()
	buf := []byte("proto.byte0")

	first := a.String(string(buf))
	second := a.String("proto.byte0")
	assert.Equal(t, "proto.byte0", first)
	assert.Equal(t, unsafe.StringData(first), unsafe.StringData(second))

	strs, size, tables := a.Stats()
	assert.Equal(t, 1, strs)
	assert.Equal(t, len("proto.byte0"), size)
	assert.Zero(t, tables)
}

func TestArena_StringsCopiesTables(t *testing.T) {
	a := New()
	vs := host.ValueStrings{{Value: 0, Label: "Zero"}, {Value: 1, Label: "One"}}

	kept := a.Strings(vs)
	vs[0].Label = "changed"

	label, ok := kept.Label(0)
	require.True(t, ok)
	assert.Equal(t, "Zero", label)

	rs := a.Strings(host.RangeStrings{{Low: 0, High: 5, Label: "Few"}})
	label, ok = rs.Label(3)
	require.True(t, ok)
	assert.Equal(t, "Few", label)

	assert.Nil(t, a.Strings(nil))
	_, _, tables := a.Stats()
	assert.Equal(t, 2, tables)
}

func TestArena_Field(t *testing.T) {
	a := New()
	hf := a.Field(host.HeaderField{
		Name:    "With strings",
		Abbrev:  "proto.runtime.with_strings",
		Kind:    host.KindUint8,
		Strings: host.Value64Strings{{Value: 3, Label: "Three"}},
	})
	assert.Equal(t, "proto.runtime.with_strings", hf.Abbrev)
	label, ok := hf.Strings.Label(3)
	require.True(t, ok)
	assert.Equal(t, "Three", label)
}
