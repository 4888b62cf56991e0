package dissector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

func TestField_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantErr bool
	}{
		{"simple", NewField("Byte 0", "proto.byte0", host.KindUint8, host.BaseHex), false},
		{"protocol", NewField("Proto", "proto", host.KindProtocol, host.BaseNone), false},
		{"empty name", NewField("", "proto.x", host.KindUint8, host.BaseHex), true},
		{"empty abbrev", NewField("X", "", host.KindUint8, host.BaseHex), true},
		{"whitespace abbrev", NewField("X", "proto x", host.KindUint8, host.BaseHex), true},
		{"bad kind", NewField("X", "proto.x", host.FieldKind(99), host.BaseHex), true},
		{"labels on integer", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindUint32,
			Strings: host.ValueStrings{{Value: 0, Label: "Zero"}}}, false},
		{"labels on string", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindString,
			Strings: host.ValueStrings{{Value: 0, Label: "Zero"}}}, true},
		{"64-bit labels on uint64", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindUint64,
			Strings: host.Value64Strings{{Value: 1 << 40, Label: "Big"}}}, false},
		{"64-bit labels on uint32", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindUint32,
			Strings: host.Value64Strings{{Value: 1, Label: "One"}}}, true},
		{"bitmask on integer", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindUint16, Bitmask: 0x0FF0}, false},
		{"bitmask on bytes", Field{Name: "X", Abbrev: "proto.x", Kind: host.KindBytes, Bitmask: 0x1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestField_HeaderField(t *testing.T) {
	f := Field{
		Name:    "Flags",
		Abbrev:  "proto.flags",
		Kind:    host.KindUint16,
		Display: host.BaseDec,
		Bitmask: 0x00F0,
		Blurb:   "four flag bits",
	}
	hf := f.HeaderField()
	assert.Equal(t, "Flags", hf.Name)
	assert.Equal(t, "proto.flags", hf.Abbrev)
	assert.Equal(t, host.KindUint16, hf.Kind)
	assert.Equal(t, host.BaseDec, hf.Display)
	assert.Equal(t, uint64(0x00F0), hf.Bitmask)
	assert.Equal(t, "four flag bits", hf.Blurb)
	assert.Equal(t, "Flags (proto.flags)", f.String())
}
