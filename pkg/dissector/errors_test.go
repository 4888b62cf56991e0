package dissector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/dissecttest"
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

var hfDelta = dissector.NewField("Delta", "kd.delta", host.KindInt8, host.BaseDec)

type kindDemo struct {
	dissector.Base
	errs *[]error
}

func (d *kindDemo) ProtocolName() dissector.ProtocolName {
	return dissector.ProtocolName{Full: "Kind demo", Short: "KD", Filter: "kd"}
}

func (d *kindDemo) Fields() []dissector.Field { return []dissector.Field{hfDelta} }

func (d *kindDemo) Registrations() []dissector.Registration {
	return []dissector.Registration{dissector.ExactMatch{Table: "udp.port", Pattern: 7020}}
}

func (d *kindDemo) Dissect(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	_, _, err := tree.AddItemUint(d.Table().Field(hfDelta), buf, 0, 1, dissector.BigEndian)
	*d.errs = append(*d.errs, err)
	_, err = buf.Subset(0, 4)
	*d.errs = append(*d.errs, err)
	return 1, nil
}

func TestExportedErrors(t *testing.T) {
	var errs []error
	e := dissecttest.Load(t, nil, &kindDemo{errs: &errs})

	_, err := e.DissectFrame(dissecttest.UDP(7020, []byte{0xFF}))
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], dissector.ErrFieldKind)
	assert.ErrorIs(t, errs[1], dissector.ErrInsufficientData)

	var opts struct {
		Port uint32 `mapstructure:"port"`
	}
	assert.ErrorIs(t, dissector.DecodeOptions(map[string]any{"bogus": 1}, &opts), dissector.ErrConfigInvalid)
	assert.ErrorIs(t, dissector.Ranges(make([]host.Range, host.MaxRanges+1)).Validate(), dissector.ErrRangeCapacity)
}
