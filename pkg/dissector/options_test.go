package dissector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/core"
)

type sampleOptions struct {
	Ports   []uint32      `mapstructure:"ports"`
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func TestDecodeOptions(t *testing.T) {
	opts := sampleOptions{Enabled: true}
	require.NoError(t, DecodeOptions(nil, &opts))
	assert.True(t, opts.Enabled)

	err := DecodeOptions(map[string]any{
		"ports":   []any{5060, "5061"},
		"enabled": "false",
		"ttl":     "90s",
	}, &opts)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5060, 5061}, opts.Ports)
	assert.False(t, opts.Enabled)
	assert.Equal(t, 90*time.Second, opts.TTL)
}

func TestDecodeOptions_UnknownKey(t *testing.T) {
	var opts sampleOptions
	err := DecodeOptions(map[string]any{"prots": []any{1}}, &opts)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
