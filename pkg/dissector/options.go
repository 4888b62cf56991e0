package dissector

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/dissect/internal/core"
)

// DecodeOptions decodes a dissector's option map into out, a pointer to a
// struct with mapstructure tags. Values coming from environment variables
// arrive as strings, so weak typing is on. Unknown keys are rejected.
func DecodeOptions(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrConfigInvalid)
	}
	return nil
}
