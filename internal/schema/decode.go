package schema

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeParams decodes a provider's raw parameter block (as read from
// ComponentCfg.Providers[name]) into dst, a pointer to the provider's typed
// configuration struct. Unknown keys in raw are an error, matching the
// config loader's own KnownFields(true) strictness.
func DecodeParams(raw map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("schema: build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("schema: decode provider params: %w", err)
	}
	return nil
}
