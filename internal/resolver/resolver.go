// Package resolver registers a dissector's declared fields and trees with the
// engine and binds the indices the engine hands back.
package resolver

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

// Register submits fields as one batch and allocates trees subtree folds,
// then builds the resolved table. No index is ever invented here: every index
// in the table came from the engine.
func Register(engine host.Registrar, proto host.ProtocolID, fields []dissector.Field, trees int) (*dissector.Table, error) {
	if trees < 0 {
		return nil, fmt.Errorf("negative tree count %d: %w", trees, core.ErrConfigInvalid)
	}
	if err := validate(fields); err != nil {
		return nil, err
	}

	hfs := make([]host.HeaderField, len(fields))
	for i, f := range fields {
		hfs[i] = f.HeaderField()
	}

	var indices []host.FieldIndex
	if len(hfs) > 0 {
		var err error
		indices, err = engine.RegisterFieldArray(proto, hfs)
		if err != nil {
			return nil, fmt.Errorf("register fields: %w", err)
		}
		if len(indices) != len(hfs) {
			return nil, fmt.Errorf("submitted %d fields, got %d indices: %w", len(hfs), len(indices), core.ErrHostContract)
		}
	}

	var etts []host.TreeIndex
	if trees > 0 {
		var err error
		etts, err = engine.RegisterSubtreeArray(trees)
		if err != nil {
			return nil, fmt.Errorf("register trees: %w", err)
		}
		if len(etts) != trees {
			return nil, fmt.Errorf("requested %d trees, got %d: %w", trees, len(etts), core.ErrHostContract)
		}
	}

	return dissector.NewTable(fields, indices, etts)
}

func validate(fields []dissector.Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Abbrev]; dup {
			return fmt.Errorf("field %q declared twice: %w", f.Abbrev, core.ErrDuplicateAbbrev)
		}
		seen[f.Abbrev] = struct{}{}
	}
	return nil
}
