package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrConfigInvalid, ErrDuplicateAbbrev, ErrRangeCapacity, ErrUndeclaredField,
		ErrUndeclaredTree, ErrHostContract, ErrPhase, ErrInsufficientData, ErrFieldKind,
		ErrReentrant, ErrNotSetup, ErrAlreadySetup, ErrPluginNotFound, ErrPluginInitFailed,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
			}
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("field %q: %w", "proto.byte0", ErrUndeclaredField)
	assert.ErrorIs(t, err, ErrUndeclaredField)
	assert.Contains(t, err.Error(), "proto.byte0")
}
