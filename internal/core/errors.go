// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with context and test with errors.Is.
var (
	// Configuration errors, fatal at registration time
	ErrConfigInvalid   = errors.New("dissect: invalid configuration")
	ErrDuplicateAbbrev = errors.New("dissect: duplicate field abbreviation")
	ErrRangeCapacity   = errors.New("dissect: range table capacity exceeded")
	ErrUndeclaredField = errors.New("dissect: field was not declared at registration")
	ErrUndeclaredTree  = errors.New("dissect: tree was not declared at registration")
	ErrHostContract    = errors.New("dissect: host violated registration contract")
	ErrPhase           = errors.New("dissect: operation not allowed in current phase")

	// Bounds errors, recoverable by the dissector
	ErrInsufficientData = errors.New("dissect: insufficient data")

	// Field errors raised by the host while extracting values
	ErrFieldKind = errors.New("dissect: operation not supported for field kind")

	// Instance arbitration errors
	ErrReentrant    = errors.New("dissect: dissector instance re-entered while held")
	ErrNotSetup     = errors.New("dissect: dissector instance not set up")
	ErrAlreadySetup = errors.New("dissect: dissector instance already set up")

	// Plugin errors
	ErrPluginNotFound   = errors.New("dissect: plugin not found")
	ErrPluginInitFailed = errors.New("dissect: plugin init failed")
)
