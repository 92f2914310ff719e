package resolve

import "errors"

var (
	// ErrUnknownStrategy returned for a strategy or manual decision the engine does not know
	ErrUnknownStrategy = errors.New("unknown resolution strategy")

	// ErrInvalidResolution returned when a produced resolution fails validation
	ErrInvalidResolution = errors.New("invalid resolution")

	// ErrPolicyFailed returned when a field policy cannot merge the two values
	ErrPolicyFailed = errors.New("field policy failed")

	// ErrNilConflict returned for a nil conflict or a conflict without snapshots
	ErrNilConflict = errors.New("conflict is nil or incomplete")

	// ErrDecisionMismatch returned when a manual decision targets another conflict
	ErrDecisionMismatch = errors.New("decision does not match conflict")
)
