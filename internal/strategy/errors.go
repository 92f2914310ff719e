package strategy

import "errors"

var (
	// ErrInvalidStrategy indicates that a strategy configuration is malformed
	ErrInvalidStrategy = errors.New("invalid merge strategy")

	// ErrUnknownResolver indicates that a custom policy names an unregistered resolver
	ErrUnknownResolver = errors.New("unknown custom resolver")
)
