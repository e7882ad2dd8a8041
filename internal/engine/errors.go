package engine

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration is rejected.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrPartitionIncomplete means territory formation left cells unclaimed.
	ErrPartitionIncomplete = errors.New("territory partition incomplete")

	// ErrInvariant marks any other broken internal invariant. A run that
	// returns it must not continue.
	ErrInvariant = errors.New("invariant violated")
)
