package domain

import "errors"

// Sentinel errors. Adapters wrap these with %w so callers can use errors.Is.
var (
	// ErrSourceUnreadable marks a grid file that could not be opened or decoded.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrMissingRequiredField marks a grid lacking the scalar variable or coordinates.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUnparseableSource marks a source name with no band or timestamp.
	ErrUnparseableSource = errors.New("unparseable source name")

	// ErrNoValidData is the only run-level failure: nothing usable was sampled.
	ErrNoValidData = errors.New("nothing to analyze: no valid samples")

	ErrInvalidRequest = errors.New("invalid analysis request")
	ErrInvalidGrid    = errors.New("invalid grid")
)
