package rule

import "errors"

var (
	// ErrDepthExceeded is returned when a condition tree is deeper than the
	// configured maximum
	ErrDepthExceeded = errors.New("rule condition depth exceeded")

	// ErrUnknownOperator is returned for an operator outside the supported set
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidCondition is returned when a condition node is malformed
	ErrInvalidCondition = errors.New("invalid rule condition")

	// ErrNotFound is returned when a rule does not exist
	ErrNotFound = errors.New("rule not found")
)
