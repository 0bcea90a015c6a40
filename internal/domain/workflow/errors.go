package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no transition is registered for
	// the requested (from, to) pair
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a status is outside the entity type's
	// state enumeration
	ErrInvalidState = errors.New("invalid state")

	// ErrConditionFailed is returned when a transition condition is not met
	ErrConditionFailed = errors.New("transition condition failed")

	// ErrRoleRequired is returned when the caller lacks every role a
	// transition requires
	ErrRoleRequired = errors.New("required role missing")

	// ErrDuplicateTransition is returned when registering a second definition
	// for the same (entityType, from, to) triple
	ErrDuplicateTransition = errors.New("duplicate transition definition")

	// ErrUnknownValidator is returned when a custom condition references a
	// validator ID absent from the registry
	ErrUnknownValidator = errors.New("unknown custom validator")
)
