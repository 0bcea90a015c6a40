// Package workflow is the application-layer transition engine: it validates
// a requested transition through the domain state machine, applies it under
// optimistic lock, records history, and triggers the registered side
// effects.
package workflow

import (
	"context"
	"fmt"

	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
)

// InvalidTransitionError reports a transition rejected before any mutation:
// either no registered edge or an unmet condition.
type InvalidTransitionError struct {
	From   domainwf.Status
	To     domainwf.Status
	Reason string
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// Result is the outcome of a committed transition
type Result struct {
	NewStatus           domainwf.Status `json:"new_status"`
	NewVersion          int64           `json:"new_version"`
	ExecutedSideEffects []string        `json:"executed_side_effects,omitempty"`
	Warnings            []string        `json:"warnings,omitempty"`
}

// ActionSet describes what the caller may do next with an entity
type ActionSet struct {
	PermittedFlags map[string]bool   `json:"permitted_flags"`
	NextStates     []domainwf.Status `json:"next_states"`
}

// Engine executes validated state transitions
type Engine interface {
	// ExecuteTransition validates and applies one transition. Validation
	// failures return *InvalidTransitionError with no writes performed;
	// optimistic-lock losses return tx.ErrConcurrentModification. Side
	// effect failures degrade to warnings on the result, never errors: the
	// transition is already committed.
	ExecuteTransition(ctx context.Context, tctx domainwf.Context) (*Result, error)

	// AvailableActions computes the reachable next states filtered by the
	// caller's roles, permissions, and transition conditions. No mutation.
	AvailableActions(ctx context.Context, tctx domainwf.Context) (*ActionSet, error)
}

// EffectRunner executes one synchronous side effect. Implementations live
// in the service layer where the audit logger and notification queue are
// wired.
type EffectRunner interface {
	Run(ctx context.Context, effect domainwf.SideEffect, tctx domainwf.Context) error
}
