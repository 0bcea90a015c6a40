package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// ValidatorFunc is a named predicate over an entity snapshot. It returns
// false with an optional detail message when the entity fails the check.
type ValidatorFunc func(ent entity.WorkflowableEntity) (bool, string)

// ValidatorRegistry resolves CUSTOM condition validator IDs to functions.
// IDs are stable strings so transition definitions remain serializable.
type ValidatorRegistry struct {
	mu         sync.RWMutex
	validators map[string]ValidatorFunc
}

// NewValidatorRegistry creates an empty validator registry
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make(map[string]ValidatorFunc),
	}
}

// Register binds a validator ID to a function. Re-registering an ID panics:
// the registry is assembled once at startup and must not be ambiguous.
func (r *ValidatorRegistry) Register(id string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validators[id]; exists {
		panic(fmt.Sprintf("validator already registered: %s", id))
	}
	r.validators[id] = fn
}

// Resolve returns the validator for an ID
func (r *ValidatorRegistry) Resolve(id string) (ValidatorFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.validators[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownValidator, id)
	}
	return fn, nil
}

// Built-in validator IDs
const (
	ValidatorHasReceipt     = "expense.has_receipt"
	ValidatorPositiveAmount = "document.positive_amount"
	ValidatorDueDateSet     = "invoice.due_date_set"
)

// DefaultValidatorRegistry returns a registry preloaded with the built-in
// validators referenced by the default transition tables
func DefaultValidatorRegistry() *ValidatorRegistry {
	r := NewValidatorRegistry()

	r.Register(ValidatorHasReceipt, func(ent entity.WorkflowableEntity) (bool, string) {
		v, _ := ent.Field("receipt_url")
		if v == nil || v == "" {
			return false, "a receipt attachment is required"
		}
		return true, ""
	})

	r.Register(ValidatorPositiveAmount, func(ent entity.WorkflowableEntity) (bool, string) {
		v, ok := ent.Field("amount")
		amount, isInt := v.(int64)
		if !ok || !isInt || amount <= 0 {
			return false, "amount must be greater than zero"
		}
		return true, ""
	})

	r.Register(ValidatorDueDateSet, func(ent entity.WorkflowableEntity) (bool, string) {
		v, _ := ent.Field("due_date")
		if v == nil {
			return false, "a due date must be set before sending"
		}
		if t, isTime := v.(time.Time); isTime && t.IsZero() {
			return false, "a due date must be set before sending"
		}
		return true, ""
	})

	return r
}
