package workflow

import (
	"fmt"
	"sort"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

type transitionKey struct {
	entityType entity.EntityType
	from       Status
	to         Status
}

type fromKey struct {
	entityType entity.EntityType
	from       Status
}

// Registry holds the static transition tables, keyed by entity type and
// source state. It is assembled at startup and immutable afterwards; no
// locking is needed on the read path.
type Registry struct {
	transitions map[transitionKey]*Transition
	byFrom      map[fromKey][]*Transition
}

// NewRegistry creates an empty transition registry
func NewRegistry() *Registry {
	return &Registry{
		transitions: make(map[transitionKey]*Transition),
		byFrom:      make(map[fromKey][]*Transition),
	}
}

// Register adds a transition definition. At most one definition may exist
// per (entityType, from, to) triple.
func (r *Registry) Register(entityType entity.EntityType, t Transition) error {
	if !entityType.IsValid() {
		return fmt.Errorf("%w: entity type %q", ErrInvalidState, entityType)
	}
	if !t.From.ValidFor(entityType) {
		return fmt.Errorf("%w: %s is not a %s state", ErrInvalidState, t.From, entityType)
	}
	if !t.To.ValidFor(entityType) {
		return fmt.Errorf("%w: %s is not a %s state", ErrInvalidState, t.To, entityType)
	}
	if t.From.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, t.From)
	}

	key := transitionKey{entityType: entityType, from: t.From, to: t.To}
	if _, exists := r.transitions[key]; exists {
		return fmt.Errorf("%w: %s %s -> %s", ErrDuplicateTransition, entityType, t.From, t.To)
	}

	def := t
	r.transitions[key] = &def
	fk := fromKey{entityType: entityType, from: t.From}
	r.byFrom[fk] = append(r.byFrom[fk], &def)

	return nil
}

// Lookup returns the transition registered for (entityType, from, to)
func (r *Registry) Lookup(entityType entity.EntityType, from, to Status) (*Transition, bool) {
	t, ok := r.transitions[transitionKey{entityType: entityType, from: from, to: to}]
	return t, ok
}

// From returns all transitions leaving a state, ordered by target state
// for deterministic iteration
func (r *Registry) From(entityType entity.EntityType, from Status) []*Transition {
	defs := r.byFrom[fromKey{entityType: entityType, from: from}]
	out := make([]*Transition, len(defs))
	copy(out, defs)
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

// mustRegister is used when assembling the built-in tables, where a
// registration failure is a programming error
func (r *Registry) mustRegister(entityType entity.EntityType, t Transition) {
	if err := r.Register(entityType, t); err != nil {
		panic(err)
	}
}

// DefaultRegistry returns the built-in invoice and expense transition
// tables. Terminal states (CANCELLED, PAID, WRITTEN_OFF, REIMBURSED) have
// no outgoing edges; REJECTED -> DRAFT reopens the workflow.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerInvoiceTransitions(r)
	registerExpenseTransitions(r)
	return r
}

func registerInvoiceTransitions(r *Registry) {
	inv := entity.EntityTypeInvoice

	notify := SideEffect{Kind: SideEffectNotification, Async: true}
	auditLog := SideEffect{Kind: SideEffectAuditLog}

	r.mustRegister(inv, Transition{
		From:               StatusDraft,
		To:                 StatusPendingApproval,
		RequiredPermission: Permission{Resource: "invoices", Action: "create"},
		Conditions: []Condition{
			{
				Kind:         ConditionFieldValue,
				Field:        "requires_approval",
				Operator:     "eq",
				Value:        true,
				ErrorMessage: "invoice does not require approval",
			},
			{
				Kind:         ConditionCustom,
				ValidatorID:  ValidatorPositiveAmount,
				ErrorMessage: "invoice amount must be greater than zero",
			},
		},
		SideEffects: []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusDraft,
		To:                 StatusSent,
		RequiredPermission: Permission{Resource: "invoices", Action: "send"},
		Conditions: []Condition{
			{
				Kind:         ConditionFieldValue,
				Field:        "requires_approval",
				Operator:     "eq",
				Value:        false,
				ErrorMessage: "invoice requires approval before sending",
			},
			{
				Kind:         ConditionCustom,
				ValidatorID:  ValidatorDueDateSet,
				ErrorMessage: "a due date must be set before sending",
			},
		},
		SideEffects: []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusDraft,
		To:                 StatusCancelled,
		RequiredPermission: Permission{Resource: "invoices", Action: "delete"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusPendingApproval,
		To:                 StatusApproved,
		RequiredRoles:      []string{"manager", "admin"},
		RequiredPermission: Permission{Resource: "invoices", Action: "approve"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusPendingApproval,
		To:                 StatusRejected,
		RequiredRoles:      []string{"manager", "admin"},
		RequiredPermission: Permission{Resource: "invoices", Action: "approve"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusPendingApproval,
		To:                 StatusCancelled,
		RequiredPermission: Permission{Resource: "invoices", Action: "delete"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusApproved,
		To:                 StatusSent,
		RequiredPermission: Permission{Resource: "invoices", Action: "send"},
		Conditions: []Condition{
			{
				Kind:         ConditionCustom,
				ValidatorID:  ValidatorDueDateSet,
				ErrorMessage: "a due date must be set before sending",
			},
		},
		SideEffects: []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusRejected,
		To:                 StatusDraft,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusSent,
		To:                 StatusPartiallyPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusSent,
		To:                 StatusPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusSent,
		To:                 StatusOverdue,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusPartiallyPaid,
		To:                 StatusPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusPartiallyPaid,
		To:                 StatusOverdue,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusOverdue,
		To:                 StatusPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusOverdue,
		To:                 StatusPartiallyPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusOverdue,
		To:                 StatusCollection,
		RequiredRoles:      []string{"manager", "admin"},
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusCollection,
		To:                 StatusPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusCollection,
		To:                 StatusPartiallyPaid,
		RequiredPermission: Permission{Resource: "invoices", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusCollection,
		To:                 StatusWrittenOff,
		RequiredRoles:      []string{"admin"},
		RequiredPermission: Permission{Resource: "invoices", Action: "write_off"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(inv, Transition{
		From:               StatusOverdue,
		To:                 StatusWrittenOff,
		RequiredRoles:      []string{"admin"},
		RequiredPermission: Permission{Resource: "invoices", Action: "write_off"},
		SideEffects:        []SideEffect{auditLog},
	})
}

func registerExpenseTransitions(r *Registry) {
	exp := entity.EntityTypeExpense

	notify := SideEffect{Kind: SideEffectNotification, Async: true}
	auditLog := SideEffect{Kind: SideEffectAuditLog}

	r.mustRegister(exp, Transition{
		From:               StatusDraft,
		To:                 StatusPendingApproval,
		RequiredPermission: Permission{Resource: "expenses", Action: "create"},
		Conditions: []Condition{
			{
				Kind:         ConditionCustom,
				ValidatorID:  ValidatorPositiveAmount,
				ErrorMessage: "expense amount must be greater than zero",
			},
		},
		SideEffects: []SideEffect{notify, auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusDraft,
		To:                 StatusCancelled,
		RequiredPermission: Permission{Resource: "expenses", Action: "delete"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusPendingApproval,
		To:                 StatusApproved,
		RequiredRoles:      []string{"manager", "admin"},
		RequiredPermission: Permission{Resource: "expenses", Action: "approve"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusPendingApproval,
		To:                 StatusRejected,
		RequiredRoles:      []string{"manager", "admin"},
		RequiredPermission: Permission{Resource: "expenses", Action: "approve"},
		SideEffects:        []SideEffect{notify, auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusPendingApproval,
		To:                 StatusCancelled,
		RequiredPermission: Permission{Resource: "expenses", Action: "delete"},
		SideEffects:        []SideEffect{auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusApproved,
		To:                 StatusReimbursed,
		RequiredRoles:      []string{"finance", "admin"},
		RequiredPermission: Permission{Resource: "expenses", Action: "reimburse"},
		Conditions: []Condition{
			{
				Kind:         ConditionCustom,
				ValidatorID:  ValidatorHasReceipt,
				ErrorMessage: "a receipt attachment is required before reimbursement",
			},
		},
		SideEffects: []SideEffect{notify, auditLog},
	})

	r.mustRegister(exp, Transition{
		From:               StatusRejected,
		To:                 StatusDraft,
		RequiredPermission: Permission{Resource: "expenses", Action: "update"},
		SideEffects:        []SideEffect{auditLog},
	})
}
