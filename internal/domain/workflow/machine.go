package workflow

import (
	"fmt"

	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// Machine validates requested transitions against the registry. It is a
// classic Mealy machine over the per-entity-type state graphs; it performs
// no I/O and never mutates the entity.
type Machine struct {
	registry   *Registry
	validators *ValidatorRegistry
}

// NewMachine creates a machine over a transition registry and a custom
// validator registry
func NewMachine(registry *Registry, validators *ValidatorRegistry) *Machine {
	return &Machine{
		registry:   registry,
		validators: validators,
	}
}

// Registry returns the transition registry the machine validates against
func (m *Machine) Registry() *Registry {
	return m.registry
}

// CanTransition checks whether the requested transition is registered and
// every guard passes. The first unmet condition's error message becomes the
// decision reason.
func (m *Machine) CanTransition(tctx Context) Decision {
	t, ok := m.registry.Lookup(tctx.Entity.EntityType(), tctx.From, tctx.To)
	if !ok {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("no transition registered from %s to %s for %s", tctx.From, tctx.To, tctx.Entity.EntityType()),
		}
	}

	if !m.hasRequiredRole(t, tctx.Roles) {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("transition %s -> %s requires one of roles %v", tctx.From, tctx.To, t.RequiredRoles),
		}
	}

	for _, cond := range t.Conditions {
		if met, reason := m.checkCondition(cond, tctx); !met {
			return Decision{Allowed: false, Reason: reason}
		}
	}

	return Decision{Allowed: true}
}

func (m *Machine) hasRequiredRole(t *Transition, roles []string) bool {
	if len(t.RequiredRoles) == 0 {
		return true
	}
	for _, required := range t.RequiredRoles {
		for _, have := range roles {
			if have == required {
				return true
			}
		}
	}
	return false
}

func (m *Machine) checkCondition(cond Condition, tctx Context) (bool, string) {
	switch cond.Kind {
	case ConditionFieldValue:
		value, known := tctx.Entity.Field(cond.Field)
		if !known {
			return false, fmt.Sprintf("unknown field %q", cond.Field)
		}
		met, err := rule.Compare(cond.Operator, value, cond.Value)
		if err != nil {
			return false, fmt.Sprintf("condition on %q failed to evaluate: %v", cond.Field, err)
		}
		if !met {
			return false, cond.ErrorMessage
		}
		return true, ""

	case ConditionUserRole:
		for _, have := range tctx.Roles {
			if have == cond.Role {
				return true, ""
			}
		}
		return false, cond.ErrorMessage

	case ConditionCustom:
		fn, err := m.validators.Resolve(cond.ValidatorID)
		if err != nil {
			return false, err.Error()
		}
		met, detail := fn(tctx.Entity)
		if !met {
			if cond.ErrorMessage != "" {
				return false, cond.ErrorMessage
			}
			return false, detail
		}
		return true, ""

	default:
		return false, fmt.Sprintf("unknown condition kind %q", cond.Kind)
	}
}
