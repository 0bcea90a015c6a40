// Package permission implements the role-based permission gate. The gate is
// a pure function over a configured role -> capability matrix; it performs
// no I/O of its own.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied is returned when the caller lacks a required capability
var ErrPermissionDenied = errors.New("permission denied")

// OwnSuffix marks grants that only apply to resources owned by the caller
const OwnSuffix = ":own"

// Matrix maps a role to its granted "resource:action" capabilities.
// A capability suffixed with ":own" only matches when the caller owns the
// resource. It is supplied as configuration, never hardcoded.
type Matrix map[string][]string

// Gate answers (role, resource, action) authorization questions
type Gate struct {
	grants map[string]map[string]bool
}

// NewGate builds a gate from a capability matrix. Capabilities are
// normalized to lower case.
func NewGate(matrix Matrix) *Gate {
	grants := make(map[string]map[string]bool, len(matrix))
	for role, caps := range matrix {
		set := make(map[string]bool, len(caps))
		for _, c := range caps {
			set[strings.ToLower(strings.TrimSpace(c))] = true
		}
		grants[strings.ToLower(role)] = set
	}
	return &Gate{grants: grants}
}

// HasPermission reports whether any of the caller's roles grants
// (resource, action). ownerID is the resource owner when ownership-scoped
// grants should be considered; pass "" when ownership does not apply.
func (g *Gate) HasPermission(userID string, roles []string, resource, action, ownerID string) bool {
	capability := strings.ToLower(resource + ":" + action)
	ownCapability := capability + OwnSuffix

	for _, role := range roles {
		set, ok := g.grants[strings.ToLower(role)]
		if !ok {
			continue
		}
		if set[capability] {
			return true
		}
		if set[ownCapability] && ownerID != "" && ownerID == userID {
			return true
		}
	}
	return false
}

// Require fails with ErrPermissionDenied when HasPermission is false
func (g *Gate) Require(userID string, roles []string, resource, action, ownerID string) error {
	if g.HasPermission(userID, roles, resource, action, ownerID) {
		return nil
	}
	return fmt.Errorf("%w: user %s lacks %s:%s", ErrPermissionDenied, userID, resource, action)
}

// DefaultMatrix is the fallback capability matrix used when configuration
// does not supply one
func DefaultMatrix() Matrix {
	return Matrix{
		"employee": {
			"invoices:create", "invoices:read:own", "invoices:update:own",
			"expenses:create", "expenses:read:own", "expenses:update:own",
			"expenses:delete:own", "invoices:delete:own",
		},
		"accountant": {
			"invoices:create", "invoices:read", "invoices:update", "invoices:send",
			"expenses:create", "expenses:read", "expenses:update",
			"audit:read", "reports:read",
		},
		"manager": {
			"invoices:create", "invoices:read", "invoices:update", "invoices:send",
			"invoices:approve", "invoices:delete",
			"expenses:create", "expenses:read", "expenses:update",
			"expenses:approve", "expenses:delete",
			"audit:read", "reports:read",
		},
		"finance": {
			"invoices:read", "expenses:read", "expenses:reimburse",
			"audit:read", "reports:read",
		},
		"admin": {
			"invoices:create", "invoices:read", "invoices:update", "invoices:send",
			"invoices:approve", "invoices:delete", "invoices:write_off",
			"expenses:create", "expenses:read", "expenses:update",
			"expenses:approve", "expenses:delete", "expenses:reimburse",
			"rules:read", "rules:write", "audit:read", "reports:read",
		},
	}
}
