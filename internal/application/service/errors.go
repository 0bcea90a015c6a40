package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// ErrAuditLogFailure marks an audit write that failed. It is warning-class:
// the operation that triggered the write proceeds regardless.
var ErrAuditLogFailure = errors.New("audit log write failed")

// RuleViolationError blocks an operation before any mutation when one or
// more CRITICAL rules trigger. The message lists every violated rule name.
type RuleViolationError struct {
	Violations []rule.Result
}

// Error implements the error interface
func (e *RuleViolationError) Error() string {
	names := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		names[i] = v.RuleName
	}
	return fmt.Sprintf("operation blocked by business rules: %s", strings.Join(names, ", "))
}

// Messages returns the per-rule messages for display
func (e *RuleViolationError) Messages() []string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Message != "" {
			msgs = append(msgs, v.Message)
		}
	}
	return msgs
}
