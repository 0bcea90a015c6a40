package rule

import (
	"fmt"
	"sort"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// DefaultMaxDepth bounds condition tree recursion when no explicit limit is
// configured
const DefaultMaxDepth = 10

// Evaluator evaluates rule condition trees against entity snapshots.
// Evaluation is deterministic and read-only.
type Evaluator struct {
	maxDepth int
}

// NewEvaluator creates an evaluator with the given recursion cap.
// A non-positive cap falls back to DefaultMaxDepth.
func NewEvaluator(maxDepth int) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Evaluator{maxDepth: maxDepth}
}

// MaxDepth returns the configured recursion cap
func (e *Evaluator) MaxDepth() int {
	return e.maxDepth
}

// Evaluate returns whether the rule's condition tree matches the entity
func (e *Evaluator) Evaluate(r *BusinessRule, ent entity.WorkflowableEntity) (bool, error) {
	if r.Condition == nil {
		return false, fmt.Errorf("%w: rule %q has no condition", ErrInvalidCondition, r.Name)
	}
	return e.evalNode(r.Condition, ent, 1)
}

// EvaluateAll evaluates every rule against the entity, ordered by priority
// (lower first). A rule whose evaluation errors yields a non-triggered
// result carrying the error; it never aborts the other rules.
func (e *Evaluator) EvaluateAll(rules []*BusinessRule, ent entity.WorkflowableEntity) []Result {
	ordered := make([]*BusinessRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	results := make([]Result, 0, len(ordered))
	for _, r := range ordered {
		if !r.IsActive {
			continue
		}

		triggered, err := e.Evaluate(r, ent)
		res := Result{
			RuleID:    r.ID,
			RuleName:  r.Name,
			Triggered: triggered,
			Err:       err,
		}
		if triggered {
			res.Action = r.Action
			res.Severity = r.Severity
			res.Message = r.Message
		}
		results = append(results, res)
	}

	return results
}

func (e *Evaluator) evalNode(c *Condition, ent entity.WorkflowableEntity, depth int) (bool, error) {
	if depth > e.maxDepth {
		return false, fmt.Errorf("%w: depth %d exceeds maximum %d", ErrDepthExceeded, depth, e.maxDepth)
	}

	switch c.Kind {
	case NodeLeaf:
		value, known := ent.Field(c.Field)
		if !known {
			return false, fmt.Errorf("%w: unknown field %q for %s", ErrInvalidCondition, c.Field, ent.EntityType())
		}
		return Compare(c.Operator, value, c.Value)

	case NodeAnd:
		for _, child := range c.Children {
			ok, err := e.evalNode(child, ent, depth+1)
			if err != nil {
				return false, err
			}
			if !ok {
				// Short-circuit on first false
				return false, nil
			}
		}
		return true, nil

	case NodeOr:
		for _, child := range c.Children {
			ok, err := e.evalNode(child, ent, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				// Short-circuit on first true
				return true, nil
			}
		}
		return false, nil

	case NodeNot:
		if len(c.Children) != 1 {
			return false, fmt.Errorf("%w: not node requires exactly one child", ErrInvalidCondition)
		}
		ok, err := e.evalNode(c.Children[0], ent, depth+1)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, fmt.Errorf("%w: unknown node kind %q", ErrInvalidCondition, c.Kind)
	}
}
