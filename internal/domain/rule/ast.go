package rule

import (
	"encoding/json"
	"fmt"
)

// NodeKind discriminates condition tree nodes
type NodeKind string

const (
	NodeLeaf NodeKind = "leaf"
	NodeAnd  NodeKind = "and"
	NodeOr   NodeKind = "or"
	NodeNot  NodeKind = "not"
)

// Condition is one node of a rule's condition tree: either a leaf field
// comparison or a logical composite over children. The tree serializes to
// JSON for storage.
type Condition struct {
	Kind NodeKind `json:"kind"`

	// Leaf fields
	Field    string      `json:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty"`

	// Composite children
	Children []*Condition `json:"children,omitempty"`
}

// Leaf builds a field comparison node
func Leaf(field string, op Operator, value interface{}) *Condition {
	return &Condition{Kind: NodeLeaf, Field: field, Operator: op, Value: value}
}

// And builds a conjunction node
func And(children ...*Condition) *Condition {
	return &Condition{Kind: NodeAnd, Children: children}
}

// Or builds a disjunction node
func Or(children ...*Condition) *Condition {
	return &Condition{Kind: NodeOr, Children: children}
}

// Not builds a negation node over a single child
func Not(child *Condition) *Condition {
	return &Condition{Kind: NodeNot, Children: []*Condition{child}}
}

// Validate checks structural soundness and enforces the depth cap
func (c *Condition) Validate(maxDepth int) error {
	return c.validate(1, maxDepth)
}

func (c *Condition) validate(depth, maxDepth int) error {
	if c == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidCondition)
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: depth %d exceeds maximum %d", ErrDepthExceeded, depth, maxDepth)
	}

	switch c.Kind {
	case NodeLeaf:
		if c.Field == "" {
			return fmt.Errorf("%w: leaf node missing field", ErrInvalidCondition)
		}
		if !c.Operator.IsValid() {
			return fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
		}
		if len(c.Children) > 0 {
			return fmt.Errorf("%w: leaf node has children", ErrInvalidCondition)
		}
	case NodeAnd, NodeOr:
		if len(c.Children) == 0 {
			return fmt.Errorf("%w: %s node requires at least one child", ErrInvalidCondition, c.Kind)
		}
		for _, child := range c.Children {
			if err := child.validate(depth+1, maxDepth); err != nil {
				return err
			}
		}
	case NodeNot:
		if len(c.Children) != 1 {
			return fmt.Errorf("%w: not node requires exactly one child", ErrInvalidCondition)
		}
		if err := c.Children[0].validate(depth+1, maxDepth); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInvalidCondition, c.Kind)
	}

	return nil
}

// MarshalJSONString serializes the condition tree for storage
func (c *Condition) MarshalJSONString() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal condition: %w", err)
	}
	return string(data), nil
}

// ParseCondition deserializes a stored condition tree
func ParseCondition(data string) (*Condition, error) {
	var cond Condition
	if err := json.Unmarshal([]byte(data), &cond); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return &cond, nil
}
