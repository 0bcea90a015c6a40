package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is a comparison operator usable in rule conditions and
// transition conditions
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegex      Operator = "regex"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
	OpBetween    Operator = "between"
)

var validOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpStartsWith: true,
	OpEndsWith: true, OpRegex: true, OpIsNull: true, OpIsNotNull: true,
	OpBetween: true,
}

// String returns the string representation of the operator
func (o Operator) String() string {
	return string(o)
}

// IsValid returns true if the operator is one of the defined constants
func (o Operator) IsValid() bool {
	return validOperators[o]
}

// Compare applies the operator to an actual field value and an expected
// operand. Numeric comparisons coerce int/float variants; string operators
// require both sides to be strings.
func Compare(op Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case OpIsNull:
		return actual == nil, nil
	case OpIsNotNull:
		return actual != nil, nil
	}

	if actual == nil {
		// Only null-checks match a missing value
		return false, nil
	}

	switch op {
	case OpEq:
		return equals(actual, expected), nil
	case OpNe:
		return !equals(actual, expected), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(op, actual, expected)
	case OpIn, OpNotIn:
		return compareMembership(op, actual, expected)
	case OpContains, OpStartsWith, OpEndsWith:
		return compareString(op, actual, expected)
	case OpRegex:
		s, ok := actual.(string)
		if !ok {
			return false, fmt.Errorf("regex operator requires string value, got %T", actual)
		}
		pattern, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("regex operator requires string pattern, got %T", expected)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		return re.MatchString(s), nil
	case OpBetween:
		return compareBetween(actual, expected)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
}

func equals(actual, expected interface{}) bool {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if aok && eok {
		return af == ef
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func compareOrdered(op Operator, actual, expected interface{}) (bool, error) {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if !aok || !eok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, actual, expected)
	}

	switch op {
	case OpGt:
		return af > ef, nil
	case OpGte:
		return af >= ef, nil
	case OpLt:
		return af < ef, nil
	default:
		return af <= ef, nil
	}
}

func compareMembership(op Operator, actual, expected interface{}) (bool, error) {
	list, ok := toSlice(expected)
	if !ok {
		return false, fmt.Errorf("operator %s requires a list operand, got %T", op, expected)
	}

	found := false
	for _, item := range list {
		if equals(actual, item) {
			found = true
			break
		}
	}

	if op == OpNotIn {
		return !found, nil
	}
	return found, nil
}

func compareString(op Operator, actual, expected interface{}) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("operator %s requires string value, got %T", op, actual)
	}
	sub, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("operator %s requires string operand, got %T", op, expected)
	}

	switch op {
	case OpContains:
		return strings.Contains(s, sub), nil
	case OpStartsWith:
		return strings.HasPrefix(s, sub), nil
	default:
		return strings.HasSuffix(s, sub), nil
	}
}

func compareBetween(actual, expected interface{}) (bool, error) {
	bounds, ok := toSlice(expected)
	if !ok || len(bounds) != 2 {
		return false, fmt.Errorf("between operator requires a [min, max] operand, got %v", expected)
	}

	af, aok := toFloat(actual)
	lo, lok := toFloat(bounds[0])
	hi, hok := toFloat(bounds[1])
	if !aok || !lok || !hok {
		return false, fmt.Errorf("between operator requires numeric operands")
	}

	return af >= lo && af <= hi, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
