package rule

import (
	"errors"
	"testing"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

func highValueExpense() *entity.Expense {
	return &entity.Expense{
		ID:        1,
		Amount:    600000,
		Currency:  "USD",
		Category:  "travel",
		Status:    "DRAFT",
		Version:   1,
		CreatedBy: "user-1",
	}
}

func activeRule(name string, priority int, cond *Condition) *BusinessRule {
	return &BusinessRule{
		ID:         int64(priority),
		Name:       name,
		EntityType: entity.EntityTypeExpense,
		RuleType:   RuleTypeAmount,
		Condition:  cond,
		Action:     ActionFlagReview,
		Severity:   SeverityWarning,
		Message:    name + " triggered",
		Priority:   priority,
		IsActive:   true,
	}
}

func TestEvaluateLeaf(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)
	exp := highValueExpense()

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{name: "amount over threshold", cond: Leaf("amount", OpGt, 500000), want: true},
		{name: "amount under threshold", cond: Leaf("amount", OpGt, 700000), want: false},
		{name: "missing receipt", cond: Leaf("receipt_url", OpIsNull, nil), want: true},
		{name: "category membership", cond: Leaf("category", OpIn, []string{"travel", "meals"}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(activeRule(tt.name, 0, tt.cond), exp)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateComposite(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)
	exp := highValueExpense()

	highAndNoReceipt := And(
		Leaf("amount", OpGt, 500000),
		Leaf("receipt_url", OpIsNull, nil),
	)
	got, err := e.Evaluate(activeRule("r", 0, highAndNoReceipt), exp)
	if err != nil || !got {
		t.Errorf("and tree = (%v, %v), want (true, nil)", got, err)
	}

	either := Or(
		Leaf("amount", OpGt, 900000),
		Leaf("category", OpEq, "travel"),
	)
	got, err = e.Evaluate(activeRule("r", 0, either), exp)
	if err != nil || !got {
		t.Errorf("or tree = (%v, %v), want (true, nil)", got, err)
	}

	negated := Not(Leaf("currency", OpEq, "EUR"))
	got, err = e.Evaluate(activeRule("r", 0, negated), exp)
	if err != nil || !got {
		t.Errorf("not tree = (%v, %v), want (true, nil)", got, err)
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)
	exp := highValueExpense()

	// The second child errors (unknown field); a short-circuiting first
	// child must keep the error from surfacing.
	and := And(
		Leaf("amount", OpGt, 900000), // false, short-circuits
		Leaf("no_such_field", OpEq, 1),
	)
	got, err := e.Evaluate(activeRule("r", 0, and), exp)
	if err != nil || got {
		t.Errorf("and short-circuit = (%v, %v), want (false, nil)", got, err)
	}

	or := Or(
		Leaf("category", OpEq, "travel"), // true, short-circuits
		Leaf("no_such_field", OpEq, 1),
	)
	got, err = e.Evaluate(activeRule("r", 0, or), exp)
	if err != nil || !got {
		t.Errorf("or short-circuit = (%v, %v), want (true, nil)", got, err)
	}
}

func TestEvaluateDepthCap(t *testing.T) {
	e := NewEvaluator(3)

	deep := Leaf("amount", OpGt, 0)
	for i := 0; i < 5; i++ {
		deep = Not(deep)
	}

	_, err := e.Evaluate(activeRule("deep", 0, deep), highValueExpense())
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("Evaluate() error = %v, want ErrDepthExceeded", err)
	}
}

func TestEvaluateUnknownField(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)

	_, err := e.Evaluate(activeRule("r", 0, Leaf("supplier", OpEq, "x")), highValueExpense())
	if !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("Evaluate() error = %v, want ErrInvalidCondition", err)
	}
}

func TestEvaluateAllOrderingAndIsolation(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)
	exp := highValueExpense()

	broken := activeRule("broken", 5, Leaf("no_such_field", OpEq, 1))
	second := activeRule("second", 20, Leaf("amount", OpGt, 500000))
	first := activeRule("first", 10, Leaf("category", OpEq, "travel"))
	inactive := activeRule("inactive", 1, Leaf("amount", OpGt, 0))
	inactive.IsActive = false

	results := e.EvaluateAll([]*BusinessRule{second, first, broken, inactive}, exp)

	if len(results) != 3 {
		t.Fatalf("expected 3 results (inactive skipped), got %d", len(results))
	}
	if results[0].RuleName != "broken" || results[1].RuleName != "first" || results[2].RuleName != "second" {
		t.Errorf("results not ordered by priority: %s, %s, %s",
			results[0].RuleName, results[1].RuleName, results[2].RuleName)
	}
	if results[0].Err == nil || results[0].Triggered {
		t.Error("broken rule must carry its error and not trigger")
	}
	if !results[1].Triggered || !results[2].Triggered {
		t.Error("healthy rules must still evaluate when another rule errors")
	}
	if results[2].Severity != SeverityWarning || results[2].Message != "second triggered" {
		t.Errorf("triggered result missing rule metadata: %+v", results[2])
	}
}

func TestEvaluateAllDeterministic(t *testing.T) {
	e := NewEvaluator(DefaultMaxDepth)
	exp := highValueExpense()

	rules := []*BusinessRule{
		activeRule("a", 1, Leaf("amount", OpGt, 500000)),
		activeRule("b", 2, Leaf("receipt_url", OpIsNull, nil)),
		activeRule("c", 3, Leaf("category", OpEq, "travel")),
	}

	baseline := e.EvaluateAll(rules, exp)
	for i := 0; i < 10; i++ {
		again := e.EvaluateAll(rules, exp)
		for j := range baseline {
			if baseline[j].RuleName != again[j].RuleName || baseline[j].Triggered != again[j].Triggered {
				t.Fatalf("run %d diverged at result %d", i, j)
			}
		}
	}
}
