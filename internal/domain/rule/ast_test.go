package rule

import (
	"errors"
	"testing"
)

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name    string
		cond    *Condition
		wantErr error
	}{
		{
			name: "valid leaf",
			cond: Leaf("amount", OpGt, 500000),
		},
		{
			name: "valid composite",
			cond: And(
				Leaf("amount", OpGt, 500000),
				Not(Leaf("receipt_url", OpIsNotNull, nil)),
			),
		},
		{
			name:    "leaf missing field",
			cond:    &Condition{Kind: NodeLeaf, Operator: OpEq, Value: 1},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "leaf with unknown operator",
			cond:    Leaf("amount", Operator("like"), 1),
			wantErr: ErrUnknownOperator,
		},
		{
			name:    "and without children",
			cond:    &Condition{Kind: NodeAnd},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "not with two children",
			cond:    &Condition{Kind: NodeNot, Children: []*Condition{Leaf("a", OpEq, 1), Leaf("b", OpEq, 2)}},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "unknown kind",
			cond:    &Condition{Kind: NodeKind("xor")},
			wantErr: ErrInvalidCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate(DefaultMaxDepth)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConditionValidateDepthCap(t *testing.T) {
	deep := Leaf("amount", OpGt, 0)
	for i := 0; i < 4; i++ {
		deep = Not(deep)
	}

	if err := deep.Validate(3); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("Validate() error = %v, want ErrDepthExceeded", err)
	}
	if err := deep.Validate(10); err != nil {
		t.Errorf("Validate() with generous cap failed: %v", err)
	}
}

func TestConditionStorageRoundTrip(t *testing.T) {
	original := And(
		Leaf("amount", OpGt, float64(500000)),
		Or(
			Leaf("category", OpEq, "travel"),
			Leaf("receipt_url", OpIsNull, nil),
		),
	)

	data, err := original.MarshalJSONString()
	if err != nil {
		t.Fatalf("MarshalJSONString() error = %v", err)
	}

	parsed, err := ParseCondition(data)
	if err != nil {
		t.Fatalf("ParseCondition() error = %v", err)
	}

	if parsed.Kind != NodeAnd || len(parsed.Children) != 2 {
		t.Fatalf("parsed root malformed: %+v", parsed)
	}
	if parsed.Children[0].Field != "amount" || parsed.Children[0].Operator != OpGt {
		t.Errorf("parsed leaf malformed: %+v", parsed.Children[0])
	}
	if err := parsed.Validate(DefaultMaxDepth); err != nil {
		t.Errorf("parsed tree failed validation: %v", err)
	}
}

func TestParseConditionRejectsGarbage(t *testing.T) {
	if _, err := ParseCondition("{not json"); !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("ParseCondition() error = %v, want ErrInvalidCondition", err)
	}
}
