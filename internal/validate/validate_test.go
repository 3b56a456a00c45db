package validate

import (
	"testing"

	"verityengine/internal/ir"
)

func TestValidateLinearProtocolIsClean(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarSeq,
			Children: []ir.Grammar{
				{Kind: ir.GrammarTerminal, Action: "a"},
				{Kind: ir.GrammarTerminal, Action: "b"},
			},
		}}},
		Effects:  []ir.Effect{{Action: "a"}, {Action: "b"}},
		Bindings: []ir.Binding{{Action: "a", Function: "a"}, {Action: "b", Function: "b"}},
	}
	if errs := Validate(model); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateMissingEffectAndBinding(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"}}},
	}
	errs := Validate(model)
	found := map[ErrorKind]bool{}
	for _, e := range errs {
		found[e.Kind] = true
	}
	if !found[MissingEffect] || !found[MissingBinding] {
		t.Fatalf("expected MissingEffect and MissingBinding, got %v", errs)
	}
}

func TestValidateAllZeroWeights(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarAlt,
			Branches: []ir.AltBranch{
				{Weight: 0, Body: ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"}},
			},
		}}},
		Effects:  []ir.Effect{{Action: "a"}},
		Bindings: []ir.Binding{{Action: "a", Function: "a"}},
	}
	errs := Validate(model)
	if len(errs) != 1 || errs[0].Kind != AllZeroWeights {
		t.Fatalf("expected exactly one AllZeroWeights error, got %v", errs)
	}
}

func TestValidateInvalidRepeatBounds(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarRepeat, Min: 5, Max: 1,
			Body: &ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"},
		}}},
		Effects:  []ir.Effect{{Action: "a"}},
		Bindings: []ir.Binding{{Action: "a", Function: "a"}},
	}
	errs := Validate(model)
	if len(errs) != 1 || errs[0].Kind != InvalidRepeatBounds {
		t.Fatalf("expected exactly one InvalidRepeatBounds error, got %v", errs)
	}
}

func TestValidateDanglingProtocolRef(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{Kind: ir.GrammarRef, Protocol: "Ghost"}}},
	}
	errs := Validate(model)
	if len(errs) != 1 || errs[0].Kind != DanglingProtocolRef {
		t.Fatalf("expected exactly one DanglingProtocolRef error, got %v", errs)
	}
}

func TestValidateDanglingEntityRef(t *testing.T) {
	model := &ir.IR{
		Refinements: []ir.Refinement{{Name: "r", EntityType: "Ghost"}},
	}
	errs := Validate(model)
	if len(errs) != 1 || errs[0].Kind != DanglingEntityRef {
		t.Fatalf("expected exactly one DanglingEntityRef error, got %v", errs)
	}
}
