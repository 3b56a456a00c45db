package effect

import (
	"testing"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
)

func TestApplyCreatesAndSets(t *testing.T) {
	state := modelstate.New()
	eff := ir.Effect{
		Action: "create_doc",
		Creates: &ir.Creates{Entity: "Document", Bind: "doc"},
		Sets: []ir.SetOp{
			{TargetVar: "doc", Field: "owner", Value: ir.Value{Kind: ir.ValueFieldOf, SourceVar: "actor", SourceField: "name"}},
		},
	}
	actorID := state.CreateInstance("User")
	_ = state.SetField(actorID, "name", "alice")

	scope, err := Apply(eff, state, Scope{"actor": actorID})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	docID, ok := scope["doc"]
	if !ok {
		t.Fatal("expected doc bound in scope")
	}
	inst, _ := state.GetInstance(docID)
	if inst.Fields["owner"] != "alice" {
		t.Fatalf("expected owner=alice, got %v", inst.Fields["owner"])
	}
}

func TestApplyUnresolvedTargetIsError(t *testing.T) {
	state := modelstate.New()
	eff := ir.Effect{
		Action: "a",
		Sets:   []ir.SetOp{{TargetVar: "ghost", Field: "x", Value: ir.Value{Kind: ir.ValueLiteral, IntValue: intPtr(1)}}},
	}
	if _, err := Apply(eff, state, Scope{}); err == nil {
		t.Fatal("expected error for unresolved target variable")
	}
}

func intPtr(v int) *int { return &v }
