package predicate

import (
	"testing"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
)

func TestEvalLiteralAndField(t *testing.T) {
	state := modelstate.New()
	id := state.CreateInstance("Document")
	_ = state.SetField(id, "owner", "alice")

	ctx := Context{State: state, Bindings: map[string]modelstate.EntityID{"doc": id}}
	v, err := Eval(ir.FieldAccess("doc", "owner"), ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != "alice" {
		t.Fatalf("expected alice, got %v", v)
	}
}

func TestEvalImpliesShortCircuits(t *testing.T) {
	ctx := Context{State: modelstate.New(), Bindings: map[string]modelstate.EntityID{}}
	e := ir.NaryOp(ir.OpImplies, ir.BoolLit(false), ir.BoolLit(false))
	b, err := EvalBool(e, ctx)
	if err != nil || !b {
		t.Fatalf("expected implies(false,false)=true, got %v err=%v", b, err)
	}
}

func TestEvalQuantifierForall(t *testing.T) {
	state := modelstate.New()
	a := state.CreateInstance("User")
	b := state.CreateInstance("User")
	_ = state.SetField(a, "active", true)
	_ = state.SetField(b, "active", true)

	e := ir.Expr{
		Kind:         ir.ExprQuantifier,
		QuantifierKind: ir.QuantForall,
		BoundVar:     "u",
		DomainEntity: "User",
		Body:         ptr(ir.FieldAccess("u", "active")),
	}
	ctx := Context{State: state, Bindings: map[string]modelstate.EntityID{}}
	ok, err := EvalBool(e, ctx)
	if err != nil || !ok {
		t.Fatalf("expected forall true, got %v err=%v", ok, err)
	}
}

func TestEvalFunctionCallUnsupportedWithoutDeriver(t *testing.T) {
	ctx := Context{State: modelstate.New(), Bindings: map[string]modelstate.EntityID{}}
	_, err := Eval(ir.Expr{Kind: ir.ExprFunctionCall, FunctionName: "f"}, ctx)
	if err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func ptr(e ir.Expr) *ir.Expr { return &e }
