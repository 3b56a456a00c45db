package fracture

import (
	"testing"

	"verityengine/internal/constraint"
	"verityengine/internal/domain"
	"verityengine/internal/ir"
	"verityengine/internal/sat"
)

func TestScenarioCAllPairsFullyCovered(t *testing.T) {
	set, err := domain.Encode([]ir.Domain{
		{Name: "role", Kind: ir.DomainEnum, Labels: []string{"admin", "member", "guest"}},
		{Name: "vis", Kind: ir.DomainEnum, Labels: []string{"private", "shared", "public"}},
		{Name: "owner", Kind: ir.DomainBool},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	solver := sat.New(set.NumVars, set.Clauses)
	plan := &Plan{Solver: solver, Domains: set, DomainVars: boolDomainVars(set)}

	targets := GenerateAllPairsTargets(set, []string{"role", "vis", "owner"})
	if len(targets) != 21 {
		t.Fatalf("expected 21 generated targets (3*3 + 3*2 + 3*2), got %d", len(targets))
	}

	result, err := Generate(plan, targets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Covered) != 21 {
		t.Fatalf("expected all 21 pairs covered, got %d", len(result.Covered))
	}
	if len(result.Uncoverable) != 0 {
		t.Fatalf("expected zero uncoverable, got %d: %+v", len(result.Uncoverable), result.Uncoverable)
	}
	if result.TotalTargets != 21 {
		t.Fatalf("expected total_targets=21, got %d", result.TotalTargets)
	}
}

func TestScenarioDConstraintForcedUncoverable(t *testing.T) {
	set, err := domain.Encode([]ir.Domain{
		{Name: "role", Kind: ir.DomainEnum, Labels: []string{"admin", "guest"}},
		{Name: "auth", Kind: ir.DomainBool},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	implies := ir.NaryOp(ir.OpImplies,
		ir.Expr{Kind: ir.ExprOp, Operator: ir.OpEq, Operands: []ir.Expr{
			{Kind: ir.ExprField, Var: "role"}, ir.StringLit("guest"),
		}},
		ir.Expr{Kind: ir.ExprOp, Operator: ir.OpEq, Operands: []ir.Expr{
			{Kind: ir.ExprField, Var: "auth"}, ir.BoolLit(false),
		}},
	)
	clauses, err := constraint.Encode(implies, set)
	if err != nil {
		t.Fatalf("constraint.Encode: %v", err)
	}

	base := append([][]int{}, set.Clauses...)
	for _, c := range clauses {
		base = append(base, []int(c))
	}
	solver := sat.New(set.NumVars, base)
	plan := &Plan{Solver: solver, Domains: set, DomainVars: boolDomainVars(set)}

	targets := GenerateAllPairsTargets(set, []string{"role", "auth"})
	if len(targets) != 4 {
		t.Fatalf("expected 4 generated targets (2x2), got %d", len(targets))
	}

	result, err := Generate(plan, targets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Covered) != 3 {
		t.Fatalf("expected exactly 3 covered pairs, got %d: %+v", len(result.Covered), result.Covered)
	}
	if len(result.Uncoverable) != 1 {
		t.Fatalf("expected exactly 1 uncoverable pair, got %d", len(result.Uncoverable))
	}
	u := result.Uncoverable[0]
	if u.Assignments["role"] != "guest" || u.Assignments["auth"] != "true" {
		t.Fatalf("expected (role=guest, auth=true) uncoverable, got %+v", u.Assignments)
	}
}

func TestGenerateClassifiesEachTransitionAsDelegated(t *testing.T) {
	set, err := domain.Encode([]ir.Domain{{Name: "flag", Kind: ir.DomainBool}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	solver := sat.New(set.NumVars, set.Clauses)
	plan := &Plan{Solver: solver, Domains: set, DomainVars: boolDomainVars(set)}

	targets := []Target{{Kind: TargetEachTransition, Machine: "session"}}
	result, err := Generate(plan, targets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Delegated) != 1 || len(result.Covered) != 0 || len(result.Uncoverable) != 0 {
		t.Fatalf("expected target delegated, not solved, got %+v", result)
	}
}

func TestGenerateBoundaryTargetsAddsAutoIntBounds(t *testing.T) {
	set, err := domain.Encode([]ir.Domain{{Name: "n", Kind: ir.DomainInt, Min: 1, Max: 10}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	targets := GenerateBoundaryTargets(set, "n", nil)
	want := map[string]bool{"1": false, "10": false, "2": false, "9": false}
	for _, tg := range targets {
		if _, ok := want[tg.Assignments["n"]]; ok {
			want[tg.Assignments["n"]] = true
		}
	}
	for v, found := range want {
		if !found {
			t.Fatalf("expected boundary value %q among generated targets, got %+v", v, targets)
		}
	}
}
