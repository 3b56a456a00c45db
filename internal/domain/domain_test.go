package domain

import (
	"testing"

	"verityengine/internal/ir"
)

func TestEncodeBoolGetsOneVariable(t *testing.T) {
	set, err := Encode([]ir.Domain{{Name: "flag", Kind: ir.DomainBool}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if set.NumVars != 1 {
		t.Fatalf("expected 1 var, got %d", set.NumVars)
	}
	lit, err := set.Domains["flag"].Literal("true")
	if err != nil || lit != 1 {
		t.Fatalf("expected literal 1, got %d err=%v", lit, err)
	}
	neg, _ := set.Domains["flag"].Literal("false")
	if neg != -1 {
		t.Fatalf("expected literal -1, got %d", neg)
	}
}

func TestEncodeEnumExactlyOneClauses(t *testing.T) {
	set, err := Encode([]ir.Domain{{Name: "role", Kind: ir.DomainEnum, Labels: []string{"admin", "member", "guest"}}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if set.NumVars != 3 {
		t.Fatalf("expected 3 vars, got %d", set.NumVars)
	}
	// 1 at-least-one + 3 pairwise at-most-one = 4 clauses
	if len(set.Clauses) != 4 {
		t.Fatalf("expected 4 clauses, got %d", len(set.Clauses))
	}
}

func TestEncodeIntRangeOneHot(t *testing.T) {
	set, err := Encode([]ir.Domain{{Name: "n", Kind: ir.DomainInt, Min: 1, Max: 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if set.NumVars != 3 {
		t.Fatalf("expected 3 vars for range [1,3], got %d", set.NumVars)
	}
}

func TestEncodeIntRangeExceedsCapIsError(t *testing.T) {
	_, err := Encode([]ir.Domain{{Name: "n", Kind: ir.DomainInt, Min: 0, Max: 2000}})
	if err == nil {
		t.Fatal("expected error for range exceeding cap")
	}
}

func TestEncodeEmptyEnumIsError(t *testing.T) {
	_, err := Encode([]ir.Domain{{Name: "role", Kind: ir.DomainEnum}})
	if err == nil {
		t.Fatal("expected error for empty enum")
	}
}

func TestDecodeRoundTripsEncodedAssignment(t *testing.T) {
	set, err := Encode([]ir.Domain{
		{Name: "flag", Kind: ir.DomainBool},
		{Name: "role", Kind: ir.DomainEnum, Labels: []string{"admin", "guest"}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flagVar, _ := set.Domains["flag"].Literal("true")
	guestVar := set.Domains["role"].VarOf["guest"]
	assignment := map[int]bool{flagVar: false, guestVar: true}

	decoded, err := set.Decode(assignment)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["flag"] != "false" || decoded["role"] != "guest" {
		t.Fatalf("expected flag=false role=guest, got %+v", decoded)
	}
}

func TestEncodeSortedNameOrderDeterministic(t *testing.T) {
	domains := []ir.Domain{
		{Name: "z", Kind: ir.DomainBool},
		{Name: "a", Kind: ir.DomainBool},
	}
	set, err := Encode(domains)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	aLit, _ := set.Domains["a"].Literal("true")
	zLit, _ := set.Domains["z"].Literal("true")
	if aLit != 1 || zLit != 2 {
		t.Fatalf("expected a=1,z=2 by sorted order, got a=%d z=%d", aLit, zLit)
	}
}
