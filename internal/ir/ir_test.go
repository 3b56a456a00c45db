package ir

import "testing"

func TestGrammarValidateRejectsInvertedRepeatBounds(t *testing.T) {
	g := Grammar{Kind: GrammarRepeat, Min: 5, Max: 2, Body: &Grammar{Kind: GrammarTerminal, Action: "a"}}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for inverted bounds")
	}
}

func TestGrammarValidateAcceptsLinearProtocol(t *testing.T) {
	g := Grammar{Kind: GrammarSeq, Children: []Grammar{
		{Kind: GrammarTerminal, Action: "a"},
		{Kind: GrammarTerminal, Action: "b"},
	}}
	if err := g.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExprValidateLiteralRequiresExactlyOneValue(t *testing.T) {
	b := true
	n := 1
	e := Expr{Kind: ExprLiteral, BoolValue: &b, IntValue: &n}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for ambiguous literal")
	}
}

func TestIRLookupHelpers(t *testing.T) {
	doc := IR{
		Entities: []EntityType{{Name: "Document", Fields: []FieldDef{{Name: "owner", Kind: FieldString}}}},
		Effects:  []Effect{{Action: "a", Sets: nil}},
		Bindings: []Binding{{Action: "a", Function: "doA"}},
	}
	if _, ok := doc.EntityByName("Document"); !ok {
		t.Fatal("expected Document entity")
	}
	if _, ok := doc.EffectByAction("a"); !ok {
		t.Fatal("expected effect for a")
	}
	if _, ok := doc.BindingByAction("missing"); ok {
		t.Fatal("expected no binding for missing action")
	}
}
