package protocol

import (
	"testing"

	"verityengine/internal/ir"
)

func TestCompileLinearSequence(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{
			Name: "P",
			Grammar: ir.Grammar{
				Kind: ir.GrammarSeq,
				Children: []ir.Grammar{
					{Kind: ir.GrammarTerminal, Action: "a"},
					{Kind: ir.GrammarTerminal, Action: "b"},
				},
			},
		}},
	}
	graph, compiled, err := Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, ok := compiled["P"]
	if !ok {
		t.Fatal("expected compiled protocol P")
	}
	start := graph.Nodes[p.Start]
	if start.Kind != NodeStart || len(start.Successors) != 1 {
		t.Fatalf("unexpected start node: %+v", start)
	}
	a := graph.Nodes[start.Successors[0]]
	if a.Kind != NodeTerminal || a.Action != "a" {
		t.Fatalf("expected terminal a, got %+v", a)
	}
	if len(a.Successors) != 1 {
		t.Fatalf("expected a to have one successor, got %+v", a.Successors)
	}
	b := graph.Nodes[a.Successors[0]]
	if b.Kind != NodeTerminal || b.Action != "b" {
		t.Fatalf("expected terminal b, got %+v", b)
	}
	if len(b.Successors) != 1 || graph.Nodes[b.Successors[0]].Kind != NodeEnd {
		t.Fatalf("expected b to lead to End, got %+v", b.Successors)
	}
}

func TestCompileAltProducesBranchAndJoin(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{
			Name: "P",
			Grammar: ir.Grammar{
				Kind: ir.GrammarAlt,
				Branches: []ir.AltBranch{
					{Weight: 60, Body: ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"}},
					{Weight: 40, Body: ir.Grammar{Kind: ir.GrammarTerminal, Action: "b"}},
				},
			},
		}},
	}
	graph, compiled, err := Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := graph.Nodes[compiled["P"].Start]
	branch := graph.Nodes[start.Successors[0]]
	if branch.Kind != NodeBranch || len(branch.Alternatives) != 2 {
		t.Fatalf("expected branch with 2 alternatives, got %+v", branch)
	}
}

func TestCompileRepeatProducesLoopEntryExit(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{
			Name: "P",
			Grammar: ir.Grammar{
				Kind: ir.GrammarRepeat,
				Min:  1, Max: 3,
				Body: &ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"},
			},
		}},
	}
	graph, compiled, err := Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := graph.Nodes[compiled["P"].Start]
	loopEntry := graph.Nodes[start.Successors[0]]
	if loopEntry.Kind != NodeLoopEntry || loopEntry.Min != 1 || loopEntry.Max != 3 {
		t.Fatalf("expected loop entry min=1 max=3, got %+v", loopEntry)
	}
	bodyStart := graph.Nodes[loopEntry.LoopBodyStart]
	if bodyStart.Kind != NodeTerminal || bodyStart.Action != "a" {
		t.Fatalf("expected loop body start terminal a, got %+v", bodyStart)
	}
}

func TestCompileRefInlinesReferencedProtocol(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{
			{Name: "Inner", Grammar: ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"}},
			{Name: "Outer", Grammar: ir.Grammar{Kind: ir.GrammarRef, Protocol: "Inner"}},
		},
	}
	graph, compiled, err := Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := graph.Nodes[compiled["Outer"].Start]
	a := graph.Nodes[start.Successors[0]]
	if a.Kind != NodeTerminal || a.Action != "a" {
		t.Fatalf("expected inlined terminal a, got %+v", a)
	}
}

func TestCompileRecursiveReferenceRejected(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{
			{Name: "A", Grammar: ir.Grammar{Kind: ir.GrammarRef, Protocol: "B"}},
			{Name: "B", Grammar: ir.Grammar{Kind: ir.GrammarRef, Protocol: "A"}},
		},
	}
	_, _, err := Compile(model)
	if err == nil {
		t.Fatal("expected error for recursive protocol reference")
	}
}

func TestCompileEmptySequenceIsPassthrough(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{Kind: ir.GrammarSeq}}},
	}
	graph, compiled, err := Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := graph.Nodes[compiled["P"].Start]
	pass := graph.Nodes[start.Successors[0]]
	if pass.Kind != NodePassthrough {
		t.Fatalf("expected passthrough node, got %+v", pass)
	}
}
