package traversal

import (
	"context"
	"errors"
	"testing"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
	"verityengine/internal/protocol"
	"verityengine/internal/strategy"
	"verityengine/internal/weight"
)

type noopVectors struct{}

func (noopVectors) Next(action string) (map[string]any, bool) { return nil, false }

type scriptedExecutor struct {
	outcomes map[string]ActionOutcome
}

func (s scriptedExecutor) Execute(ctx context.Context, action string, vector map[string]any) (ActionOutcome, error) {
	if o, ok := s.outcomes[action]; ok {
		return o, nil
	}
	return ActionOutcome{}, nil
}

func newEngine(t *testing.T, model *ir.IR, exec Executor) (*Engine, map[string]protocol.CompiledProtocol) {
	t.Helper()
	graph, compiled, err := protocol.Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	effects := make(map[string]ir.Effect, len(model.Effects))
	for _, e := range model.Effects {
		effects[e.Action] = e
	}
	actor := modelstate.New().CreateInstance("Actor")
	engine := &Engine{
		Graph:        graph,
		Executor:     exec,
		VectorSource: noopVectors{},
		Strategies:   strategy.NewStack(strategy.WeightedRandom{}),
		Weights:      weight.New(),
		State:        modelstate.New(),
		Properties:   model.Properties,
		Effects:      effects,
		ActorID:      actor,
		MaxSteps:     1000,
		GlobalSeed:   42,
	}
	return engine, compiled
}

func linearModel() *ir.IR {
	return &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarSeq,
			Children: []ir.Grammar{
				{Kind: ir.GrammarTerminal, Action: "a"},
				{Kind: ir.GrammarTerminal, Action: "b"},
			},
		}}},
		Effects: []ir.Effect{{Action: "a"}, {Action: "b"}},
	}
}

func TestScenarioALinearProtocolTwoPasses(t *testing.T) {
	engine, compiled := newEngine(t, linearModel(), scriptedExecutor{})
	total := 0
	guardFailures := 0
	findings := 0
	for pass := 0; pass < 2; pass++ {
		res, err := engine.Run(context.Background(), compiled["P"].Start)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		total += res.ExecutedCount
		guardFailures += res.GuardFailures
		findings += len(res.Findings)
		last := res.Trace[len(res.Trace)-1]
		if last.Kind != protocol.NodeEnd {
			t.Fatalf("expected trace to end in End, got %v", last.Kind)
		}
	}
	if total != 4 {
		t.Fatalf("expected 4 executed actions across two passes, got %d", total)
	}
	if guardFailures != 0 || findings != 0 {
		t.Fatalf("expected zero guard failures and findings, got %d/%d", guardFailures, findings)
	}
}

func TestScenarioECrashProducesFinding(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarSeq,
			Children: []ir.Grammar{
				{Kind: ir.GrammarTerminal, Action: "safe"},
				{Kind: ir.GrammarTerminal, Action: "crashing"},
			},
		}}},
		Effects: []ir.Effect{{Action: "safe"}, {Action: "crashing"}},
	}
	exec := scriptedExecutor{outcomes: map[string]ActionOutcome{
		"crashing": {Trapped: true, Error: errors.New("WASM trap: unreachable")},
	}}
	engine, compiled := newEngine(t, model, exec)
	res, err := engine.Run(context.Background(), compiled["P"].Start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d", len(res.Findings))
	}
	if res.Findings[0].Signal.Kind != SignalCrash || res.Findings[0].Signal.Action != "crashing" {
		t.Fatalf("expected Crash{action=crashing}, got %+v", res.Findings[0].Signal)
	}
}

func TestScenarioFFuelTimeoutProducesNoFinding(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{Kind: ir.GrammarTerminal, Action: "slow"}}},
		Effects:   []ir.Effect{{Action: "slow"}},
	}
	exec := scriptedExecutor{outcomes: map[string]ActionOutcome{
		"slow": {Trapped: true, Error: errors.New("Fuel exhausted"), FuelConsumed: 1000000},
	}}
	engine, compiled := newEngine(t, model, exec)
	res, err := engine.Run(context.Background(), compiled["P"].Start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Findings) != 0 {
		t.Fatalf("expected zero findings for fuel timeout, got %d", len(res.Findings))
	}
	timeoutSignals := 0
	for _, s := range res.Signals {
		if s.Kind == SignalTimeout {
			timeoutSignals++
			if s.FuelConsumed != 1000000 {
				t.Fatalf("expected fuel consumed 1000000, got %d", s.FuelConsumed)
			}
		}
	}
	if timeoutSignals != 1 {
		t.Fatalf("expected exactly one Timeout signal, got %d", timeoutSignals)
	}
}

func TestGuardFailureContinuesTraversal(t *testing.T) {
	falseVal := false
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarSeq,
			Children: []ir.Grammar{
				{Kind: ir.GrammarTerminal, Action: "guarded"},
				{Kind: ir.GrammarTerminal, Action: "after"},
			},
		}}},
		Effects: []ir.Effect{{Action: "guarded"}, {Action: "after"}},
	}
	model.Protocols[0].Grammar.Children[0].Guard = exprPtr(ir.BoolLit(falseVal))
	engine, compiled := newEngine(t, model, scriptedExecutor{})
	res, err := engine.Run(context.Background(), compiled["P"].Start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.GuardFailures != 1 {
		t.Fatalf("expected 1 guard failure, got %d", res.GuardFailures)
	}
	if !res.VisitedActions["after"] {
		t.Fatal("expected traversal to continue past guard failure")
	}
}

// weightedAltModel is a single branch with two terminal alternatives
// weighted 0.6/0.4, repeated n times so the observed selection ratio can
// be checked against the declared split.
func weightedAltModel() *ir.IR {
	return &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarRepeat,
			Min:  2000, Max: 2000,
			Body: &ir.Grammar{
				Kind: ir.GrammarAlt,
				Branches: []ir.AltBranch{
					{Weight: 0.6, Body: ir.Grammar{Kind: ir.GrammarTerminal, Action: "left"}},
					{Weight: 0.4, Body: ir.Grammar{Kind: ir.GrammarTerminal, Action: "right"}},
				},
			},
		}}},
		Effects: []ir.Effect{{Action: "left"}, {Action: "right"}},
	}
}

func newEngineWithWeights(t *testing.T, model *ir.IR, seed uint64) (*Engine, map[string]protocol.CompiledProtocol) {
	t.Helper()
	graph, compiled, err := protocol.Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	weights := weight.New()
	for _, node := range graph.Nodes {
		if node.Kind != protocol.NodeBranch {
			continue
		}
		for i, alt := range node.Alternatives {
			if alt.Weight > 0 {
				weights.SetDefault(BranchID(node.ID, i), alt.Weight)
			}
		}
	}
	effects := make(map[string]ir.Effect, len(model.Effects))
	for _, e := range model.Effects {
		effects[e.Action] = e
	}
	actor := modelstate.New().CreateInstance("Actor")
	engine := &Engine{
		Graph:        graph,
		Executor:     scriptedExecutor{},
		VectorSource: noopVectors{},
		Strategies:   strategy.NewStack(strategy.WeightedRandom{}),
		Weights:      weights,
		State:        modelstate.New(),
		Effects:      effects,
		ActorID:      actor,
		MaxSteps:     10000,
		GlobalSeed:   seed,
	}
	return engine, compiled
}

func TestScenarioBWeightedAlternationMatchesDeclaredSplit(t *testing.T) {
	engine, compiled := newEngineWithWeights(t, weightedAltModel(), 7)
	res, err := engine.Run(context.Background(), compiled["P"].Start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var left, right int
	for _, step := range res.Trace {
		switch step.Action {
		case "left":
			left++
		case "right":
			right++
		}
	}
	total := left + right
	if total == 0 {
		t.Fatal("expected at least one terminal action executed")
	}
	ratio := float64(left) / float64(total)
	if ratio < 0.55 || ratio > 0.65 {
		t.Fatalf("left ratio = %.3f, want in [0.55,0.65] (left=%d right=%d)", ratio, left, right)
	}
}

func TestDeterministicRunsProduceIdenticalTraces(t *testing.T) {
	model := weightedAltModel()
	run := func() []TraceStep {
		engine, compiled := newEngineWithWeights(t, model, 99)
		res, err := engine.Run(context.Background(), compiled["P"].Start)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res.Trace
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("trace length differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("trace diverged at step %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

// TestRepeatExecutesExactlyDeclaredIterationsAndEndsAtEnd guards against a
// loop-unrolling bug where a fixed-bound repeat executed its body one time
// too many, with the extra action firing after the trace's End node.
func TestRepeatExecutesExactlyDeclaredIterationsAndEndsAtEnd(t *testing.T) {
	model := &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarRepeat,
			Min:  1, Max: 1,
			Body: &ir.Grammar{Kind: ir.GrammarTerminal, Action: "a"},
		}}},
		Effects: []ir.Effect{{Action: "a"}},
	}
	engine, compiled := newEngine(t, model, scriptedExecutor{})
	res, err := engine.Run(context.Background(), compiled["P"].Start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExecutedCount != 1 {
		t.Fatalf("expected exactly 1 executed action for a min=max=1 repeat, got %d", res.ExecutedCount)
	}
	last := res.Trace[len(res.Trace)-1]
	if last.Kind != protocol.NodeEnd {
		t.Fatalf("expected trace to end in End, got %+v (full trace %+v)", last, res.Trace)
	}
}

func exprPtr(e ir.Expr) *ir.Expr { return &e }
