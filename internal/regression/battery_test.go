package regression

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"verityengine/internal/ir"
	"verityengine/internal/memory"
	"verityengine/internal/modelstate"
	"verityengine/internal/protocol"
	"verityengine/internal/strategy"
	"verityengine/internal/traversal"
	"verityengine/internal/weight"
)

func crashModel() *ir.IR {
	return &ir.IR{
		Protocols: []ir.Protocol{{Name: "P", Grammar: ir.Grammar{
			Kind: ir.GrammarSeq,
			Children: []ir.Grammar{
				{Kind: ir.GrammarTerminal, Action: "withdraw"},
			},
		}}},
		Effects: []ir.Effect{{Action: "withdraw"}},
	}
}

// crashIfNegative traps whenever the replayed vector carries a negative
// "amount", mimicking a DUT bug a capsule was recorded to reproduce.
type crashIfNegative struct{}

func (crashIfNegative) Execute(_ context.Context, action string, vector map[string]any) (traversal.ActionOutcome, error) {
	if amt, ok := vector["amount"].(int); ok && amt < 0 {
		return traversal.ActionOutcome{Trapped: true, Error: errors.New("negative balance")}, nil
	}
	return traversal.ActionOutcome{}, nil
}

func newFactory(t *testing.T, model *ir.IR, exec traversal.Executor) EngineFactory {
	t.Helper()
	graph, compiled, err := protocol.Compile(model)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := compiled["P"].Start
	return func(vs traversal.VectorSource) (*traversal.Engine, protocol.NodeID) {
		actor := modelstate.New().CreateInstance("Actor")
		engine := &traversal.Engine{
			Graph:        graph,
			Executor:     exec,
			VectorSource: vs,
			Strategies:   strategy.NewStack(strategy.WeightedRandom{}),
			Weights:      weight.New(),
			State:        modelstate.New(),
			Properties:   model.Properties,
			Effects:      map[string]ir.Effect{"withdraw": {Action: "withdraw"}},
			ActorID:      actor,
			MaxSteps:     10,
			GlobalSeed:   7,
		}
		return engine, start
	}
}

func TestRunBatteryReproducesMatchingCapsule(t *testing.T) {
	mem := memory.New("irhash")
	mem.RecordCapsule(memory.ReplayCapsule{
		TriggerAction:      "withdraw",
		FindingDescription: "negative balance",
		InputVector:        map[string]any{"amount": -5},
	})

	factory := newFactory(t, crashModel(), crashIfNegative{})
	results, err := RunBattery(context.Background(), mem, DefaultConfig(), factory)
	if err != nil {
		t.Fatalf("RunBattery: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Reproduced {
		t.Fatalf("expected capsule to reproduce, got %+v", results[0])
	}
	if mem.ReplayCapsules[0].NonReproductionCount != 0 {
		t.Fatalf("expected non-reproduction count unchanged on success, got %d", mem.ReplayCapsules[0].NonReproductionCount)
	}
}

func TestRunBatteryRecordsNonReproductionOnMiss(t *testing.T) {
	mem := memory.New("irhash")
	mem.RecordCapsule(memory.ReplayCapsule{
		TriggerAction:      "withdraw",
		FindingDescription: "negative balance",
		InputVector:        map[string]any{"amount": 5}, // no longer triggers the crash
	})

	factory := newFactory(t, crashModel(), crashIfNegative{})
	results, err := RunBattery(context.Background(), mem, DefaultConfig(), factory)
	if err != nil {
		t.Fatalf("RunBattery: %v", err)
	}
	if results[0].Reproduced {
		t.Fatalf("expected capsule not to reproduce")
	}
	if mem.ReplayCapsules[0].NonReproductionCount != 1 {
		t.Fatalf("expected non-reproduction count incremented, got %d", mem.ReplayCapsules[0].NonReproductionCount)
	}
	if mem.NonReproductionCounts[0] != 1 {
		t.Fatalf("expected parallel counts slice kept in sync, got %d", mem.NonReproductionCounts[0])
	}
}

func TestRunBatteryOrdersMostReliableCapsulesFirst(t *testing.T) {
	mem := memory.New("irhash")
	mem.RecordCapsule(memory.ReplayCapsule{TriggerAction: "withdraw", FindingDescription: "flaky", NonReproductionCount: 4, InputVector: map[string]any{"amount": 5}})
	mem.RecordCapsule(memory.ReplayCapsule{TriggerAction: "withdraw", FindingDescription: "negative balance", NonReproductionCount: 0, InputVector: map[string]any{"amount": -5}})

	factory := newFactory(t, crashModel(), crashIfNegative{})
	results, err := RunBattery(context.Background(), mem, DefaultConfig(), factory)
	if err != nil {
		t.Fatalf("RunBattery: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Capsule.FindingDescription != "negative balance" {
		t.Fatalf("expected the reliable capsule (count 0) replayed first, got %q", results[0].Capsule.FindingDescription)
	}
}

func TestRunBatteryOneNonReproductionDoesNotAbortOthers(t *testing.T) {
	mem := memory.New("irhash")
	mem.RecordCapsule(memory.ReplayCapsule{TriggerAction: "withdraw", FindingDescription: "negative balance", InputVector: map[string]any{"amount": 5}})
	mem.RecordCapsule(memory.ReplayCapsule{TriggerAction: "withdraw", FindingDescription: "negative balance", InputVector: map[string]any{"amount": -5}})

	factory := newFactory(t, crashModel(), crashIfNegative{})
	results, err := RunBattery(context.Background(), mem, DefaultConfig(), factory)
	if err != nil {
		t.Fatalf("RunBattery: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both capsules replayed despite the first missing, got %d", len(results))
	}
	if results[0].Reproduced || !results[1].Reproduced {
		t.Fatalf("unexpected reproduction outcomes: %+v", results)
	}
}

func TestRunBatteryEmptyMemory(t *testing.T) {
	results, err := RunBattery(context.Background(), memory.New("irhash"), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("RunBattery returned error: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestLoadConfigReadsMaxAttempts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "battery.yaml")
	if err := os.WriteFile(path, []byte("max_attempts: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
}
