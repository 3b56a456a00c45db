package executor

import (
	"context"
	"testing"
	"time"

	"verityengine/internal/ir"
)

func testModel() *ir.IR {
	return &ir.IR{
		Bindings: []ir.Binding{
			{Action: "greet", Function: "Greet"},
			{Action: "explode", Function: "Explode"},
			{Action: "spin", Function: "Spin"},
		},
	}
}

func TestExecuteReturnsValueOnSuccess(t *testing.T) {
	model := testModel()
	scripts := map[string]string{
		"Greet": `
func RunAction(vector map[string]any) (any, error) {
	return "hello", nil
}
`,
	}
	exec := NewScriptExecutor(model, scripts, 1_000_000, time.Microsecond)
	outcome, err := exec.Execute(context.Background(), "greet", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Trapped {
		t.Fatalf("expected non-trapped outcome, got %+v", outcome)
	}
	if outcome.ReturnValue != "hello" {
		t.Fatalf("expected return value %q, got %v", "hello", outcome.ReturnValue)
	}
}

func TestExecuteReportsErrorAsTrapped(t *testing.T) {
	model := testModel()
	scripts := map[string]string{
		"Explode": `
import "errors"

func RunAction(vector map[string]any) (any, error) {
	return nil, errors.New("boom")
}
`,
	}
	exec := NewScriptExecutor(model, scripts, 1_000_000, time.Microsecond)
	outcome, err := exec.Execute(context.Background(), "explode", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcome.Trapped {
		t.Fatalf("expected trapped outcome, got %+v", outcome)
	}
}

func TestExecuteForbiddenImportIsRejected(t *testing.T) {
	model := testModel()
	scripts := map[string]string{
		"Spin": `
import "os"

func RunAction(vector map[string]any) (any, error) {
	os.Exit(1)
	return nil, nil
}
`,
	}
	exec := NewScriptExecutor(model, scripts, 1_000_000, time.Microsecond)
	_, err := exec.Execute(context.Background(), "spin", nil)
	if err == nil {
		t.Fatalf("expected forbidden-import error, got nil")
	}
}

func TestExecuteFuelExhaustionReportsFuelInMessage(t *testing.T) {
	model := &ir.IR{Bindings: []ir.Binding{{Action: "stall", Function: "Stall"}}}
	scripts := map[string]string{
		"Stall": `
import "time"

func RunAction(vector map[string]any) (any, error) {
	time.Sleep(time.Hour)
	return nil, nil
}
`,
	}
	exec := NewScriptExecutor(model, scripts, 5, time.Millisecond)
	outcome, err := exec.Execute(context.Background(), "stall", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcome.Trapped {
		t.Fatalf("expected trapped outcome on fuel exhaustion, got %+v", outcome)
	}
	if outcome.FuelConsumed != 5 {
		t.Fatalf("expected FuelConsumed=5, got %d", outcome.FuelConsumed)
	}
}

func TestExecuteUnknownActionIsError(t *testing.T) {
	exec := NewScriptExecutor(&ir.IR{}, nil, 1, time.Millisecond)
	_, err := exec.Execute(context.Background(), "missing", nil)
	if err == nil {
		t.Fatalf("expected error for unbound action")
	}
}

func TestModelOnlyExecutorNeverTraps(t *testing.T) {
	var m ModelOnlyExecutor
	outcome, err := m.Execute(context.Background(), "anything", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Trapped || outcome.ReturnValue != nil {
		t.Fatalf("expected empty non-trapped outcome, got %+v", outcome)
	}
}
