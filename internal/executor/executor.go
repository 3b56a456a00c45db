// Package executor bridges the traversal engine's Executor contract
// to a sandboxed yaegi interpreter: every action is resolved to a
// DUT-side Go source fragment and run in a fresh interpreter instance per
// call, so one action's state can never leak into the next.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"verityengine/internal/ir"
	"verityengine/internal/logging"
	"verityengine/internal/traversal"
)

// defaultAllowedPackages is the stdlib import whitelist. Packages with
// filesystem, network, process, or unsafe-memory access are excluded.
func defaultAllowedPackages() map[string]bool {
	return map[string]bool{
		"strings":         true,
		"strconv":         true,
		"fmt":             true,
		"math":            true,
		"regexp":          true,
		"encoding/json":   true,
		"encoding/base64": true,
		"time":            true,
		"sort":            true,
		"bytes":           true,
		"path":            true,
		"path/filepath":   true,
		"errors":          true,
		"unicode":         true,
		// deliberately excluded: os, os/exec, net, net/http, syscall, unsafe
	}
}

// ScriptExecutor implements traversal.Executor by interpreting a Go source
// fragment per bound action via yaegi. Fuel meters per action from a
// fresh budget, panics are reported as trapped with a diagnostic string,
// and fuel exhaustion is reported as a trap whose error message contains
// "fuel".
type ScriptExecutor struct {
	model           *ir.IR
	scripts         map[string]string // keyed by ir.Binding.Function
	allowedPackages map[string]bool
	fuelPerAction   int64
	fuelToDuration  time.Duration // wall-clock budget standing in for one fuel unit
}

// NewScriptExecutor constructs a ScriptExecutor. scripts maps a binding's
// DUT-side function name to a Go source fragment defining:
//
//	func RunAction(vector map[string]any) (any, error)
//
// fuelPerAction is the per-call fuel budget; fuelUnit scales it to a
// wall-clock timeout, since the interpreter has no native instruction
// counter to meter against.
func NewScriptExecutor(model *ir.IR, scripts map[string]string, fuelPerAction int64, fuelUnit time.Duration) *ScriptExecutor {
	return &ScriptExecutor{
		model:           model,
		scripts:         scripts,
		allowedPackages: defaultAllowedPackages(),
		fuelPerAction:   fuelPerAction,
		fuelToDuration:  fuelUnit,
	}
}

// Execute resolves action to its bound script and runs it in a sandboxed
// interpreter with a fresh fuel budget.
func (s *ScriptExecutor) Execute(ctx context.Context, action string, vector map[string]any) (traversal.ActionOutcome, error) {
	log := logging.Get(logging.CategoryExecutor)

	binding, ok := s.model.BindingByAction(action)
	if !ok {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: no binding declared for action %q", action)
	}
	src, ok := s.scripts[binding.Function]
	if !ok {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: no script registered for function %q", binding.Function)
	}

	if err := s.validateImports(src); err != nil {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: load stdlib: %w", err)
	}

	if _, err := i.Eval(wrapCode(src)); err != nil {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: evaluate script for %q: %w", action, err)
	}

	fn, err := i.Eval("main.RunAction")
	if err != nil {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: RunAction not found for %q: %w", action, err)
	}
	runAction, ok := fn.Interface().(func(map[string]any) (any, error))
	if !ok {
		return traversal.ActionOutcome{}, fmt.Errorf("executor: RunAction has incorrect signature for %q", action)
	}

	budget := s.fuelPerAction
	timeout := time.Duration(budget) * s.fuelToDuration
	fuelCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	resultChan := make(chan result, 1)
	panicChan := make(chan string, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicChan <- fmt.Sprintf("%v", r)
			}
		}()
		v, err := runAction(vector)
		resultChan <- result{value: v, err: err}
	}()

	select {
	case r := <-resultChan:
		if r.err != nil {
			log.Debugw("action trapped", "action", action, "error", r.err)
			return traversal.ActionOutcome{Trapped: true, FuelConsumed: budget, Error: r.err}, nil
		}
		return traversal.ActionOutcome{ReturnValue: r.value, FuelConsumed: budget}, nil

	case msg := <-panicChan:
		return traversal.ActionOutcome{Trapped: true, FuelConsumed: budget, Error: fmt.Errorf("panic: %s", msg)}, nil

	case <-fuelCtx.Done():
		return traversal.ActionOutcome{
			Trapped:      true,
			FuelConsumed: budget,
			Error:        fmt.Errorf("fuel exhausted after %d units executing %q", budget, action),
		}, nil
	}
}

func (s *ScriptExecutor) validateImports(code string) error {
	lines := strings.Split(code, "\n")
	inBlock := false
	var forbidden []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock && strings.HasPrefix(trimmed, ")") {
			inBlock = false
			continue
		}
		var pkg string
		switch {
		case inBlock:
			pkg = strings.Trim(trimmed, `"`)
		case strings.HasPrefix(trimmed, "import "):
			pkg = strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
		default:
			continue
		}
		if pkg == "" {
			continue
		}
		if !s.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports %v (stdlib-only sandbox)", forbidden)
	}
	return nil
}

func wrapCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return fmt.Sprintf("package main\n\n%s\n", code)
}

// ModelOnlyExecutor is the reference executor for model-only verification:
// it never traps and never produces a return value, letting traversal
// exercise the model state machine with no DUT attached.
type ModelOnlyExecutor struct{}

// Execute always succeeds with an empty, non-trapped outcome.
func (ModelOnlyExecutor) Execute(_ context.Context, _ string, _ map[string]any) (traversal.ActionOutcome, error) {
	return traversal.ActionOutcome{}, nil
}
