package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"verityengine/internal/ir"
	"verityengine/pkg/verity"
)

// loadExecutor builds a ModelOnlyExecutor when dir is empty, or a
// ScriptExecutor wrapping every *.go file in dir (keyed by the file's base
// name, matching a binding's Function) when dir is set.
func loadExecutor(model *ir.IR, dir string) (verity.Executor, error) {
	if dir == "" {
		return verity.NewModelOnlyExecutor(), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read script directory %s: %w", dir, err)
	}

	scripts := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read script %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".go")
		scripts[name] = string(body)
	}

	return verity.NewScriptExecutor(model, scripts, 1_000_000), nil
}
