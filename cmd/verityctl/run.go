package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"verityengine/internal/ir"
	"verityengine/pkg/verity"
)

var (
	runWallTime      time.Duration
	runIterations    int
	runFindingsLimit int
	runThreads       int
	runSeed          uint64
	runScriptDir     string
	runDashboard     bool
)

var runCmd = &cobra.Command{
	Use:   "run <ir-file>",
	Short: "Compile an IR document and run a campaign to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := verity.NewManager()
		id, mem, store, err := compileAndRegister(mgr, args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		if runDashboard {
			return runWithDashboard(mgr, id)
		}

		if err := mgr.PhaseTransition(id, verity.PhaseDutLoaded); err != nil {
			return err
		}
		if err := mgr.PhaseTransition(id, verity.PhaseRunning); err != nil {
			return err
		}
		if err := recordFindingsToMemory(mgr, id, mem, store); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist cross-campaign memory: %v\n", err)
		}
		return printSummary(mgr, id)
	},
}

// irHash derives a stable cross-campaign memory key from an IR document's
// bytes, so re-running the same specification finds its prior learned
// weights and replay capsules.
func irHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// compileAndRegister reads irPath, loads its cross-campaign memory record,
// compiles it against the CLI flags, and attaches a SAT-backed vector
// source built from the freshly compiled domains.
func compileAndRegister(mgr *verity.Manager, irPath string) (id string, mem *verity.Memory, store *verity.MemoryStore, err error) {
	body, err := os.ReadFile(irPath)
	if err != nil {
		return "", nil, nil, fmt.Errorf("read %s: %w", irPath, err)
	}

	var model ir.IR
	if err := json.Unmarshal(body, &model); err != nil {
		return "", nil, nil, fmt.Errorf("parse %s: %w", irPath, err)
	}

	exec, err := loadExecutor(&model, runScriptDir)
	if err != nil {
		return "", nil, nil, err
	}

	store, err = verity.OpenMemory(memoryPath)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open memory store: %w", err)
	}

	mem, err = store.Load(irHash(body))
	if err != nil {
		store.Close()
		return "", nil, nil, fmt.Errorf("load memory: %w", err)
	}

	id, errs, err := mgr.Compile(body, verity.CompileOptions{
		Seed:     runSeed,
		Executor: exec,
		Memory:   mem,
		Limits: verity.Limits{
			WallTime:   runWallTime,
			Iterations: runIterations,
			Findings:   runFindingsLimit,
			Threads:    runThreads,
		},
	})
	if err != nil {
		store.Close()
		return "", nil, nil, err
	}
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Kind, e.Message)
		}
		store.Close()
		return "", nil, nil, fmt.Errorf("validation failed with %d error(s)", len(errs))
	}

	vs, err := mgr.DefaultVectorSource(id, 256)
	if err != nil {
		store.Close()
		return "", nil, nil, err
	}
	if err := mgr.SetVectorSource(id, vs); err != nil {
		store.Close()
		return "", nil, nil, err
	}

	return id, mem, store, nil
}

// recordFindingsToMemory captures every finding from a completed run as a
// replay capsule and persists the memory record.
func recordFindingsToMemory(mgr *verity.Manager, id string, mem *verity.Memory, store *verity.MemoryStore) error {
	findings, err := mgr.Findings(id, 0)
	if err != nil {
		return err
	}
	for _, f := range findings {
		mem.RecordCapsule(verity.ReplayCapsule{
			TriggerAction:      f.Signal.Action,
			FindingDescription: f.Signal.Message,
		})
	}
	return store.Save(mem)
}

func printSummary(mgr *verity.Manager, id string) error {
	an, err := mgr.Analytics(id)
	if err != nil {
		return err
	}
	cov, err := mgr.Coverage(id)
	if err != nil {
		return err
	}
	findings, err := mgr.Findings(id, 0)
	if err != nil {
		return err
	}

	fmt.Printf("campaign %s: %s\n", id, an.State)
	fmt.Printf("  steps:      %d\n", an.Steps)
	fmt.Printf("  findings:   %d\n", an.Findings)
	fmt.Printf("  coverage:   %d/%d (%.1f%%)\n", cov.Summary.Hit, len(cov.Targets), cov.Summary.Percent)
	fmt.Printf("  elapsed:    %s\n", an.Elapsed)
	for _, f := range findings {
		fmt.Printf("  finding #%d [thread %d] action=%s: %s\n", f.Seqno, f.Thread, f.Signal.Action, f.Signal.Message)
	}
	return nil
}
