// Package regression replays cross-campaign memory's replay capsules
// against a fresh traversal engine to check whether a previously
// recorded finding still reproduces. It is the battery-runner half of
// cross-campaign memory: internal/memory decides what to persist and how
// it decays, this package decides whether a persisted capsule still holds.
package regression

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"verityengine/internal/memory"
	"verityengine/internal/protocol"
	"verityengine/internal/traversal"
)

// Config tunes how a battery run replays capsules.
type Config struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig replays each capsule once, with no retry, before giving up
// on it for this campaign.
func DefaultConfig() Config {
	return Config{MaxAttempts: 1}
}

// LoadConfig reads a YAML-defined Config from disk.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("regression: parse battery config: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg, nil
}

// EngineFactory builds a fresh traversal.Engine wired to vs and returns the
// node to start the walk from. Called once per replay attempt so every
// attempt gets a clean modelstate and signal set.
type EngineFactory func(vs traversal.VectorSource) (*traversal.Engine, protocol.NodeID)

// Result is one capsule's replay outcome.
type Result struct {
	Capsule    memory.ReplayCapsule
	Reproduced bool
	Attempts   int
	Findings   []traversal.Finding
}

// capsuleVectorSource feeds a capsule's recorded input vector back for its
// trigger action exactly once; every other Next call (including repeats of
// the trigger action) falls through to the engine's own default.
type capsuleVectorSource struct {
	capsule memory.ReplayCapsule
	used    bool
}

func (s *capsuleVectorSource) Next(action string) (map[string]any, bool) {
	if !s.used && action == s.capsule.TriggerAction {
		s.used = true
		return s.capsule.InputVector, true
	}
	return nil, false
}

// indexedCapsule pairs a capsule with its position in mem.ReplayCapsules so
// NoteNonReproduction can be told the right index after replay order has
// been resorted for reliability.
type indexedCapsule struct {
	index   int
	capsule memory.ReplayCapsule
}

// RunBattery replays every capsule recorded in mem, most-reliable first
// (ascending non-reproduction count, mirroring memory.Memory.StartupOrder),
// against a fresh engine built by factory. A capsule that fails to
// reproduce after cfg.MaxAttempts is recorded via mem.NoteNonReproduction so
// a later PrepareNewCampaign can eventually invalidate it. Unlike a
// shell-task battery, capsules are independent obligations: one failing to
// reproduce does not abort the remaining replays.
func RunBattery(ctx context.Context, mem *memory.Memory, cfg Config, factory EngineFactory) ([]Result, error) {
	if mem == nil || len(mem.ReplayCapsules) == 0 {
		return nil, nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	ordered := make([]indexedCapsule, len(mem.ReplayCapsules))
	for i, c := range mem.ReplayCapsules {
		ordered[i] = indexedCapsule{index: i, capsule: c}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].capsule.NonReproductionCount < ordered[j].capsule.NonReproductionCount
	})

	results := make([]Result, 0, len(ordered))
	for _, oc := range ordered {
		res := Result{Capsule: oc.capsule}
		for a := 0; a < cfg.MaxAttempts && !res.Reproduced; a++ {
			res.Attempts++
			vs := &capsuleVectorSource{capsule: oc.capsule}
			engine, start := factory(vs)
			run, err := engine.Run(ctx, start)
			if err != nil {
				return nil, fmt.Errorf("regression: replay capsule %q: %w", oc.capsule.FindingDescription, err)
			}
			for _, f := range run.Findings {
				if findingMatches(f, oc.capsule) {
					res.Reproduced = true
					res.Findings = append(res.Findings, f)
				}
			}
		}
		if !res.Reproduced {
			mem.NoteNonReproduction(oc.index)
		}
		results = append(results, res)
	}
	return results, nil
}

// findingMatches decides whether a traversal finding is the one a capsule
// was recorded for: same trigger action (when the capsule names one) and
// the capsule's finding description appears in the signal message.
func findingMatches(f traversal.Finding, capsule memory.ReplayCapsule) bool {
	if capsule.TriggerAction != "" && f.Signal.Action != capsule.TriggerAction {
		return false
	}
	if capsule.FindingDescription == "" {
		return true
	}
	return strings.Contains(f.Signal.Message, capsule.FindingDescription)
}
