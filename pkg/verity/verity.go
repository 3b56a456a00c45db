// Package verity is the public facade over the verification engine: a thin
// re-export of internal/campaign's Manager so external tools (cmd/verityctl,
// or a caller embedding the engine as a library) can drive campaigns without
// reaching into internal packages.
package verity

import (
	"time"

	"verityengine/internal/campaign"
	"verityengine/internal/executor"
	"verityengine/internal/ir"
	"verityengine/internal/memory"
	"verityengine/internal/traversal"
	"verityengine/internal/validate"
)

// Re-exported lifecycle vocabulary.
type (
	Manager          = campaign.Manager
	Campaign         = campaign.Campaign
	Phase            = campaign.Phase
	StopReason       = campaign.StopReason
	Limits           = campaign.Limits
	Finding          = campaign.Finding
	CoverageResult   = campaign.CoverageResult
	CoverageSummary  = campaign.CoverageSummary
	Analytics        = campaign.Analytics
	CompileOptions   = campaign.CompileOptions
	ValidationError  = validate.Error
	Executor         = traversal.Executor
	VectorSource     = traversal.VectorSource
	ScriptExecutor   = executor.ScriptExecutor
	ModelOnlyExecutor = executor.ModelOnlyExecutor
	Memory           = memory.Memory
	MemoryStore      = memory.Store
	ReplayCapsule    = memory.ReplayCapsule
)

const (
	PhaseCompiled  = campaign.PhaseCompiled
	PhaseDutLoaded = campaign.PhaseDutLoaded
	PhaseRunning   = campaign.PhaseRunning
	PhaseComplete  = campaign.PhaseComplete
	PhaseAborted   = campaign.PhaseAborted

	StopNone                   = campaign.StopNone
	StopComplete               = campaign.StopComplete
	StopWallTimeExceeded       = campaign.StopWallTimeExceeded
	StopIterationLimitExceeded = campaign.StopIterationLimitExceeded
	StopFindingLimitExceeded   = campaign.StopFindingLimitExceeded
	StopUserAborted            = campaign.StopUserAborted
	StopMemoryLimitExceeded    = campaign.StopMemoryLimitExceeded
)

// NewManager constructs an empty campaign registry.
func NewManager() *Manager {
	return campaign.NewManager()
}

// DefaultLimits returns a conservative single-threaded campaign bound.
func DefaultLimits() Limits {
	return campaign.DefaultLimits()
}

// NewModelOnlyExecutor returns an executor that never traps, for campaigns
// driven purely by the model's own effects and invariants.
func NewModelOnlyExecutor() ModelOnlyExecutor {
	return executor.ModelOnlyExecutor{}
}

// NewScriptExecutor wraps a yaegi-sandboxed reference DUT implementing the
// Executor contract. fuelPerAction bounds each call's wall-clock budget
// in defaultFuelUnit increments.
func NewScriptExecutor(model *ir.IR, scripts map[string]string, fuelPerAction int64) *ScriptExecutor {
	return executor.NewScriptExecutor(model, scripts, fuelPerAction, defaultFuelUnit)
}

const defaultFuelUnit = 10 * time.Millisecond

// OpenMemory opens (creating if absent) the sqlite-backed cross-campaign
// memory store at path.
func OpenMemory(path string) (*MemoryStore, error) {
	return memory.Open(path)
}

// NewMemory constructs an empty cross-campaign memory keyed by irHash.
func NewMemory(irHash string) *Memory {
	return memory.New(irHash)
}
