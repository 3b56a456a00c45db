// Package campaign orchestrates one verification run end to end: parsing
// and validating an IR document, compiling its protocol grammar and input
// domains, driving a multi-threaded traversal against a DUT executor,
// feeding signals to the adaptation coordinator, and exposing the
// campaign-lifecycle contract a CLI or dashboard polls.
package campaign

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"verityengine/internal/adapt"
	"verityengine/internal/constraint"
	"verityengine/internal/domain"
	"verityengine/internal/engconfig"
	"verityengine/internal/ir"
	"verityengine/internal/logging"
	"verityengine/internal/memory"
	"verityengine/internal/protocol"
	"verityengine/internal/reachability"
	"verityengine/internal/sat"
	"verityengine/internal/traversal"
	"verityengine/internal/validate"
	"verityengine/internal/weight"
)

// Phase is a campaign's lifecycle state.
type Phase string

const (
	PhaseCompiled  Phase = "Compiled"
	PhaseDutLoaded Phase = "DutLoaded"
	PhaseRunning   Phase = "Running"
	PhaseComplete  Phase = "Complete"
	PhaseAborted   Phase = "Aborted"
)

// StopReason explains why a campaign run returned.
type StopReason string

const (
	StopNone                   StopReason = ""
	StopComplete               StopReason = "Complete"
	StopWallTimeExceeded       StopReason = "WallTimeExceeded"
	StopIterationLimitExceeded StopReason = "IterationLimitExceeded"
	StopFindingLimitExceeded   StopReason = "FindingLimitExceeded"
	StopUserAborted            StopReason = "UserAborted"
	StopMemoryLimitExceeded    StopReason = "MemoryLimitExceeded"
)

// Limits bounds one campaign run.
type Limits struct {
	WallTime   time.Duration
	Iterations int // passes per thread; 0 = unbounded by iteration count
	Findings   int // 0 = unbounded
	Threads    int
}

// DefaultLimits returns a conservative single-threaded bound suitable for
// tests and small campaigns.
func DefaultLimits() Limits {
	return Limits{WallTime: 30 * time.Second, Iterations: 1000, Threads: 1}
}

// Finding is one seqno-ordered record of a surfaced defect, polling-safe
// via Manager.Findings' since-seqno parameter.
type Finding struct {
	Seqno  int
	Thread int
	Signal traversal.Signal
}

// Campaign is one compiled (and possibly running or finished) verification
// run.
type Campaign struct {
	ID         string
	Phase      Phase
	StopReason StopReason

	model    *ir.IR
	graph    *protocol.Graph
	compiled map[string]protocol.CompiledProtocol
	domains  *domain.Set
	solver   *sat.Solver

	Executor     traversal.Executor
	VectorSource traversal.VectorSource

	Weights     *weight.Table
	Coordinator *adapt.Coordinator
	Memory      *memory.Memory

	startProtocol string
	seed          uint64
	limits        Limits

	mu             sync.Mutex
	findings       []Finding
	nextSeqno      int
	steps          int
	epochs         int
	startedAt      time.Time
	elapsed        time.Duration
	visitedActions map[string]bool
	totalActions   int
}

// Manager tracks compiled campaigns by id and implements the exposed
// contract: compile, phase-transition, abort, findings, coverage,
// analytics.
type Manager struct {
	mu        sync.Mutex
	campaigns map[string]*Campaign
}

// NewManager constructs an empty campaign registry.
func NewManager() *Manager {
	return &Manager{campaigns: make(map[string]*Campaign)}
}

// CompileOptions supplies everything Compile needs beyond the raw IR JSON.
type CompileOptions struct {
	StartProtocol string
	Seed          uint64
	Executor      traversal.Executor
	VectorSource  traversal.VectorSource
	Memory        *memory.Memory
	EngConfig     *engconfig.Config
	Limits        Limits
}

// Compile parses and validates an IR document, lowers its protocol grammar
// to an NDA graph, encodes its input domains and constraints to CNF, and
// registers a new campaign in the Compiled phase. A non-empty validation
// error vector is returned instead of a Go error — a malformed IR is a
// normal outcome of compilation, not a failure of the compiler itself.
func (m *Manager) Compile(irJSON []byte, opts CompileOptions) (string, []validate.Error, error) {
	var model ir.IR
	if err := json.Unmarshal(irJSON, &model); err != nil {
		return "", nil, fmt.Errorf("campaign: parse IR: %w", err)
	}

	if errs := validate.Validate(&model); len(errs) > 0 {
		return "", errs, nil
	}

	graph, compiled, err := protocol.Compile(&model)
	if err != nil {
		return "", nil, fmt.Errorf("campaign: compile protocol: %w", err)
	}

	domains, err := domain.Encode(model.Domains)
	if err != nil {
		return "", nil, fmt.Errorf("campaign: encode domains: %w", err)
	}

	base := append([][]int{}, domains.Clauses...)
	for _, expr := range model.Constraints {
		clauses, err := constraint.Encode(expr, domains)
		if err != nil {
			return "", nil, fmt.Errorf("campaign: encode constraint: %w", err)
		}
		for _, cl := range clauses {
			base = append(base, []int(cl))
		}
	}
	solver := sat.New(domains.NumVars, base)

	start := opts.StartProtocol
	if start == "" && len(model.Protocols) > 0 {
		start = model.Protocols[0].Name
	}
	if _, ok := compiled[start]; !ok {
		return "", nil, fmt.Errorf("campaign: start protocol %q not found", start)
	}

	weights := weight.New()
	seedBranchDefaults(graph, weights)
	coordCfg := adapt.DefaultConfig()
	if opts.EngConfig != nil {
		coordCfg.EpochSize = opts.EngConfig.Adapt.EpochSize
		coordCfg.GlobalDecay = opts.EngConfig.Adapt.GlobalDecay
		coordCfg.CoverageFloor = opts.EngConfig.Adapt.CoverageFloor
		coordCfg.TimeoutSkipBudget = opts.EngConfig.Adapt.TimeoutSkipBudget
	}
	coordinator := adapt.NewCoordinator(coordCfg, weights)
	registerAltBlocks(graph, coordinator)

	_, proofs := reachability.Analyze(graph, compiled[start].Start)
	coordinator.SeedPermanentZero(proofs)

	mem := opts.Memory
	if mem == nil {
		mem = memory.New("")
	}
	for _, lw := range mem.LearnedWeights {
		weights.Set(lw.Branch, lw.Hash, lw.Weight)
	}

	limits := opts.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	if limits.Threads <= 0 {
		limits.Threads = 1
	}

	id := uuid.New().String()
	c := &Campaign{
		ID:             id,
		Phase:          PhaseCompiled,
		model:          &model,
		graph:          graph,
		compiled:       compiled,
		domains:        domains,
		solver:         solver,
		Executor:       opts.Executor,
		VectorSource:   opts.VectorSource,
		Weights:        weights,
		Coordinator:    coordinator,
		Memory:         mem,
		startProtocol:  start,
		seed:           opts.Seed,
		limits:         limits,
		visitedActions: make(map[string]bool),
	}

	m.mu.Lock()
	m.campaigns[id] = c
	m.mu.Unlock()

	logging.Get(logging.CategoryCampaign).Infow("campaign compiled", "id", id, "protocol", start)
	return id, nil, nil
}

// seedBranchDefaults applies every Branch node's declared per-alternative
// weights as the weight table's per-branch defaults, so an IR author's
// "prefer this path 60/40" intent holds from the very first visit rather
// than only after the adaptation coordinator has observed signals. An
// alternative with no declared weight (the Go zero value) is left
// unseeded, falling back to the table's uniform 1.0 default.
func seedBranchDefaults(graph *protocol.Graph, weights *weight.Table) {
	for _, node := range graph.Nodes {
		if node.Kind != protocol.NodeBranch {
			continue
		}
		for i, alt := range node.Alternatives {
			if alt.Weight > 0 {
				weights.SetDefault(traversal.BranchID(node.ID, i), alt.Weight)
			}
		}
	}
}

// registerAltBlocks registers every compiled Branch node's alternatives as
// one alt-block, so Coordinator.Flush's per-epoch renormalization has
// something to renormalize, and declares the same branches as uncovered
// coverage targets, since a freshly compiled campaign has exercised none
// of its actions yet, so the coverage floor has a nonempty set to protect
// from the very first epoch. Node ids are walked in sorted order so the
// alt-block and uncovered-target registration is independent of Go map
// iteration order.
func registerAltBlocks(graph *protocol.Graph, coordinator *adapt.Coordinator) {
	ids := make([]protocol.NodeID, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var uncovered []string
	for _, id := range ids {
		node := graph.Nodes[id]
		if node.Kind != protocol.NodeBranch {
			continue
		}
		branchIDs := make([]string, len(node.Alternatives))
		for i := range node.Alternatives {
			branchIDs[i] = traversal.BranchID(node.ID, i)
		}
		coordinator.RegisterAltBlock(fmt.Sprintf("block-%d", node.ID), branchIDs)
		uncovered = append(uncovered, branchIDs...)
	}
	coordinator.SetUncoveredTargetBranches(uncovered)
}

func (m *Manager) get(id string) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign: %q not found", id)
	}
	return c, nil
}
