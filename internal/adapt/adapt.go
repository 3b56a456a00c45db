// Package adapt implements the epoch-batched adaptation coordinator:
// it batches traversal signals into epochs, sorts them into a total
// order, maps each to a directive, applies per-epoch decay and
// normalization, enforces a coverage floor, and runs the two-step timeout
// tracker.
package adapt

import (
	"fmt"
	"sort"

	"verityengine/internal/reachability"
	"verityengine/internal/traversal"
	"verityengine/internal/weight"
)

// Config tunes the coordinator's epoch, decay, and timeout behavior.
type Config struct {
	EpochSize          int
	CoverageBoost      float64
	FindingBoost       float64
	ForceBudget        int
	GuardFailureDecay  float64
	GlobalDecay        float64
	CoverageFloor      float64
	TimeoutRetryFuel   int64
	TimeoutSkipBudget  int
}

// DefaultConfig returns the coordinator's recommended tuning defaults.
func DefaultConfig() Config {
	return Config{
		EpochSize:         50,
		CoverageBoost:     1.5,
		FindingBoost:      2.0,
		ForceBudget:       10,
		GuardFailureDecay: 0.5,
		GlobalDecay:       0.95,
		CoverageFloor:     0.05,
		TimeoutRetryFuel:  500_000,
		TimeoutSkipBudget: 50,
	}
}

// DirectiveKind discriminates the adaptation directive vocabulary. The
// vocabulary deliberately never mutates the compiled model: it only tunes
// how the engine explores, never what it explores.
type DirectiveKind string

const (
	DirectiveAdjustWeight   DirectiveKind = "AdjustWeight"
	DirectiveForce          DirectiveKind = "Force"
	DirectivePermanentZero  DirectiveKind = "PermanentZero"
	DirectiveSkip           DirectiveKind = "Skip"
)

// Directive is one applied adaptation action.
type Directive struct {
	Kind       DirectiveKind
	Branch     string
	Action     string
	Hash       uint64
	Multiplier float64
	Budget     int
	Remaining  int
	Proof      string
	Trigger    traversal.Signal
	Epoch      int
	Seqno      int
}

// timeoutState is one action's two-step timeout tracker state.
type timeoutState struct {
	retryScheduled bool
	permanentSkip  bool
	reducedFuel    int64
	remaining      int
}

// Coordinator batches signals into epochs and mutates a weight.Table via
// directives.
type Coordinator struct {
	cfg     Config
	weights *weight.Table

	buffer       []traversal.Signal
	epoch        int
	nextSeqno    int
	directiveLog []Directive

	timeouts map[string]*timeoutState

	// registeredBranches maps an alt-block identifier to its member
	// branch ids, used for normalization and coverage-floor enforcement.
	registeredBranches map[string][]string
	// uncoveredTargetBranches are branches known to reach a not-yet-hit
	// coverage target; the coverage floor protects their summed weight.
	uncoveredTargetBranches []string
}

// NewCoordinator constructs a Coordinator writing directives into weights.
func NewCoordinator(cfg Config, weights *weight.Table) *Coordinator {
	return &Coordinator{
		cfg:                cfg,
		weights:            weights,
		timeouts:           make(map[string]*timeoutState),
		registeredBranches: make(map[string][]string),
	}
}

// RegisterAltBlock records the branch ids belonging to one alt block, for
// normalization at epoch boundaries.
func (c *Coordinator) RegisterAltBlock(blockID string, branchIDs []string) {
	c.registeredBranches[blockID] = branchIDs
}

// SetUncoveredTargetBranches declares which branches currently reach an
// uncovered coverage target, for the coverage-floor step.
func (c *Coordinator) SetUncoveredTargetBranches(branchIDs []string) {
	c.uncoveredTargetBranches = branchIDs
}

// SeedPermanentZero applies a PermanentZero directive for every
// statically-unreachable branch proof found by the reachability analyzer.
func (c *Coordinator) SeedPermanentZero(proofs []reachability.Proof) {
	for _, p := range proofs {
		c.weights.Set(p.BranchID, 0, 0.0)
		c.directiveLog = append(c.directiveLog, Directive{
			Kind: DirectivePermanentZero, Branch: p.BranchID, Proof: p.Description,
			Epoch: c.epoch, Seqno: c.nextSeqno,
		})
		c.nextSeqno++
	}
}

// Submit buffers a signal, flushing the epoch automatically once it
// reaches the configured size.
func (c *Coordinator) Submit(sig traversal.Signal) {
	c.buffer = append(c.buffer, sig)
	if len(c.buffer) >= c.cfg.EpochSize {
		c.Flush()
	}
}

// Flush processes the buffered epoch even if it has not reached full
// size, so callers can force a flush on demand.
func (c *Coordinator) Flush() []Directive {
	if len(c.buffer) == 0 {
		return nil
	}
	sort.SliceStable(c.buffer, func(i, j int) bool {
		a, b := c.buffer[i], c.buffer[j]
		if a.ThreadID != b.ThreadID {
			return a.ThreadID < b.ThreadID
		}
		return a.LocalStep < b.LocalStep
	})

	var produced []Directive
	for _, sig := range c.buffer {
		if d, ok := c.mapSignal(sig); ok {
			produced = append(produced, d)
			if sig.Kind == traversal.SignalCrash {
				produced = append(produced, Directive{Kind: DirectiveAdjustWeight, Branch: sig.Action, Hash: 0, Multiplier: c.cfg.FindingBoost, Trigger: sig})
			}
		}
	}

	c.weights.DecayAll(c.cfg.GlobalDecay)
	for _, branches := range c.registeredBranches {
		c.weights.Normalize(branches, 0)
	}
	c.enforceCoverageFloor()

	for i := range produced {
		produced[i].Epoch = c.epoch
		produced[i].Seqno = c.nextSeqno
		c.nextSeqno++
		c.applyDirective(produced[i])
	}
	c.directiveLog = append(c.directiveLog, produced...)

	c.epoch++
	c.buffer = nil
	return produced
}

// DirectiveLog returns every directive applied so far, in application
// order (monotonically increasing seqno).
func (c *Coordinator) DirectiveLog() []Directive { return c.directiveLog }

func (c *Coordinator) mapSignal(sig traversal.Signal) (Directive, bool) {
	switch sig.Kind {
	case traversal.SignalCoverageDelta:
		branch := sig.Action
		if branch == "" {
			branch = fmt.Sprintf("%d", sig.NodeID)
		}
		return Directive{Kind: DirectiveAdjustWeight, Branch: branch, Hash: 0, Multiplier: c.cfg.CoverageBoost, Trigger: sig}, true

	case traversal.SignalPropertyViolation:
		return Directive{Kind: DirectiveForce, Action: sig.Property, Budget: c.cfg.ForceBudget, Trigger: sig}, true

	case traversal.SignalCrash:
		// Crash emits Force with twice the force budget here; Flush appends
		// its AdjustWeight companion (FindingBoost on the crashing action),
		// so both are applied after the epoch's decay and both appear in
		// the directive log.
		return Directive{Kind: DirectiveForce, Action: sig.Action, Budget: 2 * c.cfg.ForceBudget, Trigger: sig}, true

	case traversal.SignalTimeout:
		return c.mapTimeout(sig)

	case traversal.SignalGuardFailure:
		branch := sig.BranchID
		if branch == "" {
			branch = sig.Action
		}
		return Directive{Kind: DirectiveAdjustWeight, Branch: branch, Hash: 0, Multiplier: c.cfg.GuardFailureDecay, Trigger: sig}, true

	case traversal.SignalBranchSelected:
		return Directive{}, false

	default:
		// Conservative: silently drop unsupported signal->directive cases.
		return Directive{}, false
	}
}

// mapTimeout implements the two-step timeout tracker.
func (c *Coordinator) mapTimeout(sig traversal.Signal) (Directive, bool) {
	st, ok := c.timeouts[sig.Action]
	if !ok {
		st = &timeoutState{}
		c.timeouts[sig.Action] = st
	}

	if !st.retryScheduled && !st.permanentSkip {
		fuel := sig.FuelConsumed / 2
		if fuel <= 0 {
			fuel = c.cfg.TimeoutRetryFuel
		}
		st.retryScheduled = true
		st.reducedFuel = fuel
		return Directive{}, false // no directive: caller must retry at reduced fuel
	}

	if st.retryScheduled && !st.permanentSkip {
		st.retryScheduled = false
		st.permanentSkip = true
		st.remaining = c.cfg.TimeoutSkipBudget
		return Directive{Kind: DirectiveSkip, Action: sig.Action, Hash: 0, Remaining: st.remaining, Trigger: sig}, true
	}

	// permanentSkip: decrement remaining budget; clear on exhaustion.
	st.remaining--
	if st.remaining <= 0 {
		delete(c.timeouts, sig.Action)
	}
	return Directive{Kind: DirectiveSkip, Action: sig.Action, Hash: 0, Remaining: st.remaining, Trigger: sig}, true
}

// NoteRetrySuccess clears an action's timeout chain after a successful
// retry.
func (c *Coordinator) NoteRetrySuccess(action string) {
	delete(c.timeouts, action)
}

func (c *Coordinator) applyDirective(d Directive) {
	switch d.Kind {
	case DirectiveAdjustWeight:
		c.weights.Adjust(d.Branch, d.Hash, d.Multiplier)
	case DirectivePermanentZero:
		c.weights.Set(d.Branch, 0, 0.0)
	case DirectiveSkip:
		c.weights.Set(d.Action, d.Hash, 0.01)
	case DirectiveForce:
		// Force does not mutate the weight table; it is only recorded in
		// the directive log, and no strategy reads it back.
	}
}

func (c *Coordinator) enforceCoverageFloor() {
	if len(c.uncoveredTargetBranches) == 0 {
		return
	}
	total := 0.0
	for _, b := range c.uncoveredTargetBranches {
		total += c.weights.Get(b, 0)
	}
	floor := c.cfg.CoverageFloor * 100
	if total >= floor {
		return
	}
	if total == 0 {
		even := floor / float64(len(c.uncoveredTargetBranches))
		for _, b := range c.uncoveredTargetBranches {
			c.weights.Set(b, 0, even)
		}
		return
	}
	scale := floor / total
	for _, b := range c.uncoveredTargetBranches {
		c.weights.Adjust(b, 0, scale)
	}
}
