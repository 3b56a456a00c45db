// Package traversal walks a compiled protocol.Graph from Start to End
// using an explicit object stack of node ids: the grammar is
// recursive but the engine never recurses over it, which avoids stack
// exhaustion on deep grammars and makes loop-unrolling (pushing
// body-starts N times) natural.
package traversal

import (
	"context"
	"fmt"
	"strings"

	"verityengine/internal/effect"
	"verityengine/internal/invariant"
	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
	"verityengine/internal/predicate"
	"verityengine/internal/protocol"
	"verityengine/internal/rng"
	"verityengine/internal/strategy"
	"verityengine/internal/weight"
)

// ActionOutcome is an executor's report on one invoked action.
type ActionOutcome struct {
	ReturnValue  any
	Trapped      bool
	FuelConsumed int64
	Error        error
}

// Executor invokes an action against the device under test with a
// concrete input vector.
type Executor interface {
	Execute(ctx context.Context, action string, vector map[string]any) (ActionOutcome, error)
}

// VectorSource supplies input vectors for an action. Absence (ok=false)
// means the caller should use a default (empty) vector.
type VectorSource interface {
	Next(action string) (map[string]any, bool)
}

// SignalKind discriminates the traversal signal vocabulary.
type SignalKind string

const (
	SignalGuardFailure      SignalKind = "GuardFailure"
	SignalTimeout           SignalKind = "Timeout"
	SignalCrash             SignalKind = "Crash"
	SignalPropertyViolation SignalKind = "PropertyViolation"
	SignalCoverageDelta     SignalKind = "CoverageDelta"
	SignalBranchSelected    SignalKind = "BranchSelected"
)

// Signal is one traversal-engine event, always carrying (thread-id,
// local-step) for total ordering at epoch boundaries.
type Signal struct {
	Kind         SignalKind
	ThreadID     int
	LocalStep    int
	Action       string
	Property     string
	Message      string
	FuelConsumed int64
	BranchID     string
	Weight       float64
	NodeID       protocol.NodeID
}

// Finding is a first-class defect surfaced by Crash or PropertyViolation
// signals.
type Finding struct {
	Signal Signal
}

// TraceStep records one visited node for diagnostics/replay.
type TraceStep struct {
	NodeID protocol.NodeID
	Kind   protocol.NodeKind
	Action string
}

// Engine walks one compiled protocol graph with an explicit node stack.
type Engine struct {
	Graph        *protocol.Graph
	Executor     Executor
	VectorSource VectorSource
	Strategies   *strategy.Stack
	Weights      *weight.Table
	State        *modelstate.State
	Properties   []ir.Property
	Effects      map[string]ir.Effect
	Deriver      predicate.Deriver
	ActorID      modelstate.EntityID
	MaxSteps     int
	ThreadID     int
	GlobalSeed   uint64

	stream *rng.Stream
}

// Result is the outcome of one traversal run.
type Result struct {
	Signals        []Signal
	Findings       []Finding
	Trace          []TraceStep
	GuardFailures  int
	ExecutedCount  int
	VisitedActions map[string]bool
	VisitedNodes   map[protocol.NodeID]bool
}

// Run walks the graph starting at start until the explicit stack empties
// or MaxSteps is exhausted, whichever comes first.
func (e *Engine) Run(ctx context.Context, start protocol.NodeID) (*Result, error) {
	if e.stream == nil {
		s, err := rng.NewStream(e.GlobalSeed, int64(e.ThreadID))
		if err != nil {
			return nil, fmt.Errorf("traversal: construct rng stream: %w", err)
		}
		e.stream = s
	}

	res := &Result{
		VisitedActions: make(map[string]bool),
		VisitedNodes:   make(map[protocol.NodeID]bool),
	}
	scope := effect.Scope{"actor": e.ActorID}
	stack := []protocol.NodeID{start}
	localStep := 0
	budget := e.MaxSteps

	for len(stack) > 0 {
		if budget <= 0 {
			break
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := e.Graph.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("traversal: unknown node id %v", id)
		}
		res.VisitedNodes[id] = true

		switch node.Kind {
		case protocol.NodeStart:
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})
			stack = append(stack, node.Successors...)

		case protocol.NodeEnd:
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})

		case protocol.NodePassthrough:
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})
			stack = append(stack, node.Successors...)

		case protocol.NodeJoin:
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})
			stack = append(stack, node.Successors...)

		case protocol.NodeTerminal:
			localStep++
			budget--
			if err := e.runTerminal(ctx, node, scope, res, localStep); err != nil {
				return nil, err
			}
			stack = append(stack, node.Successors...)

		case protocol.NodeBranch:
			target, err := e.runBranch(node, res, localStep)
			if err != nil {
				return nil, err
			}
			stack = append(stack, target)

		case protocol.NodeLoopEntry:
			k := e.Strategies.Current().IterationCount(node.Min, node.Max, e.stream)
			stack = append(stack, node.Successors...) // LoopExit path, processed last
			for i := 0; i < k; i++ {
				stack = append(stack, node.LoopBodyStart)
			}
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})

		case protocol.NodeLoopExit:
			res.Trace = append(res.Trace, TraceStep{NodeID: id, Kind: node.Kind})
			stack = append(stack, node.Successors...)

		default:
			return nil, fmt.Errorf("traversal: unknown node kind %q", node.Kind)
		}
	}
	return res, nil
}

func (e *Engine) runBranch(node *protocol.Node, res *Result, localStep int) (protocol.NodeID, error) {
	hash := stateHash(e.State)
	alts := make([]strategy.Alternative, len(node.Alternatives))
	for i := range node.Alternatives {
		alts[i] = strategy.Alternative{ID: BranchID(node.ID, i), Index: i}
	}
	idx, err := e.Strategies.Current().SelectBranch(alts, e.Weights, hash, e.stream)
	if err != nil {
		return 0, fmt.Errorf("traversal: branch selection at node %v: %w", node.ID, err)
	}
	chosen := node.Alternatives[idx]
	res.Signals = append(res.Signals, Signal{
		Kind: SignalBranchSelected, ThreadID: e.ThreadID, LocalStep: localStep,
		BranchID: alts[idx].ID, Weight: e.Weights.Get(alts[idx].ID, hash), NodeID: node.ID,
	})
	if !res.VisitedNodes[chosen.Target] {
		res.Signals = append(res.Signals, Signal{Kind: SignalCoverageDelta, ThreadID: e.ThreadID, LocalStep: localStep, NodeID: chosen.Target})
	}
	res.Trace = append(res.Trace, TraceStep{NodeID: node.ID, Kind: node.Kind})
	return chosen.Target, nil
}

// BranchID names a Branch node's alternative for weight-table lookups,
// shared with callers that seed per-branch default weights from the
// compiled graph (e.g. a campaign applying declared grammar weights).
func BranchID(node protocol.NodeID, altIndex int) string {
	return fmt.Sprintf("branch-%d-%d", node, altIndex)
}

func (e *Engine) runTerminal(ctx context.Context, node *protocol.Node, scope effect.Scope, res *Result, localStep int) error {
	if node.Guard != nil {
		guardCtx := predicate.Context{State: e.State, Bindings: scopeToBindings(scope), Deriver: e.Deriver}
		ok, err := predicate.EvalBool(*node.Guard, guardCtx)
		if err != nil || !ok {
			res.GuardFailures++
			res.Signals = append(res.Signals, Signal{
				Kind: SignalGuardFailure, ThreadID: e.ThreadID, LocalStep: localStep,
				Action: node.Action, NodeID: node.ID,
			})
			res.Trace = append(res.Trace, TraceStep{NodeID: node.ID, Kind: node.Kind, Action: node.Action})
			return nil
		}
	}

	vector := map[string]any{}
	if v, ok := e.VectorSource.Next(node.Action); ok {
		vector = v
	}

	outcome, err := e.Executor.Execute(ctx, node.Action, vector)
	if err != nil {
		return fmt.Errorf("traversal: executor error on action %q: %w", node.Action, err)
	}

	if outcome.Trapped {
		msg := ""
		if outcome.Error != nil {
			msg = outcome.Error.Error()
		}
		if strings.Contains(msg, "fuel") || strings.Contains(msg, "Fuel") {
			res.Signals = append(res.Signals, Signal{
				Kind: SignalTimeout, ThreadID: e.ThreadID, LocalStep: localStep,
				Action: node.Action, FuelConsumed: outcome.FuelConsumed, NodeID: node.ID,
			})
		} else {
			sig := Signal{Kind: SignalCrash, ThreadID: e.ThreadID, LocalStep: localStep, Action: node.Action, Message: msg, NodeID: node.ID}
			res.Signals = append(res.Signals, sig)
			res.Findings = append(res.Findings, Finding{Signal: sig})
		}
	}

	if eff, ok := e.Effects[node.Action]; ok {
		newScope, err := effect.Apply(eff, e.State, scope)
		if err != nil {
			return fmt.Errorf("traversal: apply effect for %q: %w", node.Action, err)
		}
		for k, v := range newScope {
			scope[k] = v
		}
	} else {
		e.State.RecordAction(node.Action, nil)
	}

	for _, v := range invariant.CheckAll(e.Properties, e.State, e.Deriver) {
		sig := Signal{Kind: SignalPropertyViolation, ThreadID: e.ThreadID, LocalStep: localStep, Property: v.Property, Message: v.Message, Action: node.Action, NodeID: node.ID}
		res.Signals = append(res.Signals, sig)
		res.Findings = append(res.Findings, Finding{Signal: sig})
	}

	res.ExecutedCount++
	if !res.VisitedActions[node.Action] {
		res.VisitedActions[node.Action] = true
		res.Signals = append(res.Signals, Signal{Kind: SignalCoverageDelta, ThreadID: e.ThreadID, LocalStep: localStep, Action: node.Action, NodeID: node.ID})
	}

	res.Trace = append(res.Trace, TraceStep{NodeID: node.ID, Kind: node.Kind, Action: node.Action})
	return nil
}

func scopeToBindings(scope effect.Scope) map[string]modelstate.EntityID {
	out := make(map[string]modelstate.EntityID, len(scope))
	for k, v := range scope {
		out[k] = v
	}
	return out
}

// stateHash computes the abstract model-state hash used to key
// state-conditioned weights: conservatively, the state's
// generation counter. A fuller implementation would hash over the fields
// referenced by the enclosing alt block's guards.
func stateHash(state *modelstate.State) uint64 {
	return state.Generation()
}
