package campaign

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"verityengine/internal/ir"
	"verityengine/internal/logging"
	"verityengine/internal/modelstate"
	"verityengine/internal/strategy"
	"verityengine/internal/traversal"
)

// PhaseTransition advances a campaign to newPhase, one of
// {Compiled, DutLoaded, Running, Complete, Aborted}. Transitioning into
// Running drives the campaign to completion or a configured limit before
// returning.
func (m *Manager) PhaseTransition(id string, newPhase Phase) error {
	c, err := m.get(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	cur := c.Phase
	c.mu.Unlock()

	if !validTransition(cur, newPhase) {
		return fmt.Errorf("campaign: invalid phase transition %s -> %s", cur, newPhase)
	}

	switch newPhase {
	case PhaseDutLoaded:
		c.mu.Lock()
		c.Phase = PhaseDutLoaded
		c.mu.Unlock()

	case PhaseRunning:
		c.mu.Lock()
		c.Phase = PhaseRunning
		c.startedAt = time.Now()
		c.mu.Unlock()
		runCampaign(context.Background(), c)

	case PhaseComplete:
		c.mu.Lock()
		c.Phase = PhaseComplete
		c.mu.Unlock()

	case PhaseAborted:
		c.mu.Lock()
		c.Phase = PhaseAborted
		c.StopReason = StopUserAborted
		c.mu.Unlock()
	}
	return nil
}

func validTransition(from, to Phase) bool {
	if to == PhaseAborted {
		return from != PhaseAborted && from != PhaseComplete
	}
	switch from {
	case PhaseCompiled:
		return to == PhaseDutLoaded
	case PhaseDutLoaded:
		return to == PhaseRunning
	case PhaseRunning:
		return to == PhaseComplete
	}
	return false
}

// Abort forces a campaign into the Aborted phase with stop reason
// UserAborted and returns its final state.
func (m *Manager) Abort(id string) (*Campaign, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.Phase != PhaseComplete {
		c.Phase = PhaseAborted
		c.StopReason = StopUserAborted
	}
	c.mu.Unlock()
	return c, nil
}

// runCampaign drives limits.Threads traversal threads concurrently, each
// owning its own model-state fork and rng stream but sharing the weight
// table, adaptation coordinator, and SAT-backed vector source. It returns
// once every thread stops on its own limit or the campaign-wide
// wall-time/finding limits are hit.
func runCampaign(ctx context.Context, c *Campaign) {
	timer := logging.StartTimer(logging.CategoryCampaign, "run")
	defer timer.Stop()

	effects := make(map[string]ir.Effect, len(c.model.Effects))
	for _, e := range c.model.Effects {
		effects[e.Action] = e
	}

	deadline := c.startedAt.Add(c.limits.WallTime)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for t := 0; t < c.limits.Threads; t++ {
		threadID := t
		g.Go(func() error {
			return runThread(gctx, c, threadID, effects)
		})
	}
	_ = g.Wait()

	c.Coordinator.Flush()

	c.mu.Lock()
	if c.StopReason == StopNone {
		c.StopReason = StopComplete
	}
	c.Phase = PhaseComplete
	c.elapsed = time.Since(c.startedAt)
	c.mu.Unlock()
}

func runThread(ctx context.Context, c *Campaign, threadID int, effects map[string]ir.Effect) error {
	actor := modelstate.New().CreateInstance("Actor")
	compiled := c.compiled[c.startProtocol]

	engine := &traversal.Engine{
		Graph:        c.graph,
		Executor:     c.Executor,
		VectorSource: c.VectorSource,
		Strategies:   strategy.NewStack(strategy.WeightedRandom{}),
		Weights:      c.Weights,
		State:        modelstate.New(),
		Properties:   c.model.Properties,
		Effects:      effects,
		ActorID:      actor,
		MaxSteps:     maxStepsPerPass(c.limits),
		ThreadID:     threadID,
		GlobalSeed:   c.seed,
	}

	pass := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if c.limits.Iterations > 0 && pass >= c.limits.Iterations {
			c.mu.Lock()
			c.StopReason = StopIterationLimitExceeded
			c.mu.Unlock()
			return nil
		}

		result, err := engine.Run(ctx, compiled.Start)
		if err != nil {
			return nil
		}
		pass++

		stop := recordPass(c, threadID, result)
		if stop {
			return nil
		}
	}
}

// maxStepsPerPass bounds one traversal pass: a budget of 0 makes the
// engine execute nothing at all (0 is treated as an exhausted budget, not
// "unbounded"), so passes are always given a generous per-pass ceiling and
// the campaign-level iteration/wall-time/finding limits own the outer
// stopping decision.
func maxStepsPerPass(l Limits) int {
	return 10000
}

// recordPass submits every signal from one traversal pass to the
// coordinator, records findings under a campaign-wide seqno, and reports
// whether the campaign-level finding limit was hit.
func recordPass(c *Campaign, threadID int, result *traversal.Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps += result.ExecutedCount
	for action := range result.VisitedActions {
		if !c.visitedActions[action] {
			c.visitedActions[action] = true
			c.totalActions++
		}
	}

	for _, sig := range result.Signals {
		c.Coordinator.Submit(sig)
	}
	for _, f := range result.Findings {
		c.findings = append(c.findings, Finding{Seqno: c.nextSeqno, Thread: threadID, Signal: f.Signal})
		c.nextSeqno++
	}

	if c.limits.Findings > 0 && len(c.findings) >= c.limits.Findings {
		c.StopReason = StopFindingLimitExceeded
		return true
	}
	return false
}
