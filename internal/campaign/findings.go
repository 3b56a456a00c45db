package campaign

import "time"

// Findings returns every finding with seqno strictly greater than
// sinceSeqno, in seqno order, for incremental polling.
func (m *Manager) Findings(id string, sinceSeqno int) ([]Finding, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Finding, 0, len(c.findings))
	for _, f := range c.findings {
		if f.Seqno > sinceSeqno {
			out = append(out, f)
		}
	}
	return out, nil
}

// CoverageSummary aggregates a campaign's action-coverage state.
type CoverageSummary struct {
	Hit         int
	Pending     int
	Unreachable int
	Percent     float64
}

// CoverageResult is the full answer to a coverage(id) query: the target
// list (every action bound in the IR) plus the summary counts.
type CoverageResult struct {
	Targets []string
	Hit     map[string]bool
	Summary CoverageSummary
}

// Coverage reports which bound actions have been exercised and which
// remain pending, plus the number of PermanentZero directives (branches
// proven statically unreachable); it does not map those branches to
// actions.
func (m *Manager) Coverage(id string) (*CoverageResult, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make([]string, 0, len(c.model.Bindings))
	for _, b := range c.model.Bindings {
		targets = append(targets, b.Action)
	}

	hit := make(map[string]bool, len(targets))
	hitCount := 0
	for _, action := range targets {
		if c.visitedActions[action] {
			hit[action] = true
			hitCount++
		}
	}

	unreachable := 0
	for _, d := range c.Coordinator.DirectiveLog() {
		if d.Kind == "PermanentZero" {
			unreachable++
		}
	}

	pending := len(targets) - hitCount
	if pending < 0 {
		pending = 0
	}

	percent := 0.0
	if len(targets) > 0 {
		percent = float64(hitCount) / float64(len(targets)) * 100
	}

	return &CoverageResult{
		Targets: targets,
		Hit:     hit,
		Summary: CoverageSummary{
			Hit:         hitCount,
			Pending:     pending,
			Unreachable: unreachable,
			Percent:     percent,
		},
	}, nil
}

// Analytics summarizes a campaign's run so far.
type Analytics struct {
	Steps                   int
	Findings                int
	PeakCoverage            float64
	Elapsed                 time.Duration
	FindingRatePer1000Steps float64
	CoverageVelocity        float64
	AdaptationEffectiveness float64
	EpochsCompleted         int
	State                   Phase
}

// Analytics computes the summary statistics exposed by the analytics(id)
// query.
func (m *Manager) Analytics(id string) (*Analytics, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.elapsed
	if c.Phase == PhaseRunning {
		elapsed = time.Since(c.startedAt)
	}

	percent := 0.0
	if len(c.model.Bindings) > 0 {
		percent = float64(c.totalActions) / float64(len(c.model.Bindings)) * 100
	}

	findingRate := 0.0
	if c.steps > 0 {
		findingRate = float64(len(c.findings)) / float64(c.steps) * 1000
	}

	velocity := 0.0
	if elapsed > 0 {
		velocity = percent / elapsed.Seconds()
	}

	effectiveness := adaptationEffectiveness(c)

	return &Analytics{
		Steps:                   c.steps,
		Findings:                len(c.findings),
		PeakCoverage:            percent,
		Elapsed:                 elapsed,
		FindingRatePer1000Steps: findingRate,
		CoverageVelocity:        velocity,
		AdaptationEffectiveness: effectiveness,
		EpochsCompleted:         epochsCompleted(c),
		State:                   c.Phase,
	}, nil
}

// adaptationEffectiveness is the fraction of weight-bearing directives
// (AdjustWeight/Force/Skip) among all directives applied so far: a rough
// signal-to-noise measure of how much of the directive log actually
// steered exploration versus recorded static PermanentZero facts.
func adaptationEffectiveness(c *Campaign) float64 {
	log := c.Coordinator.DirectiveLog()
	if len(log) == 0 {
		return 0
	}
	steering := 0
	for _, d := range log {
		if d.Kind != "PermanentZero" {
			steering++
		}
	}
	return float64(steering) / float64(len(log))
}

func epochsCompleted(c *Campaign) int {
	log := c.Coordinator.DirectiveLog()
	if len(log) == 0 {
		return 0
	}
	return log[len(log)-1].Epoch + 1
}
