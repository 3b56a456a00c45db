// Package strategy implements the pluggable branch-selection and
// loop-iteration policy the traversal engine consults at Branch and
// LoopEntry nodes. Strategies are stacked so the adaptation
// coordinator (or a test) can temporarily override the default policy
// without losing it.
package strategy

import (
	"fmt"

	"verityengine/internal/rng"
	"verityengine/internal/weight"
)

// Alternative is the minimal shape a strategy needs from a compiled
// Branch node's alternatives: its weight-table key (ID) and its position
// among the node's alternatives (Index).
type Alternative struct {
	ID     string
	Index  int
}

// Strategy selects among branch alternatives and picks loop iteration
// counts.
type Strategy interface {
	// SelectBranch returns the index into alternatives to take.
	SelectBranch(alternatives []Alternative, weights *weight.Table, hash uint64, stream *rng.Stream) (int, error)
	// IterationCount returns an iteration count k in [min, max].
	IterationCount(min, max int, stream *rng.Stream) int
}

// Stack is a LIFO of strategies; Current always resolves to the top of
// the stack, falling back to a required base strategy if the stack is
// otherwise empty.
type Stack struct {
	base  Strategy
	stack []Strategy
}

// NewStack constructs a Stack with base as the strategy used when nothing
// has been pushed.
func NewStack(base Strategy) *Stack {
	return &Stack{base: base}
}

// Push installs s as the current strategy.
func (s *Stack) Push(strat Strategy) { s.stack = append(s.stack, strat) }

// Pop removes the current override strategy, if any, reverting to the one
// beneath it (or the base).
func (s *Stack) Pop() {
	if len(s.stack) == 0 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Current returns the strategy currently in effect.
func (s *Stack) Current() Strategy {
	if len(s.stack) == 0 {
		return s.base
	}
	return s.stack[len(s.stack)-1]
}

// WeightedRandom is the default strategy: branch selection is a
// weight-proportional random draw over the weight table's effective
// weights at the given state hash; loop iteration counts are drawn
// uniformly from [min, max].
type WeightedRandom struct{}

// SelectBranch implements Strategy.
func (WeightedRandom) SelectBranch(alternatives []Alternative, weights *weight.Table, hash uint64, stream *rng.Stream) (int, error) {
	if len(alternatives) == 0 {
		return 0, fmt.Errorf("strategy: no alternatives to select from")
	}
	total := 0.0
	ws := make([]float64, len(alternatives))
	for i, alt := range alternatives {
		w := weights.Get(alt.ID, hash)
		ws[i] = w
		total += w
	}
	if total <= 0 {
		return 0, fmt.Errorf("strategy: all alternatives have zero effective weight")
	}
	draw := stream.Float64() * total
	cursor := 0.0
	for i, w := range ws {
		cursor += w
		if draw < cursor {
			return i, nil
		}
	}
	return len(alternatives) - 1, nil
}

// IterationCount implements Strategy.
func (WeightedRandom) IterationCount(min, max int, stream *rng.Stream) int {
	if max <= min {
		return min
	}
	return min + stream.Intn(max-min+1)
}

// Fixed always selects a pre-chosen branch index and a pre-chosen
// iteration count, for callers that push it onto a Stack to pin a
// deterministic path. The adaptation coordinator's directives do not push
// it or any other strategy.
type Fixed struct {
	BranchIndex int
	Iterations  int
}

// SelectBranch implements Strategy.
func (f Fixed) SelectBranch(alternatives []Alternative, weights *weight.Table, hash uint64, stream *rng.Stream) (int, error) {
	if f.BranchIndex < 0 || f.BranchIndex >= len(alternatives) {
		return 0, fmt.Errorf("strategy: fixed branch index %d out of range [0,%d)", f.BranchIndex, len(alternatives))
	}
	return f.BranchIndex, nil
}

// IterationCount implements Strategy.
func (f Fixed) IterationCount(min, max int, stream *rng.Stream) int {
	if f.Iterations < min {
		return min
	}
	if f.Iterations > max {
		return max
	}
	return f.Iterations
}
