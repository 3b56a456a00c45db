// Package fracture implements the hierarchical fracture/solve/abort
// pipeline: fracturing a SAT space by a chosen variable order
// produces one subspace per domain value, stage-ids are deterministic
// (parent-stage-id*1000+index), sibling SAT checks run in parallel, and
// UNSAT children are abandoned immediately without recursing deeper.
package fracture

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"verityengine/internal/domain"
	"verityengine/internal/sat"
)

// Var names one fracture dimension: a domain name plus the values to
// fracture over (normally domain.Encoding.Values in full).
type Var struct {
	Domain string
	Values []string
}

// Plan pins the shared inputs to a fracture run.
type Plan struct {
	Solver     *sat.Solver
	Domains    *domain.Set
	DomainVars []int // every SAT variable belonging to an encoded domain
	Vars       []Var
	LeafLimit  int // 0 = exhaustive at each leaf
}

func (p *Plan) literalFor(name, value string) (int, error) {
	enc, ok := p.Domains.Domains[name]
	if !ok {
		return 0, fmt.Errorf("fracture: unknown domain %q", name)
	}
	return enc.Literal(value)
}

// Run executes the depth-first fracture/solve/abort pipeline: at each
// depth the children subspaces are SAT-checked in parallel, UNSAT children
// are dropped, and SAT children either recurse (more variables remain) or
// enumerate unique vectors at the leaf.
func Run(ctx context.Context, p *Plan, rootStageID int64) ([]sat.Assignment, error) {
	return fractureLevel(ctx, p, 0, rootStageID, nil)
}

func fractureLevel(ctx context.Context, p *Plan, depth int, stageID int64, cumulative [][]int) ([]sat.Assignment, error) {
	if depth == len(p.Vars) {
		return p.Solver.FindMany(p.LeafLimit, p.DomainVars, cumulative), nil
	}

	v := p.Vars[depth]
	g, gctx := errgroup.WithContext(ctx)
	perChild := make([][]sat.Assignment, len(v.Values))

	for i, value := range v.Values {
		i, value := i, value
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			lit, err := p.literalFor(v.Domain, value)
			if err != nil {
				return err
			}
			childExtra := make([][]int, 0, len(cumulative)+1)
			childExtra = append(childExtra, cumulative...)
			childExtra = append(childExtra, []int{lit})
			childStage := stageID*1000 + int64(i)

			ok, _ := p.Solver.FindOne(childExtra)
			if !ok {
				return nil // UNSAT: abort this child, no recursion
			}
			sub, err := fractureLevel(gctx, p, depth+1, childStage, childExtra)
			if err != nil {
				return err
			}
			perChild[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []sat.Assignment
	for _, r := range perChild {
		merged = append(merged, r...)
	}
	return dedupe(merged, p.DomainVars), nil
}

// leafTask is one SAT subspace identified as satisfiable during the
// collect phase of the parallel-leaves variant, not yet solved for
// vectors.
type leafTask struct {
	stageID int64
	extra   [][]int
}

// RunParallelLeaves implements the parallel-leaves variant: collect every
// SAT leaf subspace first (still depth-first, still abandoning UNSAT
// children immediately), then solve all collected leaves concurrently and
// deduplicate the combined vector set at the end.
func RunParallelLeaves(ctx context.Context, p *Plan, rootStageID int64) ([]sat.Assignment, error) {
	leaves, err := collectLeaves(ctx, p, 0, rootStageID, nil)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	perLeaf := make([][]sat.Assignment, len(leaves))
	for i, leaf := range leaves {
		i, leaf := i, leaf
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			perLeaf[i] = p.Solver.FindMany(p.LeafLimit, p.DomainVars, leaf.extra)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []sat.Assignment
	for _, r := range perLeaf {
		merged = append(merged, r...)
	}
	return dedupe(merged, p.DomainVars), nil
}

func collectLeaves(ctx context.Context, p *Plan, depth int, stageID int64, cumulative [][]int) ([]leafTask, error) {
	if depth == len(p.Vars) {
		ok, _ := p.Solver.FindOne(cumulative)
		if !ok {
			return nil, nil
		}
		return []leafTask{{stageID: stageID, extra: cumulative}}, nil
	}

	v := p.Vars[depth]
	g, gctx := errgroup.WithContext(ctx)
	perChild := make([][]leafTask, len(v.Values))

	for i, value := range v.Values {
		i, value := i, value
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			lit, err := p.literalFor(v.Domain, value)
			if err != nil {
				return err
			}
			childExtra := make([][]int, 0, len(cumulative)+1)
			childExtra = append(childExtra, cumulative...)
			childExtra = append(childExtra, []int{lit})
			childStage := stageID*1000 + int64(i)

			ok, _ := p.Solver.FindOne(childExtra)
			if !ok {
				return nil
			}
			sub, err := collectLeaves(gctx, p, depth+1, childStage, childExtra)
			if err != nil {
				return err
			}
			perChild[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []leafTask
	for _, r := range perChild {
		merged = append(merged, r...)
	}
	return merged, nil
}

func dedupe(assignments []sat.Assignment, domainVars []int) []sat.Assignment {
	vars := append([]int{}, domainVars...)
	sort.Ints(vars)
	seen := make(map[string]bool, len(assignments))
	out := make([]sat.Assignment, 0, len(assignments))
	for _, a := range assignments {
		buf := make([]byte, 0, len(vars))
		for _, v := range vars {
			if a[v] {
				buf = append(buf, '1')
			} else {
				buf = append(buf, '0')
			}
		}
		key := string(buf)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
