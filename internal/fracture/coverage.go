package fracture

import (
	"strconv"

	"verityengine/internal/domain"
	"verityengine/internal/ir"
)

// TargetKind discriminates the coverage target vocabulary.
type TargetKind string

const (
	TargetAllPairs      TargetKind = "all_pairs"
	TargetBoundary      TargetKind = "boundary"
	TargetEachTransition TargetKind = "each_transition"
)

// Target is one concrete coverage obligation: a fixed set of
// domain-name -> value assignments that a generated vector must satisfy,
// or (for EachTransition) a machine name delegated to the traversal
// engine's own coverage signals.
type Target struct {
	Kind        TargetKind
	Assignments map[string]string
	Machine     string
	Description string
}

// GenerateAllPairsTargets expands an AllPairs{over=vars} coverage strategy
// into one concrete Target per (value-of-vi, value-of-vj) combination, for
// every unordered pair of variables in vars.
func GenerateAllPairsTargets(domains *domain.Set, vars []string) []Target {
	var targets []Target
	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			vi, vj := vars[i], vars[j]
			encI, okI := domains.Domains[vi]
			encJ, okJ := domains.Domains[vj]
			if !okI || !okJ {
				continue
			}
			for _, x := range domainValues(encI) {
				for _, y := range domainValues(encJ) {
					targets = append(targets, Target{
						Kind:        TargetAllPairs,
						Assignments: map[string]string{vi: x, vj: y},
						Description: vi + "=" + x + ", " + vj + "=" + y,
					})
				}
			}
		}
	}
	return targets
}

// domainValues returns every coverable value of an encoded domain: bool
// domains encode a single SAT variable but have two values ("true" and
// "false") worth covering independently, unlike enum/int domains whose
// full label set is already stored in Values.
func domainValues(enc *domain.Encoding) []string {
	if enc.Kind == ir.DomainBool {
		return []string{"true", "false"}
	}
	return enc.Values
}

// GenerateBoundaryTargets builds one Target per explicit value plus,
// for int domains, the automatic min/max/min+1/max-1 boundary values.
func GenerateBoundaryTargets(domains *domain.Set, domainName string, explicit []string) []Target {
	enc, ok := domains.Domains[domainName]
	if !ok {
		return nil
	}
	values := append([]string{}, explicit...)
	if enc.Kind == ir.DomainInt {
		values = append(values, autoIntBoundaries(enc.Values)...)
	}
	seen := make(map[string]bool, len(values))
	var targets []Target
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		targets = append(targets, Target{
			Kind:        TargetBoundary,
			Assignments: map[string]string{domainName: v},
			Description: domainName + "=" + v,
		})
	}
	return targets
}

func autoIntBoundaries(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	nums := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	min, max := nums[0], nums[0]
	for _, n := range nums {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	out := []string{strconv.Itoa(min), strconv.Itoa(max)}
	if min+1 <= max {
		out = append(out, strconv.Itoa(min+1))
	}
	if max-1 >= min {
		out = append(out, strconv.Itoa(max-1))
	}
	return out
}

// Result is the coverage-driven generator's output: the generated vector
// set plus the covered/uncoverable/delegated classification of every
// target.
type Result struct {
	Vectors     []map[string]string
	Covered     []Target
	Uncoverable []Target
	Delegated   []Target
	TotalTargets int
}

// Generate attempts, for each target, to force its assignment via a
// fixing clause and find_many(1): SAT targets are classified covered and
// contribute a decoded vector; UNSAT targets are classified uncoverable.
// EachTransition targets are not a SAT/fracture concern and are classified
// delegated without being solved here.
func Generate(p *Plan, targets []Target) (*Result, error) {
	res := &Result{TotalTargets: len(targets)}
	for _, t := range targets {
		if t.Kind == TargetEachTransition {
			res.Delegated = append(res.Delegated, t)
			continue
		}

		extra, err := fixingClauses(p.Domains, t.Assignments)
		if err != nil {
			return nil, err
		}
		found := p.Solver.FindMany(1, p.DomainVars, extra)
		if len(found) == 0 {
			res.Uncoverable = append(res.Uncoverable, t)
			continue
		}
		res.Covered = append(res.Covered, t)
		vec, err := p.Domains.Decode(found[0])
		if err != nil {
			return nil, err
		}
		res.Vectors = append(res.Vectors, vec)
	}
	return res, nil
}

func fixingClauses(domains *domain.Set, assignments map[string]string) ([][]int, error) {
	extra := make([][]int, 0, len(assignments))
	for name, value := range assignments {
		enc, ok := domains.Domains[name]
		if !ok {
			continue
		}
		lit, err := enc.Literal(value)
		if err != nil {
			return nil, err
		}
		extra = append(extra, []int{lit})
	}
	return extra, nil
}
