// Package sat implements the DPLL-style boolean solver used by the
// coverage-driven generation pipeline: find_one, find_many with
// domain-scoped blocking clauses, and deterministic solving for fixed
// input order.
package sat

import (
	"sort"
)

// Assignment maps a SAT variable number to its truth value.
type Assignment map[int]bool

// Solver holds a fixed set of base clauses (structural + constraint) that
// every search call extends with extra clauses.
type Solver struct {
	numVars int
	base    [][]int
}

// New constructs a Solver with numVars variables and the given base
// clauses.
func New(numVars int, base [][]int) *Solver {
	s := &Solver{numVars: numVars}
	for _, c := range base {
		s.base = append(s.base, append([]int{}, c...))
	}
	return s
}

// FindOne searches for a satisfying assignment given extra clauses on top
// of the solver's base clauses. Returns (true, assignment) on SAT, (false,
// nil) on UNSAT.
func (s *Solver) FindOne(extra [][]int) (bool, Assignment) {
	clauses := make([][]int, 0, len(s.base)+len(extra))
	clauses = append(clauses, s.base...)
	clauses = append(clauses, extra...)
	assignment := make(Assignment, s.numVars)
	if solve(clauses, s.numVars, assignment) {
		return true, assignment
	}
	return false, nil
}

// FindMany enumerates up to limit (0 = exhaustive) unique satisfying
// assignments given extra clauses, deduplicating by structural hash over
// domainVars and blocking each found assignment with a domain-scoped
// clause (restricted to domainVars) so solver-internal variables never
// appear in a blocking clause. Stops at UNSAT or at limit.
func (s *Solver) FindMany(limit int, domainVars []int, extra [][]int) []Assignment {
	clauses := make([][]int, 0, len(s.base)+len(extra))
	clauses = append(clauses, s.base...)
	clauses = append(clauses, extra...)

	var results []Assignment
	seen := make(map[string]bool)

	for limit == 0 || len(results) < limit {
		assignment := make(Assignment, s.numVars)
		if !solve(clauses, s.numVars, assignment) {
			break
		}
		h := structuralHash(assignment, domainVars)
		if !seen[h] {
			seen[h] = true
			results = append(results, assignment)
		}
		clauses = append(clauses, blockingClause(assignment, domainVars))
	}
	return results
}

func blockingClause(a Assignment, domainVars []int) []int {
	clause := make([]int, 0, len(domainVars))
	for _, v := range domainVars {
		if a[v] {
			clause = append(clause, -v)
		} else {
			clause = append(clause, v)
		}
	}
	return clause
}

func structuralHash(a Assignment, domainVars []int) string {
	vars := append([]int{}, domainVars...)
	sort.Ints(vars)
	buf := make([]byte, 0, len(vars)*2)
	for _, v := range vars {
		if a[v] {
			buf = append(buf, '1')
		} else {
			buf = append(buf, '0')
		}
	}
	return string(buf)
}

// solve runs unit propagation then deterministic variable-order
// backtracking (lowest-numbered unassigned variable first, true tried
// before false) over clauses, writing the result into assignment on
// success.
func solve(clauses [][]int, numVars int, assignment Assignment) bool {
	work := make([][]int, len(clauses))
	for i, c := range clauses {
		work[i] = append([]int{}, c...)
	}
	return backtrack(work, numVars, assignment, 1)
}

func backtrack(clauses [][]int, numVars int, assignment Assignment, nextVar int) bool {
	clauses, ok := unitPropagate(clauses, assignment)
	if !ok {
		return false
	}
	if hasEmptyClause(clauses) {
		return false
	}
	v := firstUnassigned(numVars, assignment, nextVar)
	if v == 0 {
		return true
	}
	for _, val := range [2]bool{true, false} {
		trial := cloneAssignment(assignment)
		trial[v] = val
		lit := v
		if !val {
			lit = -v
		}
		narrowed := applyLiteral(clauses, lit)
		if backtrack(narrowed, numVars, trial, v+1) {
			for k, vv := range trial {
				assignment[k] = vv
			}
			return true
		}
	}
	return false
}

func firstUnassigned(numVars int, assignment Assignment, from int) int {
	for v := from; v <= numVars; v++ {
		if _, ok := assignment[v]; !ok {
			return v
		}
	}
	return 0
}

func cloneAssignment(a Assignment) Assignment {
	next := make(Assignment, len(a)+1)
	for k, v := range a {
		next[k] = v
	}
	return next
}

func hasEmptyClause(clauses [][]int) bool {
	for _, c := range clauses {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

// unitPropagate repeatedly satisfies unit clauses, removing satisfied
// clauses and false literals, until no unit clause remains or a
// contradiction (empty clause) is found.
func unitPropagate(clauses [][]int, assignment Assignment) ([][]int, bool) {
	changed := true
	for changed {
		changed = false
		var unit int
		found := false
		for _, c := range clauses {
			if len(c) == 1 {
				unit = c[0]
				found = true
				break
			}
		}
		if !found {
			break
		}
		v, val := litVar(unit)
		if existing, ok := assignment[v]; ok && existing != val {
			return clauses, false
		}
		assignment[v] = val
		clauses = applyLiteral(clauses, unit)
		changed = true
	}
	return clauses, true
}

func applyLiteral(clauses [][]int, lit int) [][]int {
	out := make([][]int, 0, len(clauses))
	for _, c := range clauses {
		satisfied := false
		next := make([]int, 0, len(c))
		for _, l := range c {
			if l == lit {
				satisfied = true
				break
			}
			if l == -lit {
				continue
			}
			next = append(next, l)
		}
		if satisfied {
			continue
		}
		out = append(out, next)
	}
	return out
}

func litVar(lit int) (int, bool) {
	if lit < 0 {
		return -lit, false
	}
	return lit, true
}
