// Package constraint translates a compiled predicate into CNF clauses over
// a domain.Set's SAT variables. Constraints reference domains by
// name via ir.Expr's field-access shape (Var = domain name, Field unused);
// the literal compared against is the domain value.
package constraint

import (
	"fmt"

	"verityengine/internal/domain"
	"verityengine/internal/ir"
)

// Clause is a disjunction of DIMACS-style literals (positive = var true,
// negative = var false). An empty clause is unsatisfiable.
type Clause []int

// Encode translates e into CNF clauses over set. Only the following
// shapes are supported: atomic eq/neq against a domain, and/or/not/implies
// over those. Anything else (non-atomic comparisons, non-unit antecedents
// in implies, not over a non-conjunction-of-units) is rejected explicitly
// rather than silently encoded wrong.
func Encode(e ir.Expr, set *domain.Set) ([]Clause, error) {
	switch e.Kind {
	case ir.ExprLiteral:
		if e.BoolValue == nil {
			return nil, fmt.Errorf("constraint: only bool literals are supported, got %+v", e)
		}
		if *e.BoolValue {
			return nil, nil // true contributes no clauses
		}
		return []Clause{{}}, nil // false contributes the empty (unsat) clause

	case ir.ExprOp:
		switch e.Operator {
		case ir.OpEq, ir.OpNeq:
			return encodeAtomic(e, set)
		case ir.OpAnd:
			var out []Clause
			for _, o := range e.Operands {
				cl, err := Encode(o, set)
				if err != nil {
					return nil, err
				}
				out = append(out, cl...)
			}
			return out, nil
		case ir.OpOr:
			if len(e.Operands) == 0 {
				return []Clause{{}}, nil
			}
			acc, err := Encode(e.Operands[0], set)
			if err != nil {
				return nil, err
			}
			for _, o := range e.Operands[1:] {
				cl, err := Encode(o, set)
				if err != nil {
					return nil, err
				}
				acc = crossOr(acc, cl)
			}
			return acc, nil
		case ir.OpNot:
			if len(e.Operands) != 1 {
				return nil, fmt.Errorf("constraint: not requires exactly one operand")
			}
			units, err := encodeAsUnits(e.Operands[0], set)
			if err != nil {
				return nil, fmt.Errorf("constraint: not applies only over a conjunction of unit clauses: %w", err)
			}
			return []Clause{negateUnits(units)}, nil
		case ir.OpImplies:
			if len(e.Operands) != 2 {
				return nil, fmt.Errorf("constraint: implies requires exactly two operands")
			}
			antecedentUnits, err := encodeAsUnits(e.Operands[0], set)
			if err != nil {
				return nil, fmt.Errorf("constraint: implies antecedent must be a conjunction of unit clauses: %w", err)
			}
			consequent, err := Encode(e.Operands[1], set)
			if err != nil {
				return nil, err
			}
			notAntecedent := Clause(negateUnits(antecedentUnits))
			return crossOr([]Clause{notAntecedent}, consequent), nil
		default:
			return nil, fmt.Errorf("constraint: unsupported operator %q", e.Operator)
		}
	default:
		return nil, fmt.Errorf("constraint: unsupported expression kind %q", e.Kind)
	}
}

// encodeAtomic handles eq(domain, literal) / neq(domain, literal): the
// only atomic comparison shapes the encoder accepts.
func encodeAtomic(e ir.Expr, set *domain.Set) ([]Clause, error) {
	if len(e.Operands) != 2 {
		return nil, fmt.Errorf("constraint: %s requires exactly two operands", e.Operator)
	}
	domainRef, literal := e.Operands[0], e.Operands[1]
	if domainRef.Kind != ir.ExprField {
		return nil, fmt.Errorf("constraint: non-atomic comparison (left side must be a domain reference)")
	}
	enc, ok := set.Domains[domainRef.Var]
	if !ok {
		return nil, fmt.Errorf("constraint: unknown domain %q", domainRef.Var)
	}
	label, err := literalLabel(literal)
	if err != nil {
		return nil, err
	}
	lit, err := enc.Literal(label)
	if err != nil {
		return nil, err
	}
	if e.Operator == ir.OpNeq {
		lit = -lit
	}
	return []Clause{{lit}}, nil
}

func literalLabel(e ir.Expr) (string, error) {
	switch {
	case e.BoolValue != nil:
		if *e.BoolValue {
			return "true", nil
		}
		return "false", nil
	case e.IntValue != nil:
		return fmt.Sprintf("%d", *e.IntValue), nil
	case e.StringValue != nil:
		return *e.StringValue, nil
	default:
		return "", fmt.Errorf("constraint: non-atomic comparison (right side must be a literal)")
	}
}

// encodeAsUnits requires every clause produced by e to be a unit clause,
// returning the flat literal list. This is what "implies" and "not" accept
// as their antecedent/operand.
func encodeAsUnits(e ir.Expr, set *domain.Set) ([]int, error) {
	clauses, err := Encode(e, set)
	if err != nil {
		return nil, err
	}
	units := make([]int, 0, len(clauses))
	for _, c := range clauses {
		if len(c) != 1 {
			return nil, fmt.Errorf("expected a conjunction of unit clauses, found a clause of length %d", len(c))
		}
		units = append(units, c[0])
	}
	return units, nil
}

func negateUnits(units []int) Clause {
	out := make(Clause, len(units))
	for i, u := range units {
		out[i] = -u
	}
	return out
}

// crossOr computes the Cartesian union of two clause lists: every
// combination of one clause from each side, concatenated. An empty side
// is "true", so the product is empty (true) as well.
func crossOr(a, b []Clause) []Clause {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]Clause, 0, len(a)*len(b))
	for _, ca := range a {
		for _, cb := range b {
			combined := make(Clause, 0, len(ca)+len(cb))
			combined = append(combined, ca...)
			combined = append(combined, cb...)
			out = append(out, combined)
		}
	}
	return out
}
