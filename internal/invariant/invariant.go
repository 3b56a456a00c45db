// Package invariant evaluates compiled invariant properties against
// model state, producing Violation findings.
package invariant

import (
	"errors"
	"fmt"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
	"verityengine/internal/predicate"
)

// Violation carries a property name and a diagnostic message.
type Violation struct {
	Property string
	Message  string
}

// CheckAll evaluates every property in properties against state with an
// empty variable binding, returning one Violation per failing or erroring
// property. Evaluation errors (unsupported construct, field-not-found,
// type mismatch) are reported as violations rather than silently
// suppressed: an evaluation bug must surface as a finding.
func CheckAll(properties []ir.Property, state *modelstate.State, deriver predicate.Deriver) []Violation {
	var violations []Violation
	ctx := predicate.Context{State: state, Bindings: map[string]modelstate.EntityID{}, Deriver: deriver}
	for _, p := range properties {
		ok, err := predicate.EvalBool(p.Predicate, ctx)
		if err != nil {
			violations = append(violations, Violation{
				Property: p.Name,
				Message:  diagnose(err),
			})
			continue
		}
		if !ok {
			violations = append(violations, Violation{Property: p.Name, Message: "predicate evaluated to false"})
		}
	}
	return violations
}

func diagnose(err error) string {
	if errors.Is(err, predicate.ErrUnsupported) {
		return "unsupported construct during invariant evaluation"
	}
	return fmt.Sprintf("evaluation error: %v", err)
}
