// Package effect applies declared effects to model state.
//
// Resolves Open Question 1: rather than the reference's hard-coded
// fallback search over a couple of entity type names, set-target variables
// are resolved against an explicit Scope threaded in from the caller (the
// traversal engine), which knows the protocol-level bindings in play for
// the action being applied: "actor" from the campaign's actor id, any
// variable introduced by the action's own `creates`, and any variable
// bound by an enclosing quantifier or protocol parameter. A target
// variable with no entry in creates or Scope is an error, not a guess.
package effect

import (
	"fmt"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
)

// Scope maps variable names bound by the caller (actor, quantifier-bound
// variables, protocol parameters) to entity ids, for resolving effect
// set-targets that are neither "actor" nor the instance just created.
type Scope map[string]modelstate.EntityID

// Apply applies eff to state using the given scope, returning the
// possibly-extended scope (including any variable bound by `creates`).
// Applying an effect is atomic with respect to failure only in that
// partial mutations up to the failing set-op remain; callers wanting
// transactional semantics must snapshot state before calling Apply.
func Apply(eff ir.Effect, state *modelstate.State, scope Scope) (Scope, error) {
	next := make(Scope, len(scope)+1)
	for k, v := range scope {
		next[k] = v
	}

	if eff.Creates != nil {
		id := state.CreateInstance(eff.Creates.Entity)
		next[eff.Creates.Bind] = id
	}

	for _, set := range eff.Sets {
		id, ok := next[set.TargetVar]
		if !ok {
			return next, fmt.Errorf("effect: action %q: unresolved target variable %q (not actor, not created, not in scope)", eff.Action, set.TargetVar)
		}
		value, err := resolveValue(set.Value, state, next)
		if err != nil {
			return next, fmt.Errorf("effect: action %q: %w", eff.Action, err)
		}
		if err := state.SetField(id, set.Field, value); err != nil {
			return next, fmt.Errorf("effect: action %q: %w", eff.Action, err)
		}
	}

	state.RecordAction(eff.Action, nil)
	return next, nil
}

func resolveValue(v ir.Value, state *modelstate.State, scope Scope) (any, error) {
	switch v.Kind {
	case ir.ValueLiteral:
		switch {
		case v.BoolValue != nil:
			return *v.BoolValue, nil
		case v.IntValue != nil:
			return *v.IntValue, nil
		case v.StringValue != nil:
			return *v.StringValue, nil
		default:
			return nil, fmt.Errorf("literal value has no value set")
		}
	case ir.ValueFieldOf:
		id, ok := scope[v.SourceVar]
		if !ok {
			return nil, fmt.Errorf("unresolved source variable %q in field-of value", v.SourceVar)
		}
		inst, ok := state.GetInstance(id)
		if !ok {
			return nil, fmt.Errorf("no such instance %v", id)
		}
		field, ok := inst.Fields[v.SourceField]
		if !ok {
			return nil, fmt.Errorf("field %q not found on %v", v.SourceField, id)
		}
		return field, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}
}
