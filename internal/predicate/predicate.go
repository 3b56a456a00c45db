// Package predicate lowers ir.Expr trees to an evaluable form and evaluates
// them against model state. Derived function-calls and is-refinements
// delegate to a pluggable Deriver (internal/derive's Mangle-backed
// implementation) rather than being evaluated inline, keeping this package
// free of a Datalog-engine dependency.
package predicate

import (
	"errors"
	"fmt"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
)

// ErrUnsupported marks an evaluation path deliberately left open
// (function-call / is-refinement without a configured Deriver).
var ErrUnsupported = errors.New("predicate: unsupported construct")

// Deriver resolves derived function-calls and is-refinements against model
// state. internal/derive provides a Mangle-backed implementation.
type Deriver interface {
	EvalFunctionCall(state *modelstate.State, class ir.FunctionClass, name string, args []string, bindings map[string]modelstate.EntityID) (any, error)
	EvalIs(state *modelstate.State, bindings map[string]modelstate.EntityID, entity modelstate.EntityID, refinementName string, params map[string]string) (bool, error)
}

// Context carries the evaluation environment: model state, a
// variable-to-instance binding, and an optional deriver.
type Context struct {
	State    *modelstate.State
	Bindings map[string]modelstate.EntityID
	Deriver  Deriver
}

// WithBinding returns a copy of ctx with var bound to id, leaving ctx
// unmodified (quantifier evaluation extends bindings per-iteration without
// disturbing the caller's).
func (ctx Context) WithBinding(v string, id modelstate.EntityID) Context {
	next := make(map[string]modelstate.EntityID, len(ctx.Bindings)+1)
	for k, val := range ctx.Bindings {
		next[k] = val
	}
	next[v] = id
	ctx.Bindings = next
	return ctx
}

// Eval evaluates a compiled predicate expression, returning its value
// (bool, int, or string depending on the expression).
func Eval(e ir.Expr, ctx Context) (any, error) {
	switch e.Kind {
	case ir.ExprLiteral:
		return evalLiteral(e)
	case ir.ExprField:
		return evalField(e, ctx)
	case ir.ExprOp:
		return evalOp(e, ctx)
	case ir.ExprQuantifier:
		return evalQuantifier(e, ctx)
	case ir.ExprFunctionCall:
		if ctx.Deriver == nil {
			return nil, ErrUnsupported
		}
		return ctx.Deriver.EvalFunctionCall(ctx.State, e.FunctionClass, e.FunctionName, e.Args, ctx.Bindings)
	case ir.ExprIs:
		if ctx.Deriver == nil {
			return nil, ErrUnsupported
		}
		id, ok := ctx.Bindings[e.Entity]
		if !ok {
			return nil, fmt.Errorf("predicate: unbound entity var %q in is-refinement", e.Entity)
		}
		return ctx.Deriver.EvalIs(ctx.State, ctx.Bindings, id, e.RefinementName, e.Params)
	default:
		return nil, fmt.Errorf("predicate: unknown expr kind %q", e.Kind)
	}
}

// EvalBool evaluates e and asserts the result is a bool.
func EvalBool(e ir.Expr, ctx Context) (bool, error) {
	v, err := Eval(e, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("predicate: expected bool result, got %T", v)
	}
	return b, nil
}

func evalLiteral(e ir.Expr) (any, error) {
	switch {
	case e.BoolValue != nil:
		return *e.BoolValue, nil
	case e.IntValue != nil:
		return *e.IntValue, nil
	case e.StringValue != nil:
		return *e.StringValue, nil
	default:
		return nil, fmt.Errorf("predicate: literal has no value set")
	}
}

func evalField(e ir.Expr, ctx Context) (any, error) {
	id, ok := ctx.Bindings[e.Var]
	if !ok {
		return nil, fmt.Errorf("predicate: unbound entity var %q", e.Var)
	}
	inst, ok := ctx.State.GetInstance(id)
	if !ok {
		return nil, fmt.Errorf("predicate: no such instance %v", id)
	}
	v, ok := inst.Fields[e.Field]
	if !ok {
		return nil, fmt.Errorf("predicate: field %q not found on %v", e.Field, id)
	}
	return v, nil
}

func evalOp(e ir.Expr, ctx Context) (any, error) {
	switch e.Operator {
	case ir.OpAnd:
		for _, o := range e.Operands {
			b, err := EvalBool(o, ctx)
			if err != nil {
				return nil, err
			}
			if !b {
				return false, nil
			}
		}
		return true, nil
	case ir.OpOr:
		for _, o := range e.Operands {
			b, err := EvalBool(o, ctx)
			if err != nil {
				return nil, err
			}
			if b {
				return true, nil
			}
		}
		return false, nil
	case ir.OpNot:
		if len(e.Operands) != 1 {
			return nil, fmt.Errorf("predicate: not requires exactly one operand")
		}
		b, err := EvalBool(e.Operands[0], ctx)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case ir.OpImplies:
		if len(e.Operands) != 2 {
			return nil, fmt.Errorf("predicate: implies requires exactly two operands")
		}
		a, err := EvalBool(e.Operands[0], ctx)
		if err != nil {
			return nil, err
		}
		if !a {
			return true, nil
		}
		return EvalBool(e.Operands[1], ctx)
	case ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		if len(e.Operands) != 2 {
			return nil, fmt.Errorf("predicate: %s requires exactly two operands", e.Operator)
		}
		left, err := Eval(e.Operands[0], ctx)
		if err != nil {
			return nil, err
		}
		right, err := Eval(e.Operands[1], ctx)
		if err != nil {
			return nil, err
		}
		return compare(e.Operator, left, right)
	default:
		return nil, fmt.Errorf("predicate: unknown operator %q", e.Operator)
	}
}

func compare(op ir.Op, left, right any) (bool, error) {
	if op == ir.OpEq {
		return left == right, nil
	}
	if op == ir.OpNeq {
		return left != right, nil
	}
	li, lok := left.(int)
	ri, rok := right.(int)
	if !lok || !rok {
		return false, fmt.Errorf("predicate: %s requires int operands, got %T and %T", op, left, right)
	}
	switch op {
	case ir.OpLt:
		return li < ri, nil
	case ir.OpLte:
		return li <= ri, nil
	case ir.OpGt:
		return li > ri, nil
	case ir.OpGte:
		return li >= ri, nil
	default:
		return false, fmt.Errorf("predicate: unknown comparison operator %q", op)
	}
}

func evalQuantifier(e ir.Expr, ctx Context) (any, error) {
	instances := ctx.State.AllInstances(e.DomainEntity)
	switch e.QuantifierKind {
	case ir.QuantForall:
		for _, inst := range instances {
			b, err := EvalBool(*e.Body, ctx.WithBinding(e.BoundVar, inst.ID))
			if err != nil {
				return nil, err
			}
			if !b {
				return false, nil
			}
		}
		return true, nil
	case ir.QuantExists:
		for _, inst := range instances {
			b, err := EvalBool(*e.Body, ctx.WithBinding(e.BoundVar, inst.ID))
			if err != nil {
				return nil, err
			}
			if b {
				return true, nil
			}
		}
		return false, nil
	default:
		return nil, fmt.Errorf("predicate: unknown quantifier kind %q", e.QuantifierKind)
	}
}
