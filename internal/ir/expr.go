package ir

import (
	"fmt"
)

// ExprKind discriminates the predicate expression sum type.
type ExprKind string

const (
	ExprLiteral     ExprKind = "literal"
	ExprField       ExprKind = "field"
	ExprOp          ExprKind = "op"
	ExprQuantifier  ExprKind = "quantifier"
	ExprFunctionCall ExprKind = "function_call"
	ExprIs          ExprKind = "is"
)

// Op is an n-ary operator over sub-expressions.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpAnd     Op = "and"
	OpOr      Op = "or"
	OpNot     Op = "not"
	OpImplies Op = "implies"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
)

// QuantifierKind distinguishes universal from existential quantification.
type QuantifierKind string

const (
	QuantForall QuantifierKind = "forall"
	QuantExists QuantifierKind = "exists"
)

// FunctionClass distinguishes derived (Datalog-evaluable) functions from
// observer (model-state-reading) functions.
type FunctionClass string

const (
	FunctionDerived  FunctionClass = "derived"
	FunctionObserver FunctionClass = "observer"
)

// Expr is the compiled-predicate sum type: literal, field access, n-ary op,
// quantifier, function-call, or is-refinement. Exactly one set of fields is
// populated according to Kind; Validate checks this, JSON decoding does not.
type Expr struct {
	Kind ExprKind `json:"kind"`

	// literal
	BoolValue   *bool   `json:"bool_value,omitempty"`
	IntValue    *int    `json:"int_value,omitempty"`
	StringValue *string `json:"string_value,omitempty"`

	// field access: field-name of entity-var
	Var   string `json:"var,omitempty"`
	Field string `json:"field,omitempty"`

	// n-ary op
	Operator Op     `json:"operator,omitempty"`
	Operands []Expr `json:"operands,omitempty"`

	// quantifier
	QuantifierKind QuantifierKind `json:"quantifier_kind,omitempty"`
	BoundVar       string         `json:"bound_var,omitempty"`
	DomainEntity   string         `json:"domain_entity,omitempty"`
	Body           *Expr          `json:"body,omitempty"`

	// function-call
	FunctionClass FunctionClass `json:"function_class,omitempty"`
	FunctionName  string        `json:"function_name,omitempty"`
	Args          []string      `json:"args,omitempty"`

	// is-refinement
	Entity        string            `json:"entity,omitempty"`
	RefinementName string           `json:"refinement_name,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
}

// BoolLit constructs a boolean literal expression.
func BoolLit(v bool) Expr { return Expr{Kind: ExprLiteral, BoolValue: &v} }

// IntLit constructs an integer literal expression.
func IntLit(v int) Expr { return Expr{Kind: ExprLiteral, IntValue: &v} }

// StringLit constructs a string literal expression.
func StringLit(v string) Expr { return Expr{Kind: ExprLiteral, StringValue: &v} }

// FieldAccess constructs a field-access expression.
func FieldAccess(entityVar, field string) Expr {
	return Expr{Kind: ExprField, Var: entityVar, Field: field}
}

// NaryOp constructs an n-ary operator expression.
func NaryOp(op Op, operands ...Expr) Expr {
	return Expr{Kind: ExprOp, Operator: op, Operands: operands}
}

// Validate checks Kind-dependent field population, catching malformed IR
// early rather than at evaluation time.
func (e Expr) Validate() error {
	switch e.Kind {
	case ExprLiteral:
		n := 0
		if e.BoolValue != nil {
			n++
		}
		if e.IntValue != nil {
			n++
		}
		if e.StringValue != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("literal expr must set exactly one value, got %d", n)
		}
	case ExprField:
		if e.Var == "" || e.Field == "" {
			return fmt.Errorf("field expr requires var and field")
		}
	case ExprOp:
		if e.Operator == "" {
			return fmt.Errorf("op expr requires operator")
		}
		for _, o := range e.Operands {
			if err := o.Validate(); err != nil {
				return err
			}
		}
	case ExprQuantifier:
		if e.BoundVar == "" || e.DomainEntity == "" || e.Body == nil {
			return fmt.Errorf("quantifier expr requires bound_var, domain_entity, body")
		}
		return e.Body.Validate()
	case ExprFunctionCall:
		if e.FunctionName == "" {
			return fmt.Errorf("function_call expr requires function_name")
		}
	case ExprIs:
		if e.Entity == "" || e.RefinementName == "" {
			return fmt.Errorf("is expr requires entity and refinement_name")
		}
	default:
		return fmt.Errorf("unknown expr kind %q", e.Kind)
	}
	return nil
}
