// Package derive resolves the two predicate-AST constructs the core
// evaluator cannot evaluate inline: derived
// function-calls and is-refinements. Derived functions are translated into
// facts asserted against an embedded google/mangle engine and evaluated to
// fixpoint; refinements are resolved by binding their formal parameters and
// re-entering the shared predicate evaluator on the refinement's predicate
// body. Together these give "inline derived function bodies at compile
// time" and "resolve refinements by evaluating the refinement predicate
// with parameters bound" one concrete mechanism instead of two.
package derive

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"verityengine/internal/ir"
	"verityengine/internal/modelstate"
)

// Engine is a Mangle-backed predicate.Deriver.
type Engine struct {
	mu          sync.Mutex
	schema      []parse.SourceUnit
	programInfo *analysis.ProgramInfo
	refinements map[string]ir.Refinement // keyed by "entityType/name"

	// EvalRefinementPredicate closes over internal/predicate.Eval; wired by
	// the caller to avoid an import cycle (predicate -> derive -> predicate).
	EvalRefinementPredicate func(body ir.Expr, state *modelstate.State, bindings map[string]modelstate.EntityID) (bool, error)
}

// NewEngine constructs a derive engine over the IR's refinement
// declarations and an optional Mangle schema source (derived-function
// rules, one rule per function name). An empty schema is valid;
// function-calls simply find no rules.
func NewEngine(model *ir.IR, schemaSource string) (*Engine, error) {
	e := &Engine{refinements: make(map[string]ir.Refinement)}
	for _, r := range model.Refinements {
		e.refinements[r.EntityType+"/"+r.Name] = r
	}
	if strings.TrimSpace(schemaSource) != "" {
		if err := e.loadSchema(schemaSource); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) loadSchema(source string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(source)))
	if err != nil {
		return fmt.Errorf("derive: parse schema: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schema = append(e.schema, unit)

	merged := parse.SourceUnit{}
	for _, frag := range e.schema {
		merged.Clauses = append(merged.Clauses, frag.Clauses...)
		merged.Decls = append(merged.Decls, frag.Decls...)
	}
	info, err := analysis.AnalyzeOneUnit(merged, nil)
	if err != nil {
		return fmt.Errorf("derive: analyze schema: %w", err)
	}
	e.programInfo = info
	return nil
}

// EvalFunctionCall implements predicate.Deriver. Observer functions read a
// single field off the bound "self" variable directly. Derived functions
// assert the current bindings' instance fields as `field/5` facts, evaluate
// the schema's rules to fixpoint, then read back the named predicate's
// facts (last argument is the result).
func (e *Engine) EvalFunctionCall(state *modelstate.State, class ir.FunctionClass, name string, args []string, bindings map[string]modelstate.EntityID) (any, error) {
	if class == ir.FunctionObserver {
		if len(args) != 1 {
			return nil, fmt.Errorf("derive: observer function %q expects exactly one field-name arg", name)
		}
		id, ok := bindings["self"]
		if !ok {
			return nil, fmt.Errorf("derive: observer function %q requires a bound 'self' variable", name)
		}
		inst, ok := state.GetInstance(id)
		if !ok {
			return nil, fmt.Errorf("derive: no such instance %v", id)
		}
		v, ok := inst.Fields[args[0]]
		if !ok {
			return nil, fmt.Errorf("derive: field %q not found on %v", args[0], id)
		}
		return v, nil
	}

	e.mu.Lock()
	info := e.programInfo
	e.mu.Unlock()
	if info == nil {
		return nil, fmt.Errorf("derive: no schema loaded, cannot evaluate derived function %q", name)
	}

	store := factstore.NewSimpleInMemoryStore()
	if err := assertBindingFacts(store, state, bindings); err != nil {
		return nil, err
	}

	if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("derive: evaluate schema: %w", err)
	}

	var sym ast.PredicateSym
	found := false
	for s := range info.Decls {
		if s.Symbol == name {
			sym = s
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("derive: no rule named %q in schema", name)
	}

	var result any
	got := false
	err := store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		if got || len(atom.Args) == 0 {
			return nil
		}
		result = constantToGo(atom.Args[len(atom.Args)-1])
		got = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("derive: read back %q: %w", name, err)
	}
	if !got {
		return nil, fmt.Errorf("derive: function %q produced no result for the current bindings", name)
	}
	return result, nil
}

// EvalIs implements predicate.Deriver by binding the refinement's formal
// parameters (from params, resolved against the caller's bindings) plus the
// refined entity itself under "self", then re-evaluating the refinement's
// predicate body through the shared predicate evaluator.
func (e *Engine) EvalIs(state *modelstate.State, bindings map[string]modelstate.EntityID, entity modelstate.EntityID, refinementName string, params map[string]string) (bool, error) {
	ref, ok := e.refinements[entity.Type+"/"+refinementName]
	if !ok {
		return false, fmt.Errorf("derive: no refinement %q declared on entity type %q", refinementName, entity.Type)
	}
	if e.EvalRefinementPredicate == nil {
		return false, fmt.Errorf("derive: EvalRefinementPredicate not wired")
	}

	innerBindings := map[string]modelstate.EntityID{"self": entity}
	for _, param := range ref.Params {
		sourceVar, ok := params[param]
		if !ok {
			continue
		}
		if id, ok := bindings[sourceVar]; ok {
			innerBindings[param] = id
		}
	}
	return e.EvalRefinementPredicate(ref.Predicate, state, innerBindings)
}

func assertBindingFacts(store factstore.FactStoreWithRemove, state *modelstate.State, bindings map[string]modelstate.EntityID) error {
	names := make([]string, 0, len(bindings))
	for k := range bindings {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, varName := range names {
		id := bindings[varName]
		inst, ok := state.GetInstance(id)
		if !ok {
			continue
		}
		fieldNames := make([]string, 0, len(inst.Fields))
		for f := range inst.Fields {
			fieldNames = append(fieldNames, f)
		}
		sort.Strings(fieldNames)
		for _, f := range fieldNames {
			term, err := goToConstant(inst.Fields[f])
			if err != nil {
				return err
			}
			atom := ast.Atom{
				Predicate: ast.PredicateSym{Symbol: "field", Arity: 5},
				Args: []ast.BaseTerm{
					ast.String(varName),
					ast.String(id.Type),
					ast.Number(int64(id.Index)),
					ast.String(f),
					term,
				},
			}
			if err := store.Add(atom); err != nil {
				return fmt.Errorf("derive: assert fact: %w", err)
			}
		}
	}
	return nil
}

func goToConstant(v any) (ast.BaseTerm, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	case int:
		return ast.Number(int64(t)), nil
	case int64:
		return ast.Number(t), nil
	case string:
		return ast.String(t), nil
	default:
		return nil, fmt.Errorf("derive: unsupported field value type %T", v)
	}
}

func constantToGo(t ast.BaseTerm) any {
	c, ok := t.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", t)
	}
	switch c.Type {
	case ast.NumberType:
		return int(c.NumValue)
	default:
		if c == ast.TrueConstant {
			return true
		}
		if c == ast.FalseConstant {
			return false
		}
		return c.Symbol
	}
}
