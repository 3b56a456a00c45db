// Package ir defines the passive intermediate-representation type model the
// verification engine compiles: entity types, refinements, protocol
// grammars, effects, invariant properties, input domains, constraints, and
// action bindings. Types here are plain data carriers decoded from the
// engine's JSON wire format. This package only performs shallow per-node
// checks (Expr.Validate, Grammar.Validate); whole-IR validation and
// lowering live in internal/validate and internal/protocol.
package ir

// FieldKind enumerates the primitive kinds an entity field may hold.
type FieldKind string

const (
	FieldBool   FieldKind = "bool"
	FieldInt    FieldKind = "int"
	FieldEnum   FieldKind = "enum"
	FieldString FieldKind = "string"
	FieldRef    FieldKind = "ref"
)

// FieldDef names one field of an EntityType.
type FieldDef struct {
	Name   string    `json:"name"`
	Kind   FieldKind `json:"kind"`
	Labels []string  `json:"labels,omitempty"` // for FieldEnum
	RefTo  string    `json:"ref_to,omitempty"` // for FieldRef
}

// EntityType declares the shape of instances of a named entity.
type EntityType struct {
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

// Refinement is a predicate-constrained subtype of an entity, parameterized
// by free variables.
type Refinement struct {
	Name       string   `json:"name"`
	EntityType string   `json:"entity_type"`
	Params     []string `json:"params"`
	Predicate  Expr     `json:"predicate"`
}

// Binding maps an abstract action name to a DUT-side callable function name.
type Binding struct {
	Action   string `json:"action"`
	Function string `json:"function"`
}

// DomainKind describes one SAT input variable's type.
type DomainKind string

const (
	DomainBool DomainKind = "bool"
	DomainEnum DomainKind = "enum"
	DomainInt  DomainKind = "int"
)

// Domain is a named input-space variable with its kind-specific bounds.
type Domain struct {
	Name   string     `json:"name"`
	Kind   DomainKind `json:"kind"`
	Labels []string   `json:"labels,omitempty"` // DomainEnum
	Min    int        `json:"min,omitempty"`    // DomainInt
	Max    int        `json:"max,omitempty"`    // DomainInt
}

// Property is a named invariant: a predicate that must hold in every
// reachable model state.
type Property struct {
	Name      string `json:"name"`
	Predicate Expr   `json:"predicate"`
}

// IR is the full specification: entities, refinements, protocols, effects,
// invariant properties, input domains, declarative constraints, and
// action-to-function bindings.
type IR struct {
	Entities     []EntityType `json:"entities"`
	Refinements  []Refinement `json:"refinements"`
	Protocols    []Protocol   `json:"protocols"`
	Effects      []Effect     `json:"effects"`
	Properties   []Property   `json:"properties"`
	Domains      []Domain     `json:"domains"`
	Constraints  []Expr       `json:"constraints"`
	Bindings     []Binding    `json:"bindings"`
}

// EntityByName returns the entity type declaration with the given name, if
// present.
func (ir *IR) EntityByName(name string) (EntityType, bool) {
	for _, e := range ir.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityType{}, false
}

// ProtocolByName returns the named protocol, if present.
func (ir *IR) ProtocolByName(name string) (Protocol, bool) {
	for _, p := range ir.Protocols {
		if p.Name == name {
			return p, true
		}
	}
	return Protocol{}, false
}

// EffectByAction returns the effect declared for an action, if present.
func (ir *IR) EffectByAction(action string) (Effect, bool) {
	for _, e := range ir.Effects {
		if e.Action == action {
			return e, true
		}
	}
	return Effect{}, false
}

// BindingByAction returns the binding declared for an action, if present.
func (ir *IR) BindingByAction(action string) (Binding, bool) {
	for _, b := range ir.Bindings {
		if b.Action == action {
			return b, true
		}
	}
	return Binding{}, false
}
