package ir

// ValueKind discriminates a Value's resolution mode.
type ValueKind string

const (
	ValueLiteral ValueKind = "literal"
	ValueFieldOf ValueKind = "field_of" // ["field", entity-var, field-name]
)

// Value is a set-op's right-hand side: either a JSON primitive literal or a
// read-at-apply-time reference to another field of the model state.
type Value struct {
	Kind ValueKind `json:"kind"`

	BoolValue   *bool   `json:"bool_value,omitempty"`
	IntValue    *int    `json:"int_value,omitempty"`
	StringValue *string `json:"string_value,omitempty"`

	SourceVar   string `json:"source_var,omitempty"`
	SourceField string `json:"source_field,omitempty"`
}

// Creates declares that an effect allocates a new instance, binding its id
// to bind-name for subsequent Sets.
type Creates struct {
	Entity string `json:"entity"`
	Bind   string `json:"bind"`
}

// SetOp assigns Value to (TargetVar, Field) at effect-apply time.
type SetOp struct {
	TargetVar string `json:"target_var"`
	Field     string `json:"field"`
	Value     Value  `json:"value"`
}

// Effect is the declarative semantics of an action: an optional entity
// creation followed by an ordered list of field sets.
type Effect struct {
	Action  string   `json:"action"`
	Creates *Creates `json:"creates,omitempty"`
	Sets    []SetOp  `json:"sets"`
}
