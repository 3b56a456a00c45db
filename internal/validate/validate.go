// Package validate runs the static-validation pass required before
// compilation: a full vector of errors rather than fail-fast on
// the first problem, so a malformed IR can be fixed in one round-trip.
package validate

import (
	"fmt"
	"sort"

	"verityengine/internal/ir"
)

// ErrorKind names one validation-error kind.
type ErrorKind string

const (
	DanglingEntityRef   ErrorKind = "DanglingEntityRef"
	MissingEffect       ErrorKind = "MissingEffect"
	MissingBinding      ErrorKind = "MissingBinding"
	DanglingProtocolRef ErrorKind = "DanglingProtocolRef"
	AllZeroWeights      ErrorKind = "AllZeroWeights"
	InvalidRepeatBounds ErrorKind = "InvalidRepeatBounds"
)

// Error is one validation failure.
type Error struct {
	Kind     ErrorKind
	Location string
	Message  string
}

func (e Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Validate runs every check over model, returning the full vector of
// errors found (nil/empty if the IR is valid).
func Validate(model *ir.IR) []Error {
	var errs []Error

	entityNames := make(map[string]bool, len(model.Entities))
	for _, e := range model.Entities {
		entityNames[e.Name] = true
	}
	protocolNames := make(map[string]bool, len(model.Protocols))
	for _, p := range model.Protocols {
		protocolNames[p.Name] = true
	}
	hasEffect := make(map[string]bool, len(model.Effects))
	for _, e := range model.Effects {
		hasEffect[e.Action] = true
	}
	hasBinding := make(map[string]bool, len(model.Bindings))
	for _, b := range model.Bindings {
		hasBinding[b.Action] = true
	}

	// Dangling entity refs: refinements and field ref targets.
	for _, r := range model.Refinements {
		if !entityNames[r.EntityType] {
			errs = append(errs, Error{Kind: DanglingEntityRef, Location: "refinement/" + r.Name,
				Message: fmt.Sprintf("entity type %q not declared", r.EntityType)})
		}
	}
	for _, e := range model.Entities {
		for _, f := range e.Fields {
			if f.Kind == ir.FieldRef && f.RefTo != "" && !entityNames[f.RefTo] {
				errs = append(errs, Error{Kind: DanglingEntityRef, Location: e.Name + "." + f.Name,
					Message: fmt.Sprintf("ref field targets undeclared entity %q", f.RefTo)})
			}
		}
	}

	// Every terminal action in every protocol grammar needs an effect and a
	// binding; every ref node needs a declared protocol.
	actionsSeen := make(map[string]bool)
	for _, p := range model.Protocols {
		walkGrammar(p.Grammar, p.Name, func(g ir.Grammar, location string) {
			switch g.Kind {
			case ir.GrammarTerminal:
				if actionsSeen[g.Action] {
					return
				}
				actionsSeen[g.Action] = true
				if !hasEffect[g.Action] {
					errs = append(errs, Error{Kind: MissingEffect, Location: location,
						Message: fmt.Sprintf("action %q has no declared effect", g.Action)})
				}
				if !hasBinding[g.Action] {
					errs = append(errs, Error{Kind: MissingBinding, Location: location,
						Message: fmt.Sprintf("action %q has no declared binding", g.Action)})
				}
			case ir.GrammarRef:
				if !protocolNames[g.Protocol] {
					errs = append(errs, Error{Kind: DanglingProtocolRef, Location: location,
						Message: fmt.Sprintf("reference to undeclared protocol %q", g.Protocol)})
				}
			case ir.GrammarAlt:
				sum := 0.0
				for _, b := range g.Branches {
					sum += b.Weight
				}
				if sum <= 0 {
					errs = append(errs, Error{Kind: AllZeroWeights, Location: location,
						Message: "alternation has no positive-weight branch"})
				}
			case ir.GrammarRepeat:
				if g.Min > g.Max {
					errs = append(errs, Error{Kind: InvalidRepeatBounds, Location: location,
						Message: fmt.Sprintf("min=%d exceeds max=%d", g.Min, g.Max)})
				}
			}
		})
	}

	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Kind != errs[j].Kind {
			return errs[i].Kind < errs[j].Kind
		}
		return errs[i].Location < errs[j].Location
	})
	return errs
}

// walkGrammar visits every node in g, invoking visit with a location string
// for diagnostics.
func walkGrammar(g ir.Grammar, location string, visit func(ir.Grammar, string)) {
	visit(g, location)
	switch g.Kind {
	case ir.GrammarSeq:
		for i, c := range g.Children {
			walkGrammar(c, fmt.Sprintf("%s/seq[%d]", location, i), visit)
		}
	case ir.GrammarAlt:
		for i, b := range g.Branches {
			walkGrammar(b.Body, fmt.Sprintf("%s/alt[%d]", location, i), visit)
		}
	case ir.GrammarRepeat:
		if g.Body != nil {
			walkGrammar(*g.Body, location+"/repeat", visit)
		}
	}
}
