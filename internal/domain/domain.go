// Package domain encodes IR input domains into SAT variables:
// bool to one variable, enum of N labels to N variables under an
// exactly-one constraint, and bounded int ranges to a one-hot encoding
// over the range (capped at 1024 values).
package domain

import (
	"fmt"
	"sort"
	"strconv"

	"verityengine/internal/ir"
)

// MaxIntDomainSize is the largest int-range span the encoder accepts
// one-hot.
const MaxIntDomainSize = 1024

// Encoding is one domain's label-to-SAT-variable mapping. For bool
// domains, Values holds a single synthetic label ("true"); for enum and
// int domains, Values holds every label in declaration order.
type Encoding struct {
	Name   string
	Kind   ir.DomainKind
	Values []string
	VarOf  map[string]int
}

// Literal returns the DIMACS-style literal (positive var = true, negative
// = false) asserting domain = value. Bool domains: value="true" gives the
// positive literal of the sole variable, "false" gives its negation.
func (e *Encoding) Literal(value string) (int, error) {
	if e.Kind == ir.DomainBool {
		v, ok := e.VarOf["true"]
		if !ok {
			return 0, fmt.Errorf("domain %q: not encoded", e.Name)
		}
		switch value {
		case "true":
			return v, nil
		case "false":
			return -v, nil
		default:
			return 0, fmt.Errorf("domain %q: bool value must be true/false, got %q", e.Name, value)
		}
	}
	v, ok := e.VarOf[value]
	if !ok {
		return 0, fmt.Errorf("domain %q: no such value %q", e.Name, value)
	}
	return v, nil
}

// Set is every domain's encoding keyed by name, plus the structural
// clauses (exactly-one per enum/int domain) and the total variable count.
type Set struct {
	Domains   map[string]*Encoding
	Clauses   [][]int
	NumVars   int
}

// Encode builds the SAT encoding for domains, processed in sorted name
// order for reproducibility.
func Encode(domains []ir.Domain) (*Set, error) {
	sorted := make([]ir.Domain, len(domains))
	copy(sorted, domains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	set := &Set{Domains: make(map[string]*Encoding, len(sorted))}
	nextVar := 1

	for _, d := range sorted {
		enc := &Encoding{Name: d.Name, Kind: d.Kind, VarOf: make(map[string]int)}

		switch d.Kind {
		case ir.DomainBool:
			enc.Values = []string{"true"}
			enc.VarOf["true"] = nextVar
			nextVar++

		case ir.DomainEnum:
			if len(d.Labels) == 0 {
				return nil, fmt.Errorf("domain %q: enum has no labels", d.Name)
			}
			vars := make([]int, len(d.Labels))
			for i, label := range d.Labels {
				vars[i] = nextVar
				enc.VarOf[label] = nextVar
				nextVar++
			}
			enc.Values = append([]string{}, d.Labels...)
			set.Clauses = append(set.Clauses, exactlyOne(vars)...)

		case ir.DomainInt:
			if d.Min > d.Max {
				return nil, fmt.Errorf("domain %q: inverted int range min=%d max=%d", d.Name, d.Min, d.Max)
			}
			size := d.Max - d.Min + 1
			if size > MaxIntDomainSize {
				return nil, fmt.Errorf("domain %q: int range size %d exceeds cap %d", d.Name, size, MaxIntDomainSize)
			}
			vars := make([]int, size)
			for i := 0; i < size; i++ {
				label := strconv.Itoa(d.Min + i)
				vars[i] = nextVar
				enc.VarOf[label] = nextVar
				enc.Values = append(enc.Values, label)
				nextVar++
			}
			set.Clauses = append(set.Clauses, exactlyOne(vars)...)

		default:
			return nil, fmt.Errorf("domain %q: unknown kind %q", d.Name, d.Kind)
		}

		set.Domains[d.Name] = enc
	}

	set.NumVars = nextVar - 1
	return set, nil
}

// Decode reads a satisfying SAT assignment back into a domain-name ->
// label map, by scanning each domain's variables for the one (bool) or
// exactly-one (enum/int) positive literal.
func (s *Set) Decode(assignment map[int]bool) (map[string]string, error) {
	out := make(map[string]string, len(s.Domains))
	for name, enc := range s.Domains {
		switch enc.Kind {
		case ir.DomainBool:
			v := enc.VarOf["true"]
			if assignment[v] {
				out[name] = "true"
			} else {
				out[name] = "false"
			}
		default:
			found := false
			for _, label := range enc.Values {
				if assignment[enc.VarOf[label]] {
					out[name] = label
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("domain %q: no positive literal in assignment", name)
			}
		}
	}
	return out, nil
}

// exactlyOne returns the CNF clauses for "exactly one of vars is true": one
// at-least-one clause plus N(N-1)/2 pairwise at-most-one clauses.
func exactlyOne(vars []int) [][]int {
	clauses := [][]int{append([]int{}, vars...)}
	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			clauses = append(clauses, []int{-vars[i], -vars[j]})
		}
	}
	return clauses
}
