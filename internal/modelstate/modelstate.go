// Package modelstate implements a copy-on-write entity store: a
// per-campaign mapping from entity type to an ordered sequence of
// instances, with O(1) fork, cheap snapshot/rollback, a monotonic
// generation counter, and an action trace.
package modelstate

import "fmt"

// EntityID stably identifies an instance by (entity type, monotonic index).
// Identifiers are never reused within a state's lineage.
type EntityID struct {
	Type  string
	Index int
}

// Instance carries a field-name to value mapping. Fields is replaced
// wholesale on every mutation (never mutated in place) so that slices of
// Instance can be shared across forks without aliasing surprises.
type Instance struct {
	ID     EntityID
	Fields map[string]any
}

// TraceEntry records one state-affecting action for diagnostics and replay.
type TraceEntry struct {
	Action     string
	Args       map[string]any
	Generation uint64
}

// State is the copy-on-write model state. The zero value is not usable; use
// New.
type State struct {
	instances  map[string][]Instance
	nextIndex  map[string]int
	generation uint64
	trace      []TraceEntry
}

// New returns an empty model state.
func New() *State {
	return &State{
		instances: make(map[string][]Instance),
		nextIndex: make(map[string]int),
	}
}

// Generation returns the current monotonic generation counter.
func (s *State) Generation() uint64 { return s.generation }

// Trace returns the recorded action trace. The returned slice must not be
// mutated by callers.
func (s *State) Trace() []TraceEntry { return s.trace }

// Fork returns a new State sharing instance data by value; mutating the
// fork does not affect s and vice versa. O(1) in the instance and trace
// data: only the top-level maps are copied; instance slices and the trace
// are shared, the trace capped at its length so an append on either side
// copies it.
func (s *State) Fork() *State {
	ni := make(map[string][]Instance, len(s.instances))
	for k, v := range s.instances {
		ni[k] = v
	}
	nidx := make(map[string]int, len(s.nextIndex))
	for k, v := range s.nextIndex {
		nidx[k] = v
	}
	tr := s.trace[:len(s.trace):len(s.trace)]
	return &State{instances: ni, nextIndex: nidx, generation: s.generation, trace: tr}
}

// CreateInstance allocates a fresh instance of entityType and bumps the
// generation counter.
func (s *State) CreateInstance(entityType string) EntityID {
	idx := s.nextIndex[entityType]
	s.nextIndex[entityType] = idx + 1
	id := EntityID{Type: entityType, Index: idx}

	old := s.instances[entityType]
	next := make([]Instance, len(old), len(old)+1)
	copy(next, old)
	next = append(next, Instance{ID: id, Fields: make(map[string]any)})
	s.instances[entityType] = next

	s.generation++
	return id
}

// SetField mutates one field of an existing instance and bumps the
// generation counter.
func (s *State) SetField(id EntityID, name string, value any) error {
	old := s.instances[id.Type]
	next := make([]Instance, len(old))
	copy(next, old)

	found := -1
	for i := range next {
		if next[i].ID == id {
			found = i
			break
		}
	}
	if found < 0 {
		return fmt.Errorf("modelstate: no such instance %s[%d]", id.Type, id.Index)
	}

	newFields := make(map[string]any, len(next[found].Fields)+1)
	for k, v := range next[found].Fields {
		newFields[k] = v
	}
	newFields[name] = value
	next[found].Fields = newFields

	s.instances[id.Type] = next
	s.generation++
	return nil
}

// GetInstance retrieves an instance by id.
func (s *State) GetInstance(id EntityID) (Instance, bool) {
	for _, inst := range s.instances[id.Type] {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// AllInstances returns the ordered sequence of instances of entityType. The
// returned slice must not be mutated.
func (s *State) AllInstances(entityType string) []Instance {
	return s.instances[entityType]
}

// LastInstance returns the most-recently-created instance of entityType, if
// any.
func (s *State) LastInstance(entityType string) (Instance, bool) {
	list := s.instances[entityType]
	if len(list) == 0 {
		return Instance{}, false
	}
	return list[len(list)-1], true
}

// RecordAction appends an action to the trace at the current generation.
func (s *State) RecordAction(name string, args map[string]any) {
	s.trace = append(s.trace, TraceEntry{Action: name, Args: args, Generation: s.generation})
}

// SnapshotToken is a cheap, shared-by-value capture of a State's contents at
// a point in time. It may outlive the State it was taken from.
type SnapshotToken struct {
	instances  map[string][]Instance
	nextIndex  map[string]int
	generation uint64
	trace      []TraceEntry
}

// Snapshot captures the current state into a token.
func (s *State) Snapshot() SnapshotToken {
	ni := make(map[string][]Instance, len(s.instances))
	for k, v := range s.instances {
		ni[k] = v
	}
	nidx := make(map[string]int, len(s.nextIndex))
	for k, v := range s.nextIndex {
		nidx[k] = v
	}
	tr := make([]TraceEntry, len(s.trace))
	copy(tr, s.trace)
	return SnapshotToken{instances: ni, nextIndex: nidx, generation: s.generation, trace: tr}
}

// Rollback overwrites s's contents with the snapshot's, exactly restoring
// field map, trace, generation, and next-instance-id.
func (s *State) Rollback(token SnapshotToken) {
	ni := make(map[string][]Instance, len(token.instances))
	for k, v := range token.instances {
		ni[k] = v
	}
	nidx := make(map[string]int, len(token.nextIndex))
	for k, v := range token.nextIndex {
		nidx[k] = v
	}
	tr := make([]TraceEntry, len(token.trace))
	copy(tr, token.trace)

	s.instances = ni
	s.nextIndex = nidx
	s.generation = token.generation
	s.trace = tr
}
