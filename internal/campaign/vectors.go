package campaign

import (
	"fmt"

	"verityengine/internal/traversal"
	"verityengine/internal/vectorpool"
)

type poolVectorSource struct {
	pool *vectorpool.Pool
}

// Next satisfies traversal.VectorSource: prefer a vector generated for this
// exact action, falling back to the shared general queue.
func (s *poolVectorSource) Next(action string) (map[string]any, bool) {
	if v, ok := s.pool.PopTargeted(action); ok {
		return v, true
	}
	if v, ok := s.pool.PopGeneral(); ok {
		return v, true
	}
	return nil, false
}

// DefaultVectorSource enumerates up to poolCapacity satisfying assignments
// from the campaign's compiled domain/constraint CNF and loads them into a
// bounded vector pool, for callers (cmd/verityctl in particular) that don't
// supply their own VectorSource at Compile time.
func (m *Manager) DefaultVectorSource(id string, poolCapacity int) (traversal.VectorSource, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if poolCapacity <= 0 {
		poolCapacity = 256
	}

	var domainVars []int
	for _, enc := range c.domains.Domains {
		for _, v := range enc.VarOf {
			domainVars = append(domainVars, v)
		}
	}

	assignments := c.solver.FindMany(poolCapacity, domainVars, nil)

	targets := make([]string, 0, len(c.model.Bindings))
	for _, b := range c.model.Bindings {
		targets = append(targets, b.Action)
	}

	pool := vectorpool.New(poolCapacity, targets, poolCapacity)
	for _, a := range assignments {
		decoded, err := c.domains.Decode(a)
		if err != nil {
			return nil, fmt.Errorf("campaign: decode vector: %w", err)
		}
		vec := make(vectorpool.Vector, len(decoded))
		for k, v := range decoded {
			vec[k] = v
		}
		if !pool.PushGeneral(vec) {
			break
		}
	}

	return &poolVectorSource{pool: pool}, nil
}

// SetVectorSource attaches vs to an already-compiled campaign. Useful when
// the caller needs the campaign's compiled domains/solver (as
// DefaultVectorSource does) before it can build a source, which rules out
// supplying one through CompileOptions.
func (m *Manager) SetVectorSource(id string, vs traversal.VectorSource) error {
	c, err := m.get(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.VectorSource = vs
	c.mu.Unlock()
	return nil
}
