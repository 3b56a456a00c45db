// Package vectorpool implements a bounded, concurrent-safe input vector
// queue: a general queue plus a mapping of per-target bounded queues,
// non-blocking push/pop, and cumulative push/pop counters.
//
// Go's buffered channels already give wait-free-for-the-caller,
// non-blocking enqueue/dequeue via select-with-default, without the
// caller ever taking a lock; that is the idiomatic Go equivalent of a
// lockfree bounded queue, so this package is built on channels rather
// than a hand-rolled atomic ring buffer.
package vectorpool

import "sync/atomic"

// Vector is an opaque decoded SAT solution (a field-name to value map),
// kept untyped here so this package has no dependency on the solver.
type Vector map[string]any

// Pool is the concurrent-safe vector queue: one general queue plus
// per-target queues, each bounded, with non-blocking operations.
type Pool struct {
	general chan Vector
	targets map[string]chan Vector

	pushes atomic.Int64
	pops   atomic.Int64
}

// New constructs a Pool with the given general-queue capacity and one
// bounded queue per named target, each holding targetCapacity vectors.
func New(capacity int, targets []string, targetCapacity int) *Pool {
	p := &Pool{
		general: make(chan Vector, capacity),
		targets: make(map[string]chan Vector, len(targets)),
	}
	for _, t := range targets {
		p.targets[t] = make(chan Vector, targetCapacity)
	}
	return p
}

// PushGeneral attempts a non-blocking enqueue onto the general queue,
// returning false if it is full.
func (p *Pool) PushGeneral(v Vector) bool {
	select {
	case p.general <- v:
		p.pushes.Add(1)
		return true
	default:
		return false
	}
}

// PushTargeted tries the named target queue first; on full (or unknown
// target), falls back to the general queue.
func (p *Pool) PushTargeted(target string, v Vector) bool {
	if q, ok := p.targets[target]; ok {
		select {
		case q <- v:
			p.pushes.Add(1)
			return true
		default:
		}
	}
	return p.PushGeneral(v)
}

// PopGeneral is a non-blocking dequeue from the general queue.
func (p *Pool) PopGeneral() (Vector, bool) {
	select {
	case v := <-p.general:
		p.pops.Add(1)
		return v, true
	default:
		return nil, false
	}
}

// PopTargeted is a non-blocking dequeue from the named target queue,
// falling back to the general queue when the target queue is empty or
// unknown.
func (p *Pool) PopTargeted(target string) (Vector, bool) {
	if q, ok := p.targets[target]; ok {
		select {
		case v := <-q:
			p.pops.Add(1)
			return v, true
		default:
		}
	}
	return p.PopGeneral()
}

// Pushed returns the cumulative successful push count.
func (p *Pool) Pushed() int64 { return p.pushes.Load() }

// Popped returns the cumulative successful pop count.
func (p *Pool) Popped() int64 { return p.pops.Load() }
