// Package reachability runs the forward BFS analysis that backs
// reachability-driven PermanentZero directives: any branch whose enclosing
// Branch node is unreached, or whose target is unreached, is statically
// dead and can be forbidden outright with a proof artifact.
package reachability

import (
	"fmt"
	"sort"

	"verityengine/internal/protocol"
)

// Proof is a static unreachability proof for one branch alternative.
type Proof struct {
	BranchID    string
	Description string
}

// Analyze runs a forward BFS from start over graph edges, branch
// alternatives, and loop body entries, returning the set of reached node
// ids and a PermanentZero proof for every branch alternative whose
// enclosing node or target is unreached.
func Analyze(graph *protocol.Graph, start protocol.NodeID) (reached map[protocol.NodeID]bool, proofs []Proof) {
	reached = make(map[protocol.NodeID]bool)
	queue := []protocol.NodeID{start}
	reached[start] = true

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node, ok := graph.Nodes[id]
		if !ok {
			continue
		}
		enqueue := func(next protocol.NodeID) {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
		for _, s := range node.Successors {
			enqueue(s)
		}
		for _, alt := range node.Alternatives {
			enqueue(alt.Target)
		}
		if node.Kind == protocol.NodeLoopEntry {
			enqueue(node.LoopBodyStart)
		}
	}

	ids := make([]protocol.NodeID, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		node := graph.Nodes[id]
		if node.Kind != protocol.NodeBranch {
			continue
		}
		for i, alt := range node.Alternatives {
			branchID := fmt.Sprintf("branch-%d-%d", id, i)
			if !reached[id] {
				proofs = append(proofs, Proof{BranchID: branchID, Description: fmt.Sprintf("enclosing Branch node %d is unreachable from entry", id)})
				continue
			}
			if !reached[alt.Target] {
				proofs = append(proofs, Proof{BranchID: branchID, Description: fmt.Sprintf("target node %d of branch %s is unreachable from entry", alt.Target, branchID)})
			}
		}
	}
	return reached, proofs
}
