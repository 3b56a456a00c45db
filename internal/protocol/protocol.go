// Package protocol compiles a protocol grammar AST (internal/ir.Grammar)
// into an NDA graph of unified node kinds. The traversal engine
// walks this graph with an explicit stack rather than recursing over the
// grammar directly.
package protocol

import (
	"fmt"
	"sort"

	"verityengine/internal/ir"
)

// NodeKind discriminates one compiled graph node.
type NodeKind string

const (
	NodeStart       NodeKind = "start"
	NodeEnd         NodeKind = "end"
	NodeTerminal    NodeKind = "terminal"
	NodeBranch      NodeKind = "branch"
	NodeJoin        NodeKind = "join"
	NodePassthrough NodeKind = "passthrough"
	NodeLoopEntry   NodeKind = "loop_entry"
	NodeLoopExit    NodeKind = "loop_exit"
)

// NodeID identifies a node within a Graph.
type NodeID int

// Alternative is one weighted, optionally guarded branch of a Branch node.
type Alternative struct {
	Target NodeID
	Weight float64
	Guard  *ir.Expr
}

// Node is one NDA graph node. Only the fields relevant to Kind are
// populated.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// terminal
	Action string
	Guard  *ir.Expr

	// branch
	Alternatives []Alternative

	// loop_entry
	LoopBodyStart NodeID
	Min, Max      int

	Successors []NodeID
}

// Graph is the compiled NDA graph shared across every protocol compiled in
// one pass: a protocol reference inlines the referenced protocol's nodes
// into this same graph rather than spawning a separate one.
type Graph struct {
	Nodes map[NodeID]*Node
	next  int
}

func newGraph() *Graph {
	return &Graph{Nodes: make(map[NodeID]*Node)}
}

func (g *Graph) addNode(n *Node) NodeID {
	id := NodeID(g.next)
	g.next++
	n.ID = id
	g.Nodes[id] = n
	return id
}

func (g *Graph) addEdge(from, to NodeID) {
	n := g.Nodes[from]
	n.Successors = append(n.Successors, to)
}

// CompiledProtocol is one protocol's framed entry/exit within a shared
// Graph: Start -> body-entry ... body-exit -> End.
type CompiledProtocol struct {
	Name  string
	Start NodeID
	End   NodeID
}

// Compiler lowers an IR's protocols into a single shared Graph, resolving
// protocol references by inlining.
type Compiler struct {
	model    *ir.IR
	graph    *Graph
	visiting map[string]bool
}

// Compile compiles every protocol declared in model into one shared Graph,
// returning a CompiledProtocol per protocol name. Protocols are compiled in
// sorted-name order for reproducibility; references are resolved by
// inlining the referenced protocol's compiled body. A reference cycle
// (direct or indirect) is rejected rather than looping forever.
func Compile(model *ir.IR) (*Graph, map[string]CompiledProtocol, error) {
	c := &Compiler{
		model:    model,
		graph:    newGraph(),
		visiting: make(map[string]bool),
	}

	names := make([]string, 0, len(model.Protocols))
	for _, p := range model.Protocols {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	result := make(map[string]CompiledProtocol, len(names))
	for _, name := range names {
		entry, exit, err := c.compileProtocol(name)
		if err != nil {
			return nil, nil, err
		}
		start := c.graph.addNode(&Node{Kind: NodeStart})
		end := c.graph.addNode(&Node{Kind: NodeEnd})
		c.graph.addEdge(start, entry)
		c.graph.addEdge(exit, end)
		result[name] = CompiledProtocol{Name: name, Start: start, End: end}
	}
	return c.graph, result, nil
}

func (c *Compiler) compileProtocol(name string) (entry, exit NodeID, err error) {
	if c.visiting[name] {
		return 0, 0, fmt.Errorf("protocol: recursive reference to %q", name)
	}
	proto, ok := c.model.ProtocolByName(name)
	if !ok {
		return 0, 0, fmt.Errorf("protocol: unknown protocol %q", name)
	}
	c.visiting[name] = true
	entry, exit, err = c.compileGrammar(proto.Grammar)
	delete(c.visiting, name)
	if err != nil {
		return 0, 0, err
	}
	return entry, exit, nil
}

// compileGrammar implements the recursion rules, returning the
// (entry, exit) node pair for g.
func (c *Compiler) compileGrammar(g ir.Grammar) (entry, exit NodeID, err error) {
	switch g.Kind {
	case ir.GrammarTerminal:
		id := c.graph.addNode(&Node{Kind: NodeTerminal, Action: g.Action, Guard: g.Guard})
		return id, id, nil

	case ir.GrammarSeq:
		if len(g.Children) == 0 {
			id := c.graph.addNode(&Node{Kind: NodePassthrough})
			return id, id, nil
		}
		var firstEntry, prevExit NodeID
		for i, child := range g.Children {
			ce, cx, err := c.compileGrammar(child)
			if err != nil {
				return 0, 0, err
			}
			if i == 0 {
				firstEntry = ce
			} else {
				c.graph.addEdge(prevExit, ce)
			}
			prevExit = cx
		}
		return firstEntry, prevExit, nil

	case ir.GrammarAlt:
		join := c.graph.addNode(&Node{Kind: NodeJoin})
		branchNode := &Node{Kind: NodeBranch}
		branchID := c.graph.addNode(branchNode)
		for i := range g.Branches {
			b := g.Branches[i]
			be, bx, err := c.compileGrammar(b.Body)
			if err != nil {
				return 0, 0, err
			}
			c.graph.addEdge(bx, join)
			branchNode.Alternatives = append(branchNode.Alternatives, Alternative{
				Target: be,
				Weight: b.Weight,
				Guard:  b.Guard,
			})
		}
		return branchID, join, nil

	case ir.GrammarRepeat:
		// The body's own exit node deliberately gets no successor: the
		// traversal engine unrolls all k iterations onto its explicit stack
		// up front (see NodeLoopEntry in internal/traversal), so wiring the
		// body's exit back to loopEntry would make every completed
		// iteration re-trigger a fresh k-draw and re-unroll the whole body
		// again.
		bodyEntry, _, err := c.compileGrammar(*g.Body)
		if err != nil {
			return 0, 0, err
		}
		loopExit := c.graph.addNode(&Node{Kind: NodeLoopExit})
		loopEntry := c.graph.addNode(&Node{
			Kind:          NodeLoopEntry,
			LoopBodyStart: bodyEntry,
			Min:           g.Min,
			Max:           g.Max,
		})
		// loopEntry's only Successors edge is the loop-exit continuation;
		// the body is reached exclusively via LoopBodyStart, pushed k times
		// by the traversal engine, never via Successors.
		c.graph.addEdge(loopEntry, loopExit)
		return loopEntry, loopExit, nil

	case ir.GrammarRef:
		return c.compileProtocol(g.Protocol)

	default:
		return 0, 0, fmt.Errorf("protocol: unknown grammar kind %q", g.Kind)
	}
}
