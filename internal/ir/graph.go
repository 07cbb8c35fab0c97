package ir

import (
	"fmt"

	"github.com/screenql/compiler/internal/errs"
)

// Graph owns a compute graph's nodes by id and assigns deterministic,
// per-kind counter-based ids (spec §4.1, §9 "Counter-based IDs"). It is
// the sole owner of the graph for one compile call and is discarded
// after SQL emission (spec §3 "Lifecycle").
type Graph struct {
	order    []NodeID
	nodes    map[NodeID]Node
	counters map[Kind]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]Node),
		counters: make(map[Kind]int),
	}
}

// AddNode assigns n a deterministic id ("<kind>_<counter>"), registers
// it as terminal, and flips each of its inputs to non-terminal.
func (g *Graph) AddNode(n Node) NodeID {
	g.counters[n.Kind()]++
	id := NodeID(fmt.Sprintf("%s_%d", n.Kind(), g.counters[n.Kind()]))
	n.setID(id)
	n.SetTerminal(true)

	g.nodes[id] = n
	g.order = append(g.order, id)

	for _, in := range n.Inputs() {
		if inNode, ok := g.nodes[in]; ok {
			inNode.SetTerminal(false)
		}
	}
	return id
}

// Get returns the node with the given id.
func (g *Graph) Get(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// MustGet returns the node with the given id, panicking if absent. Used
// internally once callers have already validated the id exists; never
// called with user-controlled ids.
func (g *Graph) MustGet(id NodeID) Node {
	n, ok := g.nodes[id]
	if !ok {
		panic(fmt.Sprintf("ir: node %q not found", id))
	}
	return n
}

// Nodes returns all nodes in insertion order (spec §9 "Deterministic
// iteration").
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes currently in the graph.
func (g *Graph) Len() int { return len(g.order) }

// RemoveNode deletes id from the graph and flips any of its former
// inputs back to terminal if no remaining node still references them.
func (g *Graph) RemoveNode(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	formerInputs := n.Inputs()

	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	for _, in := range formerInputs {
		inNode, ok := g.nodes[in]
		if !ok {
			continue
		}
		if !g.isReferenced(in) {
			inNode.SetTerminal(true)
		}
	}
}

func (g *Graph) isReferenced(id NodeID) bool {
	for _, n := range g.nodes {
		for _, in := range n.Inputs() {
			if in == id {
				return true
			}
		}
	}
	return false
}

// FindDependents returns the ids of every node whose Inputs() list
// contains id, in insertion order.
func (g *Graph) FindDependents(id NodeID) []NodeID {
	var out []NodeID
	for _, oid := range g.order {
		n := g.nodes[oid]
		for _, in := range n.Inputs() {
			if in == id {
				out = append(out, oid)
				break
			}
		}
	}
	return out
}

const (
	stateWhite = 0
	stateGray  = 1
	stateBlack = 2
)

// ExecutionOrder returns a depth-first post-order topological sort
// starting from each source node (in insertion order), then sweeping
// any remaining nodes. It returns CycleDetected if a node is re-entered
// while still on the active path, and DanglingReference if a node's
// input id does not exist.
func (g *Graph) ExecutionOrder() ([]NodeID, error) {
	state := make(map[NodeID]int, len(g.nodes))
	order := make([]NodeID, 0, len(g.nodes))

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch state[id] {
		case stateBlack:
			return nil
		case stateGray:
			return &errs.CycleDetected{NodeID: string(id)}
		}
		state[id] = stateGray
		n, ok := g.nodes[id]
		if !ok {
			return &errs.DanglingReference{NodeID: string(id), Input: string(id)}
		}
		for _, in := range n.Inputs() {
			if _, ok := g.nodes[in]; !ok {
				return &errs.DanglingReference{NodeID: string(id), Input: string(in)}
			}
			if err := visit(in); err != nil {
				return err
			}
		}
		state[id] = stateBlack
		order = append(order, id)
		return nil
	}

	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok && n.Kind() == KindSource {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}
