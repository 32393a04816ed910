// Package graph holds the directed graph used for both interface module
// dependencies and composition instance ordering, plus the interface module
// graph builder.
package graph

import (
	"fmt"
)

// Digraph is a directed graph over string IDs that remembers insertion order,
// so every traversal it offers is deterministic.
//
// Edges point from a node to the nodes it depends on.
type Digraph struct {
	order []string
	edges map[string][]string
	seen  map[string]map[string]struct{}
}

func NewDigraph() *Digraph {
	return &Digraph{
		edges: make(map[string][]string),
		seen:  make(map[string]map[string]struct{}),
	}
}

// AddNode adds id; adding an existing node is a no-op.
func (g *Digraph) AddNode(id string) {
	if _, ok := g.edges[id]; ok {
		return
	}
	g.order = append(g.order, id)
	g.edges[id] = nil
	g.seen[id] = make(map[string]struct{})
}

// AddEdge records that from depends on to. Self edges are allowed so they can
// be reported as one-node cycles.
func (g *Digraph) AddEdge(from, to string) error {
	if !g.Has(from) {
		return fmt.Errorf("source node not found: %s", from)
	}
	if !g.Has(to) {
		return fmt.Errorf("destination node not found: %s", to)
	}
	if _, dup := g.seen[from][to]; dup {
		return nil
	}
	g.seen[from][to] = struct{}{}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

func (g *Digraph) Has(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Nodes returns node IDs in insertion order.
func (g *Digraph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Successors returns the direct dependencies of id in insertion order.
func (g *Digraph) Successors(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

type color uint8

const (
	white color = iota
	grey
	black
)

// walker runs a three-color depth-first traversal and records post-order.
type walker struct {
	g     *Digraph
	color map[string]color
	stack []string
	post  []string
}

func (w *walker) visit(id string) []string {
	switch w.color[id] {
	case black:
		return nil
	case grey:
		// id is on the stack: the cycle is the stack suffix starting at id.
		for i := len(w.stack) - 1; i >= 0; i-- {
			if w.stack[i] == id {
				cycle := append([]string(nil), w.stack[i:]...)
				return append(cycle, id)
			}
		}
		return []string{id, id}
	}
	w.color[id] = grey
	w.stack = append(w.stack, id)
	for _, next := range w.g.edges[id] {
		if cycle := w.visit(next); cycle != nil {
			return cycle
		}
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.color[id] = black
	w.post = append(w.post, id)
	return nil
}

func (g *Digraph) walker() *walker {
	return &walker{g: g, color: make(map[string]color, len(g.order))}
}

// FindCycle returns the first cycle found, as a path that starts and ends on
// the same node, or nil when the graph is acyclic.
func (g *Digraph) FindCycle() []string {
	w := g.walker()
	for _, id := range g.order {
		if cycle := w.visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// Reachable returns every node reachable from root, root excluded, in
// dependency-first order. A cycle reachable from root is returned instead.
func (g *Digraph) Reachable(root string) ([]string, []string) {
	w := g.walker()
	if cycle := w.visit(root); cycle != nil {
		return nil, cycle
	}
	return w.post[:len(w.post)-1], nil
}

// TopoOrder returns all nodes with dependencies before dependents. Among nodes
// that are ready at the same time, insertion order wins.
func (g *Digraph) TopoOrder() ([]string, []string) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, cycle
	}
	pending := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		pending[id] = len(g.edges[id])
		for _, dep := range g.edges[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}
	out := make([]string, 0, len(g.order))
	done := make(map[string]bool, len(g.order))
	for len(out) < len(g.order) {
		for _, id := range g.order {
			if done[id] || pending[id] > 0 {
				continue
			}
			done[id] = true
			out = append(out, id)
			for _, d := range dependents[id] {
				pending[d]--
			}
			break
		}
	}
	return out, nil
}
