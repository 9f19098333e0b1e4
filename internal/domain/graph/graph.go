package graph

import (
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Graph owns a set of nodes and the dependency edges between them. Nodes keep
// their insertion order, which the sorter uses as its tie-break. A graph is
// safe for concurrent use; while frozen by an active build every mutation is
// rejected with ErrGraphLocked.
type Graph struct {
	mu         sync.RWMutex
	nodes      map[string]Node
	order      []string
	edges      []Edge
	duplicates []string
	frozen     int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// Assemble builds a graph from loaded data without rejecting anything, so the
// caller can collect every structural problem through Validate. Duplicate ids
// keep their first occurrence and are reported by Validate.
func Assemble(nodes []Node, edges []Edge) *Graph {
	g := New()
	for _, n := range nodes {
		if _, exists := g.nodes[n.ID]; exists {
			g.duplicates = append(g.duplicates, n.ID)
			continue
		}
		g.nodes[n.ID] = n.Clone()
		g.order = append(g.order, n.ID)
	}
	g.edges = append(g.edges, edges...)
	return g
}

// AddNode appends a node to the graph.
func (g *Graph) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen > 0 {
		return ErrGraphLocked
	}
	if _, exists := g.nodes[n.ID]; exists {
		return newDuplicateError(n.ID)
	}
	g.nodes[n.ID] = n.Clone()
	g.order = append(g.order, n.ID)
	return nil
}

// UpdateNode replaces the attributes of an existing node, keeping its
// position in the insertion order.
func (g *Graph) UpdateNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen > 0 {
		return ErrGraphLocked
	}
	if _, exists := g.nodes[n.ID]; !exists {
		return NewNotFoundError(n.ID)
	}
	g.nodes[n.ID] = n.Clone()
	return nil
}

// RemoveNode deletes a node together with every incident edge.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen > 0 {
		return ErrGraphLocked
	}
	if _, exists := g.nodes[id]; !exists {
		return NewNotFoundError(id)
	}
	delete(g.nodes, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return nil
}

// AddEdge records that to depends on from. Adding an edge that already exists
// is a no-op. Cycles are not checked here; the sorter reports them.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen > 0 {
		return ErrGraphLocked
	}
	if from == to {
		return newSelfLoopError(from)
	}
	if _, ok := g.nodes[from]; !ok {
		return newDanglingEdgeError(from, to, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return newDanglingEdgeError(from, to, to)
	}
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return nil
		}
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
	return nil
}

// RemoveEdge deletes every edge from -> to.
func (g *Graph) RemoveEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen > 0 {
		return ErrGraphLocked
	}
	kept := g.edges[:0]
	removed := false
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	if !removed {
		return newDomainError(ErrCodeNotFound, "edge not found", nil, map[string]interface{}{
			"from": from,
			"to":   to,
		})
	}
	return nil
}

// Validate returns every structural problem in the graph: duplicate or empty
// ids, dangling edge references and self-loops.
func (g *Graph) Validate() []error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	for _, id := range g.duplicates {
		errs = append(errs, newDuplicateError(id))
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if strings.TrimSpace(id) == "" {
			errs = append(errs, newMissingFieldError("id"))
			continue
		}
		if err := n.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range g.edges {
		if e.From == e.To {
			errs = append(errs, newSelfLoopError(e.From))
			continue
		}
		if _, ok := g.nodes[e.From]; !ok {
			errs = append(errs, newDanglingEdgeError(e.From, e.To, e.From))
		}
		if _, ok := g.nodes[e.To]; !ok {
			errs = append(errs, newDanglingEdgeError(e.From, e.To, e.To))
		}
	}
	return errs
}

// Err combines the results of Validate into a single error, or nil.
func (g *Graph) Err() error {
	return multierr.Combine(g.Validate()...)
}

// Freeze locks the graph against mutation until release is called. Freezes
// nest; the graph unlocks when every release has run.
func (g *Graph) Freeze() func() {
	g.mu.Lock()
	g.frozen++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.frozen--
			g.mu.Unlock()
		})
	}
}

// Frozen reports whether an active build holds the graph.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen > 0
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of every node in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// IDs returns node ids in insertion order.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Dependencies returns the distinct ids id depends on, in edge order.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collect(g.edges, func(e Edge) (string, bool) { return e.From, e.To == id })
}

// Dependents returns the distinct ids that depend directly on id.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collect(g.edges, func(e Edge) (string, bool) { return e.To, e.From == id })
}

func collect(edges []Edge, pick func(Edge) (string, bool)) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range edges {
		v, ok := pick(e)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
