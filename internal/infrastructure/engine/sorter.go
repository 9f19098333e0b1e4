package engine

import (
	"container/heap"
	"context"
	"sort"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

// Sorter orders graph nodes so every dependency precedes its dependents.
type Sorter struct{}

// NewSorter creates a Sorter instance.
func NewSorter() *Sorter {
	return &Sorter{}
}

// Sort runs Kahn's algorithm over g. Among simultaneously ready nodes the one
// inserted first wins, so repeated sorts of an unchanged graph agree.
// Structural problems are reported before ordering is attempted. When a cycle
// exists the error carries the ids of every node lying on one and no order is
// returned.
func (s *Sorter) Sort(ctx context.Context, g *graph.Graph) ([]string, error) {
	if g == nil {
		return nil, &graph.DomainError{Code: graph.ErrCodeInternal, Message: "graph is nil"}
	}
	if err := g.Err(); err != nil {
		return nil, err
	}

	ids := g.IDs()
	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	adjacency := make([][]int, len(ids))
	indegree := make([]int, len(ids))
	seen := make(map[graph.Edge]struct{})
	for _, e := range g.Edges() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelledError(ctxErr)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		from, to := position[e.From], position[e.To]
		adjacency[from] = append(adjacency[from], to)
		indegree[to]++
	}

	ready := make(indexHeap, 0, len(ids))
	for i, deg := range indegree {
		if deg == 0 {
			ready = append(ready, i)
		}
	}
	heap.Init(&ready)

	order := make([]string, 0, len(ids))
	for ready.Len() > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelledError(ctxErr)
		}
		current := heap.Pop(&ready).(int)
		order = append(order, ids[current])
		for _, next := range adjacency[current] {
			indegree[next]--
			if indegree[next] == 0 {
				heap.Push(&ready, next)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, graph.NewCycleError(cycleMembers(ids, adjacency, indegree))
	}
	return order, nil
}

// cycleMembers returns, in insertion order, the nodes left unsorted by Kahn's
// algorithm that belong to a strongly connected component of more than one
// node. Nodes merely downstream of a cycle are excluded.
func cycleMembers(ids []string, adjacency [][]int, indegree []int) []string {
	remaining := func(v int) bool { return indegree[v] > 0 }

	index := make([]int, len(ids))
	low := make([]int, len(ids))
	onStack := make([]bool, len(ids))
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var members []int
	counter := 0

	var connect func(v int)
	connect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if !remaining(w) {
				continue
			}
			if index[w] == -1 {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var component []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		if len(component) > 1 {
			members = append(members, component...)
		}
	}

	for v := range ids {
		if remaining(v) && index[v] == -1 {
			connect(v)
		}
	}

	sort.Ints(members)
	out := make([]string, 0, len(members))
	for _, v := range members {
		out = append(out, ids[v])
	}
	return out
}

func cancelledError(cause error) error {
	return &graph.DomainError{Code: graph.ErrCodeCancelled, Message: "sort cancelled", Cause: cause}
}
