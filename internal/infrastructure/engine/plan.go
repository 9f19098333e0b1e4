package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

// Plan is a topological order together with its parallel levels. Nodes on
// the same level have no dependency path between them.
type Plan struct {
	Order    []string
	Levels   [][]string
	position map[string]int
}

// BuildPlan sorts g and groups the order by dependency depth.
func BuildPlan(ctx context.Context, g *graph.Graph) (*Plan, error) {
	order, err := NewSorter().Sort(ctx, g)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Order: order, position: make(map[string]int, len(order))}
	for i, id := range order {
		plan.position[id] = i
	}

	depth := make(map[string]int, len(order))
	for _, id := range order {
		d := 0
		for _, dep := range g.Dependencies(id) {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[id] = d
		for len(plan.Levels) <= d {
			plan.Levels = append(plan.Levels, nil)
		}
		plan.Levels[d] = append(plan.Levels[d], id)
	}
	return plan, nil
}

// Position returns the index of id in the order.
func (p *Plan) Position(id string) (int, bool) {
	pos, ok := p.position[id]
	return pos, ok
}

// From returns the suffix of the order starting at id. An empty id selects
// the whole order.
func (p *Plan) From(id string) ([]string, error) {
	if id == "" {
		return append([]string(nil), p.Order...), nil
	}
	pos, ok := p.position[id]
	if !ok {
		return nil, graph.NewNotFoundError(id).WithContext(map[string]interface{}{"field": "startNodeId"})
	}
	return append([]string(nil), p.Order[pos:]...), nil
}

// String renders one level per line.
func (p *Plan) String() string {
	var b strings.Builder
	for i, level := range p.Levels {
		fmt.Fprintf(&b, "level %d: %s\n", i, strings.Join(level, ", "))
	}
	return b.String()
}
