package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

func TestSortChain(t *testing.T) {
	g := newGraph(t, []string{"C", "B", "A"}, [2]string{"A", "B"}, [2]string{"B", "C"})
	order, err := NewSorter().Sort(context.Background(), g)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"A", "B", "C"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortTieBreakFollowsInsertionOrder(t *testing.T) {
	g := newGraph(t, []string{"zlib", "app", "libpng", "curl"},
		[2]string{"zlib", "app"},
		[2]string{"libpng", "app"},
	)
	order, err := NewSorter().Sort(context.Background(), g)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"zlib", "libpng", "app", "curl"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortIsDeterministic(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c", "d", "e"},
		[2]string{"a", "c"}, [2]string{"b", "c"}, [2]string{"c", "e"}, [2]string{"d", "e"})
	first, err := NewSorter().Sort(context.Background(), g)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := NewSorter().Sort(context.Background(), g)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first, again))
	}
}

func TestSortRespectsEveryEdgeOnRandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		n := 2 + rng.Intn(15)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("n%02d", i)
		}
		// edges only go from a lower to a higher rank of a random permutation
		rank := rng.Perm(n)
		var edges [][2]string
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if rank[i] < rank[j] && rng.Float64() < 0.25 {
					edges = append(edges, [2]string{ids[i], ids[j]})
				}
			}
		}
		g := newGraph(t, ids, edges...)

		order, err := NewSorter().Sort(context.Background(), g)
		require.NoError(t, err)
		require.Len(t, order, n)
		pos := make(map[string]int, n)
		for i, id := range order {
			pos[id] = i
		}
		for _, e := range edges {
			require.Less(t, pos[e[0]], pos[e[1]], "edge %s -> %s", e[0], e[1])
		}
	}
}

func TestSortReportsCycle(t *testing.T) {
	g := newGraph(t, []string{"A", "B"}, [2]string{"A", "B"}, [2]string{"B", "A"})
	order, err := NewSorter().Sort(context.Background(), g)
	require.Nil(t, order)
	require.ErrorIs(t, err, graph.ErrCycleDetected)
	require.Equal(t, []string{"A", "B"}, graph.CycleNodes(err))
}

func TestSortCycleExcludesDownstreamNodes(t *testing.T) {
	g := newGraph(t, []string{"root", "x", "y", "z", "after"},
		[2]string{"root", "x"},
		[2]string{"x", "y"},
		[2]string{"y", "z"},
		[2]string{"z", "x"},
		[2]string{"z", "after"},
	)
	_, err := NewSorter().Sort(context.Background(), g)
	require.ErrorIs(t, err, graph.ErrCycleDetected)
	require.Equal(t, []string{"x", "y", "z"}, graph.CycleNodes(err))
}

func TestSortRejectsStructuralErrors(t *testing.T) {
	n, err := graph.NewNode(graph.NodeSpec{ID: "a", Name: "a"})
	require.NoError(t, err)
	g := graph.Assemble([]graph.Node{n}, []graph.Edge{{From: "a", To: "missing"}})

	_, err = NewSorter().Sort(context.Background(), g)
	require.Error(t, err)
	code, ok := graph.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, graph.ErrCodeDanglingEdge, code)
}

func TestSortCollapsesParallelEdges(t *testing.T) {
	a, _ := graph.NewNode(graph.NodeSpec{ID: "a", Name: "a"})
	b, _ := graph.NewNode(graph.NodeSpec{ID: "b", Name: "b"})
	g := graph.Assemble([]graph.Node{b, a}, []graph.Edge{{From: "a", To: "b"}, {From: "a", To: "b"}})
	order, err := NewSorter().Sort(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, order)
}

func TestSortHonoursCancelledContext(t *testing.T) {
	g := newGraph(t, []string{"a", "b"}, [2]string{"a", "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSorter().Sort(ctx, g)
	code, _ := graph.CodeOf(err)
	require.Equal(t, graph.ErrCodeCancelled, code)
}

func TestBuildPlanLevels(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c", "d"},
		[2]string{"a", "c"}, [2]string{"b", "c"}, [2]string{"c", "d"})
	plan, err := BuildPlan(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a", "b"}, {"c"}, {"d"}}, plan.Levels)
	require.Contains(t, plan.String(), "level 1: c")

	pos, ok := plan.Position("c")
	require.True(t, ok)
	require.Equal(t, 2, pos)

	suffix, err := plan.From("c")
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, suffix)

	all, err := plan.From("")
	require.NoError(t, err)
	require.Equal(t, plan.Order, all)

	_, err = plan.From("nope")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
}
