package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, id string) Node {
	t.Helper()
	n, err := NewNode(NodeSpec{ID: id, Name: id, ProjectPath: "/src/" + id})
	require.NoError(t, err)
	return n
}

func TestNewNodeGeneratesID(t *testing.T) {
	n, err := NewNode(NodeSpec{Name: "zlib"})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.Equal(t, "zlib", n.DisplayName())
}

func TestNewNodeRejectsInvalidFields(t *testing.T) {
	_, err := NewNode(NodeSpec{ID: "a"})
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeMissing, code)

	_, err = NewNode(NodeSpec{ID: "a", Name: "a", Options: []string{"-DX=1", " "}})
	require.Error(t, err)
	code, _ = CodeOf(err)
	require.Equal(t, ErrCodeValidation, code)
}

func TestNewNodeDoesNotTouchFilesystem(t *testing.T) {
	_, err := NewNode(NodeSpec{ID: "a", Name: "a", ProjectPath: "/definitely/not/here"})
	require.NoError(t, err)
}

func TestAddNodeRejectsDuplicate(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(mustNode(t, "a")))
	err := g.AddNode(mustNode(t, "a"))
	code, _ := CodeOf(err)
	require.Equal(t, ErrCodeDuplicate, code)
	require.Equal(t, 1, g.Len())
}

func TestAddEdgeValidation(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(mustNode(t, "a")))
	require.NoError(t, g.AddNode(mustNode(t, "b")))

	code, _ := CodeOf(g.AddEdge("a", "a"))
	require.Equal(t, ErrCodeSelfLoop, code)

	code, _ = CodeOf(g.AddEdge("a", "zz"))
	require.Equal(t, ErrCodeDanglingEdge, code)

	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.Len(t, g.Edges(), 1)
	require.Equal(t, []string{"a"}, g.Dependencies("b"))
	require.Equal(t, []string{"b"}, g.Dependents("a"))
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(mustNode(t, id)))
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("a", "c"))

	require.NoError(t, g.RemoveNode("b"))
	require.Equal(t, []string{"a", "c"}, g.IDs())
	require.Equal(t, []Edge{{From: "a", To: "c"}}, g.Edges())

	require.True(t, errors.Is(g.RemoveNode("b"), ErrNodeNotFound))
}

func TestRemoveEdge(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(mustNode(t, "a")))
	require.NoError(t, g.AddNode(mustNode(t, "b")))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.RemoveEdge("a", "b"))
	require.Empty(t, g.Edges())
	require.Error(t, g.RemoveEdge("a", "b"))
}

func TestUpdateNodeKeepsPosition(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(mustNode(t, "a")))
	require.NoError(t, g.AddNode(mustNode(t, "b")))

	renamed := mustNode(t, "a")
	renamed.Name = "core"
	renamed.Options = []string{"-DBUILD_SHARED_LIBS=ON"}
	require.NoError(t, g.UpdateNode(renamed))

	n, ok := g.Node("a")
	require.True(t, ok)
	require.Equal(t, "core", n.Name)
	require.Equal(t, []string{"a", "b"}, g.IDs())

	require.True(t, errors.Is(g.UpdateNode(mustNode(t, "missing")), ErrNodeNotFound))
}

func TestAccessorsReturnCopies(t *testing.T) {
	g := New()
	n := mustNode(t, "a")
	n.Options = []string{"-DX=1"}
	require.NoError(t, g.AddNode(n))

	n.Options[0] = "mutated"
	got, _ := g.Node("a")
	require.Equal(t, "-DX=1", got.Options[0])

	got.Options[0] = "mutated"
	again, _ := g.Node("a")
	require.Equal(t, "-DX=1", again.Options[0])
}

func TestFrozenGraphRejectsMutation(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(mustNode(t, "a")))
	require.NoError(t, g.AddNode(mustNode(t, "b")))

	release := g.Freeze()
	require.True(t, g.Frozen())
	require.ErrorIs(t, g.AddNode(mustNode(t, "c")), ErrGraphLocked)
	require.ErrorIs(t, g.AddEdge("a", "b"), ErrGraphLocked)
	require.ErrorIs(t, g.RemoveNode("a"), ErrGraphLocked)
	require.ErrorIs(t, g.UpdateNode(mustNode(t, "a")), ErrGraphLocked)

	release()
	release()
	require.False(t, g.Frozen())
	require.NoError(t, g.AddEdge("a", "b"))
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	nodes := []Node{mustNode(t, "a"), mustNode(t, "b"), mustNode(t, "a")}
	edges := []Edge{{From: "a", To: "a"}, {From: "a", To: "ghost"}, {From: "a", To: "b"}}
	g := Assemble(nodes, edges)

	errs := g.Validate()
	require.Len(t, errs, 3)

	codes := make([]ErrorCode, 0, len(errs))
	for _, err := range errs {
		code, ok := CodeOf(err)
		require.True(t, ok)
		codes = append(codes, code)
	}
	require.ElementsMatch(t, []ErrorCode{ErrCodeDuplicate, ErrCodeSelfLoop, ErrCodeDanglingEdge}, codes)

	combined := g.Err()
	require.Error(t, combined)
	require.Contains(t, combined.Error(), "ghost")
}

func TestValidateCleanGraph(t *testing.T) {
	g := Assemble([]Node{mustNode(t, "a"), mustNode(t, "b")}, []Edge{{From: "a", To: "b"}, {From: "a", To: "b"}})
	require.Empty(t, g.Validate())
	require.NoError(t, g.Err())
}

func TestCycleErrorCarriesNodes(t *testing.T) {
	err := NewCycleError([]string{"a", "b"})
	require.ErrorIs(t, err, ErrCycleDetected)
	require.Equal(t, []string{"a", "b"}, CycleNodes(err))
	require.Contains(t, err.Error(), "[a b]")
	require.Nil(t, CycleNodes(errors.New("other")))
}

func TestSettingsApplyDefaults(t *testing.T) {
	s := Settings{}.ApplyDefaults()
	require.Equal(t, DefaultBuildType, s.BuildType)
	require.Equal(t, DefaultTool, s.Tool)
	require.Equal(t, DefaultDescriptionFile, s.DescriptionFile)
	require.Equal(t, 1, s.Concurrency)
	require.Equal(t, DefaultGracePeriod, s.GracePeriod)

	custom := Settings{BuildType: "Release", Concurrency: 4}.ApplyDefaults()
	require.Equal(t, "Release", custom.BuildType)
	require.Equal(t, 4, custom.Concurrency)
}
