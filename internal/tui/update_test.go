package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next, cmd
}

func TestUpdateTracksNodeLifecycle(t *testing.T) {
	m := NewModel(Options{Order: []string{"zlib", "app"}})

	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("zlib", build.StatusRunning, "")})
	m, _ = update(t, m, EventMsg{Event: build.StepStarted("zlib", build.StepConfigure, "cmake -S zlib")})
	require.Equal(t, build.StatusRunning, m.Status("zlib"))
	require.Equal(t, build.StepConfigure, m.nodes["zlib"].Step)
	require.Zero(t, m.CompletedNodes())

	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("zlib", build.StatusSucceeded, "")})
	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("app", build.StatusSkipped, "dependency zlib did not succeed")})
	require.Equal(t, 2, m.CompletedNodes())
	require.Empty(t, m.nodes["zlib"].Step)
	require.Equal(t, "dependency zlib did not succeed", m.nodes["app"].Message)
}

func TestUpdateKeepsFailedStep(t *testing.T) {
	m := NewModel(Options{Order: []string{"a"}})
	m, _ = update(t, m, EventMsg{Event: build.StepStarted("a", build.StepBuild, "cmake --build")})
	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("a", build.StatusFailed, "build exited with code 2")})
	require.Equal(t, build.StepBuild, m.nodes["a"].Step)
}

func TestUpdateCountsTerminalStatusOnce(t *testing.T) {
	m := NewModel(Options{Order: []string{"a"}})
	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("a", build.StatusFailed, "")})
	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("a", build.StatusFailed, "")})
	require.Equal(t, 1, m.CompletedNodes())
}

func TestUpdateAddsUnknownNodes(t *testing.T) {
	m := NewModel(Options{})
	m, _ = update(t, m, EventMsg{Event: build.StatusChanged("late", build.StatusRunning, "")})
	require.Equal(t, 1, m.TotalNodes())
}

func TestUpdateRunFinished(t *testing.T) {
	m := NewModel(Options{Order: []string{"a"}})
	m, cmd := update(t, m, EventMsg{Event: build.RunFinished("run-1", build.OutcomeSucceeded)})
	require.True(t, m.IsFinished())
	require.Equal(t, build.OutcomeSucceeded, m.Outcome())
	require.Nil(t, cmd)
}

func TestUpdateQuitsWhenStreamCloses(t *testing.T) {
	m := NewModel(Options{})
	m, cmd := update(t, m, streamClosedMsg{})
	require.True(t, m.IsFinished())
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUpdateCtrlCCancelsThenQuits(t *testing.T) {
	cancelled := 0
	m := NewModel(Options{Order: []string{"a"}, Cancel: func() { cancelled++ }})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.True(t, m.cancelling)
	require.NotNil(t, cmd)
	require.Nil(t, cmd())
	require.Equal(t, 1, cancelled)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.Equal(t, 1, cancelled)
}

func TestUpdateWindowSize(t *testing.T) {
	m := NewModel(Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	require.Equal(t, 100, m.width)
}
