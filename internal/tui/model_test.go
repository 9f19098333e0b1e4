package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

func TestNewModelInitialisesState(t *testing.T) {
	m := NewModel(Options{Title: "demo", Order: []string{"zlib", "app"}})

	require.Equal(t, 2, m.TotalNodes())
	require.Zero(t, m.CompletedNodes())
	require.False(t, m.IsFinished())
	require.Equal(t, build.StatusPending, m.Status("zlib"))
	require.Equal(t, DefaultLogLines, m.logLines)
}

func TestInitWaitsForEvents(t *testing.T) {
	events := make(chan build.Event, 1)
	events <- build.LogLine("zlib", "hello")
	m := NewModel(Options{Events: events})

	cmd := m.Init()
	require.NotNil(t, cmd)
	msg, ok := cmd().(EventMsg)
	require.True(t, ok)
	require.Equal(t, "hello", msg.Event.Line)

	close(events)
	_, ok = m.Init()().(streamClosedMsg)
	require.True(t, ok)
}

func TestInitWithoutEvents(t *testing.T) {
	require.Nil(t, NewModel(Options{}).Init())
}

func TestLogTailIsBounded(t *testing.T) {
	m := NewModel(Options{Order: []string{"a"}, LogLines: 3})
	for _, line := range []string{"1", "2", "3", "4", "5"} {
		m.appendLog("a", line)
	}
	require.Len(t, m.logs, 3)
	require.Equal(t, "3", m.logs[0].line)
	require.Equal(t, "5", m.logs[2].line)
}
