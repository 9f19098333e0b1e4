package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)
	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.finished || m.cancelling {
				return m, tea.Quit
			}
			m.cancelling = true
			return m, cancelCmd(m.cancel)
		}
	}

	return m, nil
}

func (m *Model) apply(ev build.Event) {
	switch ev.Kind {
	case build.KindStatusChanged:
		entry := m.ensureNode(ev.NodeID)
		if !entry.Status.IsTerminal() && ev.Status.IsTerminal() {
			m.completed++
		}
		entry.Status = ev.Status
		entry.Message = ev.Message
		if ev.Status.IsTerminal() && ev.Status != build.StatusFailed {
			entry.Step = ""
		}
		m.nodes[ev.NodeID] = entry
	case build.KindStepStarted:
		entry := m.ensureNode(ev.NodeID)
		entry.Step = ev.Step
		m.nodes[ev.NodeID] = entry
	case build.KindLogLine:
		m.appendLog(ev.NodeID, ev.Line)
	case build.KindRunFinished:
		m.finished = true
		m.outcome = ev.Outcome
	}
}

func cancelCmd(cancel func()) tea.Cmd {
	if cancel == nil {
		return nil
	}
	return func() tea.Msg {
		cancel()
		return nil
	}
}
