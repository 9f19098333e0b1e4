package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/tui/components"
)

// DefaultLogLines is how many recent output lines the log panel shows.
const DefaultLogLines = 12

// EventMsg delivers one run event to the model.
type EventMsg struct {
	Event build.Event
}

// streamClosedMsg reports that the run's event stream has ended.
type streamClosedMsg struct{}

type logEntry struct {
	nodeID string
	line   string
}

// Model is the Bubbletea state of the live build view.
type Model struct {
	title    string
	order    []string
	nodes    map[string]components.NodeEntry
	logs     []logEntry
	logLines int
	width    int

	events <-chan build.Event
	cancel func()

	completed  int
	cancelling bool
	finished   bool
	outcome    build.RunOutcome
}

// Options configure NewModel.
type Options struct {
	// Title heads the view, usually the project name.
	Title string
	// Order lists the nodes of the run in build order.
	Order []string
	// Events is the run's event subscription. The program quits when it closes.
	Events <-chan build.Event
	// Cancel is invoked on the first Ctrl+C.
	Cancel func()
	// LogLines overrides DefaultLogLines.
	LogLines int
}

// NewModel constructs the build view.
func NewModel(opts Options) Model {
	m := Model{
		title:    opts.Title,
		order:    append([]string(nil), opts.Order...),
		nodes:    make(map[string]components.NodeEntry, len(opts.Order)),
		logLines: opts.LogLines,
		events:   opts.Events,
		cancel:   opts.Cancel,
	}
	if m.logLines <= 0 {
		m.logLines = DefaultLogLines
	}
	for _, id := range m.order {
		m.nodes[id] = components.NodeEntry{ID: id, Status: build.StatusPending}
	}
	return m
}

// Init starts listening for run events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// TotalNodes returns the number of nodes in the run.
func (m Model) TotalNodes() int {
	return len(m.order)
}

// CompletedNodes returns how many nodes reached a terminal status.
func (m Model) CompletedNodes() int {
	return m.completed
}

// IsFinished reports whether the run-finished event arrived.
func (m Model) IsFinished() bool {
	return m.finished
}

// Outcome returns the run outcome, empty until the run finished.
func (m Model) Outcome() build.RunOutcome {
	return m.outcome
}

// Status returns the latest known status of a node.
func (m Model) Status(id string) build.NodeStatus {
	return m.nodes[id].Status
}

func (m *Model) ensureNode(id string) components.NodeEntry {
	entry, ok := m.nodes[id]
	if !ok {
		entry = components.NodeEntry{ID: id, Status: build.StatusPending}
		m.nodes[id] = entry
		m.order = append(m.order, id)
	}
	return entry
}

func (m *Model) appendLog(nodeID, line string) {
	m.logs = append(m.logs, logEntry{nodeID: nodeID, line: line})
	if over := len(m.logs) - m.logLines; over > 0 {
		m.logs = append(m.logs[:0:0], m.logs[over:]...)
	}
}

func (m Model) counts() map[build.NodeStatus]int {
	counts := make(map[build.NodeStatus]int, len(build.TerminalStatuses))
	for _, entry := range m.nodes {
		counts[entry.Status]++
	}
	return counts
}

func (m Model) failedNodes() int {
	failed := 0
	for _, entry := range m.nodes {
		if entry.Status.BlocksDependents() {
			failed++
		}
	}
	return failed
}

func waitForEvent(events <-chan build.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}
