package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("buildgraph • %s", m.heading())))

	bar := components.NewProgress(m.TotalNodes())
	if m.width > 40 {
		bar = bar.WithWidth(min(m.width-25, 60))
	}
	sections = append(sections, sectionStyle.Render("Progress"), bar.View(m.completed, m.failedNodes()))

	entries := components.NewNodeList(m.order, m.nodes).Entries()
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Nodes"), renderNodeEntries(entries))
	}

	if len(m.logs) > 0 {
		sections = append(sections, sectionStyle.Render("Output"), m.renderLogs())
	}

	summary := components.NewSummary(components.SummaryData{
		Total:      m.TotalNodes(),
		Counts:     m.counts(),
		Finished:   m.finished,
		Cancelling: m.cancelling,
		Outcome:    m.outcome,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	if !m.finished {
		sections = append(sections, helpStyle.Render("ctrl+c: cancel build"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderNodeEntries(entries []components.NodeEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		line := fmt.Sprintf(" %s %s", StatusIcon(entry.Status), entry.ID)
		if entry.Status == build.StatusRunning && entry.Step != "" {
			line += " " + stepStyle.Render(string(entry.Step))
		}
		if msg := strings.TrimSpace(entry.Message); msg != "" && entry.Status != build.StatusSucceeded {
			line += messageStyle.Render(" — " + msg)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLogs() string {
	lines := make([]string, 0, len(m.logs))
	for _, entry := range m.logs {
		text := entry.line
		if m.width > 0 {
			if limit := m.width - len(entry.nodeID) - 4; limit > 0 && len(text) > limit {
				text = text[:limit]
			}
		}
		lines = append(lines, fmt.Sprintf("%s %s", logPrefixStyle.Render("["+entry.nodeID+"]"), text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) heading() string {
	if strings.TrimSpace(m.title) != "" {
		return m.title
	}
	return "Build"
}

// StatusIcon returns the glyph representing a node status.
func StatusIcon(status build.NodeStatus) string {
	switch status {
	case build.StatusSucceeded:
		return succeededStyle.Render("✓")
	case build.StatusRunning:
		return runningStyle.Render("⏳")
	case build.StatusFailed:
		return failedStyle.Render("✗")
	case build.StatusTimedOut:
		return timedOutStyle.Render("⌛")
	case build.StatusSkipped:
		return skippedStyle.Render("⊘")
	case build.StatusCancelled:
		return cancelledStyle.Render("■")
	default:
		return pendingStyle.Render("…")
	}
}
