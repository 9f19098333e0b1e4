package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)

	// node statuses
	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	timedOutStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("202")).Bold(true)
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	summaryStyle   = lipgloss.NewStyle().MarginTop(1)
	stepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Italic(true)
	messageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	logPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)
