package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Total      int
	Counts     map[build.NodeStatus]int
	Finished   bool
	Cancelling bool
	Outcome    build.RunOutcome
}

// Summary renders a textual run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	var lines []string
	if s.data.Total > 0 {
		var parts []string
		for _, status := range build.TerminalStatuses {
			if n := s.data.Counts[status]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(string(status), "_", " ")))
			}
		}
		if len(parts) > 0 {
			lines = append(lines, "Nodes: "+strings.Join(parts, ", "))
		}
	}

	switch {
	case s.data.Finished && s.data.Outcome != "":
		lines = append(lines, fmt.Sprintf("Build %s", s.data.Outcome))
	case s.data.Cancelling:
		lines = append(lines, "Cancelling… waiting for running nodes to stop")
	}

	return strings.Join(lines, "\n")
}
