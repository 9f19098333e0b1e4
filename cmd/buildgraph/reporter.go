package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// plainReporter prints run events as plain lines for logs and CI.
type plainReporter struct {
	out io.Writer
}

func newPlainReporter(out io.Writer) *plainReporter {
	return &plainReporter{out: out}
}

// Report prints every event until the stream closes.
func (r *plainReporter) Report(events <-chan build.Event) {
	for ev := range events {
		if line := formatEvent(ev); line != "" {
			fmt.Fprintln(r.out, line)
		}
	}
}

func formatEvent(ev build.Event) string {
	switch ev.Kind {
	case build.KindLogLine:
		return fmt.Sprintf("[%s] %s", ev.NodeID, ev.Line)
	case build.KindStepStarted:
		return fmt.Sprintf("==> [%s] %s: %s", ev.NodeID, ev.Step, ev.Message)
	case build.KindStatusChanged:
		switch {
		case ev.Status == build.StatusPending:
			return ""
		case ev.Message != "" && ev.Status != build.StatusSucceeded:
			return fmt.Sprintf("==> [%s] %s: %s", ev.NodeID, statusLabel(ev.Status), ev.Message)
		default:
			return fmt.Sprintf("==> [%s] %s", ev.NodeID, statusLabel(ev.Status))
		}
	case build.KindRunFinished:
		return fmt.Sprintf("==> build %s", ev.Outcome)
	}
	return ""
}

func statusLabel(status build.NodeStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

func renderRunTable(out io.Writer, result build.RunResult) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NODE\tSTATUS\tDURATION\tMESSAGE")
	for _, res := range result.Ordered() {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			res.NodeID,
			statusLabel(res.Status),
			formatDuration(res.Duration),
			valueOrFallback(res.Message, "-"),
		)
	}
	_ = writer.Flush()
}

func runSummaryLine(result build.RunResult) string {
	counts := result.Counts()
	var parts []string
	for _, status := range build.TerminalStatuses {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, statusLabel(status)))
		}
	}
	detail := "no nodes"
	if len(parts) > 0 {
		detail = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Build %s: %s in %s (run %s)", result.Outcome, detail, formatDuration(result.Duration()), result.RunID)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func valueOrFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
