package build

import "time"

// EventKind distinguishes the payload carried by an Event.
type EventKind string

const (
	// KindLogLine carries one line of merged child output.
	KindLogLine EventKind = "log_line"
	// KindStatusChanged carries a node status transition.
	KindStatusChanged EventKind = "status_changed"
	// KindStepStarted marks the start of a node step such as configure.
	KindStepStarted EventKind = "step_started"
	// KindRunFinished is the last event of a run; NodeID is empty.
	KindRunFinished EventKind = "run_finished"
)

// Event is an immutable record flowing from step runners to consumers. Seq is
// strictly increasing within one node's stream.
type Event struct {
	RunID   string     `json:"runId"`
	NodeID  string     `json:"nodeId,omitempty"`
	Kind    EventKind  `json:"kind"`
	Seq     uint64     `json:"seq"`
	Time    time.Time  `json:"time"`
	Line    string     `json:"line,omitempty"`
	Status  NodeStatus `json:"status,omitempty"`
	Step    StepKind   `json:"step,omitempty"`
	Outcome RunOutcome `json:"outcome,omitempty"`
	Message string     `json:"message,omitempty"`
}

// LogLine builds a log line event for nodeID.
func LogLine(nodeID, line string) Event {
	return Event{NodeID: nodeID, Kind: KindLogLine, Line: line, Time: time.Now()}
}

// StatusChanged builds a status transition event for nodeID.
func StatusChanged(nodeID string, status NodeStatus, message string) Event {
	return Event{NodeID: nodeID, Kind: KindStatusChanged, Status: status, Message: message, Time: time.Now()}
}

// StepStarted builds a step boundary event for nodeID.
func StepStarted(nodeID string, step StepKind, command string) Event {
	return Event{NodeID: nodeID, Kind: KindStepStarted, Step: step, Message: command, Time: time.Now()}
}

// RunFinished builds the terminal event of a run.
func RunFinished(runID string, outcome RunOutcome) Event {
	return Event{RunID: runID, Kind: KindRunFinished, Outcome: outcome, Time: time.Now()}
}
