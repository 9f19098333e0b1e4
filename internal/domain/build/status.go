package build

// NodeStatus is the lifecycle state of one node inside a run.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusRunning   NodeStatus = "running"
	StatusSucceeded NodeStatus = "succeeded"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
	StatusCancelled NodeStatus = "cancelled"
	StatusTimedOut  NodeStatus = "timed_out"
)

// TerminalStatuses lists every outcome a node can finish with.
var TerminalStatuses = []NodeStatus{
	StatusSucceeded,
	StatusFailed,
	StatusSkipped,
	StatusCancelled,
	StatusTimedOut,
}

// IsTerminal reports whether the status is final.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// BlocksDependents reports whether dependents of a node finishing with this
// status must be skipped.
func (s NodeStatus) BlocksDependents() bool {
	return s == StatusFailed || s == StatusTimedOut
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunNotStarted RunState = "not_started"
	RunRunning    RunState = "running"
	RunCompleted  RunState = "completed"
	RunCancelled  RunState = "cancelled"
)

// IsFinal reports whether the run has stopped.
func (s RunState) IsFinal() bool {
	return s == RunCompleted || s == RunCancelled
}

// RunOutcome summarises a finished run.
type RunOutcome string

const (
	OutcomeSucceeded RunOutcome = "succeeded"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeCancelled RunOutcome = "cancelled"
)
