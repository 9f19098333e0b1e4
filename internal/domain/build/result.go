package build

import "time"

// NodeResult captures how one node finished.
type NodeResult struct {
	NodeID     string        `json:"nodeId"`
	Name       string        `json:"name"`
	Status     NodeStatus    `json:"status"`
	Message    string        `json:"message,omitempty"`
	Step       StepKind      `json:"step,omitempty"`
	ExitCode   int           `json:"exitCode,omitempty"`
	Revision   string        `json:"revision,omitempty"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// RunResult summarises a finished run.
type RunResult struct {
	RunID      string                `json:"runId"`
	Project    string                `json:"project,omitempty"`
	State      RunState              `json:"state"`
	Outcome    RunOutcome            `json:"outcome"`
	Order      []string              `json:"order"`
	Dispatched []string              `json:"dispatched"`
	Nodes      map[string]NodeResult `json:"nodes"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
}

// Clone returns a deep copy; callers may modify it without affecting r.
func (r RunResult) Clone() RunResult {
	out := r
	if r.Order != nil {
		out.Order = append([]string(nil), r.Order...)
	}
	if r.Dispatched != nil {
		out.Dispatched = append([]string(nil), r.Dispatched...)
	}
	if r.Nodes != nil {
		out.Nodes = make(map[string]NodeResult, len(r.Nodes))
		for id, res := range r.Nodes {
			out.Nodes[id] = res
		}
	}
	return out
}

// Counts tallies node results by status.
func (r RunResult) Counts() map[NodeStatus]int {
	counts := make(map[NodeStatus]int, len(TerminalStatuses))
	for _, n := range r.Nodes {
		counts[n.Status]++
	}
	return counts
}

// Duration is the wall-clock time of the run.
func (r RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ordered returns the node results following the topological order.
func (r RunResult) Ordered() []NodeResult {
	out := make([]NodeResult, 0, len(r.Order))
	for _, id := range r.Order {
		if res, ok := r.Nodes[id]; ok {
			out = append(out, res)
		}
	}
	return out
}

// DeriveOutcome computes the run outcome from final node statuses.
func DeriveOutcome(cancelled bool, nodes map[string]NodeResult) RunOutcome {
	if cancelled {
		return OutcomeCancelled
	}
	for _, n := range nodes {
		if n.Status != StatusSucceeded {
			return OutcomeFailed
		}
	}
	return OutcomeSucceeded
}
