package ports

import (
	"context"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// EventSink accepts events produced while a node builds. Emit blocks when the
// sink is full and returns an error only when ctx ends first; events are never
// dropped silently.
type EventSink interface {
	Emit(ctx context.Context, event build.Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event build.Event) error

// Emit implements EventSink.
func (f EventSinkFunc) Emit(ctx context.Context, event build.Event) error {
	return f(ctx, event)
}

// StepRunner executes every step of one job as child processes and reports a
// single aggregate outcome. Implementations must:
//   - forward each output line to sink as a LogLine event tagged with the node id
//   - stop at the first non-zero exit and report StatusFailed
//   - treat spawn and preflight problems (missing directory, missing tool) as failures
//   - on ctx cancellation terminate the running child, escalate to a kill after
//     the job's grace period and report StatusCancelled, or StatusTimedOut when
//     ctx ended because of a deadline
//
// Runners never change run state themselves; the orchestrator owns statuses.
type StepRunner interface {
	Run(ctx context.Context, job build.Job, sink EventSink) build.Outcome
}
