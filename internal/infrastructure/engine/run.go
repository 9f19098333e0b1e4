package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// message travels from runner goroutines to the coordinator. Exactly one
// message per dispatched node carries an outcome, and it is that node's last.
type message struct {
	nodeID  string
	event   build.Event
	outcome *build.Outcome
}

type runParams struct {
	id         string
	project    string
	settings   graph.Settings
	plan       *Plan
	order      []string
	nodes      map[string]graph.Node
	deps       map[string][]string
	dependents map[string][]string
	runner     ports.StepRunner
	planner    CommandPlanner
	logger     ports.Logger
	events     ports.EventPublisher
	bufferSize int
	release    func()
}

// Run is the handle of one orchestration. Only its coordinator goroutine
// writes node statuses; runners report through the event channel.
type Run struct {
	runParams

	ctx    context.Context
	cancel context.CancelCauseFunc

	channel     *events.Channel[message]
	broadcaster *events.Broadcaster
	group       errgroup.Group

	startOnce  sync.Once
	cancelOnce sync.Once
	stopWatch  func() bool
	done       chan struct{}

	mu         sync.RWMutex
	state      build.RunState
	results    map[string]build.NodeResult
	dispatched []string
	startedAt  time.Time
	result     build.RunResult

	// coordinator-owned
	seq      map[string]uint64
	waiting  map[string]int
	ready    *readySet
	position map[string]int
	stopped  error
}

func newRun(p runParams) *Run {
	r := &Run{
		runParams:   p,
		channel:     events.NewChannel[message](p.bufferSize),
		broadcaster: events.NewBroadcaster(),
		done:        make(chan struct{}),
		state:       build.RunNotStarted,
		results:     make(map[string]build.NodeResult, len(p.order)),
		seq:         make(map[string]uint64, len(p.order)),
		waiting:     make(map[string]int, len(p.order)),
		ready:       newReadySet(p.order),
		position:    make(map[string]int, len(p.order)),
	}
	for i, id := range p.order {
		r.position[id] = i
		r.waiting[id] = len(p.deps[id])
		r.results[id] = build.NodeResult{NodeID: id, Name: p.nodes[id].DisplayName(), Status: build.StatusPending}
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Order returns the nodes this run builds, in topological order.
func (r *Run) Order() []string { return append([]string(nil), r.order...) }

// Plan returns the full plan of the graph, including nodes excluded by a
// start node.
func (r *Run) Plan() *Plan { return r.plan }

// State returns the current run state.
func (r *Run) State() build.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Status returns the current status of a node.
func (r *Run) Status(id string) (build.NodeStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	return res.Status, ok
}

// Snapshot returns the current status of every node in the run.
func (r *Run) Snapshot() map[string]build.NodeStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]build.NodeStatus, len(r.results))
	for id, res := range r.results {
		out[id] = res.Status
	}
	return out
}

// Subscribe streams every event of the run from its first one. The channel
// closes after the run-finished event, or when ctx ends.
func (r *Run) Subscribe(ctx context.Context) <-chan build.Event {
	return r.broadcaster.Subscribe(ctx)
}

// Begin starts dispatching. Calling it more than once has no effect.
func (r *Run) Begin() {
	r.startOnce.Do(func() {
		r.mu.Lock()
		r.state = build.RunRunning
		r.startedAt = time.Now()
		r.mu.Unlock()
		go r.coordinate()
	})
}

// Cancel stops the run: running children are terminated and nodes not yet
// started become Cancelled. It is safe at any time; on a run that has not
// begun it completes the run immediately, on a finished run it does nothing.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		r.cancel(ErrRunCancelled)
	})
	r.Begin()
}

// Done is closed once the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) (build.RunResult, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return build.RunResult{}, ctx.Err()
	}
}

// Result returns a copy of the final result; it is empty until Done is
// closed.
func (r *Run) Result() build.RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result.Clone()
}

func (r *Run) coordinate() {
	ctx := r.ctx
	limit := r.settings.Concurrency

	var timer *time.Timer
	if r.settings.RunTimeout > 0 {
		timer = time.AfterFunc(r.settings.RunTimeout, func() { r.cancel(ErrRunTimeout) })
	}

	r.logger.Info(ctx, "run started", "nodes", len(r.order), "concurrency", limit)
	publishEvent(ctx, r.events, r.logger, ports.EventRunStarted, map[string]interface{}{
		"run_id":      r.id,
		"project":     r.project,
		"nodes":       len(r.order),
		"concurrency": limit,
	})

	for _, id := range r.order {
		r.emit(build.StatusChanged(id, build.StatusPending, ""))
		if r.waiting[id] == 0 {
			r.ready.push(r.position[id])
		}
	}

	inFlight := 0
	cancelled := ctx.Done()
	for {
		if r.stopped == nil && ctx.Err() != nil {
			r.acknowledgeStop()
			cancelled = nil
		}
		for r.stopped == nil && inFlight < limit && r.ready.len() > 0 {
			id, _ := r.ready.pop()
			r.dispatch(id)
			inFlight++
		}
		if inFlight == 0 {
			break
		}

		select {
		case msg := <-r.channel.Receive():
			if msg.outcome == nil {
				r.emit(msg.event)
				continue
			}
			inFlight--
			r.complete(msg.nodeID, *msg.outcome)
		case <-cancelled:
			if r.stopped == nil {
				r.acknowledgeStop()
			}
			cancelled = nil
		}
	}

	if timer != nil {
		timer.Stop()
	}
	r.finish()
}

func (r *Run) dispatch(id string) {
	node := r.nodes[id]
	job := r.planner.Job(r.id, node, r.settings)

	now := time.Now()
	r.mu.Lock()
	res := r.results[id]
	res.Status = build.StatusRunning
	res.StartedAt = now
	r.results[id] = res
	r.dispatched = append(r.dispatched, id)
	r.mu.Unlock()
	r.emit(build.StatusChanged(id, build.StatusRunning, ""))
	r.logger.Debug(r.ctx, "node dispatched", "node_id", id, "steps", len(job.Steps))

	var nodeCtx context.Context
	var cancelNode context.CancelFunc
	if job.Timeout > 0 {
		nodeCtx, cancelNode = context.WithTimeout(r.ctx, job.Timeout)
	} else {
		nodeCtx, cancelNode = context.WithCancel(r.ctx)
	}
	sink := nodeSink{nodeID: id, channel: r.channel}

	r.group.Go(func() error {
		defer cancelNode()
		outcome := r.runner.Run(nodeCtx, job, sink)
		// The coordinator drains until every dispatched node reports, so
		// this send cannot block forever.
		return r.channel.Send(context.Background(), message{nodeID: id, outcome: &outcome})
	})
}

// complete records a runner outcome and releases or blocks dependents.
func (r *Run) complete(id string, outcome build.Outcome) {
	if r.stopped == nil && r.ctx.Err() != nil {
		r.acknowledgeStop()
	}
	status := outcome.Status
	detail := outcome.Message
	switch {
	case !status.IsTerminal() || status == build.StatusSkipped:
		detail = fmt.Sprintf("runner reported invalid status %q", status)
		status = build.StatusFailed
	case r.stopped != nil && status == build.StatusSucceeded:
		status = build.StatusCancelled
		detail = "run cancelled"
	case errors.Is(r.stopped, ErrRunTimeout) && status == build.StatusCancelled:
		status = build.StatusTimedOut
	}

	r.settle(id, status, detail, outcome)

	if status == build.StatusSucceeded {
		for _, dep := range r.dependents[id] {
			r.waiting[dep]--
			if r.waiting[dep] == 0 && r.statusOf(dep) == build.StatusPending {
				r.ready.push(r.position[dep])
			}
		}
		return
	}
	if r.stopped != nil {
		return
	}
	r.skipDependents(id)
}

// skipDependents marks every pending node reachable from id as Skipped.
func (r *Run) skipDependents(id string) {
	queue := append([]string(nil), r.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if r.statusOf(next) != build.StatusPending {
			continue
		}
		r.settle(next, build.StatusSkipped, fmt.Sprintf("dependency %s did not succeed", id), build.Outcome{})
		queue = append(queue, r.dependents[next]...)
	}
}

// acknowledgeStop reacts to cancellation or the run timeout: nothing new is
// dispatched and every node not yet started is cancelled.
func (r *Run) acknowledgeStop() {
	r.stopped = context.Cause(r.ctx)
	if r.stopped == nil {
		r.stopped = ErrRunCancelled
	}
	reason := "run cancelled"
	if errors.Is(r.stopped, ErrRunTimeout) {
		reason = "run timed out"
	}
	r.logger.Warn(r.ctx, "run stopping", "reason", reason)

	r.ready.drain()
	for _, id := range r.order {
		if r.statusOf(id) == build.StatusPending {
			r.settle(id, build.StatusCancelled, reason, build.Outcome{})
		}
	}
}

func (r *Run) settle(id string, status build.NodeStatus, detail string, outcome build.Outcome) {
	now := time.Now()
	r.mu.Lock()
	res := r.results[id]
	res.Status = status
	res.Message = detail
	res.Step = outcome.Step
	res.ExitCode = outcome.ExitCode
	res.FinishedAt = now
	if !res.StartedAt.IsZero() {
		res.Duration = now.Sub(res.StartedAt)
	}
	r.results[id] = res
	r.mu.Unlock()

	r.emit(build.StatusChanged(id, status, detail))

	fields := []interface{}{"node_id", id, "status", string(status), "duration_ms", durationMillis(res.Duration)}
	if detail != "" {
		fields = append(fields, "message", detail)
	}
	if status == build.StatusFailed || status == build.StatusTimedOut {
		r.logger.Warn(r.ctx, "node finished", fields...)
	} else {
		r.logger.Info(r.ctx, "node finished", fields...)
	}
	publishEvent(r.ctx, r.events, r.logger, ports.EventNodeFinished, map[string]interface{}{
		"run_id":  r.id,
		"node_id": id,
		"status":  string(status),
		"step":    string(outcome.Step),
		"message": detail,
	})
}

func (r *Run) statusOf(id string) build.NodeStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.results[id].Status
}

// emit stamps run id and per-node sequence and appends to the run log.
func (r *Run) emit(ev build.Event) {
	ev.RunID = r.id
	if ev.NodeID != "" {
		r.seq[ev.NodeID]++
		ev.Seq = r.seq[ev.NodeID]
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.broadcaster.Publish(ev)
}

func (r *Run) finish() {
	_ = r.group.Wait()
	r.channel.Close()

	state := build.RunCompleted
	if r.stopped != nil {
		state = build.RunCancelled
	}

	r.mu.Lock()
	results := make(map[string]build.NodeResult, len(r.results))
	for id, res := range r.results {
		results[id] = res
	}
	r.state = state
	r.result = build.RunResult{
		RunID:      r.id,
		Project:    r.project,
		State:      state,
		Outcome:    build.DeriveOutcome(r.stopped != nil, results),
		Order:      append([]string(nil), r.order...),
		Dispatched: append([]string(nil), r.dispatched...),
		Nodes:      results,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
	}
	result := r.result
	r.mu.Unlock()

	r.emit(build.RunFinished(r.id, result.Outcome))
	r.broadcaster.Close()
	if r.stopWatch != nil {
		r.stopWatch()
	}
	r.release()
	r.cancel(nil)

	eventType := ports.EventRunCompleted
	switch result.Outcome {
	case build.OutcomeFailed:
		eventType = ports.EventRunFailed
	case build.OutcomeCancelled:
		eventType = ports.EventRunCancelled
	}
	counts := result.Counts()
	r.logger.Info(r.ctx, "run finished",
		"outcome", string(result.Outcome),
		"succeeded", counts[build.StatusSucceeded],
		"failed", counts[build.StatusFailed],
		"skipped", counts[build.StatusSkipped],
		"cancelled", counts[build.StatusCancelled],
		"timed_out", counts[build.StatusTimedOut],
		"duration_ms", durationMillis(result.Duration()),
	)
	publishEvent(context.WithoutCancel(r.ctx), r.events, r.logger, eventType, map[string]interface{}{
		"run_id":  r.id,
		"project": r.project,
		"outcome": string(result.Outcome),
	})

	close(r.done)
}

// nodeSink tags runner events with their node and forwards them to the
// coordinator. Sends ignore cancellation of the runner's context so lines
// written while a child is being stopped still arrive.
type nodeSink struct {
	nodeID  string
	channel *events.Channel[message]
}

func (s nodeSink) Emit(ctx context.Context, ev build.Event) error {
	ev.NodeID = s.nodeID
	if ev.Kind == build.KindStatusChanged || ev.Kind == build.KindRunFinished {
		return fmt.Errorf("runner may not emit %s events", ev.Kind)
	}
	return s.channel.Send(context.WithoutCancel(ctx), message{nodeID: s.nodeID, event: ev})
}
