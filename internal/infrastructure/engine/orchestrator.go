package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

var (
	// ErrRunCancelled is the cancellation cause recorded when Cancel is called.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrRunTimeout is the cancellation cause recorded when the run timeout
	// elapses. It matches context.DeadlineExceeded so runners report TimedOut.
	ErrRunTimeout = fmt.Errorf("run timeout: %w", context.DeadlineExceeded)
)

// Orchestrator schedules graph nodes onto a StepRunner.
type Orchestrator struct {
	runner     ports.StepRunner
	logger     ports.Logger
	events     ports.EventPublisher
	planner    CommandPlanner
	bufferSize int
}

// OrchestratorOption configures an orchestrator instance.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger injects a logger.
func WithOrchestratorLogger(logger ports.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithOrchestratorEvents injects a lifecycle event publisher.
func WithOrchestratorEvents(publisher ports.EventPublisher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.events = publisher
	}
}

// WithCommandPlanner overrides how nodes are turned into jobs.
func WithCommandPlanner(planner CommandPlanner) OrchestratorOption {
	return func(o *Orchestrator) {
		o.planner = planner
	}
}

// WithEventBuffer sets the capacity of each run's event channel.
func WithEventBuffer(size int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.bufferSize = size
	}
}

// NewOrchestrator constructs an orchestrator dispatching to runner.
func NewOrchestrator(runner ports.StepRunner, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		runner:     runner,
		logger:     logging.NewNoOpLogger(),
		bufferSize: events.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNoOp(o.logger).With("component", "orchestrator")
	return o
}

// RunOptions parameterise one run.
type RunOptions struct {
	// RunID overrides the generated run identifier.
	RunID string
	// Project labels the run in results and logs.
	Project string
	// Settings supplies concurrency, timeouts, the start node and everything
	// the command planner needs.
	Settings graph.Settings
}

// Prepare validates and sorts g and returns a run in the NotStarted state.
// The graph stays frozen until the run finishes, so a prepared run must be
// begun or cancelled; if ctx ends first the run is cancelled and the graph
// released. Structural and cycle errors are returned here, before any
// process could start.
func (o *Orchestrator) Prepare(ctx context.Context, g *graph.Graph, opts RunOptions) (*Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.runner == nil {
		return nil, &graph.DomainError{Code: graph.ErrCodeInternal, Message: "step runner is nil"}
	}
	if g == nil {
		return nil, &graph.DomainError{Code: graph.ErrCodeInternal, Message: "graph is nil"}
	}

	release := g.Freeze()
	plan, err := BuildPlan(ctx, g)
	if err != nil {
		release()
		o.logger.Warn(ctx, "run rejected", "error", err, "cycle", graph.CycleNodes(err))
		return nil, err
	}
	settings := opts.Settings.ApplyDefaults()
	order, err := plan.From(settings.StartNodeID)
	if err != nil {
		release()
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	nodes := make(map[string]graph.Node, len(order))
	inRun := make(map[string]struct{}, len(order))
	for _, id := range order {
		n, _ := g.Node(id)
		nodes[id] = n
		inRun[id] = struct{}{}
	}
	deps := make(map[string][]string, len(order))
	dependents := make(map[string][]string, len(order))
	for _, id := range order {
		for _, dep := range g.Dependencies(id) {
			if _, ok := inRun[dep]; !ok {
				continue
			}
			deps[id] = append(deps[id], dep)
			dependents[dep] = append(dependents[dep], id)
		}
	}

	run := newRun(runParams{
		id:         runID,
		project:    opts.Project,
		settings:   settings,
		plan:       plan,
		order:      order,
		nodes:      nodes,
		deps:       deps,
		dependents: dependents,
		runner:     o.runner,
		planner:    o.planner,
		logger:     o.logger.With("run_id", runID),
		events:     o.events,
		bufferSize: o.bufferSize,
		release:    release,
	})
	run.ctx, run.cancel = context.WithCancelCause(ctx)
	run.stopWatch = context.AfterFunc(run.ctx, run.Cancel)
	return run, nil
}

// Start prepares a run and begins dispatching immediately.
func (o *Orchestrator) Start(ctx context.Context, g *graph.Graph, opts RunOptions) (*Run, error) {
	run, err := o.Prepare(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	run.Begin()
	return run, nil
}

// TopologicalOrder returns the build order of g or a cycle error.
func (o *Orchestrator) TopologicalOrder(ctx context.Context, g *graph.Graph) ([]string, error) {
	return NewSorter().Sort(ctx, g)
}

type domainEvent struct {
	eventType string
	payload   map[string]interface{}
}

func (e domainEvent) EventType() string    { return e.eventType }
func (e domainEvent) Payload() interface{} { return e.payload }

func publishEvent(ctx context.Context, publisher ports.EventPublisher, logger ports.Logger, eventType string, payload map[string]interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, domainEvent{eventType: eventType, payload: payload}); err != nil {
		logger.Warn(ctx, "failed to publish domain event", "event_type", eventType, "error", err)
	}
}

func durationMillis(d time.Duration) int64 {
	return d.Milliseconds()
}
