package build

import (
	"context"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/engine"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// Overrides adjust project settings for a single build. Zero values keep the
// document's setting.
type Overrides struct {
	RunID       string
	Concurrency int
	StartNodeID string
	NodeTimeout time.Duration
	RunTimeout  time.Duration
	GracePeriod time.Duration
}

// Apply returns s with the non-zero overrides applied.
func (o Overrides) Apply(s graph.Settings) graph.Settings {
	if o.Concurrency > 0 {
		s.Concurrency = o.Concurrency
	}
	if o.StartNodeID != "" {
		s.StartNodeID = o.StartNodeID
	}
	if o.NodeTimeout > 0 {
		s.NodeTimeout = o.NodeTimeout
	}
	if o.RunTimeout > 0 {
		s.RunTimeout = o.RunTimeout
	}
	if o.GracePeriod > 0 {
		s.GracePeriod = o.GracePeriod
	}
	return s
}

// Service is the command surface of the build engine: it loads projects,
// starts and cancels runs, and archives finished runs.
type Service struct {
	orchestrator *engine.Orchestrator
	loader       ports.ProjectLoader
	store        ports.RunStore
	revisions    ports.RevisionResolver
	planner      engine.CommandPlanner
	logger       ports.Logger
	events       ports.EventPublisher

	mu       sync.Mutex
	projects map[string]*graph.Project
}

// Option customises a Service.
type Option func(*Service)

// WithStore archives finished runs in store.
func WithStore(store ports.RunStore) Option {
	return func(s *Service) { s.store = store }
}

// WithRevisions records the source revision of every built node.
func WithRevisions(revisions ports.RevisionResolver) Option {
	return func(s *Service) { s.revisions = revisions }
}

// WithPlanner sets how node project paths are resolved for revisions. It
// should match the orchestrator's planner.
func WithPlanner(planner engine.CommandPlanner) Option {
	return func(s *Service) { s.planner = planner }
}

// NewService constructs a Service with its required collaborators.
func NewService(orchestrator *engine.Orchestrator, loader ports.ProjectLoader, logger ports.Logger, events ports.EventPublisher, opts ...Option) *Service {
	s := &Service{
		orchestrator: orchestrator,
		loader:       loader,
		logger:       logging.OrNoOp(logger).With("layer", "application", "component", "build_service"),
		events:       events,
		projects:     make(map[string]*graph.Project),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads and validates a project document.
func (s *Service) Open(ctx context.Context, path string) (*graph.Project, error) {
	s.logger.Info(ctx, "opening project", "path", path)
	project, err := s.loader.Load(ctx, path)
	if err != nil {
		s.logger.Error(ctx, "failed to load project", "path", path, "error", err)
		publishEvent(ctx, s.events, s.logger, ports.EventRunFailed, map[string]interface{}{
			"path":  path,
			"phase": "load",
			"error": err,
		})
		return nil, err
	}
	return project, nil
}

// StartBuild validates the project graph, freezes it and begins dispatching.
// Structural and cycle errors are returned before anything is spawned.
func (s *Service) StartBuild(ctx context.Context, project *graph.Project, overrides Overrides) (*engine.Run, error) {
	if project == nil || project.Graph == nil {
		return nil, &graph.DomainError{Code: graph.ErrCodeInternal, Message: "project is nil"}
	}
	settings := overrides.Apply(project.Settings)

	run, err := s.orchestrator.Start(ctx, project.Graph, engine.RunOptions{
		RunID:    overrides.RunID,
		Project:  project.Name,
		Settings: settings,
	})
	if err != nil {
		s.logger.Error(ctx, "build rejected", "project", project.Name, "error", err)
		publishEvent(ctx, s.events, s.logger, ports.EventRunFailed, map[string]interface{}{
			"project": project.Name,
			"phase":   "prepare",
			"error":   err,
		})
		return nil, err
	}

	s.mu.Lock()
	s.projects[run.ID()] = project
	s.mu.Unlock()

	s.logger.Info(ctx, "build started", "run_id", run.ID(), "project", project.Name, "nodes", len(run.Order()), "concurrency", settings.ApplyDefaults().Concurrency)
	return run, nil
}

// CancelBuild requests cancellation of run. It returns immediately; use
// Wait to observe the final result.
func (s *Service) CancelBuild(ctx context.Context, run *engine.Run) {
	if run == nil {
		return
	}
	s.logger.Info(ctx, "cancelling build", "run_id", run.ID())
	run.Cancel()
}

// Subscribe streams the events of run from its beginning.
func (s *Service) Subscribe(ctx context.Context, run *engine.Run) <-chan build.Event {
	return run.Subscribe(ctx)
}

// TopologicalOrder returns the build order of g or a cycle error naming the
// nodes involved.
func (s *Service) TopologicalOrder(ctx context.Context, g *graph.Graph) ([]string, error) {
	return s.orchestrator.TopologicalOrder(ctx, g)
}

// Plan groups the nodes of g into levels that may build in parallel.
func (s *Service) Plan(ctx context.Context, g *graph.Graph) (*engine.Plan, error) {
	return engine.BuildPlan(ctx, g)
}

// Wait blocks until run finishes, then records source revisions and archives
// the result. Archiving failures are logged and do not fail the build.
func (s *Service) Wait(ctx context.Context, run *engine.Run) (build.RunResult, error) {
	result, err := run.Wait(ctx)
	if err != nil {
		return result, err
	}

	s.mu.Lock()
	project := s.projects[run.ID()]
	delete(s.projects, run.ID())
	s.mu.Unlock()

	if project != nil {
		result = result.Clone()
		s.recordRevisions(ctx, project, &result)
	}
	s.archive(ctx, result)
	return result, nil
}

// History lists archived runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]build.RunResult, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx, limit)
}

// Lookup returns one archived run.
func (s *Service) Lookup(ctx context.Context, runID string) (*build.RunResult, error) {
	if s.store == nil {
		return nil, &graph.DomainError{Code: graph.ErrCodeNotFound, Message: "run not found", Context: map[string]interface{}{"id": runID}}
	}
	return s.store.Get(ctx, runID)
}

func (s *Service) recordRevisions(ctx context.Context, project *graph.Project, result *build.RunResult) {
	if s.revisions == nil {
		return
	}
	cache := make(map[string]string)
	for _, id := range result.Dispatched {
		n, ok := project.Graph.Node(id)
		if !ok {
			continue
		}
		dir := s.planner.ProjectDir(n)
		if dir == "" {
			continue
		}
		rev, seen := cache[dir]
		if !seen {
			var err error
			rev, err = s.revisions.Resolve(ctx, dir)
			if err != nil {
				s.logger.Warn(ctx, "failed to resolve source revision", "node_id", id, "dir", dir, "error", err)
			}
			cache[dir] = rev
		}
		if rev == "" {
			continue
		}
		res := result.Nodes[id]
		res.Revision = rev
		result.Nodes[id] = res
	}
}

func (s *Service) archive(ctx context.Context, result build.RunResult) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, result); err != nil {
		s.logger.Warn(ctx, "failed to archive run", "run_id", result.RunID, "error", err)
		return
	}
	publishEvent(ctx, s.events, s.logger, ports.EventRunArchived, map[string]interface{}{
		"run_id":  result.RunID,
		"outcome": string(result.Outcome),
	})
}
