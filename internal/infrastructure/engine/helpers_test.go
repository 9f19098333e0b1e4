package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

func newGraph(t *testing.T, ids []string, edges ...[2]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range ids {
		n, err := graph.NewNode(graph.NodeSpec{ID: id, Name: id, ProjectPath: "/src/" + id})
		require.NoError(t, err)
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

type behaviour struct {
	fail   bool
	block  bool
	delay  time.Duration
	lines  []string
	status build.NodeStatus
}

type span struct {
	start time.Time
	end   time.Time
}

// fakeRunner stands in for the process runner and records what it was asked
// to run.
type fakeRunner struct {
	mu         sync.Mutex
	behaviours map[string]behaviour
	started    []string
	spans      map[string]span
	active     int
	maxActive  int
}

func newFakeRunner(behaviours map[string]behaviour) *fakeRunner {
	if behaviours == nil {
		behaviours = map[string]behaviour{}
	}
	return &fakeRunner{behaviours: behaviours, spans: map[string]span{}}
}

func (f *fakeRunner) Run(ctx context.Context, job build.Job, sink ports.EventSink) build.Outcome {
	f.mu.Lock()
	f.started = append(f.started, job.NodeID)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	b := f.behaviours[job.NodeID]
	f.spans[job.NodeID] = span{start: time.Now()}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		s := f.spans[job.NodeID]
		s.end = time.Now()
		f.spans[job.NodeID] = s
		f.mu.Unlock()
	}()

	_ = sink.Emit(ctx, build.StepStarted(job.NodeID, build.StepBuild, "fake"))
	for _, line := range b.lines {
		_ = sink.Emit(ctx, build.LogLine(job.NodeID, line))
	}
	if b.block {
		<-ctx.Done()
		return stoppedOutcome(ctx)
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return stoppedOutcome(ctx)
		}
	}
	if b.status != "" {
		return build.Outcome{Status: b.status}
	}
	if b.fail {
		return build.Failed(build.StepBuild, 2, "exit status 2")
	}
	return build.Succeeded()
}

func (f *fakeRunner) startedNodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func stoppedOutcome(ctx context.Context) build.Outcome {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return build.Outcome{Status: build.StatusTimedOut, Message: "timed out"}
	}
	return build.Outcome{Status: build.StatusCancelled, Message: "cancelled"}
}

func waitResult(t *testing.T, run *Run) build.RunResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := run.Wait(ctx)
	require.NoError(t, err, "run did not finish")
	return result
}

func waitForStatus(t *testing.T, run *Run, id string, want build.NodeStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, _ := run.Status(id)
		return got == want
	}, 2*time.Second, 5*time.Millisecond)
}

func statuses(result build.RunResult) map[string]build.NodeStatus {
	out := make(map[string]build.NodeStatus, len(result.Nodes))
	for id, res := range result.Nodes {
		out[id] = res.Status
	}
	return out
}
