package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

type collector struct {
	mu     sync.Mutex
	events []build.Event
}

func (c *collector) Emit(_ context.Context, ev build.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.events {
		if ev.Kind == build.KindLogLine {
			out = append(out, ev.Line)
		}
	}
	return out
}

func (c *collector) steps() []build.StepKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []build.StepKind
	for _, ev := range c.events {
		if ev.Kind == build.KindStepStarted {
			out = append(out, ev.Step)
		}
	}
	return out
}

func (c *collector) hasLine(line string) bool {
	for _, l := range c.lines() {
		if l == line {
			return true
		}
	}
	return false
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests rely on a POSIX shell")
	}
}

func shellStep(kind build.StepKind, dir, script string) build.StepSpec {
	return build.StepSpec{Kind: kind, Program: "sh", Args: []string{"-c", script}, Dir: dir}
}

func newJob(t *testing.T, steps ...build.StepSpec) build.Job {
	t.Helper()
	dir := t.TempDir()
	for i := range steps {
		steps[i].Dir = dir
	}
	return build.Job{
		NodeID:      "node",
		ProjectDir:  dir,
		Tool:        "sh",
		Steps:       steps,
		GracePeriod: time.Second,
	}
}

func TestRunSucceedsAndStreamsMergedOutput(t *testing.T) {
	requireUnix(t)
	job := newJob(t,
		shellStep(build.StepConfigure, "", "echo one; echo two >&2; echo three"),
		shellStep(build.StepBuild, "", "printf 'no newline'"),
	)
	sink := &collector{}

	outcome := NewProcessRunner(WithShell("sh")).Run(context.Background(), job, sink)

	require.Equal(t, build.StatusSucceeded, outcome.Status)
	require.Equal(t, []string{"one", "two", "three", "no newline"}, sink.lines())
	require.Equal(t, []build.StepKind{build.StepConfigure, build.StepBuild}, sink.steps())
}

func TestFailingPreBuildStopsRemainingSteps(t *testing.T) {
	requireUnix(t)
	job := newJob(t)
	marker := filepath.Join(job.ProjectDir, "configured")
	job.Steps = []build.StepSpec{
		{Kind: build.StepPreBuild, Script: "echo preparing; exit 3", Dir: job.ProjectDir},
		shellStep(build.StepConfigure, job.ProjectDir, "touch "+marker),
	}
	sink := &collector{}

	outcome := NewProcessRunner(WithShell("sh")).Run(context.Background(), job, sink)

	require.Equal(t, build.StatusFailed, outcome.Status)
	require.Equal(t, build.StepPreBuild, outcome.Step)
	require.Equal(t, 3, outcome.ExitCode)
	require.Equal(t, []string{"preparing"}, sink.lines())
	require.NoFileExists(t, marker)
}

func TestPreflightFailures(t *testing.T) {
	requireUnix(t)
	runner := NewProcessRunner(WithShell("sh"))

	t.Run("missing project directory", func(t *testing.T) {
		job := newJob(t, shellStep(build.StepConfigure, "", "true"))
		job.ProjectDir = filepath.Join(job.ProjectDir, "absent")
		outcome := runner.Run(context.Background(), job, &collector{})
		require.Equal(t, build.StatusFailed, outcome.Status)
		require.Contains(t, outcome.Message, "absent")
	})

	t.Run("empty project directory", func(t *testing.T) {
		job := newJob(t, shellStep(build.StepConfigure, "", "true"))
		job.ProjectDir = ""
		outcome := runner.Run(context.Background(), job, &collector{})
		require.Equal(t, build.StatusFailed, outcome.Status)
		require.Contains(t, outcome.Message, "project directory is required")
	})

	t.Run("missing description file", func(t *testing.T) {
		job := newJob(t, shellStep(build.StepConfigure, "", "true"))
		job.DescriptionFile = "CMakeLists.txt"
		sink := &collector{}
		outcome := runner.Run(context.Background(), job, sink)
		require.Equal(t, build.StatusFailed, outcome.Status)
		require.Contains(t, outcome.Message, "CMakeLists.txt not found")
		require.Empty(t, sink.steps())
	})

	t.Run("unresolvable tool", func(t *testing.T) {
		job := newJob(t, build.StepSpec{Kind: build.StepConfigure, Program: "definitely-not-a-build-tool"})
		job.Tool = "definitely-not-a-build-tool"
		outcome := runner.Run(context.Background(), job, &collector{})
		require.Equal(t, build.StatusFailed, outcome.Status)
		require.Contains(t, outcome.Message, "not resolvable")
	})
}

func TestRunCreatesDirectoriesAndPassesEnv(t *testing.T) {
	requireUnix(t)
	job := newJob(t)
	buildDir := filepath.Join(job.ProjectDir, "out", "core", "Debug")
	job.MakeDirs = []string{buildDir}
	job.DescriptionFile = "CMakeLists.txt"
	require.NoError(t, os.WriteFile(filepath.Join(job.ProjectDir, "CMakeLists.txt"), []byte("project(x)\n"), 0o644))
	job.Steps = []build.StepSpec{{
		Kind:   build.StepPostInstall,
		Script: "echo $BUILDGRAPH_NODE_ID",
		Dir:    job.ProjectDir,
		Env:    []string{"BUILDGRAPH_NODE_ID=core"},
	}}
	sink := &collector{}

	outcome := NewProcessRunner(WithShell("sh")).Run(context.Background(), job, sink)

	require.Equal(t, build.StatusSucceeded, outcome.Status)
	require.DirExists(t, buildDir)
	require.Equal(t, []string{"core"}, sink.lines())
}

func TestCancellationTerminatesChild(t *testing.T) {
	requireUnix(t)
	job := newJob(t, shellStep(build.StepBuild, "", "echo started; sleep 30"))
	sink := &collector{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan build.Outcome, 1)
	go func() { done <- NewProcessRunner().Run(ctx, job, sink) }()

	require.Eventually(t, func() bool { return sink.hasLine("started") }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		require.Equal(t, build.StatusCancelled, outcome.Status)
		require.Equal(t, build.StepBuild, outcome.Step)
	case <-time.After(5 * time.Second):
		t.Fatal("child was not stopped")
	}
}

func TestCancellationEscalatesToKill(t *testing.T) {
	requireUnix(t)
	job := newJob(t, shellStep(build.StepBuild, "", "trap '' TERM; echo ready; sleep 30"))
	job.GracePeriod = 200 * time.Millisecond
	sink := &collector{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan build.Outcome, 1)
	go func() { done <- NewProcessRunner().Run(ctx, job, sink) }()

	require.Eventually(t, func() bool { return sink.hasLine("ready") }, 5*time.Second, 10*time.Millisecond)
	stoppedAt := time.Now()
	cancel()

	select {
	case outcome := <-done:
		require.Equal(t, build.StatusCancelled, outcome.Status)
		require.GreaterOrEqual(t, time.Since(stoppedAt), job.GracePeriod)
	case <-time.After(10 * time.Second):
		t.Fatal("child survived the kill")
	}
}

func TestTimeoutReportsTimedOut(t *testing.T) {
	requireUnix(t)
	job := newJob(t, shellStep(build.StepBuild, "", "sleep 30"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	outcome := NewProcessRunner().Run(ctx, job, &collector{})
	require.Equal(t, build.StatusTimedOut, outcome.Status)
}

func TestAlreadyCancelledContextSpawnsNothing(t *testing.T) {
	requireUnix(t)
	job := newJob(t)
	marker := filepath.Join(job.ProjectDir, "ran")
	job.Steps = []build.StepSpec{shellStep(build.StepConfigure, job.ProjectDir, "touch "+marker)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewProcessRunner().Run(ctx, job, &collector{})
	require.Equal(t, build.StatusCancelled, outcome.Status)
	require.NoFileExists(t, marker)
}

func TestDetermineShell(t *testing.T) {
	shell, flags, err := determineShell("/bin/zsh")
	require.NoError(t, err)
	require.Equal(t, "/bin/zsh", shell)
	require.Equal(t, []string{"-c"}, flags)
}

func TestEnvironmentPreparedOnceAndInherited(t *testing.T) {
	requireUnix(t)
	var calls atomic.Int32
	r := NewProcessRunner(WithShell("sh"), WithEnvironment(func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"BUILDGRAPH_TOOLCHAIN=msvc"}, nil
	}))

	for i := 0; i < 2; i++ {
		job := newJob(t, shellStep(build.StepConfigure, "", `echo "toolchain=$BUILDGRAPH_TOOLCHAIN"`))
		sink := &collector{}
		outcome := r.Run(context.Background(), job, sink)
		require.Equal(t, build.StatusSucceeded, outcome.Status)
		require.True(t, sink.hasLine("toolchain=msvc"), sink.lines())
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestEnvironmentFailureDoesNotFailNode(t *testing.T) {
	requireUnix(t)
	r := NewProcessRunner(WithShell("sh"), WithEnvironment(func(context.Context) ([]string, error) {
		return nil, errors.New("vcvarsall exited with status 1")
	}))
	job := newJob(t, shellStep(build.StepBuild, "", "echo built"))
	sink := &collector{}

	outcome := r.Run(context.Background(), job, sink)
	require.Equal(t, build.StatusSucceeded, outcome.Status)
	require.True(t, sink.hasLine("built"))
}

func TestParseEnvironment(t *testing.T) {
	t.Parallel()

	out := "PATH=C:\\VS\\bin;C:\\Windows\r\nINCLUDE=C:\\VS\\include\r\n\r\n**********\r\n=broken\r\nEMPTY=\r\nEXPR=a=b\n"
	require.Equal(t, []string{
		`PATH=C:\VS\bin;C:\Windows`,
		`INCLUDE=C:\VS\include`,
		"EMPTY=",
		"EXPR=a=b",
	}, parseEnvironment(out))
	require.Empty(t, parseEnvironment(""))
}
