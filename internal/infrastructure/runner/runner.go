package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// drainTimeout bounds how long output is still read after a child exits; a
// background grandchild holding the pipe open must not stall the node.
const drainTimeout = 2 * time.Second

// ProcessRunner executes job steps as operating system processes.
type ProcessRunner struct {
	logger      ports.Logger
	shell       string
	lookPath    func(string) (string, error)
	environment EnvironmentFunc

	envOnce sync.Once
	env     []string
}

// Option configures a ProcessRunner.
type Option func(*ProcessRunner)

// WithLogger injects a logger.
func WithLogger(logger ports.Logger) Option {
	return func(r *ProcessRunner) {
		r.logger = logger
	}
}

// WithShell forces the shell used for pre-build and post-install scripts.
func WithShell(shell string) Option {
	return func(r *ProcessRunner) {
		r.shell = shell
	}
}

// NewProcessRunner constructs a runner.
func NewProcessRunner(opts ...Option) *ProcessRunner {
	r := &ProcessRunner{
		logger:   logging.NewNoOpLogger(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNoOp(r.logger).With("component", "runner")
	return r
}

// Run implements ports.StepRunner.
func (r *ProcessRunner) Run(ctx context.Context, job build.Job, sink ports.EventSink) build.Outcome {
	logger := r.logger.With("run_id", job.RunID, "node_id", job.NodeID)

	if err := r.preflight(job); err != nil {
		logger.Warn(ctx, "preflight failed", "error", err)
		r.emit(ctx, sink, build.LogLine(job.NodeID, "error: "+err.Error()))
		return build.Failed("", -1, err.Error())
	}

	env := r.extraEnvironment(ctx)
	for _, step := range job.Steps {
		if ctx.Err() != nil {
			return stopped(ctx, step.Kind)
		}
		program, args, err := r.command(job, step)
		if err != nil {
			r.emit(ctx, sink, build.LogLine(job.NodeID, "error: "+err.Error()))
			return build.Failed(step.Kind, -1, err.Error())
		}

		r.emit(ctx, sink, build.StepStarted(job.NodeID, step.Kind, step.CommandLine()))
		logger.Debug(ctx, "step started", "step", string(step.Kind), "program", program)
		started := time.Now()

		exitCode, err := r.exec(ctx, job, step, program, args, env, sink)
		logger.Debug(ctx, "step finished", "step", string(step.Kind), "exit_code", exitCode,
			"duration_ms", time.Since(started).Milliseconds())

		if ctx.Err() != nil {
			return stopped(ctx, step.Kind)
		}
		if err != nil {
			r.emit(ctx, sink, build.LogLine(job.NodeID, "error: "+err.Error()))
			return build.Failed(step.Kind, -1, fmt.Sprintf("%s: %v", step.Kind, err))
		}
		if exitCode != 0 {
			return build.Failed(step.Kind, exitCode, fmt.Sprintf("%s exited with status %d", step.Kind, exitCode))
		}
	}
	return build.Succeeded()
}

// preflight turns environment problems into a node failure before any child
// is spawned.
func (r *ProcessRunner) preflight(job build.Job) error {
	if strings.TrimSpace(job.ProjectDir) == "" {
		return &graph.DomainError{Code: graph.ErrCodeMissing, Message: "project directory is required", Context: map[string]interface{}{"id": job.NodeID}}
	}
	info, err := os.Stat(job.ProjectDir)
	if err != nil {
		return fmt.Errorf("project directory %s: %w", job.ProjectDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project path %s is not a directory", job.ProjectDir)
	}

	usesTool := false
	for _, step := range job.Steps {
		if step.Script == "" {
			usesTool = true
			break
		}
	}
	if usesTool {
		if job.DescriptionFile != "" {
			description := filepath.Join(job.ProjectDir, job.DescriptionFile)
			if _, err := os.Stat(description); err != nil {
				return fmt.Errorf("%s not found in %s", job.DescriptionFile, job.ProjectDir)
			}
		}
		if job.Tool != "" {
			if _, err := r.lookPath(job.Tool); err != nil {
				return fmt.Errorf("build tool %q not resolvable: %w", job.Tool, err)
			}
		}
	}

	for _, dir := range job.MakeDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (r *ProcessRunner) command(job build.Job, step build.StepSpec) (string, []string, error) {
	if step.Script == "" {
		program := step.Program
		if program == "" {
			program = job.Tool
		}
		if program == "" {
			return "", nil, fmt.Errorf("%s: no program configured", step.Kind)
		}
		return program, step.Args, nil
	}
	shell, flags, err := determineShell(r.shell)
	if err != nil {
		return "", nil, err
	}
	return shell, append(flags, step.Script), nil
}

// exec runs one child with stdout and stderr merged into a single pipe so the
// child's own interleaving is preserved line by line. On cancellation the
// child's process group receives a terminate signal and, if it is still alive
// after the grace period, a kill.
func (r *ProcessRunner) exec(ctx context.Context, job build.Job, step build.StepSpec, program string, args, env []string, sink ports.EventSink) (int, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = step.Dir
	cmd.Env = append(append(os.Environ(), env...), step.Env...)
	configureProcess(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return -1, fmt.Errorf("start %s: %w", program, err)
	}
	_ = pw.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		r.forward(ctx, job.NodeID, pr, sink)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		r.logger.Info(ctx, "stopping child", "node_id", job.NodeID, "step", string(step.Kind), "pid", cmd.Process.Pid)
		_ = terminate(cmd)
		grace := job.GracePeriod
		if grace <= 0 {
			grace = graph.DefaultGracePeriod
		}
		timer := time.NewTimer(grace)
		select {
		case waitErr = <-waitDone:
			timer.Stop()
		case <-timer.C:
			r.logger.Warn(ctx, "child ignored terminate, killing", "node_id", job.NodeID, "pid", cmd.Process.Pid)
			_ = kill(cmd)
			waitErr = <-waitDone
		}
	}

	select {
	case <-readDone:
	case <-time.After(drainTimeout):
		_ = pr.Close()
		<-readDone
	}
	_ = pr.Close()

	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, waitErr
}

// forward emits one LogLine event per line read from rd, including a final
// unterminated line.
func (r *ProcessRunner) forward(ctx context.Context, nodeID string, rd io.Reader, sink ports.EventSink) {
	reader := bufio.NewReader(rd)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			r.emit(ctx, sink, build.LogLine(nodeID, strings.TrimRight(line, "\r\n")))
		}
		if err != nil {
			return
		}
	}
}

// emit delivers ev even while ctx is being cancelled; lines printed by a child
// during shutdown are still part of its log.
func (r *ProcessRunner) emit(ctx context.Context, sink ports.EventSink, ev build.Event) {
	if sink == nil {
		return
	}
	if err := sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Debug(ctx, "event not delivered", "node_id", ev.NodeID, "error", err)
	}
}

func stopped(ctx context.Context, step build.StepKind) build.Outcome {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return build.Outcome{Status: build.StatusTimedOut, Step: step, ExitCode: -1, Message: fmt.Sprintf("%s timed out", step)}
	}
	return build.Outcome{Status: build.StatusCancelled, Step: step, ExitCode: -1, Message: fmt.Sprintf("%s cancelled", step)}
}

func determineShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}

	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}

	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}

	return "", nil, fmt.Errorf("no suitable shell found")
}

var _ ports.StepRunner = (*ProcessRunner)(nil)
