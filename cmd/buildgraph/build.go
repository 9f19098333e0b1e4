package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	appbuild "github.com/alexisbeaulieu97/buildgraph/internal/application/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
	"github.com/alexisbeaulieu97/buildgraph/internal/tui"
	apperrors "github.com/alexisbeaulieu97/buildgraph/pkg/errors"
)

type buildOptions struct {
	ProjectPath    string
	Concurrency    int
	From           string
	NodeTimeout    time.Duration
	RunTimeout     time.Duration
	GracePeriod    time.Duration
	NonInteractive bool
}

func (o buildOptions) overrides() appbuild.Overrides {
	return appbuild.Overrides{
		Concurrency: o.Concurrency,
		StartNodeID: o.From,
		NodeTimeout: o.NodeTimeout,
		RunTimeout:  o.RunTimeout,
		GracePeriod: o.GracePeriod,
	}
}

func newBuildCmd(app *AppContext) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every node of a project in dependency order",
		Long: `Build configures, builds and installs each node of the project graph once
all of its dependencies succeeded. A failing node skips everything that depends
on it; independent nodes keep building. Ctrl+C cancels the build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			interactive := !opts.NonInteractive && app.isTerminal(cmd.OutOrStdout())
			app.quiet = interactive

			ctx, logger := app.CommandContext(cmd, "command.build")
			logger.Info(ctx, "build start", "project_path", opts.ProjectPath, "interactive", interactive)
			err := runBuild(ctx, logger, cmd, app, opts, interactive)
			if err != nil {
				logger.Error(ctx, "build command failed", "error", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectPath, "project", "p", "", "Path to the project file (.yaml, .yml or .json)")
	cmd.Flags().IntVarP(&opts.Concurrency, "jobs", "j", 0, "Number of nodes built concurrently (default from project, else 1)")
	cmd.Flags().StringVar(&opts.From, "from", "", "Resume the build at this node id of the topological order")
	cmd.Flags().DurationVar(&opts.NodeTimeout, "node-timeout", 0, "Time limit per node; accepts Go duration strings (e.g. 20m)")
	cmd.Flags().DurationVar(&opts.RunTimeout, "run-timeout", 0, "Time limit for the whole build (e.g. 2h)")
	cmd.Flags().DurationVar(&opts.GracePeriod, "grace", 0, "Time a stopped child gets between SIGTERM and SIGKILL (default 10s)")
	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "Print plain output instead of the live view")
	cmd.MarkFlagRequired("project") //nolint:errcheck

	return cmd
}

func runBuild(ctx context.Context, logger ports.Logger, cmd *cobra.Command, app *AppContext, opts *buildOptions, interactive bool) error {
	if opts.Concurrency < 0 {
		return newCommandError("build", "parsing flags", fmt.Errorf("--jobs must not be negative"), "Pass a positive number of jobs.")
	}
	path, err := validateProjectPath(opts.ProjectPath)
	if err != nil {
		return newCommandError("build", fmt.Sprintf("resolving project path %q", opts.ProjectPath), err, "Check that the file exists and you have permission to read it.")
	}

	svc, err := app.Service(logger, filepath.Dir(path))
	if err != nil {
		return newCommandError("build", "opening run history", err, "Check the --history path and its permissions.")
	}

	project, err := svc.Open(ctx, path)
	if err != nil {
		return newCommandError("build", fmt.Sprintf("loading project %s", path), err, loadSuggestion(err))
	}

	run, err := svc.StartBuild(ctx, project, opts.overrides())
	if err != nil {
		return newCommandError("build", "planning the build", err, loadSuggestion(err))
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sigCtx.Done():
			svc.CancelBuild(ctx, run)
		case <-run.Done():
		}
	}()

	out := cmd.OutOrStdout()
	reported := make(chan struct{})
	if interactive {
		model := tui.NewModel(tui.Options{
			Title:  project.Name,
			Order:  run.Order(),
			Events: svc.Subscribe(ctx, run),
			Cancel: func() { svc.CancelBuild(ctx, run) },
		})
		if _, err := tea.NewProgram(model, tea.WithOutput(out)).Run(); err != nil {
			svc.CancelBuild(ctx, run)
			_, _ = svc.Wait(ctx, run)
			return err
		}
		close(reported)
	} else {
		reporter := newPlainReporter(out)
		events := svc.Subscribe(ctx, run)
		go func() {
			defer close(reported)
			reporter.Report(events)
		}()
	}

	result, err := svc.Wait(ctx, run)
	if err != nil {
		return err
	}
	<-reported
	return finishBuild(out, result, interactive)
}

func finishBuild(out io.Writer, result build.RunResult, interactive bool) error {
	if !interactive {
		fmt.Fprintln(out)
		renderRunTable(out, result)
	}
	fmt.Fprintln(out, runSummaryLine(result))
	return buildError(result)
}

// buildError turns an unsuccessful outcome into the command's error,
// naming the first node in build order that failed.
func buildError(result build.RunResult) error {
	switch result.Outcome {
	case build.OutcomeSucceeded:
		return nil
	case build.OutcomeCancelled:
		return errBuildCancelled
	}
	for _, res := range result.Ordered() {
		if res.Status.BlocksDependents() {
			return fmt.Errorf("build failed: %w", apperrors.NewExecutionError(res.NodeID, string(res.Step), errors.New(res.Message)))
		}
	}
	return errors.New("build failed")
}
