package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	appbuild "github.com/alexisbeaulieu97/buildgraph/internal/application/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/engine"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/history"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/runner"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// AppContext bundles the flags and collaborators shared by every command.
type AppContext struct {
	flags *rootFlags

	// quiet drops log output unless a log file is set; the live view owns
	// the terminal while it runs.
	quiet bool

	// runner and isTerminal are replaced in tests.
	runner     ports.StepRunner
	isTerminal func(io.Writer) bool

	logFile *os.File
}

func newAppContext() *AppContext {
	return &AppContext{
		flags:      &rootFlags{logFormat: logFormatConsole},
		isTerminal: writerIsTerminal,
	}
}

// CommandContext returns a context carrying a fresh correlation id and a
// logger scoped to component.
func (a *AppContext) CommandContext(cmd *cobra.Command, component string) (context.Context, ports.Logger) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ports.WithCorrelationID(ctx, ports.GenerateCorrelationID())

	logger, err := a.newLogger(cmd)
	if err != nil {
		return ctx, logging.NewNoOpLogger()
	}
	return ctx, logger.With("layer", "cli", "component", component)
}

func (a *AppContext) newLogger(cmd *cobra.Command) (ports.Logger, error) {
	level := "warn"
	if a.flags.verbose {
		level = "debug"
	}

	writer, err := a.logWriter(cmd)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Writer:        writer,
		Level:         level,
		HumanReadable: a.flags.logFormat != logFormatJSON,
	})
}

func (a *AppContext) logWriter(cmd *cobra.Command) (io.Writer, error) {
	if a.flags.logFile != "" {
		if a.logFile == nil {
			f, err := os.OpenFile(a.flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, err
			}
			a.logFile = f
		}
		return a.logFile, nil
	}
	if a.quiet {
		return io.Discard, nil
	}
	return cmd.ErrOrStderr(), nil
}

// Service wires the build service for a project rooted at baseDir.
func (a *AppContext) Service(logger ports.Logger, baseDir string) (*appbuild.Service, error) {
	publisher := events.NewLoggingPublisher(logger.With("layer", "infrastructure"))

	stepRunner := a.runner
	if stepRunner == nil {
		stepRunner = runner.NewProcessRunner(
			runner.WithLogger(logger.With("layer", "infrastructure")),
			runner.WithEnvironment(runner.DeveloperEnvironment),
		)
	}

	planner := engine.CommandPlanner{BaseDir: baseDir}
	orchestrator := engine.NewOrchestrator(stepRunner,
		engine.WithOrchestratorLogger(logger.With("layer", "infrastructure")),
		engine.WithOrchestratorEvents(publisher),
		engine.WithCommandPlanner(planner),
	)

	store, err := a.Store(logger)
	if err != nil {
		return nil, err
	}

	return appbuild.NewService(orchestrator, config.NewLoader(logger.With("layer", "infrastructure")), logger, publisher,
		appbuild.WithStore(store),
		appbuild.WithRevisions(history.NewGitRevisions()),
		appbuild.WithPlanner(planner),
	), nil
}

// Store opens the run history.
func (a *AppContext) Store(logger ports.Logger) (*history.Store, error) {
	path := a.flags.historyPath
	if path == "" {
		path = history.DefaultPath()
	}
	return history.NewStore(path, history.WithLogger(logger.With("layer", "infrastructure")))
}

// Close releases resources held across commands.
func (a *AppContext) Close() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
