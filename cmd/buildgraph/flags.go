package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/config"
)

const (
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

var errBuildCancelled = errors.New("build cancelled")

func validateLogFormat(format string) error {
	switch format {
	case logFormatConsole, logFormatJSON:
		return nil
	}
	return fmt.Errorf("invalid --log-format %q: expected %s or %s", format, logFormatConsole, logFormatJSON)
}

// validateProjectPath returns the absolute path of an existing project file.
func validateProjectPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("project file is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project file does not exist: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("project path %s is a directory", abs)
	}

	return abs, nil
}

func newCommandError(operation, context string, cause error, suggestion string) error {
	return &commandError{operation: operation, context: context, cause: cause, suggestion: suggestion}
}

type commandError struct {
	operation  string
	context    string
	cause      error
	suggestion string
}

func (e *commandError) Error() string {
	msg := fmt.Sprintf("Failed to %s: %s\n\nError: %s", e.operation, e.context, describe(e.cause))
	if e.suggestion != "" {
		msg += "\n\nSuggestion: " + e.suggestion
	}
	return msg
}

func (e *commandError) Unwrap() error {
	return e.cause
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	return config.Describe(err)
}

// loadSuggestion picks a hint for a failed project load.
func loadSuggestion(err error) string {
	code, _ := graph.CodeOf(err)
	switch code {
	case graph.ErrCodeNotFound:
		return "Check the path passed with --project."
	case graph.ErrCodeCycle:
		return fmt.Sprintf("Remove one of the edges between: %s.", strings.Join(graph.CycleNodes(err), ", "))
	default:
		return "Fix the problems listed above and try again."
	}
}

// exitCode maps command errors to process exit codes: 2 for unusable
// project documents, 130 for cancelled builds, 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, errBuildCancelled) {
		return 130
	}
	code, ok := graph.CodeOf(err)
	if !ok {
		return 1
	}
	switch code {
	case graph.ErrCodeValidation, graph.ErrCodeDuplicate, graph.ErrCodeDanglingEdge,
		graph.ErrCodeSelfLoop, graph.ErrCodeCycle, graph.ErrCodeNotFound, graph.ErrCodeMissing:
		return 2
	}
	return 1
}
