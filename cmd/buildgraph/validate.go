package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

func newValidateCmd(app *AppContext) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a project file for structural problems and cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			ctx, logger := app.CommandContext(cmd, "command.validate")
			err := runValidate(ctx, logger, cmd, app, projectPath)
			if err != nil {
				logger.Error(ctx, "validate command failed", "error", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Path to the project file")
	cmd.MarkFlagRequired("project") //nolint:errcheck

	return cmd
}

func runValidate(ctx context.Context, logger ports.Logger, cmd *cobra.Command, app *AppContext, projectPath string) error {
	path, err := validateProjectPath(projectPath)
	if err != nil {
		return newCommandError("validate", fmt.Sprintf("resolving project path %q", projectPath), err, "Check that the file exists and you have permission to read it.")
	}
	svc, err := app.Service(logger, filepath.Dir(path))
	if err != nil {
		return newCommandError("validate", "opening run history", err, "Check the --history path and its permissions.")
	}

	project, err := svc.Open(ctx, path)
	if err != nil {
		return newCommandError("validate", fmt.Sprintf("loading project %s", path), err, loadSuggestion(err))
	}
	if _, err := svc.TopologicalOrder(ctx, project.Graph); err != nil {
		return newCommandError("validate", "sorting the project graph", err, loadSuggestion(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid: %d nodes, %d edges\n", filepath.Base(path), project.Graph.Len(), len(project.Graph.Edges()))
	return nil
}
