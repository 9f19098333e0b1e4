package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
	"github.com/alexisbeaulieu97/buildgraph/pkg/diff"
)

var errNotFormatted = errors.New("project file is not formatted")

type fmtOptions struct {
	ProjectPath string
	Check       bool
}

func newFmtCmd(app *AppContext) *cobra.Command {
	opts := &fmtOptions{}

	cmd := &cobra.Command{
		Use:   "fmt",
		Short: "Rewrite a project file in canonical form and show what changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			ctx, logger := app.CommandContext(cmd, "command.fmt")
			err := runFmt(ctx, logger, cmd, opts)
			if err != nil && !errors.Is(err, errNotFormatted) {
				logger.Error(ctx, "fmt command failed", "error", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectPath, "project", "p", "", "Path to the project file")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Only report differences; fail when the file is not formatted")
	cmd.MarkFlagRequired("project") //nolint:errcheck

	return cmd
}

func runFmt(ctx context.Context, logger ports.Logger, cmd *cobra.Command, opts *fmtOptions) error {
	path, err := validateProjectPath(opts.ProjectPath)
	if err != nil {
		return newCommandError("format project", fmt.Sprintf("resolving project path %q", opts.ProjectPath), err, "Check that the file exists and you have permission to read it.")
	}

	loader := config.NewLoader(logger.With("layer", "infrastructure"))
	project, err := loader.Load(ctx, path)
	if err != nil {
		return newCommandError("format project", fmt.Sprintf("loading project %s", path), err, loadSuggestion(err))
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	formatted, err := config.Encode(path, project)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	changes := diff.Unified(original, formatted, path, path+" (formatted)")
	if changes == "" {
		fmt.Fprintf(out, "%s is already formatted\n", path)
		return nil
	}
	fmt.Fprint(out, changes)

	if opts.Check {
		return errNotFormatted
	}
	if err := loader.Save(ctx, path, project); err != nil {
		return newCommandError("format project", fmt.Sprintf("writing %s", path), err, "Check file permissions and try again.")
	}
	removed, added := diff.Stats(original, formatted)
	fmt.Fprintf(out, "formatted %s (-%d +%d lines)\n", path, removed, added)
	return nil
}
