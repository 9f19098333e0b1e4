package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

type orderOptions struct {
	ProjectPath string
	From        string
	JSON        bool
}

type orderOutput struct {
	Order  []string   `json:"order"`
	Levels [][]string `json:"levels"`
}

func newOrderCmd(app *AppContext) *cobra.Command {
	opts := &orderOptions{}

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the build order and the levels that can build in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			ctx, logger := app.CommandContext(cmd, "command.order")
			err := runOrder(ctx, logger, cmd, app, opts)
			if err != nil {
				logger.Error(ctx, "order command failed", "error", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectPath, "project", "p", "", "Path to the project file")
	cmd.Flags().StringVar(&opts.From, "from", "", "Only print the order starting at this node id")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output in JSON format")
	cmd.MarkFlagRequired("project") //nolint:errcheck

	return cmd
}

func runOrder(ctx context.Context, logger ports.Logger, cmd *cobra.Command, app *AppContext, opts *orderOptions) error {
	path, err := validateProjectPath(opts.ProjectPath)
	if err != nil {
		return newCommandError("order", fmt.Sprintf("resolving project path %q", opts.ProjectPath), err, "Check that the file exists and you have permission to read it.")
	}
	svc, err := app.Service(logger, filepath.Dir(path))
	if err != nil {
		return newCommandError("order", "opening run history", err, "Check the --history path and its permissions.")
	}

	project, err := svc.Open(ctx, path)
	if err != nil {
		return newCommandError("order", fmt.Sprintf("loading project %s", path), err, loadSuggestion(err))
	}

	plan, err := svc.Plan(ctx, project.Graph)
	if err != nil {
		return newCommandError("order", "sorting the project graph", err, loadSuggestion(err))
	}
	order, err := plan.From(opts.From)
	if err != nil {
		return newCommandError("order", "selecting the start node", err, "Pass a node id that exists in the project.")
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(orderOutput{Order: order, Levels: plan.Levels})
	}

	for i, id := range order {
		name := id
		if n, ok := project.Graph.Node(id); ok && n.Name != id {
			name = fmt.Sprintf("%s (%s)", id, n.Name)
		}
		fmt.Fprintf(out, "%3d. %s\n", i+1, name)
	}
	fmt.Fprintf(out, "\nParallel levels:\n%s", plan.String())
	return nil
}
