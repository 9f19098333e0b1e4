package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

type historyOptions struct {
	limit int
	json  bool
}

func newHistoryCmd(app *AppContext) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived builds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			ctx, logger := app.CommandContext(cmd, "command.history")
			store, err := app.Store(logger)
			if err != nil {
				return newCommandError("list history", "opening run history", err, "Check the --history path and its permissions.")
			}
			runs, err := store.List(ctx, opts.limit)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, runs)
			}
			renderHistoryTable(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of runs to list (0 lists all)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output in JSON format")

	cmd.AddCommand(newHistoryShowCmd(app, opts))
	return cmd
}

func newHistoryShowCmd(app *AppContext, parent *historyOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the node results of one archived build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close() //nolint:errcheck
			ctx, logger := app.CommandContext(cmd, "command.history.show")
			store, err := app.Store(logger)
			if err != nil {
				return newCommandError("show run", "opening run history", err, "Check the --history path and its permissions.")
			}
			result, err := store.Get(ctx, args[0])
			if err != nil {
				return newCommandError("show run", fmt.Sprintf("looking up run %s", args[0]), err, "Run 'buildgraph history' to list archived runs.")
			}
			if parent.json {
				return writeJSON(cmd, result)
			}
			renderRunDetail(cmd, *result)
			return nil
		},
	}
}

func renderHistoryTable(cmd *cobra.Command, runs []build.RunResult) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No builds archived yet.")
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "RUN\tPROJECT\tOUTCOME\tNODES\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID,
			valueOrFallback(r.Project, "(no name)"),
			r.Outcome,
			len(r.Nodes),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(r.Duration()),
		)
	}
	_ = writer.Flush()
}

func renderRunDetail(cmd *cobra.Command, result build.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n\n", result.RunID, valueOrFallback(result.Project, "(no name)"))
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NODE\tSTATUS\tREVISION\tDURATION\tMESSAGE")
	for _, res := range result.Ordered() {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			res.NodeID,
			statusLabel(res.Status),
			shortRevision(res.Revision),
			formatDuration(res.Duration),
			valueOrFallback(res.Message, "-"),
		)
	}
	_ = writer.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, runSummaryLine(result))
}

func shortRevision(rev string) string {
	if rev == "" {
		return "-"
	}
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
