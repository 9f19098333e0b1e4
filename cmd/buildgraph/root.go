package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose     bool
	logFormat   string
	logFile     string
	historyPath string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithApp(newAppContext())
}

func newRootCmdWithApp(app *AppContext) *cobra.Command {
	flags := app.flags

	cmd := &cobra.Command{
		Use:           "buildgraph",
		Short:         "buildgraph builds a graph of CMake projects in dependency order",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateLogFormat(flags.logFormat)
		},
	}

	// Defaults come from the context so values preset by callers survive
	// flag registration.
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", flags.verbose, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", valueOrFallback(flags.logFormat, logFormatConsole), "Log format: console or json")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", flags.logFile, "Write logs to this file instead of stderr")
	cmd.PersistentFlags().StringVar(&flags.historyPath, "history", flags.historyPath, "Path of the run history file (defaults to the user cache directory)")

	cmd.AddCommand(newBuildCmd(app))
	cmd.AddCommand(newOrderCmd(app))
	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newFmtCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
