package commands

import (
	"github.com/spf13/cobra"

	"flank/internal/cli"
	"flank/internal/storage"
	"flank/internal/ui"
)

// ResultsCommand handles the results command
type ResultsCommand struct {
	flags     *cli.Flags
	storage   storage.Storage
	formatter *ui.Formatter
	viewer    ui.Viewer
}

// NewResultsCommand creates a new ResultsCommand
func NewResultsCommand(flags *cli.Flags, st storage.Storage, formatter *ui.Formatter, viewer ui.Viewer) *ResultsCommand {
	return &ResultsCommand{
		flags:     flags,
		storage:   st,
		formatter: formatter,
		viewer:    viewer,
	}
}

// Execute runs the command
func (rc *ResultsCommand) Execute(cmd *cobra.Command, args []string) error {
	runReport, err := rc.storage.Load()
	if err != nil {
		return err
	}
	if rc.flags.Interactive {
		return rc.viewer.View(runReport)
	}
	rc.formatter.PrintReport(runReport)
	return nil
}
